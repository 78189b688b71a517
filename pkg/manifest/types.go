// Package manifest locates and parses the workspace manifest (.meta,
// .meta.yaml, .meta.yml) and normalizes its project entries into
// ProjectInfo values. YAML is decoded through yaml.MapSlice so project
// declaration order survives into fan-out order.
package manifest

// ProjectInfo is the normalized, immutable form of a manifest project
// entry. Path is always relative to the workspace root.
type ProjectInfo struct {
	Name      string
	Path      string
	Repo      string
	Tags      []string
	Provides  []string
	DependsOn []string
}

// Manifest is the parsed and normalized workspace manifest. Projects
// preserves the manifest's on-disk key order, which is the tie-break
// order project filtering and fan-out fall back to.
type Manifest struct {
	Projects []ProjectInfo
	Ignore   []string
}

// rawEntry is the on-disk shape of a single project entry: either a bare
// git URL string (the "simple form"), or a record with repo/path/tags/
// provides/depends_on fields.
type rawEntry struct {
	IsString bool
	String   string

	Repo      string
	Path      string
	Tags      []string
	Provides  []string
	DependsOn []string
}

// normalizeEntry expands one rawEntry into a ProjectInfo, applying the
// simple-string-form expansion and the path-defaults-to-name rule.
func normalizeEntry(name string, entry rawEntry) ProjectInfo {
	if entry.IsString {
		return ProjectInfo{Name: name, Repo: entry.String, Path: name}
	}
	path := entry.Path
	if path == "" {
		path = name
	}
	return ProjectInfo{
		Name:      name,
		Repo:      entry.Repo,
		Path:      path,
		Tags:      entry.Tags,
		Provides:  entry.Provides,
		DependsOn: entry.DependsOn,
	}
}
