package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/metaworkspace/meta/pkg/logger"
)

var log = logger.New("meta:manifest")

// candidateNames are tried, in order, at each directory level when no
// override filename is given.
var candidateNames = []string{".meta", ".meta.yaml", ".meta.yml"}

// Find walks upward from startDir to the filesystem root looking for a
// manifest file. With overrideName set, only that filename is considered
// and its format is inferred from its extension.
func Find(startDir, overrideName string) (path string, isYAML bool, err error) {
	dir := startDir
	for {
		names := candidateNames
		if overrideName != "" {
			names = []string{overrideName}
		}
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
				yamlFmt := strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
				log.Printf("found manifest at %s", candidate)
				return candidate, yamlFmt, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, &NotFoundError{StartDir: startDir}
		}
		dir = parent
	}
}

// Parse reads and normalizes the manifest at path. isYAML selects the
// decoder; callers typically pass through the value Find returned.
func Parse(path string, isYAML bool) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	var order []string
	var entries map[string]rawEntry
	var ignore []string
	if isYAML {
		order, entries, ignore, err = parseYAML(data)
	} else {
		order, entries, ignore, err = parseJSON(data)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	seen := make(map[string]struct{}, len(order))
	projects := make([]ProjectInfo, 0, len(order))
	for _, name := range order {
		if _, dup := seen[name]; dup {
			return nil, &DuplicateProjectError{Name: name}
		}
		seen[name] = struct{}{}
		projects = append(projects, normalizeEntry(name, entries[name]))
	}

	return &Manifest{Projects: projects, Ignore: ignore}, nil
}

// yamlDoc mirrors the manifest's top-level shape for goccy/go-yaml
// decoding; Projects is a MapSlice to retain on-disk key order.
type yamlDoc struct {
	Projects yaml.MapSlice `yaml:"projects"`
	Ignore   []string      `yaml:"ignore"`
}

func parseYAML(data []byte) (order []string, entries map[string]rawEntry, ignore []string, err error) {
	var doc yamlDoc
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, nil, err
	}
	entries = make(map[string]rawEntry, len(doc.Projects))
	for _, item := range doc.Projects {
		name, ok := item.Key.(string)
		if !ok {
			return nil, nil, nil, fmt.Errorf("project key %v is not a string", item.Key)
		}
		entry, convErr := convertYAMLValue(item.Value)
		if convErr != nil {
			return nil, nil, nil, fmt.Errorf("project %q: %w", name, convErr)
		}
		order = append(order, name)
		entries[name] = entry
	}
	return order, entries, doc.Ignore, nil
}

func convertYAMLValue(v any) (rawEntry, error) {
	switch val := v.(type) {
	case string:
		return rawEntry{IsString: true, String: val}, nil
	default:
		// Re-marshal/unmarshal the sub-tree into the record shape; this
		// keeps the record decode logic in one place regardless of how
		// goccy/go-yaml represented the nested map.
		buf, err := yaml.Marshal(val)
		if err != nil {
			return rawEntry{}, err
		}
		var record struct {
			Repo      string   `yaml:"repo"`
			Path      string   `yaml:"path"`
			Tags      []string `yaml:"tags"`
			Provides  []string `yaml:"provides"`
			DependsOn []string `yaml:"depends_on"`
		}
		if err := yaml.Unmarshal(buf, &record); err != nil {
			return rawEntry{}, err
		}
		return rawEntry{
			Repo:      record.Repo,
			Path:      record.Path,
			Tags:      record.Tags,
			Provides:  record.Provides,
			DependsOn: record.DependsOn,
		}, nil
	}
}

func parseJSON(data []byte) (order []string, entries map[string]rawEntry, ignore []string, err error) {
	var top map[string]json.RawMessage
	if err = json.Unmarshal(data, &top); err != nil {
		return nil, nil, nil, err
	}
	if raw, ok := top["ignore"]; ok {
		if err = json.Unmarshal(raw, &ignore); err != nil {
			return nil, nil, nil, err
		}
	}

	projectsRaw, ok := top["projects"]
	if !ok {
		return nil, map[string]rawEntry{}, ignore, nil
	}

	dec := json.NewDecoder(bytes.NewReader(projectsRaw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, nil, fmt.Errorf("projects must be a JSON object")
	}

	entries = make(map[string]rawEntry)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, nil, nil, fmt.Errorf("project key %v is not a string", keyTok)
		}

		var rawVal json.RawMessage
		if err := dec.Decode(&rawVal); err != nil {
			return nil, nil, nil, fmt.Errorf("project %q: %w", name, err)
		}

		entry, err := convertJSONValue(rawVal)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("project %q: %w", name, err)
		}
		order = append(order, name)
		entries[name] = entry
	}
	return order, entries, ignore, nil
}

func convertJSONValue(raw json.RawMessage) (rawEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return rawEntry{}, err
		}
		return rawEntry{IsString: true, String: s}, nil
	}
	var record struct {
		Repo      string   `json:"repo"`
		Path      string   `json:"path"`
		Tags      []string `json:"tags"`
		Provides  []string `json:"provides"`
		DependsOn []string `json:"depends_on"`
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return rawEntry{}, err
	}
	return rawEntry{
		Repo:      record.Repo,
		Path:      record.Path,
		Tags:      record.Tags,
		Provides:  record.Provides,
		DependsOn: record.DependsOn,
	}, nil
}
