package guard

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGuard(t *testing.T, command string, cfg Config) (Decision, bool) {
	t.Helper()
	input := `{"tool_input":{"command":` + jsonString(command) + `}}`
	var out bytes.Buffer
	Run(strings.NewReader(input), &out, nil, cfg)
	if out.Len() == 0 {
		return Decision{}, false
	}
	var d Decision
	require.NoError(t, json.Unmarshal(out.Bytes(), &d))
	return d, true
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestAllowsEmptyCommand(t *testing.T) {
	_, denied := runGuard(t, "", DefaultConfig())
	assert.False(t, denied)
}

func TestDeniesGitForcePush(t *testing.T) {
	d, denied := runGuard(t, "git push --force origin main", DefaultConfig())
	require.True(t, denied)
	assert.Equal(t, "deny", d.HookSpecificOutput.PermissionDecision)
	assert.Equal(t, "PreToolUse", d.HookSpecificOutput.HookEventName)
}

func TestAllowsForceWithLease(t *testing.T) {
	_, denied := runGuard(t, "git push --force-with-lease origin main", DefaultConfig())
	assert.False(t, denied)
}

func TestDeniesGitResetHard(t *testing.T) {
	_, denied := runGuard(t, "git reset --hard HEAD~1", DefaultConfig())
	assert.True(t, denied)
}

func TestDeniesGitResetHardReasonSuggestsSnapshot(t *testing.T) {
	d, denied := runGuard(t, "git reset --hard HEAD~1", DefaultConfig())
	require.True(t, denied)
	assert.Contains(t, d.HookSpecificOutput.PermissionDecisionReason, "snapshot")
}

func TestDeniesGitCleanForceDir(t *testing.T) {
	_, denied := runGuard(t, "git clean -fd", DefaultConfig())
	assert.True(t, denied)
}

func TestAllowsGitCleanForceWithoutDirFlag(t *testing.T) {
	_, denied := runGuard(t, "git clean -f", DefaultConfig())
	assert.False(t, denied)
}

func TestDeniesGitCheckoutDot(t *testing.T) {
	_, denied := runGuard(t, "git checkout .", DefaultConfig())
	assert.True(t, denied)
}

func TestDeniesRmRfHome(t *testing.T) {
	_, denied := runGuard(t, "rm -rf $HOME", DefaultConfig())
	assert.True(t, denied)
}

func TestAllowsRmRfSpecificFile(t *testing.T) {
	_, denied := runGuard(t, "rm -rf build/output.tmp", DefaultConfig())
	assert.False(t, denied)
}

func TestEvaluatesEachSegmentIndependently(t *testing.T) {
	_, denied := runGuard(t, "echo hello && git reset --hard", DefaultConfig())
	assert.True(t, denied)
}

func TestDisabledPatternIsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg[GitResetHard] = RuleConfig{Enabled: false}
	_, denied := runGuard(t, "git reset --hard", cfg)
	assert.False(t, denied)
}

func TestCustomMessageOverridesDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg[GitResetHard] = RuleConfig{Enabled: true, Message: "custom reason"}
	d, denied := runGuard(t, "git reset --hard", cfg)
	require.True(t, denied)
	assert.Equal(t, "custom reason", d.HookSpecificOutput.PermissionDecisionReason)
}

func TestMalformedHookInputFailsOpen(t *testing.T) {
	var out bytes.Buffer
	Run(strings.NewReader("not json"), &out, nil, DefaultConfig())
	assert.Empty(t, out.String())
}

func TestLoadConfigMergesProjectYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlConfig := "git_reset_hard:\n  enabled: false\nrm_rf_root:\n  enabled: true\n  message: custom yaml message\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".meta-guard.yaml"), []byte(yamlConfig), 0o644))

	cfg := LoadConfig(dir)
	assert.False(t, cfg[GitResetHard].Enabled)
	assert.Equal(t, "custom yaml message", cfg[RmRfRoot].Message)
	// untouched patterns keep their embedded defaults
	assert.True(t, cfg[GitForcePush].Enabled)
	assert.Equal(t, defaultMessages[GitForcePush], cfg[GitForcePush].Message)
}

func TestLoadConfigProjectJSONAppliesAfterProjectYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".meta-guard.yaml"), []byte("git_reset_hard:\n  enabled: false\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".meta-guard.json"), []byte(`{"git_reset_hard":{"enabled":true}}`), 0o644))

	cfg := LoadConfig(dir)
	assert.True(t, cfg[GitResetHard].Enabled)
}

func TestLoadConfigIgnoresUnparsableYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".meta-guard.yaml"), []byte("not: [valid: yaml"), 0o644))

	cfg := LoadConfig(dir)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSplitStandalonePipeButNotDoublePipe(t *testing.T) {
	segments := Split("git log | head -1")
	assert.Equal(t, []string{"git log", "head -1"}, segments)

	segments = Split("git reset --hard || echo fallback")
	assert.Equal(t, []string{"git reset --hard", "echo fallback"}, segments)
}
