package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrm8/assistant/internal/policy"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "assistant.policy.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestValidateCmd(t *testing.T) {
	t.Cleanup(func() { validateFile = "" })

	ok := writePolicy(t, "version: \"2.0\"\ntools:\n  disabled: [search_leads]\n  restrict:\n    get_commission_analytics: [GLOBAL_ADMIN]\n")
	out, err := run(t, "validate", "-f", ok)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Policy valid")
	assert.Contains(t, out, "Disabled:   1 tool(s)")

	_, err = run(t, "validate", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestCheckOverlayReferences(t *testing.T) {
	cfg := &policy.OverlayConfig{Tools: policy.ToolsConfig{
		Disabled: []string{"search_leads", "no_such_tool"},
		Restrict: map[string][]string{
			"get_commission_analytics": {"GLOBAL_ADMIN", "OVERLORD"},
			"ghost_tool":               {"CONSULTANT"},
		},
	}}
	problems := checkOverlayReferences(cfg)
	require.Len(t, problems, 3)
	assert.Contains(t, problems[0], "no_such_tool")
	assert.Contains(t, problems[1], "OVERLORD")
	assert.Contains(t, problems[2], "ghost_tool")
}
