package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "lawsearch.yaml")
	content := fmt.Sprintf(`
collector:
  data_dir: %q
embedding:
  endpoint: http://unreachable.invalid
storage:
  path: %q
logging:
  level: error
  file_path: %q
`,
		filepath.Join(dir, "data"),
		filepath.Join(dir, "lawsearch.db"),
		filepath.Join(dir, "logs", "lawsearch.log"))
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))
	return cfgFile
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, err := runCommand(t, "--config", writeTestConfig(t), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "lawsearch version")
}

func TestRootCmd_UnknownConfigFile(t *testing.T) {
	_, err := runCommand(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "status")
	assert.Error(t, err)
}

func TestProcessCmd_XMLFileRequiresLawID(t *testing.T) {
	_, err := runCommand(t, "--config", writeTestConfig(t), "process", "--xml-file", "some.xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--law-id")
}

func TestValidateCmd_EmbedderDownFails(t *testing.T) {
	_, err := runCommand(t, "--config", writeTestConfig(t), "validate")
	assert.Error(t, err, "an unreachable embedder must not validate")
}
