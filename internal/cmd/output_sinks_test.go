package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgmeta/repometa/internal/output"
)

func outputCommand(t *testing.T, args []string, formats ...output.Format) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "report"}
	addOutputFlags(cmd, formats...)
	require.NoError(t, cmd.Flags().Parse(args))
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	return cmd, &stdout
}

func TestReadOutputFlagsDefaults(t *testing.T) {
	cmd, stdout := outputCommand(t, nil)

	target, err := readOutputFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, output.FormatTable, target.format)

	require.NoError(t, target.write("ignored", "hello"))
	assert.Equal(t, "hello\n", stdout.String())
}

func TestReadOutputFlagsRejects(t *testing.T) {
	cmd, _ := outputCommand(t, []string{"--out", "a.json", "--out-dir", "reports"})
	_, err := readOutputFlags(cmd)
	assert.ErrorContains(t, err, "mutually exclusive")

	cmd, _ = outputCommand(t, []string{"--output-format", "markdown"}, output.FormatTable, output.FormatJSON)
	_, err = readOutputFlags(cmd, output.FormatTable, output.FormatJSON)
	assert.ErrorContains(t, err, "does not support output format markdown")

	cmd, _ = outputCommand(t, []string{"--output-format", "yaml"})
	_, err = readOutputFlags(cmd)
	assert.Error(t, err)
}

func TestOutputTargetWritesUnderDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	cmd, stdout := outputCommand(t, []string{"--output-format", "json", "--out-dir", dir})

	target, err := readOutputFlags(cmd)
	require.NoError(t, err)
	require.NoError(t, target.write("pkg:npm/%40apollo/federation@0.19.1", `{"ok":true}`))

	data, err := os.ReadFile(filepath.Join(dir, "pkg-npm-40apollo-federation-0.19.1.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\"ok\":true}\n", string(data))
	assert.Empty(t, stdout.String())
}

func TestOutputTargetDashMeansStdout(t *testing.T) {
	cmd, stdout := outputCommand(t, []string{"--out", "-"})

	target, err := readOutputFlags(cmd)
	require.NoError(t, err)
	require.NoError(t, target.write("x", "to stdout"))
	assert.Equal(t, "to stdout\n", stdout.String())
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "rate-limit.list", sanitizeFilename("rate-limit.list"))
	assert.Equal(t, "pkg-maven-com.acme-lib-1.0", sanitizeFilename("pkg:maven/com.acme/lib@1.0"))
	assert.Equal(t, "output", sanitizeFilename("  ::  "))
}
