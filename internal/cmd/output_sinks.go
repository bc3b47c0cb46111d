package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkgmeta/repometa/internal/output"
)

var allOutputFormats = []output.Format{output.FormatTable, output.FormatJSON, output.FormatMarkdown}

// addOutputFlags registers --output-format, --out and --out-dir. The first
// format is the default.
func addOutputFlags(cmd *cobra.Command, formats ...output.Format) {
	if len(formats) == 0 {
		formats = allOutputFormats
	}
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	cmd.Flags().String("output-format", names[0], "Output format: "+strings.Join(names, "|"))
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("out-dir", "", "Write output into this directory, one file per run")
}

// outputTarget is where and how a command renders its report.
type outputTarget struct {
	format output.Format
	path   string
	dir    string
	stdout io.Writer
}

// readOutputFlags validates the flags added by addOutputFlags. allowed
// restricts the formats the command can render; empty allows all.
func readOutputFlags(cmd *cobra.Command, allowed ...output.Format) (outputTarget, error) {
	raw, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return outputTarget{}, err
	}
	format, err := output.ParseFormat(raw)
	if err != nil {
		return outputTarget{}, err
	}
	if len(allowed) > 0 && !containsFormat(allowed, format) {
		return outputTarget{}, fmt.Errorf("%s does not support output format %s", cmd.CommandPath(), format)
	}

	path, err := cmd.Flags().GetString("out")
	if err != nil {
		return outputTarget{}, err
	}
	dir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return outputTarget{}, err
	}
	path, dir = strings.TrimSpace(path), strings.TrimSpace(dir)
	if path != "" && dir != "" {
		return outputTarget{}, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}

	return outputTarget{format: format, path: path, dir: dir, stdout: cmd.OutOrStdout()}, nil
}

func containsFormat(formats []output.Format, f output.Format) bool {
	for _, candidate := range formats {
		if candidate == f {
			return true
		}
	}
	return false
}

// destination is the file the report goes to, or "" for stdout. name
// becomes the file name under --out-dir.
func (t outputTarget) destination(name string) string {
	if t.dir != "" {
		return filepath.Join(t.dir, sanitizeFilename(name)+"."+extensionFor(t.format))
	}
	if t.path == "-" {
		return ""
	}
	return t.path
}

// write renders report to the destination, creating parent directories.
func (t outputTarget) write(name, report string) error {
	dest := t.destination(name)
	if dest == "" {
		_, err := fmt.Fprintln(t.stdout, report)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(file, report); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func extensionFor(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

// sanitizeFilename turns a purl or label into a file name.
func sanitizeFilename(value string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	clean = nonFilename.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}
