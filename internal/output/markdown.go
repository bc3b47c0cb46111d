package output

import (
	"fmt"
	"strings"

	"github.com/pkgmeta/repometa/internal/core"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatResult renders an analysis result as Markdown.
func (f *MarkdownFormatter) FormatResult(result *core.AnalysisResult) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(result.Component.PURL)))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	writeRow := func(field, value string) {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", field, escapeMarkdownCell(value)))
	}

	writeRow("Repository", orPlaceholder(result.Repository))
	writeRow("Latest version", orPlaceholder(result.LatestVersion))
	writeRow("Published", publishedLabel(result.Published))
	if checksums := checksumLabels(result.IntegrityMeta); len(checksums) > 0 {
		writeRow("Checksums", strings.Join(checksums, "<br>"))
		writeRow("Checksum source", integritySource(result.IntegrityMeta))
	}

	sb.WriteString(fmt.Sprintf("\n**Status**: %s\n", statusLabel(result)))
	return sb.String(), nil
}

// FormatRepositories renders repositories as a Markdown table.
func (f *MarkdownFormatter) FormatRepositories(repos []core.Repository) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Type | Identifier | Order | URL | Flags |\n")
	sb.WriteString("|------|------------|-------|-----|-------|\n")
	for _, repo := range repos {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n",
			escapeMarkdownCell(string(repo.Type)),
			escapeMarkdownCell(repo.Identifier),
			repo.ResolutionOrder,
			escapeMarkdownCell(repo.URL),
			escapeMarkdownCell(repositoryFlags(repo)),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
