package output

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pkgmeta/repometa/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatResult renders an analysis result as a two-column table.
func (f *TableFormatter) FormatResult(result *core.AnalysisResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(result.Component.PURL)
	t.AppendHeader(table.Row{"Field", "Value"})

	t.AppendRow(table.Row{"Repository", orPlaceholder(result.Repository)})
	t.AppendRow(table.Row{"Latest version", orPlaceholder(result.LatestVersion)})
	t.AppendRow(table.Row{"Published", publishedLabel(result.Published)})
	if checksums := checksumLabels(result.IntegrityMeta); len(checksums) > 0 {
		t.AppendRow(table.Row{"Checksums", strings.Join(checksums, "\n")})
		t.AppendRow(table.Row{"Checksum source", integritySource(result.IntegrityMeta)})
	}

	t.AppendFooter(table.Row{"Status", statusLabel(result)})
	return t.Render(), nil
}

// FormatRepositories renders repositories in resolution order.
func (f *TableFormatter) FormatRepositories(repos []core.Repository) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Type", "Identifier", "Order", "URL", "Flags"})

	for _, repo := range repos {
		t.AppendRow(table.Row{
			string(repo.Type),
			repo.Identifier,
			orderLabel(repo.ResolutionOrder),
			repo.URL,
			repositoryFlags(repo),
		})
	}
	if len(repos) == 0 {
		t.AppendRow(table.Row{placeholder, "(no repositories configured)", "", "", ""})
	}

	return t.Render(), nil
}
