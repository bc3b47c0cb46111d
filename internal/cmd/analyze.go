package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/observability"
	"github.com/pkgmeta/repometa/internal/output"
)

var (
	analyzeFetchMeta    string
	analyzeInternal     bool
	analyzeRepositories string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <purl> [purl...]",
	Short: "Resolve metadata for one or more package URLs",
	Long: `Resolve latest-version and integrity metadata for package URLs using the
configured repositories, exactly as the service would.

Examples:
  repometa analyze "pkg:npm/%40apollo/federation@0.19.1"
  repometa analyze pkg:maven/org.acme/widget@1.0.0 --internal --fetch-meta integrity_data
  repometa analyze pkg:cargo/serde@1.0.100 --repositories ./repositories.yaml --output-format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := readOutputFlags(cmd)
		if err != nil {
			return err
		}
		fetchMeta, err := core.ParseFetchMeta(analyzeFetchMeta)
		if err != nil {
			return err
		}

		overrides := map[string]any{}
		if path := strings.TrimSpace(analyzeRepositories); path != "" {
			overrides["repositories"] = map[string]any{
				"source": config.RepositorySourceFile,
				"file":   path,
			}
		}
		cfg, err := loadConfig(cmd.Context(), overrides)
		if err != nil {
			return err
		}

		logger := observability.Current()
		p, err := buildPipeline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close() // nolint:errcheck // best-effort cleanup

		results := make([]*core.AnalysisResult, 0, len(args))
		for _, purl := range args {
			command := core.AnalysisCommand{
				Component: core.Component{
					PURL:     strings.TrimSpace(purl),
					UUID:     uuid.NewString(),
					Internal: analyzeInternal,
				},
				FetchMeta: fetchMeta,
			}
			_, result, err := p.processor.Process(cmd.Context(), command)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", purl, err)
			}
			logger.Debug("Analysis complete",
				zap.String("purl", purl),
				zap.String("component_uuid", command.Component.UUID),
				zap.String("repository", result.Repository))
			results = append(results, &result)
		}

		name := "analysis"
		if len(args) == 1 {
			name = args[0]
		}

		var rendered string
		if len(results) == 1 {
			rendered, err = output.NewFormatter(target.format).FormatResult(results[0])
		} else {
			rendered, err = output.FormatResultList(target.format, results)
		}
		if err != nil {
			return err
		}
		return target.write(name, rendered)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeFetchMeta, "fetch-meta", string(core.FetchMetaIntegrityDataAndLatestVersion), "Passes to run: latest_version|integrity_data|integrity_data_and_latest_version")
	analyzeCmd.Flags().BoolVar(&analyzeInternal, "internal", false, "Treat the components as internal (only internal repositories are consulted)")
	analyzeCmd.Flags().StringVar(&analyzeRepositories, "repositories", "", "Read repositories from this YAML file instead of the configured source")
	addOutputFlags(analyzeCmd)
}
