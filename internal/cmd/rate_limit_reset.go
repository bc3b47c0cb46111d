package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/observability"
	"github.com/pkgmeta/repometa/internal/output"
)

var (
	rateLimitResetRepository string
	rateLimitResetType       string
	rateLimitResetHost       string
	rateLimitResetAll        bool
	rateLimitResetYes        bool
	rateLimitResetDryRun     bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear stored rate limit state so throttled repositories are called again",
	Example: `  repometa rate-limit reset --repository central
  repometa rate-limit reset --host registry.npmjs.org
  repometa rate-limit reset --all --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := readOutputFlags(cmd, output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}

		selected := strings.TrimSpace(rateLimitResetRepository) != "" || strings.TrimSpace(rateLimitResetHost) != ""
		switch {
		case rateLimitResetAll && selected:
			return errors.New("--all cannot be combined with --repository or --host")
		case !rateLimitResetAll && !selected:
			return errors.New("must specify --repository, --host or --all")
		case rateLimitResetAll && !rateLimitResetYes && !rateLimitResetDryRun:
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		scope, err := openRateLimitScope(cmd.Context())
		if err != nil {
			return err
		}
		defer scope.Close() // nolint:errcheck // best-effort cleanup

		query, err := scope.query(rateLimitResetRepository, rateLimitResetType, rateLimitResetHost)
		if err != nil {
			return err
		}
		entries, err := scope.db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}
		rows := joinRateLimits(entries, scope.repos, scope.limiter, false)

		summary := resetSummary{DryRun: rateLimitResetDryRun, Hosts: rows}
		if !summary.DryRun {
			if summary.Deleted, err = scope.db.ResetRateLimits(cmd.Context(), query); err != nil {
				return err
			}
			observability.Current().Info("Rate limit state reset",
				zap.Int64("hosts", summary.Deleted),
				zap.String("repository", rateLimitResetRepository),
				zap.String("host", query.Endpoint))
		}

		var report string
		if target.format == output.FormatJSON {
			payload, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			report = string(payload)
		} else {
			report = summary.String()
		}
		return target.write("rate-limit.reset", report)
	},
}

type resetSummary struct {
	DryRun  bool            `json:"dry_run"`
	Deleted int64           `json:"deleted"`
	Hosts   []hostRateLimit `json:"hosts"`
}

func (s resetSummary) String() string {
	if len(s.Hosts) == 0 {
		return "No stored rate limit state matched"
	}
	var b strings.Builder
	verb := "Cleared"
	if s.DryRun {
		verb = "Would clear"
	}
	fmt.Fprintf(&b, "%s rate limit state of %d host(s):", verb, len(s.Hosts))
	for _, host := range s.Hosts {
		fmt.Fprintf(&b, "\n  %s", host.Host)
		if len(host.Repositories) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(host.Repositories, ", "))
		}
	}
	return b.String()
}

func init() {
	addOutputFlags(rateLimitResetCmd, output.FormatTable, output.FormatJSON)
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetRepository, "repository", "", "Reset the host used by this repository identifier")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetType, "type", "", "Repository type, when the identifier exists for several types")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetHost, "host", "", "Reset a single registry host")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every host")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm --all")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be cleared")
}
