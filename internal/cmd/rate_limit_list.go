package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/pkgmeta/repometa/internal/output"
)

var (
	rateLimitListRepository string
	rateLimitListType       string
	rateLimitListHost       string
	rateLimitListIdle       bool
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show rate limit state per registry host with the repositories using it",
	Example: `  repometa rate-limit list
  repometa rate-limit list --repository npmjs
  repometa rate-limit list --idle --output-format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := readOutputFlags(cmd, output.FormatTable, output.FormatJSON)
		if err != nil {
			return err
		}

		scope, err := openRateLimitScope(cmd.Context())
		if err != nil {
			return err
		}
		defer scope.Close() // nolint:errcheck // best-effort cleanup

		query, err := scope.query(rateLimitListRepository, rateLimitListType, rateLimitListHost)
		if err != nil {
			return err
		}
		entries, err := scope.db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}
		rows := joinRateLimits(entries, scope.repos, scope.limiter, rateLimitListIdle && query.All)

		var report string
		if target.format == output.FormatJSON {
			payload, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			report = string(payload)
		} else {
			report = renderRateLimits(rows, time.Now().UTC())
		}
		return target.write("rate-limit.list", report)
	},
}

// renderRateLimits draws one block per host.
func renderRateLimits(rows []hostRateLimit, now time.Time) string {
	lines := []string{"Registry Rate Limits", ""}
	if len(rows) == 0 {
		lines = append(lines, "(no stored rate limit state)")
		return ascii.DrawBox(strings.Join(lines, "\n"), 0)
	}

	for i, row := range rows {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, row.Host)
		repos := "(no configured repository)"
		if len(row.Repositories) > 0 {
			repos = strings.Join(row.Repositories, ", ")
		}
		lines = append(lines, "  repositories: "+repos)

		usage := fmt.Sprintf("%d requests", row.RequestCount)
		if row.LimitRequests > 0 {
			usage = fmt.Sprintf("%d/%d per %s", row.RequestCount, row.LimitRequests, row.LimitWindow)
		}
		lines = append(lines, "  window: "+usage)

		if row.BackoffUntil != nil && row.BackoffUntil.After(now) {
			lines = append(lines, fmt.Sprintf("  backoff until %s (%s left)",
				row.BackoffUntil.UTC().Format(time.RFC3339), row.BackoffUntil.Sub(now).Round(time.Second)))
		}
		if row.Last429At != nil {
			lines = append(lines, "  last 429: "+row.Last429At.UTC().Format(time.RFC3339))
		}
	}
	return ascii.DrawBox(strings.Join(lines, "\n"), 0)
}

func init() {
	addOutputFlags(rateLimitListCmd, output.FormatTable, output.FormatJSON)
	rateLimitListCmd.Flags().StringVar(&rateLimitListRepository, "repository", "", "Show the host used by this repository identifier")
	rateLimitListCmd.Flags().StringVar(&rateLimitListType, "type", "", "Repository type, when the identifier exists for several types")
	rateLimitListCmd.Flags().StringVar(&rateLimitListHost, "host", "", "Show a single registry host")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListIdle, "idle", false, "Also list hosts of configured repositories without stored state")
}
