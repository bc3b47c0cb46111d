package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/server/handlers"
)

var (
	cacheServerURL string
	cacheToken     string
)

var adminHTTPClient = &http.Client{Timeout: 10 * time.Second}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or invalidate the result cache of a running service",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show result cache size and TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats handlers.CacheStats
		if err := callAdmin(cmd.Context(), http.MethodGet, "/admin/cache", &stats); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "entries=%d ttl=%s\n", stats.Entries, stats.TTL)
		return err
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop every cached result",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp handlers.InvalidateResponse
		if err := callAdmin(cmd.Context(), http.MethodPost, "/admin/cache/invalidate", &resp); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d cache entr(ies)\n", resp.Invalidated)
		return err
	},
}

// callAdmin issues an authenticated admin request. The server URL and token
// default to the local configuration.
func callAdmin(ctx context.Context, method, path string, out any) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	base, token := adminTarget(cfg, cacheServerURL, cacheToken)
	if token == "" {
		return errors.New("an admin token is required (--token or admin.token)")
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := adminHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func adminTarget(cfg *config.Config, serverURL, token string) (string, string) {
	base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if base == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		base = "http://" + host + ":" + strconv.Itoa(cfg.Server.Port)
	}
	if token = strings.TrimSpace(token); token == "" {
		token = cfg.Admin.Token
	}
	return base, token
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheServerURL, "server", "", "Service base URL (default from server.host/server.port)")
	cacheCmd.PersistentFlags().StringVar(&cacheToken, "token", "", "Admin bearer token (default admin.token)")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
