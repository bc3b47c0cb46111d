package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/core"
	"github.com/pkgmeta/repometa/internal/core/repository"
	"github.com/pkgmeta/repometa/internal/core/store"
	"github.com/pkgmeta/repometa/internal/observability"
	"github.com/pkgmeta/repometa/internal/output"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage repository definitions in the store",
}

var reposListType string

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured repositories in resolution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := readOutputFlags(cmd)
		if err != nil {
			return err
		}

		var repoType core.RepositoryType
		if strings.TrimSpace(reposListType) != "" {
			if repoType, err = core.ParseRepositoryType(strings.ToUpper(reposListType)); err != nil {
				return err
			}
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		var db *store.Store
		if cfg.Repositories.Source != config.RepositorySourceFile {
			if db, err = openStoreWith(cmd.Context(), cfg); err != nil {
				return err
			}
			defer db.Close() // nolint:errcheck // best-effort cleanup
		}
		repos, err := configuredRepositories(cmd.Context(), cfg, db, repoType)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(target.format).FormatRepositories(repos)
		if err != nil {
			return err
		}
		return target.write("repositories", rendered)
	},
}

var reposImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import repositories from a YAML file into the store",
	Long: `Import repositories from a YAML file. Existing definitions with the same
type and identifier are replaced. The import is all-or-nothing.

Passwords in the file must already be encrypted (see "repometa secret encrypt").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := repository.LoadFile(args[0])
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.ImportRepositories(cmd.Context(), repos, time.Now().UTC()); err != nil {
			return err
		}
		observability.Current().Info("Repositories imported",
			zap.String("file", args[0]),
			zap.Int("count", len(repos)))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d repositor(ies)\n", len(repos))
		return err
	},
}

var (
	reposAddType     string
	reposAddID       string
	reposAddURL      string
	reposAddOrder    int
	reposAddInternal bool
	reposAddDisabled bool
	reposAddUsername string
	reposAddPassword string
)

var reposAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a single repository",
	Long: `Add or replace a single repository. A --password is encrypted with the
configured secret key before it is stored; setting --username or --password
marks the repository as requiring authentication.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoType, err := core.ParseRepositoryType(strings.ToUpper(strings.TrimSpace(reposAddType)))
		if err != nil {
			return err
		}
		repo := core.Repository{
			Type:                   repoType,
			Identifier:             strings.TrimSpace(reposAddID),
			URL:                    strings.TrimSpace(reposAddURL),
			Enabled:                !reposAddDisabled,
			Internal:               reposAddInternal,
			AuthenticationRequired: reposAddUsername != "" || reposAddPassword != "",
			Username:               reposAddUsername,
			ResolutionOrder:        reposAddOrder,
		}
		if err := repository.Validate(repo); err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		if reposAddPassword != "" {
			decryptor, err := loadDecryptor(cfg.Secret)
			if err != nil {
				return err
			}
			if decryptor == nil {
				return errors.New("--password requires secret.key or secret.key_file to be configured")
			}
			if repo.Password, err = decryptor.Encrypt(reposAddPassword); err != nil {
				return err
			}
		}

		db, err := openStoreWith(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		if err := db.UpsertRepository(cmd.Context(), repo, time.Now().UTC()); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s repository %q\n", repo.Type, repo.Identifier)
		return err
	},
}

var reposDeleteCmd = &cobra.Command{
	Use:   "delete <type> <identifier>",
	Short: "Delete a repository from the store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoType, err := core.ParseRepositoryType(strings.ToUpper(args[0]))
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.DeleteRepository(cmd.Context(), repoType, args[1])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no %s repository named %q", repoType, args[1])
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s repository %q\n", repoType, args[1])
		return err
	},
}

func init() {
	reposListCmd.Flags().StringVar(&reposListType, "type", "", "Only list repositories of this type (e.g. npm, maven)")
	addOutputFlags(reposListCmd)

	reposAddCmd.Flags().StringVar(&reposAddType, "type", "", "Repository type (npm, maven, pypi, go_modules, cargo, nuget, gem, composer)")
	reposAddCmd.Flags().StringVar(&reposAddID, "identifier", "", "Repository identifier reported in results")
	reposAddCmd.Flags().StringVar(&reposAddURL, "url", "", "Repository base URL")
	reposAddCmd.Flags().IntVar(&reposAddOrder, "order", 0, "Resolution order (lower is consulted first)")
	reposAddCmd.Flags().BoolVar(&reposAddInternal, "internal", false, "Serve internal components only")
	reposAddCmd.Flags().BoolVar(&reposAddDisabled, "disabled", false, "Store the repository disabled")
	reposAddCmd.Flags().StringVar(&reposAddUsername, "username", "", "Username for authenticated repositories")
	reposAddCmd.Flags().StringVar(&reposAddPassword, "password", "", "Password or token (encrypted before storing)")
	_ = reposAddCmd.MarkFlagRequired("type")
	_ = reposAddCmd.MarkFlagRequired("identifier")
	_ = reposAddCmd.MarkFlagRequired("url")

	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposImportCmd)
	reposCmd.AddCommand(reposAddCmd)
	reposCmd.AddCommand(reposDeleteCmd)
	rootCmd.AddCommand(reposCmd)
}
