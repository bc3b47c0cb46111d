package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/config"
	"github.com/pkgmeta/repometa/internal/observability"
)

const appName = config.AppName

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Resolve latest-version and integrity metadata for package URLs",
	Long: `repometa resolves latest-version and integrity metadata for package URLs
against ordered, configurable package registries.

Run it as a service (serve), or resolve a single purl from the command line
(analyze). Repository definitions live in the local store or a YAML file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/"+appName+"/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

func initLogging() {
	observability.InitCLILogger(appName, verbose)
}

// loadConfig loads configuration from --config (or the default locations)
// with overrides applied last.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	cfg, err := config.LoadFile(ctx, cfgFile, overrides...)
	if err != nil {
		return nil, err
	}
	if observability.CLILogger != nil {
		observability.CLILogger.Debug("Configuration loaded",
			zap.String("config_file", configFileLabel()),
			zap.String("repositories_source", cfg.Repositories.Source))
	}
	return cfg, nil
}

func configFileLabel() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}
