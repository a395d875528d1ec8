package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/linkfinder/backend/internal/config"
	"github.com/linkfinder/backend/internal/prefs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const defaultConfigName = "linkfinder.config.xml"

var (
	// Global flags
	configPath string
	verbose    bool
	ephemeral  bool

	cfg    *config.AppConfig
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "linkfinder",
	Short: "LinkFinder - spreadsheet link lookup",
	Long: `LinkFinder loads a workbook with Links, Buildings and Filename sheets
and narrows it down by stage, participant and building to a list of
links to open or local paths to copy.

Run without a subcommand to start the local web server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		configPath = path

		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		logger, err = newLogger(verbose || cfg.Advanced.LogLevel == "debug")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the XML config (default: next to the executable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep preferences in memory only")

	rootCmd.AddCommand(serveCmd, lookupCmd, optionsCmd, localRootCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("linkfinder %s (built %s)\n", Version, BuildTime)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), defaultConfigName), nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// openPrefs opens the persistent preference store, or a memory store for
// --ephemeral runs.
func openPrefs() (prefs.Store, error) {
	if ephemeral || cfg.Storage.PrefsDatabase == "" {
		return prefs.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.PrefsDatabase), 0755); err != nil {
		return nil, fmt.Errorf("creating prefs directory: %w", err)
	}
	return prefs.OpenDuckStore(cfg.Storage.PrefsDatabase, logger)
}
