package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Davincible/byok-router/internal/config"
)

const (
	AppName = "byok-router"
	Version = "0.1.0"

	EnvConfigPath    = "BYOK_CONFIG"
	EnvOfficialToken = "BYOK_OFFICIAL_TOKEN"
)

var (
	logger  *slog.Logger
	baseDir string
	cfgMgr  *config.Manager
)

var rootCmd = &cobra.Command{
	Use:     AppName,
	Short:   "BYOK Router - route code assistant calls to your own LLM providers",
	Long:    `A gateway in front of a code assistant backend that serves selected endpoints from user-configured OpenAI-compatible or Anthropic providers and forwards everything else to the official backend.`,
	Version: Version,

	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)

		loadEnvFiles()

		path, _ := cmd.Flags().GetString("config")
		return setupConfig(path)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (default ~/."+AppName+"/config.yaml, or $"+EnvConfigPath+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// loadEnvFiles reads ./.env and ~/.byok-router/.env. Variables already set in the
// environment win.
func loadEnvFiles() {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+AppName, ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("Failed to load env file", "path", path, "error", err)
			continue
		}
		logger.Debug("Loaded environment", "path", path)
	}
}

func setupConfig(flagPath string) error {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, "."+AppName)
		cfgMgr = config.NewManager(baseDir)
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	baseDir = filepath.Dir(abs)
	cfgMgr = config.NewManagerForFile(abs)
	return nil
}

// loadConfig loads the config file, falling back to the defaults when none
// exists, and applies environment overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if cfgMgr.Exists() {
		loaded, err := cfgMgr.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
	} else {
		logger.Warn("No configuration file, using defaults", "path", cfgMgr.GetPath())
		cfg = config.Default()
	}

	if token := strings.TrimSpace(os.Getenv(EnvOfficialToken)); token != "" {
		next := *cfg
		next.Official.APIToken = token
		cfg = &next
	}

	cfgMgr.Store(cfg)
	return cfgMgr.Get(), nil
}
