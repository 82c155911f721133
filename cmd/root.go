package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/zjrosen/metaagentd/internal/config"
	"github.com/zjrosen/metaagentd/internal/log"

	"github.com/spf13/cobra"
	viperlib "github.com/spf13/viper"
)

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool

	viper = viperlib.New()
)

var rootCmd = &cobra.Command{
	Use:     "metaagentd",
	Short:   "A task-graph scheduler that drives coding-agent CLIs through a plan",
	Long:    `metaagentd walks a hierarchical task plan, dispatching each task to a coding-agent CLI subprocess (codex or claude) and auditing its work before moving on.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.metaagent/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also: METAAGENTD_DEBUG=1)")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetConfigType("toml")
	viper.SetDefault("storage::root_dir", defaults.Storage.RootDir)
	viper.SetDefault("backend::selected", defaults.Backend.Selected)
	viper.SetDefault("backend::codex::program", defaults.Backend.Codex.Program)
	viper.SetDefault("backend::claude::program", defaults.Backend.Claude.Program)
	viper.SetDefault("retries::max_audit_retries", defaults.Retries.MaxAuditRetries)
	viper.SetDefault("retries::max_test_retries", defaults.Retries.MaxTestRetries)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		path := config.DefaultConfigPath()
		if path != "" {
			viper.SetConfigFile(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viperlib.ConfigFileNotFoundError
		if errors.As(err, &configNotFound) {
			defaultPath := config.DefaultConfigPath()
			if defaultPath != "" {
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
					log.Info(log.CatConfig, "Config loaded", "path", defaultPath)
				}
			}
		}
	} else {
		log.Info(log.CatConfig, "Config loaded", "path", viper.ConfigFileUsed())
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		log.ErrorErr(log.CatConfig, "Config unmarshal failed, using defaults", err)
		cfg = defaults
	}

	if err := config.Validate(cfg); err != nil {
		log.ErrorErr(log.CatConfig, "Config validation failed, using defaults", err)
		cfg = defaults
	}
}

// enableDebugLogging turns on file-backed logging when requested via flag
// or the METAAGENTD_DEBUG environment variable.
func enableDebugLogging(prefix string) (func(), error) {
	debug := os.Getenv("METAAGENTD_DEBUG") != "" || debugFlag
	if !debug {
		return func() {}, nil
	}

	logPath := os.Getenv("METAAGENTD_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}

	cleanup, err := log.Init(logPath)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "metaagentd starting", "version", version, "prefix", prefix, "logPath", logPath)
	return cleanup, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
