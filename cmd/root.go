package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/signalnine/tagteam/internal/config"
)

var (
	cfgFile   string
	flagDebug bool

	logger = zap.NewNop()
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tagteam",
		Short:        "Assemble and score multi-agent Python class implementations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(config.Logging{Level: "info"})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "tagteam.yaml", "config file path")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newRescoreCmd())
	return root
}

// setupLogger replaces the package logger. --debug always wins over the
// configured level.
func setupLogger(lc config.Logging) error {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if flagDebug {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	// stdout carries command output; logs go to stderr.
	zc.OutputPaths = []string{"stderr"}
	built, err := zc.Build()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	logger = built
	return nil
}

// loadConfig loads cfgFile and applies its logging section.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := setupLogger(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
