package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/antoniostano/questagent/internal/config"
)

var (
	verbose bool
	envFile string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "questagent",
	Short: "LearnSphere quest chat agent",
	Long: `questagent answers chat messages about LearnSphere learning quests.

Quest data is read from the learnsphere canister through the dfx command-line
bridge; replies are generated by an OpenAI-compatible completion API (ASI:One
by default). Run "questagent serve" to start the chat service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}

		zcfg := zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zcfg.Build()
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
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional KEY=VALUE file loaded before the environment is read")

	rootCmd.AddCommand(serveCmd, resolveCmd, questCmd)
	questCmd.AddCommand(questNextCmd, questAllCmd, questCountCmd, questGetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
