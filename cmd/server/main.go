package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/seedbot/internal/config"
	"github.com/Brownie44l1/seedbot/internal/logger"
)

const version = "0.1.0"

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "seedbot",
	Short:         "Telegram bot that classifies seed photos",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; real deployments set the environment directly.
		_ = godotenv.Load()

		if configPath == "" {
			configPath = os.Getenv("CONFIG_PATH")
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the TOML config file (default: $CONFIG_PATH or config.toml)")
	rootCmd.AddCommand(serveCmd, classifyCmd, fetchModelCmd)
}

func newLogger() *slog.Logger {
	return logger.New(cfg.Log.Level, cfg.Log.Format)
}
