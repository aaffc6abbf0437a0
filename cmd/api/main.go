// vivekcuts is the storefront backend: emailed-code gated free downloads,
// Razorpay checkout for paid products and the admin API.
//
// Usage:
//
//	vivekcuts serve
//	vivekcuts migrate
//	vivekcuts admin create --email you@example.com --password '...'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vivekcuts/vivekcuts-backend/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "vivekcuts",
		Short:         "Vivek Cuts storefront backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.AppEnv == "local" {
		return zap.NewDevelopment()
	}
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return logConfig.Build()
}

// bootstrap loads configuration and the logger every command needs.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
