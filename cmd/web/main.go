package main

import (
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/cloud-sentry/pkg/server"
	"github.com/de-tools/cloud-sentry/pkg/services/audit"
	"github.com/de-tools/cloud-sentry/pkg/services/collector"
	"github.com/de-tools/cloud-sentry/pkg/services/config"
	"github.com/de-tools/cloud-sentry/pkg/services/exclusion"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "web",
		Short: "Start the web server for Cloud Sentry",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to the audit profile (YAML)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	set := collector.New(awsCfg, cfg.Endpoint)
	excl := exclusion.Settings{
		ExclusionWindow: time.Duration(cfg.ExclusionWindowDays) * 24 * time.Hour,
		LocalEndpoint:   cfg.LocalEndpoint(),
	}
	runner := audit.NewRunner(set.Collectors(cfg.Families), set.Logs, audit.DefaultSettings(), excl)

	api := server.NewWebAPI(logger, server.Config{
		Addr:            cfg.Addr,
		ShutdownTimeout: 10 * time.Second,
		Auditor:         runner,
	})

	return api.Start()
}
