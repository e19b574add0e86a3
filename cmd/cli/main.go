package main

import (
	"fmt"
	"io"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/audit"
	"github.com/de-tools/cloud-sentry/pkg/services/collector"
	"github.com/de-tools/cloud-sentry/pkg/services/config"
	"github.com/de-tools/cloud-sentry/pkg/services/exclusion"
	"github.com/de-tools/cloud-sentry/pkg/services/report"
)

type auditCmd struct {
	configPath string
	region     string
	endpoint   string
	format     string
	outputPath string
	families   []string
	windowDays int
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "cloud-sentry",
		Short: "Audit cloud account resources for cost and compliance issues",
	}
	rootCmd.AddCommand(newAuditCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newAuditCmd() *cobra.Command {
	ac := &auditCmd{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run one batch audit over the account snapshot",
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.configPath, "config", "", "Path to the audit profile (YAML)")
	cmd.Flags().StringVar(&ac.region, "region", "", "AWS region to audit")
	cmd.Flags().StringVar(&ac.endpoint, "endpoint", "", "AWS endpoint override (local emulators disable the age check)")
	cmd.Flags().StringVar(&ac.format, "format", "console", "Output format: console, json, csv or html")
	cmd.Flags().StringVarP(&ac.outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringSliceVar(&ac.families, "families", nil, "Resource families to audit (log_group, network_access, queue)")
	cmd.Flags().IntVar(&ac.windowDays, "exclusion-window", 30, "Skip resources created within this many days")

	return cmd
}

func (ac *auditCmd) run(cmd *cobra.Command, _ []string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg := config.Default()
	if ac.configPath != "" {
		loaded, err := config.Load(ac.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if ac.region != "" {
		cfg.Region = ac.region
	}
	if ac.endpoint != "" {
		cfg.Endpoint = ac.endpoint
	}
	if len(ac.families) > 0 {
		cfg.Families = ac.families
	}
	if ac.windowDays > 0 {
		cfg.ExclusionWindowDays = ac.windowDays
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

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	summary := report.Aggregate(result)

	out, closeOut, err := ac.output()
	if err != nil {
		return err
	}
	defer closeOut()

	return render(out, ac.format, result, summary)
}

func (ac *auditCmd) output() (io.Writer, func(), error) {
	if ac.outputPath == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(ac.outputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func render(w io.Writer, format string, result *domain.AuditResult, summary domain.Summary) error {
	switch format {
	case "console":
		return report.NewConsoleReporter(w).Handle(summary)
	case "json":
		return report.WriteJSON(w, result, summary)
	case "csv":
		return report.WriteCSV(w, result, summary)
	case "html":
		return report.WriteHTML(w, result, summary)
	default:
		return fmt.Errorf("unsupported format %q (console, json, csv, html)", format)
	}
}
