package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/sitescope/internal/config"
	"github.com/FranksOps/sitescope/internal/httpserver"
	"github.com/FranksOps/sitescope/internal/metrics"
	"github.com/FranksOps/sitescope/internal/pipeline"
	"github.com/FranksOps/sitescope/internal/report"
	"github.com/FranksOps/sitescope/internal/storage"
	"github.com/FranksOps/sitescope/pkg/ratelimit"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitescope",
		Short:         "SEO report service",
		Long:          "sitescope gathers performance, search, crawl and authority signals for a domain and assembles them into one SEO report.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Config file path (default ./sitescope.yaml)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	root.AddCommand(newServeCmd(), newReportCmd(), newFetchLogCmd())
	return root
}

// setup loads config and builds the logger from the persistent flags.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(os.Stderr, cfg.Logging, verbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the report API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			gate := ratelimit.NewGate(ratelimit.GateConfig{
				MaxTokens:  cfg.RateLimit.MaxTokens,
				RefillRate: cfg.RateLimit.RefillRate,
				Interval:   cfg.RateLimit.Interval,
			})
			srv := httpserver.New(httpserver.Config{
				Port:          cfg.Server.Port,
				ReadTimeout:   cfg.Server.ReadTimeout,
				WriteTimeout:  cfg.Server.WriteTimeout,
				IdleTimeout:   cfg.Server.IdleTimeout,
				SweepInterval: cfg.RateLimit.SweepInterval,
			}, a.service, gate, logger)

			var metricsSrv *metrics.Server
			if cfg.Metrics.Port > 0 {
				metricsSrv = metrics.Start(cfg.Metrics.Port, logger)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
				logger.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := metricsSrv.Stop(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", "error", err)
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [domain]",
		Short: "Generate one report and print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			keyword, _ := cmd.Flags().GetString("keyword")
			reportType, _ := cmd.Flags().GetString("type")
			credential, _ := cmd.Flags().GetString("credential")
			formatFlag, _ := cmd.Flags().GetString("format")
			format, err := report.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			req := pipeline.Request{Keyword: keyword, Type: reportType, Credential: credential}
			if len(args) == 1 {
				req.Domain = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, _, err := a.service.Report(ctx, req)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), format, rep)
		},
	}
	cmd.Flags().String("keyword", "", "Search keyword")
	cmd.Flags().String("type", "", "Report type (domain or keyword)")
	cmd.Flags().String("credential", "", "Search console access credential")
	cmd.Flags().String("format", "json", "Output format (json or text)")
	return cmd
}

func newFetchLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetchlog",
		Short: "Summarize provider calls recorded in the fetch log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}

			formatFlag, _ := cmd.Flags().GetString("format")
			format, err := report.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			var filter storage.Filter
			filter.ReportID, _ = cmd.Flags().GetString("report-id")
			filter.Provider, _ = cmd.Flags().GetString("provider")
			outcome, _ := cmd.Flags().GetString("outcome")
			filter.Outcome = storage.Outcome(outcome)
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			backend, err := openBackend(cmd.Context(), cfg.FetchLog)
			if err != nil {
				return err
			}
			if backend == nil {
				return errors.New("fetch log is disabled (set fetchlog.backend)")
			}
			defer backend.Close()

			records, err := backend.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			summary := report.GenerateSummary(records)
			if format == report.FormatText {
				return report.WriteSummaryText(cmd.OutOrStdout(), summary)
			}
			return report.WriteSummaryJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().String("report-id", "", "Only records of this report")
	cmd.Flags().String("provider", "", "Only records of this provider")
	cmd.Flags().String("outcome", "", "Only records with this outcome (ok, failed, rejected)")
	cmd.Flags().Duration("since", 0, "Only records newer than this")
	cmd.Flags().Int("limit", 1000, "Maximum records to summarize")
	cmd.Flags().String("format", "text", "Output format (json or text)")
	return cmd
}
