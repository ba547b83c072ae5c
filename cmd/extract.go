package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/config"
	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/monitoring"
	"github.com/sells-group/quote-cli/internal/pipeline"
	"github.com/sells-group/quote-cli/internal/resilience"
	"github.com/sells-group/quote-cli/internal/snapshot"
	"github.com/sells-group/quote-cli/internal/store"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract quotes for every catalogued source and write snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyExtractFlags(cmd, cfg)
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		sites, _ := cmd.Flags().GetStringArray("source")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		rec := monitoring.NewRecorder()
		drv, err := buildDriver(cfg, sites, st, rec)
		if err != nil {
			return err
		}

		report, runErr := drv.Run(ctx)
		if report != nil {
			formatDiagnostics(os.Stderr, report)
			formatReport(os.Stdout, report)
		}

		if cfg.Extract.MetricsFile != "" {
			if err := rec.WriteTextfile(cfg.Extract.MetricsFile); err != nil {
				zap.L().Warn("extract: write metrics failed", zap.Error(err))
			}
		}
		if st != nil && cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			checker.Check(context.WithoutCancel(ctx))
		}

		return runErr
	},
}

func init() {
	f := extractCmd.Flags()
	f.String("sources", "", "sources catalog path (default from config)")
	f.String("instruments-prefix", "", "directory prefix of <site>.txt instrument catalogs (default from config)")
	f.String("output-prefix", "", "snapshot output prefix (default from config)")
	f.String("format", "", "snapshot format: csv or xlsx (default from config)")
	f.String("on-collision", "", "same-second snapshot policy: fail or overwrite (default from config)")
	f.Int("concurrency", 0, "max in-flight quote requests (default from config)")
	f.StringArray("source", nil, "only process this site (repeatable)")
	rootCmd.AddCommand(extractCmd)
}

// applyExtractFlags copies explicitly set flags over the loaded config.
func applyExtractFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if v, _ := flags.GetString("sources"); v != "" {
		c.Catalog.SourcesPath = v
	}
	if v, _ := flags.GetString("instruments-prefix"); v != "" {
		c.Catalog.InstrumentsPrefix = v
	}
	if v, _ := flags.GetString("output-prefix"); v != "" {
		c.Output.Prefix = v
	}
	if v, _ := flags.GetString("format"); v != "" {
		c.Output.Format = v
	}
	if v, _ := flags.GetString("on-collision"); v != "" {
		c.Output.OnCollision = v
	}
	if v, _ := flags.GetInt("concurrency"); v > 0 {
		c.Extract.Concurrency = v
	}
}

// buildDriver wires the extraction pipeline from configuration. st may be
// nil when the ledger is disabled.
func buildDriver(c *config.Config, sites []string, st store.Store, rec *monitoring.Recorder) (*pipeline.Driver, error) {
	reg := extract.DefaultRegistry()
	if c.Extract.StrategiesFile != "" {
		n, err := extract.LoadFile(c.Extract.StrategiesFile, reg)
		if err != nil {
			return nil, err
		}
		zap.L().Info("loaded extraction strategies", zap.String("path", c.Extract.StrategiesFile), zap.Int("count", n))
	}

	format, err := snapshot.ParseFormat(c.Output.Format)
	if err != nil {
		return nil, err
	}
	policy, err := snapshot.ParseCollisionPolicy(c.Output.OnCollision)
	if err != nil {
		return nil, err
	}

	f := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent: c.Extract.UserAgent,
		Timeout:   time.Duration(c.Extract.RequestTimeoutSecs) * time.Second,
		Retry: resilience.FromRetryConfig(
			c.Retry.MaxAttempts,
			c.Retry.InitialBackoffMs,
			c.Retry.MaxBackoffMs,
			c.Retry.Multiplier,
			c.Retry.JitterFraction,
		),
		RatePerSec: c.Extract.RatePerSec,
	})
	worker := pipeline.NewWorker(f, c.Extract.DefaultBid, c.Extract.DefaultCurrency)
	orch := pipeline.NewOrchestrator(worker, c.Extract.Concurrency, time.Duration(c.Extract.StartupDelayMs)*time.Millisecond)
	writer := snapshot.NewWriter(c.Output.Prefix, format, policy)

	opts := []pipeline.Option{pipeline.WithRecorder(rec)}
	if st != nil {
		opts = append(opts, pipeline.WithLedger(st))
	}

	return pipeline.NewDriver(pipeline.Config{
		SourcesPath:       c.Catalog.SourcesPath,
		InstrumentsPrefix: c.Catalog.InstrumentsPrefix,
		Sites:             sites,
	}, reg, orch, writer, opts...), nil
}

// formatReport writes a per-source summary table to w.
func formatReport(out io.Writer, r *pipeline.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SITE\tSTATUS\tINSTRUMENTS\tQUOTES\tFAILED\tDURATION\tDETAIL")
	_, _ = fmt.Fprintln(w, "----\t------\t-----------\t------\t------\t--------\t------")
	for _, sr := range r.Sources {
		detail := sr.SnapshotPath
		if sr.Error != "" {
			detail = sr.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			sr.Site,
			sr.Status,
			sr.Instruments,
			sr.Quotes,
			sr.FailureCount(),
			sr.Duration.Round(time.Millisecond),
			detail,
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d written, %d skipped, %d failed",
		r.Count(model.SourceStatusWritten),
		r.Count(model.SourceStatusSkipped),
		r.Count(model.SourceStatusFailed),
	)
	if r.RunID != "" {
		_, _ = fmt.Fprintf(out, " (run %s)", truncateID(r.RunID))
	}
	_, _ = fmt.Fprintln(out)
}

// formatDiagnostics lists discarded catalog lines.
func formatDiagnostics(out io.Writer, r *pipeline.Report) {
	for _, d := range r.Diagnostics {
		_, _ = fmt.Fprintf(out, "skipped %s\n", d)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
