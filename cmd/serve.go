package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/monitoring"
	"github.com/sells-group/quote-cli/internal/query"
	"github.com/sells-group/quote-cli/internal/snapshot"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve published snapshots over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		format, err := snapshot.ParseFormat(cfg.Output.Format)
		if err != nil {
			return err
		}

		rec := monitoring.NewRecorder()
		handler := query.NewHandler(query.NewService(cfg.Output.Prefix, format), query.Options{
			CORSOrigins: cfg.Server.CORSOrigins,
			Metrics:     rec,
		})

		if cfg.Monitoring.Enabled {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close() //nolint:errcheck
				checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
				go checker.Run(ctx)
			} else {
				zap.L().Warn("monitoring enabled but the run ledger is disabled; health checks off")
			}
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("output_prefix", cfg.Output.Prefix),
			zap.String("format", string(format)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
