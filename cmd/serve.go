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
	"golang.org/x/time/rate"

	"github.com/sells-group/insight-api/internal/analysis"
	"github.com/sells-group/insight-api/internal/httpapi"
	"github.com/sells-group/insight-api/pkg/llm"
	"github.com/sells-group/insight-api/pkg/serp"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		llmClient := llm.NewClient(cfg.Anthropic.Key,
			llm.WithModel(cfg.Anthropic.Model),
			llm.WithMaxTokens(cfg.Anthropic.MaxTokens),
			llm.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Anthropic.RequestsPerSec), 1)),
		)
		serpClient := serp.NewClient(cfg.Serp.Key,
			serp.WithBaseURL(cfg.Serp.BaseURL),
			serp.WithZone(cfg.Serp.Zone),
			serp.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Serp.RequestsPerSec), 1)),
		)

		orchestrator := analysis.NewOrchestrator(st,
			analysis.NewWebCollector(serpClient, llmClient),
			analysis.NewDirectCollector(llmClient),
			analysis.NewProcessor(),
			analysis.NewSynthesizer(llmClient),
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           httpapi.NewServer(ctx, st, orchestrator).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go waitAndShutdown(ctx, srv, shutdownGrace)

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

const shutdownGrace = 10 * time.Second

// waitAndShutdown blocks until ctx is cancelled, then drains the server on a
// fresh timeout context. The signal context is already done at that point and
// would abort in-flight requests immediately.
func waitAndShutdown(ctx context.Context, srv *http.Server, grace time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
