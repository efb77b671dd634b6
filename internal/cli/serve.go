package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run periodic memory promotion and expose /metrics",
		Long: "Keep a client open, flush working memory into long-term memory on the configured interval " +
			"and serve Prometheus metrics until interrupted.",
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "Metrics listen address (default: metrics.addr)")
	cmd.Flags().Bool("no-metrics", false, "Do not serve /metrics")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	noMetrics, _ := cmd.Flags().GetBool("no-metrics")

	c, err := openClient(cmd, func(cfg *core.Config) {
		cfg.Metrics.Enabled = !noMetrics
		if listen != "" {
			cfg.Metrics.Addr = listen
		}
	})
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Start(ctx)
	defer c.Layers().Stop()

	if noMetrics {
		slog.Info("serving without metrics endpoint")
		<-ctx.Done()
		return nil
	}
	return serveMetrics(ctx, c.Config().Metrics.Addr, c.MetricsHandler())
}

// serveMetrics runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func serveMetrics(ctx context.Context, addr string, metrics http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return core.NewMemoryError("Serve", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return core.NewMemoryError("Serve", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return core.NewMemoryError("Serve", err)
	}
	return <-errCh
}
