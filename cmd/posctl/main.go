package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/posclient/internal/app"
	"github.com/mmynk/posclient/internal/config"
	"github.com/mmynk/posclient/internal/store"
	"github.com/mmynk/posclient/pkg/logging"
)

const usage = `usage: posctl <command> [flags]

commands:
  login     -email E -password P [-remember]
  logout
  whoami
  menu      [-category ID] [-search TEXT]
  areas
  order     -area ID -table T [-customer NAME] -item ID[:QTY[:NOTES]]...
  orders    [-status S]
  status    ORDER_ID STATUS
  invoice   ORDER_ID [-dir DIR]
  users
  shell     interactive session (cart commands, idle logout)
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{out: os.Stdout}
	a, err := app.New(ctx, cfg, app.Options{
		Redirector: store.RedirectFunc(c.redirectToLogin),
	})
	if err != nil {
		slog.Error("Failed to initialize client", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	c.app = a
	slog.Debug("Client initialized", "api", cfg.BaseURL, "storage", cfg.DurablePath, "mode", a.Session.Mode())

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(a, cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if err := c.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func serveMetrics(a *app.App, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("Metrics server starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}
