// Command monitor polls the license registry for one project and exposes the
// resulting decision to a host application over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"licensehub.dev/internal/config"
	"licensehub.dev/internal/monitor"
	"licensehub.dev/internal/obs"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("license monitor exited", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadMonitor()
	if err != nil {
		return err
	}
	listen := flag.String("listen", cfg.ListenAddr, "status listen address; empty disables the HTTP endpoint")
	flag.Parse()
	logger := obs.Logger()

	checker, err := monitor.NewHTTPChecker(cfg.ServerURL, &http.Client{})
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	mon, err := monitor.New(checker, cfg.ProjectIdentifier,
		monitor.WithInterval(cfg.CheckInterval),
		monitor.WithTimeout(cfg.RequestTimeout),
		monitor.WithGraceFailures(cfg.GraceFailures),
		monitor.WithMetrics(reg),
		monitor.WithOnChange(func(t monitor.Transition, s monitor.Snapshot) {
			if !s.Allowed {
				logger.Warn("application functionality disabled", "state", string(s.State))
			}
		}))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mon.Run(gctx)
		return nil
	})

	if *listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/license", monitor.StatusHandler(mon))
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/app/", monitor.Gate(mon, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("application is operational\n"))
		})))
		srv := &http.Server{
			Addr:              *listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("monitor status listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	return g.Wait()
}
