package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"licensehub.dev/internal/auth"
	"licensehub.dev/internal/config"
	"licensehub.dev/internal/httpapi"
	"licensehub.dev/internal/license"
	"licensehub.dev/internal/migrate"
	"licensehub.dev/internal/notify"
	"licensehub.dev/internal/obs"
	"licensehub.dev/internal/store/pg"
	"licensehub.dev/internal/stream"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("licensehub-api exited", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	grpcAddr := flag.String("grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	memory := flag.Bool("memory", false, "use in-memory stores instead of PostgreSQL")
	flag.Parse()

	// Инициализация observability (метрики, уровень логов, build info)
	obs.SetLevel(cfg.LogLevel)
	obs.Init()
	obs.InitBuildInfo(cfg.Version, cfg.Commit)
	logger := obs.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		projects    license.Store
		admins      auth.Store
		inbox       notify.Store
		readyProbe  = httpapi.ReadyProbe{}
		closeStores = func() {}
	)
	switch {
	case *memory:
		logger.Warn("running with in-memory stores; data is lost on restart")
		projects, admins, inbox = license.NewInMemory(), auth.NewInMemory(), notify.NewInMemory()
	case cfg.DatabaseURL == "":
		return errors.New("LICENSEHUB_PG_DSN is required unless -memory is set")
	default:
		store, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		closeStores = func() { _ = store.Close() }
		if cfg.MigrateOnStart {
			mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := migrate.NewManager(store.DB()).Up(mctx)
			cancel()
			if err != nil {
				closeStores()
				return err
			}
		}
		projects, admins, inbox = store, store, store.Notifications()
		readyProbe = httpapi.ReadyProbe{DB: store.DB()}
	}
	defer closeStores()

	notifications := notify.NewService(inbox,
		notify.WithBroker(stream.New[notify.Notification](32)),
		notify.WithLogger(logger))
	tokens, err := auth.NewTokenIssuer(cfg.AuthSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	accounts, err := auth.NewService(admins, tokens, auth.WithRecorder(notifications))
	if err != nil {
		return err
	}
	created, err := accounts.Bootstrap(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap administrator created", "username", cfg.AdminUsername)
	}
	registry := license.NewRegistry(projects,
		license.WithDefaultStatus(cfg.InitialStatus()),
		license.WithListener(notifications))

	api := httpapi.New(registry, accounts, notifications,
		httpapi.WithReadyProbe(readyProbe),
		httpapi.WithVersion(cfg.Version),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins...),
		httpapi.WithCheckRateLimit(cfg.CheckRate, cfg.CheckBurst))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout не задаём: SSE-поток живёт долго
		IdleTimeout: 60 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, httpapi.NewGRPCServer(readyProbe))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", srv.Addr, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			return err
		}
		logger.Info("grpc listening", "addr", *grpcAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
