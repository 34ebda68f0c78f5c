package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/norun9/storefront-cartservice/cartstore"
	"github.com/norun9/storefront-cartservice/handlers"
	"github.com/norun9/storefront-cartservice/services"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Level = logrus.DebugLevel
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Level = cfg.logLevel

	// 1) OpenTelemetry providers
	if cfg.enableTracing {
		tp, err := initTracerProvider(ctx, cfg.otlpEndpoint)
		if err != nil {
			log.Fatalf("failed to initialize tracer provider: %v", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Warnf("error shutting down tracer provider: %v", err)
			}
		}()
		log.Info("tracing enabled")
	}
	if cfg.enableMetrics {
		mp, err := initMeterProvider(ctx, cfg.otlpEndpoint)
		if err != nil {
			log.Fatalf("failed to initialize meter provider: %v", err)
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				log.Warnf("error shutting down meter provider: %v", err)
			}
		}()
		log.Info("metrics enabled")
	}

	// 2) Cart store: Redis when REDIS_ADDR is set, in-memory otherwise.
	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize cart store: %v", err)
	}

	cartSvc, err := services.NewCartService(store,
		services.WithLogger(log),
		services.WithSessionCacheSize(cfg.sessionCacheSize),
	)
	if err != nil {
		log.Fatalf("failed to create CartService: %v", err)
	}

	// 3) gRPC health server
	healthAddr := fmt.Sprintf(":%s", cfg.healthPort)
	lis, err := net.Listen("tcp", healthAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", healthAddr, err)
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(grpcServer, services.NewHealthCheckService(store))
	reflection.Register(grpcServer)
	go func() {
		log.Infof("health server listening on %s", healthAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("health server stopped: %v", err)
		}
	}()

	// 4) HTTP server for the storefront
	httpAddr := fmt.Sprintf(":%s", cfg.port)
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           handlers.NewRouter(handlers.New(cartSvc, log), cfg.staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("cart service listening on %s", httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to serve HTTP: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()
}

func newStore(ctx context.Context, cfg config) (cartstore.ICartStore, error) {
	if cfg.redisAddr == "" {
		log.Info("REDIS_ADDR not set, using LocalCartStore")
		local := cartstore.NewLocalCartStore(log)
		return local, local.Initialize(ctx)
	}

	log.Infof("using RedisCartStore with address %s", cfg.redisAddr)
	redisStore, err := cartstore.NewRedisCartStore(cfg.redisAddr,
		cartstore.WithLogger(log),
		cartstore.WithTTL(cfg.cartTTL),
	)
	if err != nil {
		return nil, err
	}
	if err := redisStore.Initialize(ctx); err != nil {
		return nil, err
	}
	return redisStore, nil
}
