// Command server runs the rate limiter's HTTP admin/decision surface and,
// if GRPC_ADDR is set, its bonus gRPC decision surface, over a single
// shared Decision Gateway instance.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/kestrelapi/ratelimiter/config"
	"github.com/kestrelapi/ratelimiter/engine"
	"github.com/kestrelapi/ratelimiter/httpapi"
	"github.com/kestrelapi/ratelimiter/logging"
	"github.com/kestrelapi/ratelimiter/metrics"
	"github.com/kestrelapi/ratelimiter/middleware/grpcmw"
	"github.com/kestrelapi/ratelimiter/store/memory"
	"github.com/kestrelapi/ratelimiter/store/mongostore"
)

func main() {
	logger, err := logging.New()
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer closeStore()

	defaultCfg, err := cfg.DefaultInstanceConfig()
	if err != nil {
		logger.Fatal("default instance config", zap.Error(err))
	}

	clock := engine.NewRealClock()
	registry := engine.NewRegistry(store, clock)
	aggregator := engine.NewAggregator(registry, 0)
	collector := metrics.NewCollector()
	gatewayLogger := logging.NewGatewayLogger(logger)

	gateway := engine.NewGateway(store, registry, aggregator, clock,
		engine.WithMetrics(collector),
		engine.WithFailureLogger(gatewayLogger),
		engine.WithDefaultInstanceConfig(defaultCfg),
	)

	apiServer := &httpapi.Server{
		Store:      store,
		Gateway:    gateway,
		Aggregator: aggregator,
		Driver:     engine.NewDriver(gateway),
	}
	router := httpapi.NewRouter(logger, apiServer)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer = grpc.NewServer(
			grpc.ChainUnaryInterceptor(grpcmw.UnaryServerInterceptor(gateway, grpcmw.KeyByMetadata("x-api-key"))),
			grpc.ChainStreamInterceptor(grpcmw.StreamServerInterceptor(gateway, grpcmw.StreamKeyByMetadata("x-api-key"))),
		)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen", zap.Error(err))
		}
		go func() {
			logger.Info("grpc server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc server", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	logger.Info("shutdown complete")
}

func openStore(cfg config.Config) (engine.Store, func(), error) {
	switch cfg.StoreDriver {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := mongostore.Connect(ctx, cfg.MongoURI, "ratelimiter")
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Close(ctx)
		}, nil
	default:
		s := memory.New(0)
		return s, func() { s.Close() }, nil
	}
}
