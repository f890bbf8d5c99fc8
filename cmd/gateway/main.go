package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/api"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/hub"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/repository"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/stream"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/config"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.App)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	store := cache.NewStore(cache.NewRedisKV(rdb))
	recorder := metrics.NewRecorder(store, logger)

	feed := repository.NewRedisFeed(rdb, store)
	defer feed.Close()

	// Dependency Injection: Hub depends on the PriceFeed interface
	wsHub := hub.NewHub(feed, logger)

	supported := cfg.Price.SupportedSet()

	handler := api.NewHandler(
		store,
		recorder,
		cfg.Price.Symbols,
		cfg.Cache.MaxAge(),
		cfg.App.Version,
		api.RealClock{},
		logger,
	)
	mux := handler.Router()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}

		client := stream.NewClient(conn, wsHub, logger, supported)
		client.Start()
	})

	// No server-wide read/write timeouts: /ws hijacks the connection and
	// manages its own deadlines.
	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Gateway started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	logger.Info("Shutdown Complete")
}
