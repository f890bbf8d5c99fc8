package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/fetcher"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/oracle"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/refresher"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/synthetic"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/breaker"
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

	bases, err := cfg.Price.Bases()
	if err != nil {
		logger.Fatal("Malformed base prices", zap.Error(err))
	}
	gen := synthetic.NewGenerator(
		bases,
		cfg.Price.Jitter,
		synthetic.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		synthetic.RealClock{},
	)

	reader, err := oracle.NewContractReader(cfg.Oracle.RPCURL, cfg.Oracle.Contract, cfg.Oracle.Timeout())
	if err != nil {
		logger.Fatal("Failed to create oracle reader", zap.Error(err))
	}
	defer reader.Close()

	brk := breaker.New("oracle", cfg.Breaker.Threshold, cfg.Breaker.ResetTimeout())

	fetch := fetcher.NewFetcher(reader, gen, brk, cfg.Oracle.Decimals, fetcher.RealClock{}, logger)

	var events refresher.EventWriter
	if len(cfg.Kafka.Brokers) > 0 {
		creator := refresher.NewTopicCreator(
			logger,
			&refresher.RealKafkaDialer{Dialer: kafka.DefaultDialer},
			refresher.RealClock{},
		)
		creator.Create(cfg.Kafka.Brokers, cfg.Kafka.Topic)

		events = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
		}
		logger.Info("Kafka tick feed enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	sched := refresher.NewScheduler(
		fetch,
		store,
		recorder,
		gen,
		refresher.NewRedisPublisher(rdb),
		events,
		cfg.Price.Symbols,
		cfg.Refresh.Interval(),
		refresher.RealClock{},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := sched.Run(ctx); err != nil {
		logger.Error("Refresher stopped with error", zap.Error(err))
	}
	logger.Info("Refresher exited cleanly")
}
