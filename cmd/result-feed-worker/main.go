package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/matka-settlement/internal/live"
	"github.com/radieske/matka-settlement/internal/resultfeed/consumer"
	"github.com/radieske/matka-settlement/internal/settlement"
	"github.com/radieske/matka-settlement/internal/settlement/producer"
	sharedcache "github.com/radieske/matka-settlement/internal/shared/cache"
	"github.com/radieske/matka-settlement/internal/shared/config"
	"github.com/radieske/matka-settlement/internal/shared/db"
	sharedkafka "github.com/radieske/matka-settlement/internal/shared/kafka"
	"github.com/radieske/matka-settlement/internal/shared/logger"
	"github.com/radieske/matka-settlement/internal/shared/metrics"
	"github.com/radieske/matka-settlement/internal/store"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "result-feed-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := db.Connect(cfg.StoreDriver, cfg.PostgresDSN, cfg.SQLitePath)
	if err != nil {
		log.Fatal("store connect", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer conn.Close()

	st, err := store.New(cfg.StoreDriver, conn)
	if err != nil {
		log.Fatal("store init", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	// Declarações vindas do feed geram os mesmos eventos que as do admin
	placed := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBidsPlaced)
	declared := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResultDeclared)
	revoked := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResultRevoked)
	dlq := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResultDetectedDL)
	defer placed.Close()
	defer declared.Close()
	defer revoked.Close()
	defer dlq.Close()

	engine := settlement.New(st, log, settlement.Options{
		Location: cfg.MarketLocation,
		MinStake: cfg.MinStake,
		MaxStake: cfg.MaxStake,
		Metrics:  settlement.NewMetrics(reg),
		Sinks: []settlement.EventSink{
			producer.NewKafkaPublisher(placed, declared, revoked),
			&live.Publisher{
				Broadcaster: live.NewRedisBroadcaster(redisClient),
				Channel:     cfg.RedisResultsChannel,
				Cache:       live.NewResultCache(redisClient, 5*time.Minute),
				Log:         log,
			},
		},
	})

	// Consumer do feed (consumer group result-feed-worker)
	reader := sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicResultDetected, "result-feed-worker")
	defer reader.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "matka_feed_messages_consumed_total", Help: "mensagens consumidas"})
	declaredTotal := prometheus.NewCounter(prometheus.CounterOpts{Name: "matka_feed_declared_total", Help: "resultados declarados pelo feed"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "matka_feed_duplicates_total", Help: "resultados que já estavam declarados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "matka_feed_errors_total", Help: "erros por estágio"}, []string{"stage"})
	reg.MustRegister(consumed, declaredTotal, duplicates, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Engine:      engine,
		DLQ:         dlq,
		OnConsumed:  func() { consumed.Inc() },
		OnDeclared:  func() { declaredTotal.Inc() },
		OnDuplicate: func() { duplicates.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.NewServer(cfg.MetricsPort, reg, map[string]metrics.HealthFunc{
		"store": st.Ping,
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", msrv.Addr))
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("result-feed-worker started", zap.String("topic", cfg.TopicResultDetected))
		err := proc.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return msrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("result-feed-worker stopped with error", zap.Error(err))
		return
	}
	log.Info("result-feed-worker stopped")
}
