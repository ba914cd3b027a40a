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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/radieske/matka-settlement/internal/api/http"
	"github.com/radieske/matka-settlement/internal/funding"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/live"
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
		cfg.ServiceName = "matka-api"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
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
	// SQLite é o modo de desenvolvimento: o schema sobe junto com a API
	if cfg.StoreDriver == "sqlite" {
		if err := st.Migrate(ctx); err != nil {
			log.Fatal("store migrate", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine := settlement.New(st, log, settlement.Options{
		Location: cfg.MarketLocation,
		MinStake: cfg.MinStake,
		MaxStake: cfg.MaxStake,
		Metrics:  settlement.NewMetrics(reg),
	})
	checks := map[string]metrics.HealthFunc{"store": st.Ping}

	// Eventos de domínio vão para o Kafka quando há brokers configurados
	if len(sharedkafka.Brokers(cfg.KafkaBrokers)) > 0 {
		placed := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBidsPlaced)
		declared := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResultDeclared)
		revoked := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResultRevoked)
		defer placed.Close()
		defer declared.Close()
		defer revoked.Close()
		engine.AddSink(producer.NewKafkaPublisher(placed, declared, revoked))
	}

	opts := apihttp.Options{}
	var (
		redisClient *redis.Client
		hub         *live.Hub
	)
	if cfg.RedisAddr != "" {
		redisClient, err = sharedcache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer redisClient.Close()

		results := live.NewResultCache(redisClient, 5*time.Minute)
		hub = live.NewHub(nil, log)
		engine.AddSink(&live.Publisher{
			Broadcaster: live.NewRedisBroadcaster(redisClient),
			Channel:     cfg.RedisResultsChannel,
			Cache:       results,
			Log:         log,
		})
		opts.Cache = results
		opts.WebSocket = hub.HandleWS
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	fund := funding.New(st, log, funding.Rules{
		ReferralMinDeposit:   cfg.ReferralMinDeposit,
		ReferralBonusPercent: cfg.ReferralBonusPercent,
	})
	api := apihttp.NewServer(log, engine, fund, ledger.New(st, log), opts)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	msrv := metrics.NewServer(cfg.MetricsPort, reg, checks)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("matka-api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", msrv.Addr))
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	if hub != nil {
		g.Go(func() error {
			return live.Subscribe(gctx, redisClient, cfg.RedisResultsChannel, hub, log)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = msrv.Shutdown(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("matka-api stopped with error", zap.Error(err))
		return
	}
	log.Info("matka-api stopped")
}
