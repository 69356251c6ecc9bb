// main runs the outbox relay: it drains unprocessed outbox rows to Kafka and
// sweeps orphaned audit entries. It is deployed separately from the API
// server so publish backpressure never slows the write path.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"scimgate/internal/audit"
	auditstore "scimgate/internal/audit/store"
	"scimgate/internal/outbox/relay"
	outboxstore "scimgate/internal/outbox/store"
	"scimgate/internal/platform/config"
	"scimgate/internal/platform/kafka/producer"
	"scimgate/internal/platform/logger"
	"scimgate/internal/platform/redis"
)

const (
	topicPartitions  = 6
	topicReplication = 1

	leaseKey = "scimgate:relay:lease"
	leaseTTL = 30 * time.Second
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	kafkaProducer, err := producer.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Error("failed to create kafka producer", "error", err)
		os.Exit(1)
	}
	defer kafkaProducer.Close()

	if err := kafkaProducer.EnsureTopic(ctx, topicPartitions, topicReplication); err != nil {
		log.Error("failed to ensure topic", "topic", cfg.KafkaTopic, "error", err)
		os.Exit(1)
	}

	// Without Redis the relay runs leaseless; safe for a single instance
	// because MarkProcessed is idempotent either way.
	var lease relay.Lease
	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lease = redis.NewLease(redisClient, leaseKey, leaseTTL)
	}

	r := relay.New(relay.Config{
		Store:     outboxstore.NewPostgres(db),
		Publisher: relay.NewKafkaPublisher(kafkaProducer),
		Lease:     lease,
		Logger:    log,
		Metrics:   relay.NewMetrics(),
		Interval:  cfg.RelayInterval,
		BatchSize: cfg.RelayBatchSize,
	})

	sweeper := audit.NewSweeper(auditstore.NewPostgres(db), log, cfg.AuditSweepAfter, cfg.AuditSweepAfter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log.Info("starting outbox relay",
		"topic", cfg.KafkaTopic,
		"interval", cfg.RelayInterval,
		"batch_size", cfg.RelayBatchSize,
		"leased", lease != nil,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := r.Run(groupCtx)
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	})
	group.Go(func() error {
		err := sweeper.Run(groupCtx)
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("relay exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("relay stopped")
}
