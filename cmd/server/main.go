// main wires high-level dependencies, exposes the SCIM router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"scimgate/internal/audit"
	auditstore "scimgate/internal/audit/store"
	"scimgate/internal/outbox"
	outboxstore "scimgate/internal/outbox/store"
	"scimgate/internal/platform/config"
	"scimgate/internal/platform/httpserver"
	"scimgate/internal/platform/logger"
	"scimgate/internal/platform/middleware"
	scimhandler "scimgate/internal/scim/handler"
	scimmetrics "scimgate/internal/scim/metrics"
	"scimgate/internal/scim/service"
	groupstore "scimgate/internal/scim/store/group"
	userstore "scimgate/internal/scim/store/user"
	"scimgate/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	svc := service.New(
		userstore.NewPostgres(db),
		groupstore.NewPostgres(db),
		outbox.NewRecorder(outboxstore.NewPostgres(db)),
		audit.NewRecorder(auditstore.NewPostgres(db)),
		tx.NewPostgresRunner(db),
		service.WithLogger(log),
		service.WithMetrics(scimmetrics.New()),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestScope)
	router.Use(middleware.Logging(log))
	scimhandler.New(svc, log).Register(router)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting scimgate server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
