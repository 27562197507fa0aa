package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"chronicle/internal/notes"
	noteshandler "chronicle/internal/notes/handler"
	notesservice "chronicle/internal/notes/service"
	notesstore "chronicle/internal/notes/store"
	"chronicle/internal/platform/config"
	"chronicle/internal/platform/httpserver"
	"chronicle/internal/platform/logger"
	"chronicle/internal/platform/metrics"
	"chronicle/pkg/platform/txn"
	"chronicle/pkg/revision"
	revmetrics "chronicle/pkg/revision/metrics"
	pgstore "chronicle/pkg/revision/store/postgres"
)

const resourceName = "primary"

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping postgres", "error", err)
		os.Exit(1)
	}

	dispatcher := revision.NewDispatcher()
	registry, err := revision.New("default", dispatcher, revision.WithLogger(log))
	if err != nil {
		log.Error("create registry", "error", err)
		os.Exit(1)
	}
	defer registry.Close()

	if err := registry.Register(&notes.Note{},
		revision.WithImmediateEvents(revision.EventDeleted)); err != nil {
		log.Error("register note type", "error", err)
		os.Exit(1)
	}

	revStore := pgstore.New(db, registry)
	if err := revStore.EnsureSchema(ctx); err != nil {
		log.Error("apply revision schema", "error", err)
		os.Exit(1)
	}
	registry.SubscribeRevisions(revStore)

	publisher := wireSinks(ctx, cfg, registry, log)
	if publisher != nil {
		defer publisher.Close()
		registry.SubscribeRevisions(publisher)
	}

	store := notesstore.NewPostgres(db, resourceName)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Error("apply notes schema", "error", err)
		os.Exit(1)
	}

	scopeMetrics := revmetrics.New(prometheus.DefaultRegisterer)
	m := metrics.New()

	service, err := notesservice.New(store, txn.NewSQL(resourceName, db), dispatcher, log, m)
	if err != nil {
		log.Error("create notes service", "error", err)
		os.Exit(1)
	}

	router := noteshandler.NewRouter(noteshandler.New(service, revStore, log), scopeMetrics)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting chronicle", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
