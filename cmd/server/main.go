package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"caseflow/internal/directory"
	directoryhandler "caseflow/internal/directory/handler"
	"caseflow/internal/events"
	httpapi "caseflow/internal/http"
	"caseflow/internal/importer"
	importerhandler "caseflow/internal/importer/handler"
	"caseflow/internal/jwttoken"
	"caseflow/internal/platform/config"
	"caseflow/internal/platform/httpserver"
	"caseflow/internal/platform/logger"
	platformredis "caseflow/internal/platform/redis"
	reviewhandler "caseflow/internal/review/handler"
	reviewmetrics "caseflow/internal/review/metrics"
	"caseflow/internal/review/service"
	recordstore "caseflow/internal/review/store/record"
	"caseflow/internal/stats"
	dErrors "caseflow/pkg/domain-errors"
)

// recordStore is the combined persistence surface main needs: the engine's
// store plus the read side's counters. Both store implementations satisfy it.
type recordStore interface {
	service.RecordStore
	stats.RecordCounter
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	log := logger.New()

	// Postgres when configured, in-memory otherwise (dev, tests).
	var (
		records recordStore
		users   directory.UserStore
		db      *sql.DB
	)
	if cfg.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		for _, schema := range []string{recordstore.Schema, directory.Schema} {
			if _, err := db.Exec(schema); err != nil {
				log.Error("schema apply failed", "error", err)
				os.Exit(1)
			}
		}
		records = recordstore.NewPostgres(db)
		users = directory.NewPostgres(db)
	} else {
		records = recordstore.NewInMemory()
		users = directory.NewInMemoryStore()
		log.Warn("no postgres configured, using in-memory stores")
	}

	cache, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	dir := directory.New(users, directory.WithLogger(log))
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		_, err := dir.CreateUser(context.Background(), cfg.AdminUsername, cfg.AdminPassword, "", true)
		if err != nil && !dErrors.Is(err, dErrors.CodeConflict) {
			log.Error("bootstrap admin failed", "error", err)
			os.Exit(1)
		}
	}
	m := reviewmetrics.New()

	memSink := events.NewMemorySink()
	sink := events.Fanout{memSink}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, events.WithLogger(log))
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = append(sink, kafkaSink)
	}

	engine, err := service.New(records, dir, cfg.SamplingPercent,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithSink(sink),
		service.WithNotePolicy(cfg.RequireNote),
	)
	if err != nil {
		log.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	statsOpts := []stats.Option{stats.WithLogger(log)}
	if cache != nil {
		statsOpts = append(statsOpts, stats.WithCache(cache.Client))
	}
	statsSvc := stats.New(records, dir, statsOpts...)
	statsSvc.SubscribeInvalidation(memSink)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	handlers := []httpapi.Registrar{
		directoryhandler.New(dir, jwtService, cfg.TokenTTL, log),
		reviewhandler.New(engine, statsSvc, log, validator),
	}
	if cfg.SurveyAPIURL != "" {
		imports := importer.New(
			importer.NewHTTPClient(cfg.SurveyAPIURL),
			records,
			service.NewRoundRobinAssigner(dir),
			importer.WithLogger(log),
			importer.WithMetrics(m),
		)
		handlers = append(handlers, importerhandler.New(imports, dir, log, validator))
	}

	router := httpapi.NewRouter(
		func(r *http.Request) error {
			if db != nil {
				return db.PingContext(r.Context())
			}
			return nil
		},
		handlers...,
	)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting caseflow", "addr", cfg.Addr, "sampling_percent", cfg.SamplingPercent)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
