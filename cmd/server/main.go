// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trinsiklabs/recall/internal/audit"
	auditpg "github.com/trinsiklabs/recall/internal/audit/store/postgres"
	"github.com/trinsiklabs/recall/internal/checkpoint"
	checkpointpg "github.com/trinsiklabs/recall/internal/checkpoint/store/postgres"
	"github.com/trinsiklabs/recall/internal/jwttoken"
	"github.com/trinsiklabs/recall/internal/platform/config"
	"github.com/trinsiklabs/recall/internal/platform/httpserver"
	"github.com/trinsiklabs/recall/internal/platform/logger"
	"github.com/trinsiklabs/recall/internal/platform/metrics"
	"github.com/trinsiklabs/recall/internal/platform/postgres"
	platredis "github.com/trinsiklabs/recall/internal/platform/redis"
	"github.com/trinsiklabs/recall/internal/sequence"
	httptransport "github.com/trinsiklabs/recall/internal/transport/http"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	db, err := postgres.Open(rootCtx, cfg.Postgres)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := platredis.New(rootCtx, cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	m := metrics.New()

	auditSvc, err := audit.NewService(auditpg.New(db), log, m)
	if err != nil {
		log.Error("audit service init failed", "error", err)
		os.Exit(1)
	}

	cpStore := checkpointpg.New(db)
	seq := sequence.NewPostgres(db)
	gate := checkpoint.NewGate(checkpoint.PrefixClassifier{})
	var boundaryCache checkpoint.BoundaryCache
	if cache != nil {
		boundaryCache = cache
	}
	resolver := checkpoint.NewResolver(cpStore, boundaryCache, cfg.Redis.BoundaryTTL, log, m)

	cpSvc, err := checkpoint.NewService(cpStore, auditSvc, checkpointpg.NewTxRunner(db), gate, log,
		checkpoint.WithResolver(resolver),
		checkpoint.WithMetrics(m),
	)
	if err != nil {
		log.Error("checkpoint service init failed", "error", err)
		os.Exit(1)
	}

	verifier, err := checkpoint.NewVerifier(cpStore, seq, checkpoint.PrefixClassifier{}, auditSvc, log, m)
	if err != nil {
		log.Error("verifier init failed", "error", err)
		os.Exit(1)
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "recall")
	handler := httptransport.NewHandler(log, auditSvc, cpSvc, resolver, verifier, seq)
	checks := []httptransport.HealthCheck{db.PingContext}
	if cache != nil {
		checks = append(checks, cache.Health)
	}
	router := httptransport.NewRouter(handler, jwttoken.NewMiddlewareAdapter(tokens), m, checks...)

	srv := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("starting recall", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
