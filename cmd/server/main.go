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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trapper/internal/dedupe"
	dedupehandler "trapper/internal/dedupe/handler"
	dedupemetrics "trapper/internal/dedupe/metrics"
	"trapper/internal/entity"
	entityhandler "trapper/internal/entity/handler"
	"trapper/internal/exclusion"
	"trapper/internal/graph"
	"trapper/internal/platform/config"
	"trapper/internal/platform/httpserver"
	"trapper/internal/platform/kafka"
	"trapper/internal/platform/logger"
	"trapper/internal/platform/postgres"
	platformredis "trapper/internal/platform/redis"
	"trapper/internal/resolve"
	resolvehandler "trapper/internal/resolve/handler"
	resolvemetrics "trapper/internal/resolve/metrics"
	"trapper/internal/skeleton"
	"trapper/internal/source"
	id "trapper/pkg/domain"
	"trapper/pkg/platform/middleware/requestid"
	"trapper/pkg/platform/middleware/requesttime"
)

const canonicalCacheTTL = 10 * time.Minute

// stores bundles the persistence layer so wiring swaps between Postgres and
// the in-memory dev mode in one place.
type stores struct {
	entities  entity.Store
	edges     graph.EdgeStore
	decisions resolve.DecisionStore
	rules     exclusion.RuleStore
	blacklist exclusion.BlacklistStore
	sources   source.Registry
	dedupe    dedupe.Store
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var graphOpts []graph.Option
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		graphOpts = append(graphOpts, graph.WithCache(
			graph.NewRedisCanonicalCache(redisClient, canonicalCacheTTL, log),
		))
	}
	graphOpts = append(graphOpts, graph.WithLogger(log))
	g, err := graph.New(st.edges, graphOpts...)
	if err != nil {
		log.Error("graph setup failed", "error", err)
		os.Exit(1)
	}

	filter, err := exclusion.NewFilter(st.rules,
		exclusion.WithLogger(log),
		exclusion.WithReloadTTL(cfg.Batch.RuleReloadTTL),
	)
	if err != nil {
		log.Error("exclusion filter setup failed", "error", err)
		os.Exit(1)
	}

	resolverOpts := []resolve.ResolverOption{
		resolve.WithLogger(log),
		resolve.WithConfig(resolveConfig(cfg.Resolve)),
		resolve.WithBlacklist(st.blacklist),
		resolve.WithSources(st.sources),
		resolve.WithMetrics(resolvemetrics.New()),
	}
	publisher, err := kafka.NewPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		log.Error("kafka setup failed", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close(context.Background())
		resolverOpts = append(resolverOpts, resolve.WithPublisher(publisher))
	}
	resolver, err := resolve.NewResolver(st.entities, g, filter, st.decisions, resolverOpts...)
	if err != nil {
		log.Error("resolver setup failed", "error", err)
		os.Exit(1)
	}

	manager, err := skeleton.NewManager(st.entities, g,
		skeleton.WithLogger(log),
		skeleton.WithBatchSize(cfg.Batch.SkeletonBatchSize),
	)
	if err != nil {
		log.Error("skeleton manager setup failed", "error", err)
		os.Exit(1)
	}

	dedupeCfg := dedupe.DefaultConfig()
	dedupeCfg.PageSize = cfg.Batch.DedupeBatchSize
	dedupeCfg.MaxEntities = cfg.Batch.DedupeMaxEntities
	if cfg.Batch.DedupeWorkers > 0 {
		dedupeCfg.Workers = cfg.Batch.DedupeWorkers
	}
	dedupeMetrics := dedupemetrics.New()
	detector, err := dedupe.NewDetector(st.entities, st.edges, st.dedupe,
		dedupe.WithLogger(log),
		dedupe.WithConfig(dedupeCfg),
		dedupe.WithMetrics(dedupeMetrics),
	)
	if err != nil {
		log.Error("duplicate detector setup failed", "error", err)
		os.Exit(1)
	}
	merger, err := dedupe.NewMerger(st.entities, g, st.dedupe,
		dedupe.WithMergerLogger(log),
		dedupe.WithMergerMetrics(dedupeMetrics),
	)
	if err != nil {
		log.Error("merger setup failed", "error", err)
		os.Exit(1)
	}

	go func() {
		err := skeleton.NewWorker(manager, cfg.Batch.SkeletonInterval, log).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("skeleton worker stopped", "error", err)
		}
	}()
	go func() {
		kinds := []id.EntityKind{id.KindPerson}
		err := dedupe.NewWorker(detector, kinds, cfg.Batch.DedupeInterval, log).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("dedupe worker stopped", "error", err)
		}
	}()

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	resolvehandler.New(resolver, st.decisions, log).Register(router)
	dedupehandler.New(st.dedupe, merger, log).Register(router)
	entityhandler.New(st.entities, g, log).Register(router)

	srv := httpserver.New(cfg.HTTP.Addr, router)
	go func() {
		log.Info("trapper listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStores selects Postgres when DATABASE_URL is set and falls back to the
// in-memory stores otherwise. Memory mode is for local development; nothing
// survives a restart.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, func(), error) {
	if cfg.Postgres.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &stores{
			entities:  entity.NewInMemoryStore(),
			edges:     graph.NewInMemoryEdgeStore(),
			decisions: resolve.NewInMemoryDecisionStore(),
			rules:     exclusion.NewInMemoryRuleStore(),
			blacklist: exclusion.NewInMemoryBlacklistStore(),
			sources:   source.NewInMemory(defaultSources()...),
			dedupe:    dedupe.NewInMemoryStore(),
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	return &stores{
		entities:  entity.NewPostgres(db),
		edges:     graph.NewPostgresEdgeStore(db),
		decisions: resolve.NewPostgresDecisionStore(db),
		rules:     exclusion.NewPostgresRuleStore(db),
		blacklist: exclusion.NewPostgresBlacklistStore(db),
		sources:   source.NewPostgres(db),
		dedupe:    dedupe.NewPostgresStore(db),
	}, func() { db.Close() }, nil
}

// resolveConfig layers env threshold overrides onto the tuned defaults; an
// unset override keeps the default for that field.
func resolveConfig(o config.ResolveConfig) resolve.Config {
	cfg := resolve.DefaultConfig()
	if o.AutoMatchThreshold > 0 {
		cfg.AutoMatchThreshold = o.AutoMatchThreshold
	}
	if o.ReviewFloor > 0 {
		cfg.ReviewFloor = o.ReviewFloor
	}
	if o.HouseholdNameSim > 0 {
		cfg.Scoring.HouseholdNameSim = o.HouseholdNameSim
	}
	if o.FuzzyNameSim > 0 {
		cfg.Scoring.FuzzyNameSim = o.FuzzyNameSim
	}
	if o.MinScore > 0 {
		cfg.Scoring.MinScore = o.MinScore
	}
	if o.MaxCandidates > 0 {
		cfg.Scoring.MaxCandidates = o.MaxCandidates
	}
	return cfg
}

// defaultSources seeds the dev-mode registry with the upstream systems and
// the weights operators normally maintain in the sources table.
func defaultSources() []source.Source {
	return []source.Source{
		{System: "clinichq", Reliability: 1.0},
		{System: "airtable", Reliability: 1.0, Trusted: true},
		{System: "jotform", Reliability: 0.5},
	}
}
