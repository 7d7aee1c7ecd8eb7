package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anchorid/internal/anchor"
	anchormetrics "anchorid/internal/anchor/metrics"
	"anchorid/internal/cipher"
	"anchorid/internal/extract"
	"anchorid/internal/fusion"
	httpapi "anchorid/internal/http"
	"anchorid/internal/identity"
	identityhandler "anchorid/internal/identity/handler"
	identitymetrics "anchorid/internal/identity/metrics"
	identitystore "anchorid/internal/identity/store"
	jwttoken "anchorid/internal/jwt_token"
	"anchorid/internal/pinning"
	"anchorid/internal/platform/config"
	"anchorid/internal/platform/httpserver"
	"anchorid/internal/platform/kafka"
	"anchorid/internal/platform/logger"
	platformpostgres "anchorid/internal/platform/postgres"
	platformredis "anchorid/internal/platform/redis"
	"anchorid/internal/ratelimit"
	ratelimitmetrics "anchorid/internal/ratelimit/metrics"
	ratelimitstore "anchorid/internal/ratelimit/store"
	"anchorid/internal/timeline"
	timelinehandler "anchorid/internal/timeline/handler"
	"anchorid/internal/verification"
	verificationhandler "anchorid/internal/verification/handler"
	verificationmetrics "anchorid/internal/verification/metrics"
	verificationstore "anchorid/internal/verification/store"
	"anchorid/pkg/platform/audit"
	auditmem "anchorid/pkg/platform/audit/store/memory"
	auditpg "anchorid/pkg/platform/audit/store/postgres"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Extractor.URL == "" {
		log.Error("EXTRACTOR_URL is required; the service cannot operate without the embedding sidecar")
		os.Exit(1)
	}
	if cfg.JWTSigningKey == "" {
		log.Error("JWT_SIGNING_KEY is required for the history surface")
		os.Exit(1)
	}

	box, err := cipher.New(cfg.MasterKeyHex)
	if err != nil {
		log.Error("master key rejected", "error", err)
		os.Exit(1)
	}

	db, err := platformpostgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	identityStore, attemptStore, auditStore := buildStores(log, db)

	auditOpts := []audit.Option{}
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		auditOpts = append(auditOpts, audit.WithStreamSink(producer, cfg.Kafka.Topic))
	}
	auditor := audit.NewPublisher(auditStore, log, auditOpts...)

	embedder := extract.NewHTTPEmbedder(cfg.Extractor.URL, &http.Client{Timeout: cfg.Extractor.Timeout})

	var pinner pinning.Pinner
	if cfg.Pinning.URL != "" {
		pinner = pinning.NewHTTPPinner(cfg.Pinning.URL, cfg.Pinning.Token, nil)
	}

	var primary, fallback anchor.Ledger
	if cfg.Ledger.PrimaryURL != "" {
		primary = anchor.NewHTTPLedger(cfg.Ledger.PrimaryURL, nil)
	}
	if cfg.Ledger.FallbackURL != "" {
		fallback = anchor.NewHTTPLedger(cfg.Ledger.FallbackURL, nil)
	}
	anchors := anchor.NewService(primary, fallback, cfg.Ledger.Timeout, log, anchormetrics.New())
	if primary == nil {
		log.Warn("no ledger configured, anchoring disabled")
	}

	weights := fusion.Weights{
		Face:  cfg.Fusion.FaceWeight,
		Voice: cfg.Fusion.VoiceWeight,
		Doc:   cfg.Fusion.DocWeight,
	}
	engine := fusion.NewEngine(weights, cfg.Fusion.Threshold)

	identityService := identity.NewService(
		identityStore, embedder, box, anchors, pinner, auditor,
		log, identitymetrics.New(), cfg.ModelVersion,
	)
	verificationService := verification.NewService(
		identityStore, attemptStore, embedder, box, engine, anchors, auditor,
		log, verificationmetrics.New(),
	)
	timelineService := timeline.NewService(
		identityStore, attemptStore, anchors,
		timeline.NewEventCache(redisClient, log), log,
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "anchorid", "anchorid-history")

	var limitStore ratelimit.Store = ratelimitstore.NewMemoryStore()
	if redisClient != nil {
		limitStore = ratelimitstore.NewRedisStore(redisClient)
	}
	limiter := ratelimit.NewLimiter(limitStore, log, ratelimit.WithMetrics(ratelimitmetrics.New()))

	router := httpapi.NewRouter(log,
		func(r *http.Request) error {
			if db != nil {
				if err := db.PingContext(r.Context()); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(r.Context())
			}
			return nil
		},
		httpapi.Limited(
			identityhandler.New(identityService, log, cfg.MaxUploadBytes),
			limiter.Middleware(ratelimit.ClassEnroll),
		),
		httpapi.Limited(
			verificationhandler.New(verificationService, log, cfg.MaxUploadBytes),
			limiter.Middleware(ratelimit.ClassVerify),
		),
		timelinehandler.New(timelineService, log, jwttoken.NewJWTServiceAdapter(jwtService)),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting anchorid", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// buildStores selects postgres-backed stores when a database is configured
// and memory stores otherwise.
func buildStores(log *slog.Logger, db *sql.DB) (identity.Store, verification.AttemptStore, audit.Store) {
	if db == nil {
		log.Warn("no database configured, using in-memory stores")
		return identitystore.NewInMemoryStore(), verificationstore.NewInMemoryStore(), auditmem.NewInMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	identities := identitystore.NewPostgresStore(db)
	attempts := verificationstore.NewPostgresStore(db)
	audits := auditpg.New(db)
	for name, ensure := range map[string]func(context.Context) error{
		"identities": identities.EnsureSchema,
		"attempts":   attempts.EnsureSchema,
		"audit":      audits.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			log.Error("schema migration failed", "table", name, "error", err)
			os.Exit(1)
		}
	}
	return identities, attempts, audits
}
