// The server command runs the trust gateway: token issuance, rate limiting,
// session validation, geo risk assessment, and trust elevation over HTTP.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trustgate/internal/alert"
	alertrepo "trustgate/internal/alert/repository"
	"trustgate/internal/config"
	"trustgate/internal/configstore"
	"trustgate/internal/db"
	"trustgate/internal/event"
	eventrepo "trustgate/internal/event/repository"
	"trustgate/internal/georisk/lookup"
	geopolicy "trustgate/internal/georisk/policy"
	geoservice "trustgate/internal/georisk/service"
	"trustgate/internal/platform/logging"
	"trustgate/internal/ratelimit"
	raterepo "trustgate/internal/ratelimit/repository"
	"trustgate/internal/security"
	"trustgate/internal/server"
	serverrouter "trustgate/internal/server/router"
	sessionrepo "trustgate/internal/session/repository"
	sessionservice "trustgate/internal/session/service"
	"trustgate/internal/telemetry"
	"trustgate/internal/telemetry/otel"
	"trustgate/internal/telemetry/producer"
	tokenrepo "trustgate/internal/token/repository"
	tokenservice "trustgate/internal/token/service"
	trustservice "trustgate/internal/trust/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "trustgate", cfg.OTLPInsecure, logger)
	if err != nil {
		logger.Fatal("otel setup", zap.Error(err))
	}
	providers.SetGlobal()

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	// Event pipeline: filter, persist, fan out to OTel and optionally Kafka.
	eventRepo := eventrepo.NewPostgresRepository(pool)
	sinks := []telemetry.Emitter{otel.NewEmitter(providers.LoggerProvider)}
	kafkaEmitter := producer.NewKafkaEmitter(cfg.EventKafkaBrokersList(), cfg.EventKafkaTopic)
	if kafkaEmitter != nil {
		defer func() { _ = kafkaEmitter.Close() }()
		sinks = append(sinks, kafkaEmitter)
	}
	recorder := event.NewRecorder(eventRepo, event.NewDedupFilter(), telemetry.Multi(sinks...), logger)

	tokenRepo := tokenrepo.NewPostgresRepository(pool)
	tokenSvc := tokenservice.NewService(tokenRepo, recorder, cfg.TokenLifetime(), cfg.TokenRotationLifetime())

	var counter ratelimit.Counter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		counter = ratelimit.NewRedisCounter(rdb)
	} else {
		logger.Warn("REDIS_ADDR unset, counting rate-limit attempts in Postgres")
		counter = ratelimit.NewEventCounter(eventRepo)
	}
	limiter := ratelimit.New(raterepo.NewPostgresRepository(pool), counter, recorder, logger)

	alerts := alert.NewWriter(alertrepo.NewPostgresRepository(pool), logger)
	sessionRepo := sessionrepo.NewPostgresRepository(pool)
	sessionSvc := sessionservice.New(sessionRepo, eventRepo, recorder, alerts, logger)

	geoEngine := geopolicy.NewEngine(configstore.NewPostgresStore(pool), logger)
	resolver := lookup.NewHTTPResolver(cfg.GeoLookupURL, cfg.GeoTimeout())
	geoSvc := geoservice.New(resolver, geoEngine, recorder, alerts, cfg.GeoTimeout(), logger)

	trustSvc := trustservice.New(eventRepo, sessionRepo, recorder, logger)

	optimizer := event.NewOptimizer(eventRepo, tokenRepo, logger)
	go optimizer.Loop(ctx, cfg.CompactionInterval())

	var verifier server.BearerVerifier
	if cfg.JWTPublicKey != "" {
		key, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			logger.Fatal("jwt public key", zap.Error(err))
		}
		verifier = security.NewBearerVerifier(key, cfg.JWTIssuer, cfg.JWTAudience)
	}

	router := serverrouter.NewRouter(serverrouter.Deps{
		Tokens:              tokenSvc,
		Limiter:             limiter,
		Sessions:            sessionSvc,
		Geo:                 geoSvc,
		Trust:               trustSvc,
		Events:              recorder,
		Optimizer:           optimizer,
		HealthPinger:        pool,
		HealthPolicyChecker: geoEngine,
		Verifier:            verifier,
		Emitter:             telemetry.Multi(sinks...),
		Logger:              logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("gateway listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Give in-flight async emits time to land before the providers close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
