package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/venue-ticketing/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/venue-ticketing/internal/adapters/redis"
	s3adapter "github.com/robertarktes/venue-ticketing/internal/adapters/s3"
	"github.com/robertarktes/venue-ticketing/internal/auth"
	"github.com/robertarktes/venue-ticketing/internal/config"
	httphandler "github.com/robertarktes/venue-ticketing/internal/http"
	"github.com/robertarktes/venue-ticketing/internal/idempotency"
	"github.com/robertarktes/venue-ticketing/internal/observability"
	"github.com/robertarktes/venue-ticketing/internal/qr"
	"github.com/robertarktes/venue-ticketing/internal/rateLimit"
	"github.com/robertarktes/venue-ticketing/internal/service"
)

const adminTokenTTL = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg, "ticketing-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	checks := map[string]httphandler.Check{"crdb": repo.Ping}

	var catalog httphandler.Catalog
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		catalog = mongoadapter.NewCatalogRepository(mongoClient.Database(cfg.MongoDatabase), logger)
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}

	var (
		rl    httphandler.Limiter
		idemp httphandler.IdempotencyStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		redisCache := redisadapter.NewCache(redisClient)
		rl = rateLimit.NewRateLimiter(redisCache)
		idemp = idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), 24*time.Hour)
		checks["redis"] = redisCache.Ping
	}

	opts := service.Options{HoldTTL: cfg.HoldTTL}
	if cfg.S3.Enabled() {
		uploader, err := s3adapter.NewUploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("failed to configure image storage: %v", err)
		}
		opts.Uploader = uploader
		checks["s3"] = uploader.HealthCheck
	}

	svc := service.New(repo, qr.NewSigner(cfg.QRSigningKey), logger, opts)
	handlers := httphandler.NewHandlers(svc, catalog, auth.NewIssuer(cfg.JWTSecret, adminTokenTTL), checks)
	r := httphandler.SetupRouter(handlers, logger, auth.NewAuthenticator(cfg.JWTSecret), rl, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("api stopped with error")
	}
	logger.Info("api exited")
}
