package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/venue-ticketing/internal/config"
	"github.com/robertarktes/venue-ticketing/internal/observability"
	"github.com/robertarktes/venue-ticketing/internal/qr"
	"github.com/robertarktes/venue-ticketing/internal/service"
)

const batchSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "ticketing-expiry-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	svc := service.New(repo, qr.NewSigner(cfg.QRSigningKey), logger, service.Options{HoldTTL: cfg.HoldTTL})
	NewExpiryWorker(svc, logger).Run(ctx, cfg.ExpiryInterval)
	logger.Info("expiry worker exited")
}

type ExpiryWorker struct {
	svc    *service.Service
	logger observability.Logger
}

func NewExpiryWorker(svc *service.Service, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{svc: svc, logger: logger}
}

// Run releases expired holds every interval until ctx is done. A full batch
// is followed immediately by another so a backlog drains without waiting.
func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for {
				n, err := w.svc.ExpireHolds(ctx, now.UTC(), batchSize)
				if err != nil {
					w.logger.WithError(err).Error("failed to expire holds")
					break
				}
				if n > 0 {
					w.logger.WithField("holds", n).Info("expired holds released")
				}
				if n < batchSize {
					break
				}
			}
		}
	}
}
