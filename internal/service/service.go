// Package service runs the ticketing operations: each one authorizes the
// actor, validates input and applies its writes in a single transaction
// together with the outbox messages describing them.
package service

import (
	"context"
	"io"
	"time"

	"github.com/robertarktes/venue-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/venue-ticketing/internal/observability"
	"github.com/robertarktes/venue-ticketing/internal/qr"
)

// ImageUploader stores an image blob and returns its durable URL.
type ImageUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (string, error)
}

type Options struct {
	HoldTTL  time.Duration
	Uploader ImageUploader
	Clock    func() time.Time
}

type Service struct {
	repo     *crdb.Repository
	signer   *qr.Signer
	uploader ImageUploader
	logger   observability.Logger
	holdTTL  time.Duration
	now      func() time.Time
}

func New(repo *crdb.Repository, signer *qr.Signer, logger observability.Logger, opts Options) *Service {
	s := &Service{
		repo:     repo,
		signer:   signer,
		uploader: opts.Uploader,
		logger:   logger,
		holdTTL:  opts.HoldTTL,
		now:      opts.Clock,
	}
	if s.holdTTL <= 0 {
		s.holdTTL = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) log(ctx context.Context) observability.Logger {
	return observability.LoggerFromContext(ctx, s.logger)
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
