package retrieval

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Refresher periodically re-checks the configured pages and re-ingests the
// ones whose content changed. It runs independently of request handling.
type Refresher struct {
	ingestor *Ingestor
	urls     []string
	interval time.Duration
}

// NewRefresher builds a refresher over the ingestor's website URLs.
func NewRefresher(ingestor *Ingestor, urls []string, interval time.Duration) *Refresher {
	return &Refresher{ingestor: ingestor, urls: urls, interval: interval}
}

// Run blocks until the context is cancelled, checking for updates once per
// interval. Intended to run in its own goroutine.
func (r *Refresher) Run(ctx context.Context) {
	if r.interval <= 0 || len(r.urls) == 0 {
		log.Info().Msg("content refresh disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Int("urls", len(r.urls)).Msg("content refresh loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("content refresh loop stopped")
			return
		case <-ticker.C:
			refreshed, err := r.ingestor.RefreshChanged(ctx, r.urls)
			if err != nil {
				log.Error().Err(err).Msg("content refresh failed")
				continue
			}
			if len(refreshed) > 0 {
				log.Info().Strs("urls", refreshed).Msg("content refreshed")
			}
		}
	}
}
