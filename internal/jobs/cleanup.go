package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finbridge/plaid-link-go/internal/config"
	"github.com/finbridge/plaid-link-go/internal/repository"
)

// CleanupJob periodically fails link sessions that were abandoned before
// reaching a terminal state and purges soft-deleted items past the
// retention window.
type CleanupJob struct {
	sessionRepo repository.LinkSessionRepository
	itemRepo    repository.ItemRepository
	sessionTTL  time.Duration
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(
	sessionRepo repository.LinkSessionRepository,
	itemRepo repository.ItemRepository,
	sessionTTL time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		itemRepo:    itemRepo,
		sessionTTL:  sessionTTL,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "stale link sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.ExpireStale(ctx, time.Now().Add(-j.sessionTTL))
	})
	j.runCleanup(ctx, "purged items", func(ctx context.Context) (int64, error) {
		return j.itemRepo.PurgeDeletedBefore(ctx, time.Now().Add(-config.DeletedItemRetention))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
