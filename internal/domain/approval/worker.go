package approval

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/allowly/allowly-api/internal/domain/limits"
	"github.com/allowly/allowly-api/internal/pkg/clock"
)

const sweepLockKey = "governance:sweep:lock"

// Sweeper handles background expiration of overdue requests and
// retention cleanup of elapsed limit windows.
type Sweeper struct {
	svc       *Service
	trackers  *limits.Repository
	redis     *redis.Client
	clock     clock.Clock
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewSweeper creates the sweeper. redisClient may be nil; when set, a
// best-effort lock keeps multiple instances from sweeping at once.
func NewSweeper(svc *Service, trackers *limits.Repository, redisClient *redis.Client, clk clock.Clock, interval, retention time.Duration) *Sweeper {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		svc:       svc,
		trackers:  trackers,
		redis:     redisClient,
		clock:     clk,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background sweeper
func (s *Sweeper) Start() {
	log.Info().Dur("interval", s.interval).Msg("Starting expiration sweeper...")
	go s.loop()
}

// Stop gracefully stops the background sweeper
func (s *Sweeper) Stop() {
	log.Info().Msg("Stopping expiration sweeper...")
	close(s.stopCh)
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.Sweep()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one pass: expire overdue requests, then drop trackers
// past the retention horizon. Exported so tests and the standalone
// worker binary can drive ticks explicitly.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !s.acquireLock(ctx) {
		log.Debug().Msg("Sweep lock held elsewhere, skipping pass")
		return
	}

	expired, err := s.svc.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep expired requests")
	} else if expired > 0 {
		log.Info().Int("count", expired).Msg("Expired overdue spending requests")
	}

	if s.retention > 0 {
		cutoff := s.clock.Now().Add(-s.retention)
		removed, err := s.trackers.DeleteBefore(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to clean up elapsed limit windows")
		} else if removed > 0 {
			log.Info().Int64("count", removed).Msg("Removed elapsed limit windows")
		}
	}
}

func (s *Sweeper) acquireLock(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, sweepLockKey, "1", s.interval/2).Result()
	if err != nil {
		// Redis being down should not stop expirations.
		log.Warn().Err(err).Msg("Sweep lock check failed, proceeding")
		return true
	}
	return ok
}
