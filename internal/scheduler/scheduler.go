package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cragflow/internal/index"
	"cragflow/internal/models"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

// Target is the part of the engine the scheduler drives.
type Target interface {
	Sources(ctx context.Context) ([]models.Source, error)
	IngestURL(ctx context.Context, rawURL string) (index.Report, error)
	Reingest(ctx context.Context) (int, error)
}

// Scheduler periodically refreshes every registered ClickUp source.
type Scheduler struct {
	target  Target
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

func New(target Target) *Scheduler {
	return &Scheduler{
		target:  target,
		cron:    cron.New(),
		timeout: 30 * time.Minute,
	}
}

// Start seeds the configured URLs that are not registered yet and then
// schedules the refresh. An empty schedule disables the cron entry but
// still seeds.
func (s *Scheduler) Start(ctx context.Context, schedule string, urls []string) error {
	if err := s.seed(ctx, urls); err != nil {
		return err
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return fmt.Errorf("invalid reingest schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	log.Info().Str("schedule", schedule).Int("seed_urls", len(urls)).Msg("re-ingest scheduler started")
	return nil
}

// Stop waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("re-ingest scheduler stopped")
}

// RunOnce refreshes all sources. Overlapping runs are skipped.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn().Msg("re-ingest still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	added, err := s.target.Reingest(ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("scheduled re-ingest failed")
		return
	}
	log.Info().Int("added", added).Dur("duration", time.Since(start)).Msg("scheduled re-ingest completed")
}

// LastRun reports when the last refresh started and how it ended.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Scheduler) seed(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	known, err := s.target.Sources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	seen := make(map[string]struct{}, len(known))
	for _, src := range known {
		seen[src.URL] = struct{}{}
	}
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		report, err := s.target.IngestURL(ctx, raw)
		if err != nil {
			log.Error().Err(err).Str("url", raw).Msg("seed ingest failed")
			continue
		}
		log.Info().Str("url", raw).Int("added", report.Added).Msg("seeded source")
	}
	return nil
}
