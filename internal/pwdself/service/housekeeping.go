package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/store"
)

// DefaultAuditRetention keeps audit events for 90 days.
const DefaultAuditRetention = 90 * 24 * time.Hour

// CacheCleaner is an in-process cache with its own expiry loop. Redis
// expires keys on its own and needs none.
type CacheCleaner interface {
	Start()
	Stop()
	Len() int
}

// HousekeepingService periodically prunes old audit events. It also owns
// the lifetime of the in-process cache cleaner.
type HousekeepingService struct {
	Store     store.Store
	Cache     CacheCleaner // optional
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the worker. A non-positive interval
// defaults to 1 minute and a non-positive retention to DefaultAuditRetention.
func NewHousekeepingService(st store.Store, cache CacheCleaner, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}
	if retention <= 0 {
		retention = DefaultAuditRetention
	}

	return &HousekeepingService{
		Store:     st,
		Cache:     cache,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background until Stop is called.
func (s *HousekeepingService) Start() {
	if s.Cache != nil {
		s.Cache.Start()
	}
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "audit_retention", s.Retention)
}

// Stop shuts the worker down and waits for an in-progress pass to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	if s.Cache != nil {
		s.Cache.Stop()
	}
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each task independently; one failing does not stop the rest.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()

	if s.Cache != nil {
		s.Logger.Debug("handoff cache", "entries", s.Cache.Len())
	}

	if s.Store != nil {
		cutoff := s.now().UTC().Add(-s.Retention)
		n, err := s.Store.AuditEvents().DeleteAuditEventsBefore(ctx, cutoff)
		if err != nil {
			s.Logger.Error("failed to prune audit events", "error", err)
		} else if n > 0 {
			s.Logger.Info("pruned audit events", "count", n, "cutoff", cutoff)
		}
	}
}
