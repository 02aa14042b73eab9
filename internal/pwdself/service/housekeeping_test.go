package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/domain"
	"github.com/aussiebroadwan/pwdself/pkg/codecache"
	"github.com/aussiebroadwan/pwdself/pkg/idx"
	"github.com/aussiebroadwan/pwdself/pkg/slogx"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	record := func(username string, at time.Time) string {
		id := idx.New().String()
		require.NoError(t, st.AuditEvents().RecordAuditEvent(ctx, domain.AuditEvent{
			ID:        id,
			Username:  username,
			Action:    domain.ActionUnlockAccount,
			Outcome:   domain.OutcomeSuccess,
			CreatedAt: at,
		}))
		return id
	}
	record("alice", now.Add(-91*24*time.Hour))
	keptID := record("alice", now.Add(-89*24*time.Hour))

	hk := NewHousekeepingService(st, codecache.NewMemory(), slogx.Discard(), 0, 0)
	hk.now = func() time.Time { return now }
	require.Equal(t, time.Minute, hk.Interval)
	require.Equal(t, DefaultAuditRetention, hk.Retention)

	hk.cleanup()

	events, err := st.AuditEvents().ListAuditEventsByUsername(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, keptID, events[0].ID)
}

func TestHousekeepingRunsCacheCleaner(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cache := codecache.NewMemory()
	hk := NewHousekeepingService(st, cache, slogx.Discard(), 10*time.Millisecond, time.Hour)

	require.NoError(t, cache.Set(ctx, "alice", "fp", 20*time.Millisecond))
	require.NoError(t, cache.Set(ctx, "bob", "fp", time.Hour))

	hk.Start()
	require.Eventually(t, func() bool { return cache.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		hk.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("housekeeping did not stop")
	}
}

func TestHousekeepingWithoutCache(t *testing.T) {
	st := newTestStore(t)
	hk := NewHousekeepingService(st, nil, slogx.Discard(), 10*time.Millisecond, time.Hour)

	hk.Start()
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		hk.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("housekeeping did not stop")
	}
}
