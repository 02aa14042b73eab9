package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/domain"
	"github.com/aussiebroadwan/pwdself/internal/pwdself/store/drivers/sqlite"
	"github.com/aussiebroadwan/pwdself/pkg/idx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestRecordAuditEventRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).AuditEvents()

	at := time.Date(2025, 2, 3, 4, 5, 6, 7_000_000, time.UTC)
	e := domain.AuditEvent{
		ID:        idx.NewAt(at).String(),
		Username:  "alice",
		Action:    domain.ActionResetPassword,
		Outcome:   domain.OutcomeSuccess,
		Provider:  "wework",
		RemoteIP:  "10.1.2.3",
		CreatedAt: at,
	}
	require.NoError(t, repo.RecordAuditEvent(ctx, e))

	got, err := repo.ListAuditEventsByUsername(ctx, "alice", 1)
	require.NoError(t, err)
	require.Equal(t, []domain.AuditEvent{e}, got)

	none, err := repo.ListAuditEventsByUsername(ctx, "bob", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRecordAuditEventRejectsUnknownAction(t *testing.T) {
	repo := newTestStore(t).AuditEvents()

	err := repo.RecordAuditEvent(context.Background(), domain.AuditEvent{
		ID:       idx.New().String(),
		Username: "alice",
		Action:   "delete_account",
		Outcome:  domain.OutcomeSuccess,
	})
	require.Error(t, err)
}

func TestListAndPrune(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).AuditEvents()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, user := range []string{"alice", "bob", "alice", "alice"} {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, repo.RecordAuditEvent(ctx, domain.AuditEvent{
			ID:        idx.NewAt(at).String(),
			Username:  user,
			Action:    domain.ActionUnlockAccount,
			Outcome:   domain.OutcomeFailure,
			Detail:    "locked",
			CreatedAt: at,
		}))
	}

	events, err := repo.ListAuditEventsByUsername(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.True(t, events[0].CreatedAt.After(events[1].CreatedAt), "newest first")

	limited, err := repo.ListAuditEventsByUsername(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	n, err := repo.DeleteAuditEventsBefore(ctx, base.Add(36*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	events, err = repo.ListAuditEventsByUsername(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
}
