package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/domain"
)

const auditEventColumns = `id, username, action, outcome, detail, provider, remote_ip, created_at`

type auditEventsRepo struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEvent(row rowScanner) (domain.AuditEvent, error) {
	var (
		e         domain.AuditEvent
		action    string
		outcome   string
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.Username, &action, &outcome, &e.Detail, &e.Provider, &e.RemoteIP, &createdAt); err != nil {
		return domain.AuditEvent{}, err
	}
	e.Action = domain.AuditAction(action)
	e.Outcome = domain.AuditOutcome(outcome)
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return e, nil
}

func (r *auditEventsRepo) RecordAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (`+auditEventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Username, string(e.Action), string(e.Outcome), e.Detail, e.Provider, e.RemoteIP, e.CreatedAt.UnixMilli(),
	)
	return err
}

func (r *auditEventsRepo) ListAuditEventsByUsername(ctx context.Context, username string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditEventColumns+` FROM audit_events WHERE username = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		username, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditEventsRepo) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
