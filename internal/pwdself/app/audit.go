package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/pwdself/internal/pwdself/store/drivers/sqlite"
)

// openAuditStore opens the audit database file and brings its schema up to
// date.
func openAuditStore(file string) (*sqlite.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", file)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// PrintAuditTrail writes the newest audit events for username to w as a
// table. It is what IT looks at when a user asks why a reset failed.
func PrintAuditTrail(ctx context.Context, cfg Config, w io.Writer, username string, limit int) error {
	if username == "" {
		return errors.New("username is required")
	}

	db, err := openAuditStore(cfg.AuditDatabaseFile)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.AuditEvents().ListAuditEventsByUsername(ctx, username, limit)
	if err != nil {
		return fmt.Errorf("failed to list audit events: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tOUTCOME\tDETAIL\tPROVIDER\tREMOTE IP")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Action, e.Outcome, dash(e.Detail), dash(e.Provider), dash(e.RemoteIP))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
