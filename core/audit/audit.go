// Package audit is the append-only AuditLog writer: never updated, never
// deleted, written on every Transaction state change and every key
// rotation attempt.
package audit

import (
	"context"
	"database/sql"
	"log"

	"github.com/ledgerwire/shared/utils"
)

// Entry is one audit record. OldValue/NewValue are pre-serialized,
// optional JSON snapshots left to the caller.
type Entry struct {
	UserID     *string
	Action     string
	EntityType string
	EntityID   *string
	OldValue   *string
	NewValue   *string
	RequestCtx *string
}

// Logger writes audit entries. Failures are logged, never propagated —
// an audit write must never fail the operation it is documenting.
type Logger interface {
	Log(ctx context.Context, e Entry)
}

// PostgresLogger is the production Logger, plain database/sql against the
// audit_logs table the same way the rest of this codebase's repositories
// use database/sql directly (no ORM).
type PostgresLogger struct {
	db *sql.DB
}

func NewPostgresLogger(db *sql.DB) *PostgresLogger {
	return &PostgresLogger{db: db}
}

func (l *PostgresLogger) Log(ctx context.Context, e Entry) {
	query := `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, old_value, new_value, request_context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`
	_, err := l.db.ExecContext(ctx, query,
		utils.GenerateID("aud"), e.UserID, e.Action, e.EntityType, e.EntityID, e.OldValue, e.NewValue, e.RequestCtx,
	)
	if err != nil {
		log.Printf("audit: failed to write entry action=%s entityType=%s: %v", e.Action, e.EntityType, err)
	}
}
