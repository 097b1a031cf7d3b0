package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGRepository persists the audit trail in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) conn(_ context.Context) queryable {
	return r.pool
}

// EnsureSchema creates the audit table if it does not exist.
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS crisis_audit (
			id         UUID PRIMARY KEY,
			action     TEXT NOT NULL,
			subject_id TEXT NOT NULL DEFAULT '',
			event_id   TEXT NOT NULL DEFAULT '',
			actor      TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '',
			at         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS crisis_audit_at_idx ON crisis_audit (at DESC);
		CREATE INDEX IF NOT EXISTS crisis_audit_action_idx ON crisis_audit (action);`
	if _, err := r.conn(ctx).Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

const auditCols = `id, action, subject_id, event_id, actor, detail, at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Action, &e.SubjectID, &e.EventID, &e.Actor, &e.Detail, &e.At)
	return e, err
}

func (r *PGRepository) Append(ctx context.Context, e Entry) error {
	q := fmt.Sprintf(`INSERT INTO crisis_audit (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)`, auditCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		e.ID, e.Action, e.SubjectID, e.EventID, e.Actor, e.Detail, e.At)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *PGRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT %s FROM crisis_audit ORDER BY at DESC LIMIT $1`, auditCols)
	rows, err := r.conn(ctx).Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *PGRepository) CountByAction(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT action, COUNT(*) FROM crisis_audit GROUP BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		counts[action] = n
	}
	return counts, rows.Err()
}
