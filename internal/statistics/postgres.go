package statistics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS quiz_stats (
	key         TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresKV stores the aggregates as rows of the quiz_stats table.
type PostgresKV struct {
	db *pgxpool.Pool
}

func NewPostgresKV(db *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{db: db}
}

// Migrate creates the quiz_stats table when missing.
func (kv *PostgresKV) Migrate(ctx context.Context) error {
	if _, err := kv.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create quiz_stats: %w", err)
	}
	return nil
}

func (kv *PostgresKV) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	const stmt = `SELECT key, value FROM quiz_stats WHERE key = ANY($1);`

	rows, err := kv.db.Query(ctx, stmt, keys)
	if err != nil {
		return nil, err
	}

	type pair struct{ key, value string }
	pairs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (pair, error) {
		var p pair
		err := r.Scan(&p.key, &p.value)
		return p, err
	})
	if err != nil {
		return nil, err
	}

	res := make(map[string]string, len(pairs))
	for _, p := range pairs {
		res[p.key] = p.value
	}

	return res, nil
}

func (kv *PostgresKV) Set(ctx context.Context, values map[string]string) error {
	const stmt = `
INSERT INTO quiz_stats (key, value, update_time)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, update_time = EXCLUDED.update_time;`

	return pgx.BeginFunc(ctx, kv.db, func(tx pgx.Tx) error {
		for k, v := range values {
			if _, err := tx.Exec(ctx, stmt, k, v); err != nil {
				return fmt.Errorf("upsert %s: %w", k, err)
			}
		}
		return nil
	})
}
