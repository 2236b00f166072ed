package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rishabhdvn/Secure-Collab/internal/app"
)

type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects to postgres and returns a pool wrapper
func NewPostgres(ctx context.Context, cfg app.Config, log *slog.Logger) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.PGURL)
	if err != nil {
		return nil, fmt.Errorf("parse pg url: %w", err)
	}
	pcfg.MaxConns = int32(cfg.PGMaxConn)
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// RecordRun inserts one finished job. Fire-and-forget from the caller's
// point of view; a failed insert is logged and swallowed.
func (p *Postgres) RecordRun(ctx context.Context, r Run) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO runs (job_id, connection_id, username, language, status, exit_code, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.JobID, r.ConnectionID, r.Username, r.Language, r.Status, r.ExitCode, r.DurationMS)
	if err != nil {
		p.log.Warn("run.record", "job", r.JobID, "err", err)
		return err
	}
	return nil
}

// ListRuns returns the most recent runs, newest first
func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, job_id, connection_id, username, language, status, exit_code, duration_ms, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.JobID, &r.ConnectionID, &r.Username, &r.Language, &r.Status, &r.ExitCode, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
