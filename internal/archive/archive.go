package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/decoylabs/grift/internal/report"
)

// Archive keeps a durable copy of delivered intelligence reports. Live
// session state stays in memory; only the final payloads are persisted.
type Archive struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Archive{pool: pool}, nil
}

func (a *Archive) Close() {
	a.pool.Close()
}

// EnsureSchema creates the reports table when missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
			id            UUID PRIMARY KEY,
			session_id    TEXT NOT NULL,
			scam_detected BOOLEAN NOT NULL,
			messages      INTEGER NOT NULL,
			delivered     BOOLEAN NOT NULL,
			payload       JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create reports table: %w", err)
	}
	return nil
}

// WriteReport stores a report payload and whether delivery succeeded.
func (a *Archive) WriteReport(ctx context.Context, p report.Payload, delivered bool) (uuid.UUID, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.New()
	_, err = a.pool.Exec(ctx, `
		INSERT INTO reports (id, session_id, scam_detected, messages, delivered, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, p.SessionID, p.ScamDetected, p.TotalMessagesExchanged, delivered, payload,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// Record is one archived report row.
type Record struct {
	ID           uuid.UUID       `json:"id"`
	SessionID    string          `json:"sessionId"`
	ScamDetected bool            `json:"scamDetected"`
	Messages     int             `json:"messages"`
	Delivered    bool            `json:"delivered"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Recent lists the newest archived reports, up to limit.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, session_id, scam_detected, messages, delivered, payload, created_at
		FROM reports
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ScamDetected, &r.Messages, &r.Delivered, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
