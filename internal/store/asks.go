package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AskRecord is one answered question in the ask log.
type AskRecord struct {
	// ID is the log row id, assigned on insert.
	ID int64 `json:"id"`
	// Question is the question as asked.
	Question string `json:"question"`
	// Answer is the composed answer text.
	Answer string `json:"answer"`
	// Mode is the composition path: generative, extractive or none.
	Mode string `json:"mode"`
	// Success is false when nothing relevant was retrieved.
	Success bool `json:"success"`
	// Sources lists the cited source identifiers in rank order.
	Sources []string `json:"sources"`
	// TopScore is the similarity of the best passage, 0 when none.
	TopScore float64 `json:"top_score"`
	// Latency is the end-to-end ask duration.
	Latency time.Duration `json:"latency"`
	// CreatedAt is when the answer was produced.
	CreatedAt time.Time `json:"created_at"`
}

// RecordAsk appends r to the ask log.
func (s *SQLiteStore) RecordAsk(ctx context.Context, r AskRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Sources == nil {
		r.Sources = []string{}
	}
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return fmt.Errorf("store: record ask: encode sources: %w", err)
	}
	const q = `INSERT INTO asks (question, answer, mode, success, sources, top_score, latency_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, r.Question, r.Answer, r.Mode, r.Success, string(sources),
		r.TopScore, r.Latency.Milliseconds(), r.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("store: record ask: %w", err)
	}
	return nil
}

// RecentAsks returns the most recent n asks, newest first.
func (s *SQLiteStore) RecentAsks(ctx context.Context, n int) ([]AskRecord, error) {
	const q = `
SELECT id, question, answer, mode, success, sources, top_score, latency_ms, created_at
FROM   asks
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent asks: %w", err)
	}
	defer rows.Close()

	var out []AskRecord
	for rows.Next() {
		var (
			r       AskRecord
			sources string
			latency int64
			ts      int64
		)
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.Mode, &r.Success, &sources, &r.TopScore, &latency, &ts); err != nil {
			return nil, fmt.Errorf("store: recent asks scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
			return nil, fmt.Errorf("store: recent asks decode sources: %w", err)
		}
		r.Latency = time.Duration(latency) * time.Millisecond
		r.CreatedAt = time.Unix(ts, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent asks rows: %w", err)
	}
	return out, nil
}
