package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// TranscriptRepository persists handoff timeline events.
type TranscriptRepository interface {
	Append(ctx context.Context, event *domain.TranscriptEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.TranscriptEvent, error)
}

type transcriptRepository struct {
	pool *pgxpool.Pool
}

// NewTranscriptRepository builds repository. A nil pool yields a nil
// repository, matching NewSessionRepository.
func NewTranscriptRepository(pool *pgxpool.Pool) TranscriptRepository {
	if pool == nil {
		return nil
	}
	return &transcriptRepository{pool: pool}
}

func (r *transcriptRepository) Append(ctx context.Context, event *domain.TranscriptEvent) error {
	const query = `
        INSERT INTO handoff_events (id, session_id, kind, author, agent_name, body, event_timestamp)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		event.ID,
		event.SessionID,
		event.Kind,
		event.Author,
		event.AgentName,
		event.Body,
		event.EventTimestamp,
	).Scan(&event.CreatedAt)
}

func (r *transcriptRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.TranscriptEvent, error) {
	const query = `
        SELECT id, session_id, kind, author, agent_name, body, event_timestamp, created_at
        FROM handoff_events WHERE session_id=$1 ORDER BY event_timestamp ASC`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TranscriptEvent
	for rows.Next() {
		var event domain.TranscriptEvent
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.Kind,
			&event.Author,
			&event.AgentName,
			&event.Body,
			&event.EventTimestamp,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
