package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// SessionRepository persists handoff session audit rows.
type SessionRepository interface {
	Create(ctx context.Context, record *domain.SessionRecord) error
	GetByConversation(ctx context.Context, conversationID string) (*domain.SessionRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.HandoffStatus, endedAt *time.Time) error
	SetAgentName(ctx context.Context, id string, agentName string) error
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository builds repository. A nil pool yields a nil
// repository: the service runs without persistence when no DSN is set.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	if pool == nil {
		return nil
	}
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	const query = `
        INSERT INTO handoff_sessions (id, org_id, agent_id, provider, conversation_id, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING started_at`
	return r.pool.QueryRow(ctx, query,
		record.ID,
		record.OrgID,
		record.AgentID,
		record.Provider,
		record.ConversationID,
		record.Status,
	).Scan(&record.StartedAt)
}

func (r *sessionRepository) GetByConversation(ctx context.Context, conversationID string) (*domain.SessionRecord, error) {
	const query = `
        SELECT id, org_id, agent_id, provider, conversation_id, status, agent_name, started_at, ended_at
        FROM handoff_sessions WHERE conversation_id=$1`
	var record domain.SessionRecord
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(
		&record.ID,
		&record.OrgID,
		&record.AgentID,
		&record.Provider,
		&record.ConversationID,
		&record.Status,
		&record.AgentName,
		&record.StartedAt,
		&record.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *sessionRepository) UpdateStatus(ctx context.Context, id string, status domain.HandoffStatus, endedAt *time.Time) error {
	const query = `UPDATE handoff_sessions SET status=$2, ended_at=$3 WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id, status, endedAt)
	return err
}

func (r *sessionRepository) SetAgentName(ctx context.Context, id string, agentName string) error {
	const query = `UPDATE handoff_sessions SET agent_name=$2 WHERE id=$1 AND (agent_name IS NULL OR agent_name='')`
	_, err := r.pool.Exec(ctx, query, id, agentName)
	return err
}
