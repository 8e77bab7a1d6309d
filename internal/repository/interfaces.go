package repository

import (
	"context"
	"time"

	"github.com/arcadenet/netplay/internal/domain"
	"github.com/google/uuid"
)

type SessionRepository interface {
	// CreateWithHost persists the session and its host participant in one
	// transaction. The host's SessionID is filled in from the session.
	CreateWithHost(ctx context.Context, session *domain.Session, host *domain.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	GetByCode(ctx context.Context, code string) (*domain.Session, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, session *domain.Session) error
	// Delete removes the session row; participant rows go with it via the
	// cascade constraint.
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUserID(ctx context.Context, userID string) ([]*domain.Session, error)
	FindStale(ctx context.Context, ref time.Time) ([]*domain.Session, error)
	ExpireMany(ctx context.Context, ids []uuid.UUID, ref time.Time) (int64, error)
}

type ParticipantRepository interface {
	Create(ctx context.Context, participant *domain.Participant) error
	GetBySessionIDAndUserID(ctx context.Context, sessionID uuid.UUID, userID string) (*domain.Participant, error)
	Update(ctx context.Context, participant *domain.Participant) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repositories struct {
	Session     SessionRepository
	Participant ParticipantRepository
}
