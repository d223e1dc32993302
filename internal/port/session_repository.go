package port

import (
	"context"

	"github.com/google/uuid"

	"invoicesplit/internal/domain"
)

// SessionRepository defines the contract for split session storage.
// Implementations return copies; mutating a returned session has no effect until Update.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
}
