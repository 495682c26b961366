package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meditrack/adherence-api/internal/model"
)

// ErrNotFound is returned when a requested row does not exist or is not
// visible to the requesting user
var ErrNotFound = errors.New("not found")

// UserRepository manages user accounts
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

// MedicationRepository manages medication records. Every read and write is
// scoped to the owning user; a mismatched owner surfaces as ErrNotFound.
type MedicationRepository interface {
	Create(ctx context.Context, med *model.Medication) error
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Medication, error)
	Update(ctx context.Context, med *model.Medication) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error)
	ListActive(ctx context.Context) ([]*model.Medication, error)
}

// OutboxRepository manages the transactional outbox
type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status string, errorMessage *string) error
}
