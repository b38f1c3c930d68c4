package notifications

import (
	"context"

	"github.com/google/uuid"

	"postroom/internal/events"
)

// Repository persists notification records. All read and write operations
// are scoped to a user id so one user can never touch another's records.
type Repository interface {
	// FanOut writes one notification per known user for a created post and
	// returns how many records were written.
	FanOut(ctx context.Context, payload events.PostCreatedPayload) (int64, error)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, error)
	CountForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) (int64, error)
	StatsForUser(ctx context.Context, userID uuid.UUID) (*Stats, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
