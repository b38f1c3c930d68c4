package posts

import (
	"context"

	"github.com/google/uuid"

	"postroom/internal/i18n"
	"postroom/internal/media"
)

// UpdateParams describes one atomic mutation of a post. Text fields are
// replaced when non-nil; nothing is merged. Slot fields replace or clear the
// single item of their bucket; collection fields replace, append to, or
// remove from theirs.
type UpdateParams struct {
	Title *i18n.Text
	Body  *i18n.Text

	SetMainImage *media.Item
	SetVideo     *media.Item
	ClearVideo   bool

	ReplaceGallery   bool
	AddGallery       []*media.Item
	RemoveGalleryIDs []uuid.UUID

	ReplaceVideoGallery   bool
	AddVideoGallery       []*media.Item
	RemoveVideoGalleryIDs []uuid.UUID
}

// Repository persists posts and their media items. Every method that
// mutates more than one row runs inside a single transaction; callers get
// either the full change or none of it. Methods returning removed file keys
// report the storage objects orphaned by the committed change so the caller
// can delete them after the fact.
type Repository interface {
	Create(ctx context.Context, post *Post, items []*media.Item) error
	Get(ctx context.Context, id uuid.UUID) (*Post, error)
	List(ctx context.Context, params ListParams) ([]*Post, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Post, []string, error)
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
	DeleteItem(ctx context.Context, postID, itemID uuid.UUID) (*media.Item, error)
}
