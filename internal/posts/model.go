package posts

import (
	"io"
	"time"

	"github.com/google/uuid"

	"postroom/internal/i18n"
	"postroom/internal/media"
)

type Post struct {
	ID        uuid.UUID     `json:"id"`
	Title     i18n.Text     `json:"title"`
	Body      i18n.Text     `json:"body"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Items     []*media.Item `json:"-"`
}

// ItemsIn returns the post's items in the given collection, in position order.
// Items is kept sorted by the repository, so no re-sorting happens here.
func (p *Post) ItemsIn(c media.Collection) []*media.Item {
	var out []*media.Item
	for _, it := range p.Items {
		if it.Collection == c {
			out = append(out, it)
		}
	}
	return out
}

// FirstIn returns the single item of a slot collection, or nil.
func (p *Post) FirstIn(c media.Collection) *media.Item {
	for _, it := range p.Items {
		if it.Collection == c {
			return it
		}
	}
	return nil
}

// File is an incoming upload, already validated by the HTTP layer.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ChangeSet is the set of media mutations requested by one create or
// update call. Zero value means "touch nothing".
type ChangeSet struct {
	MainImage    *File
	Gallery      []*File
	Video        *File
	VideoGallery []*File

	// TempVideos are finalized chunked-upload filenames to attach to the
	// video gallery. Names that no longer resolve are skipped.
	TempVideos []string

	ReplaceGallery        bool
	DeleteGalleryIDs      []uuid.UUID
	DeleteVideo           bool
	ReplaceVideoGallery   bool
	DeleteVideoGalleryIDs []uuid.UUID
}

type ListParams struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Posts      []*Post `json:"data"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
}
