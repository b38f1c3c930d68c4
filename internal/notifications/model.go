// Package notifications stores per-user "new post" records and the fan-out
// that creates them.
package notifications

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	PostID      uuid.UUID  `json:"post_id"`
	Title       string     `json:"title"`
	BodyPreview string     `json:"body"`
	Message     string     `json:"message"`
	ActionURL   string     `json:"action_url"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Stats struct {
	Total  int64 `json:"total_notifications"`
	Unread int64 `json:"unread_count"`
	Read   int64 `json:"read_count"`
}

type ListResult struct {
	Notifications []*Notification `json:"data"`
	Total         int64           `json:"total"`
	Page          int             `json:"page"`
	PerPage       int             `json:"per_page"`
	TotalPages    int             `json:"total_pages"`
}

const previewRunes = 100

// BodyPreview truncates a post body to its first 100 characters and marks
// the cut with an ellipsis.
func BodyPreview(body string) string {
	runes := []rune(body)
	if len(runes) > previewRunes {
		runes = runes[:previewRunes]
	}
	return string(runes) + "..."
}

// Message is the human-readable line shown for a new-post notification.
func Message(title string) string {
	return "A new post has been created: " + title
}

// ActionURL points a notification at its post.
func ActionURL(postID uuid.UUID) string {
	return "/posts/" + postID.String()
}
