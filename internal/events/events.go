package events

import (
	"time"

	"github.com/google/uuid"
)

const TypePostCreated = "post.created"

// PostCreatedPayload carries everything the notification worker needs to
// write per-user records without loading the post again.
type PostCreatedPayload struct {
	PostID      uuid.UUID `json:"post_id"`
	Title       string    `json:"title"`
	BodyPreview string    `json:"body_preview"`
	Message     string    `json:"message"`
	ActionURL   string    `json:"action_url"`
}

type PostCreated struct {
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   PostCreatedPayload `json:"payload"`
}

func NewPostCreated(payload PostCreatedPayload) PostCreated {
	return PostCreated{
		Type:      TypePostCreated,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
