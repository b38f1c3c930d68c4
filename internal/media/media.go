// Package media defines the items attached to posts and the rules for
// what each bucket accepts.
package media

import (
	"time"

	"github.com/google/uuid"
)

// Collection names a bucket of files on a post. MainImage and Video hold at
// most one item; Gallery and VideoGallery are ordered collections.
type Collection string

const (
	MainImage    Collection = "main_image"
	Gallery      Collection = "gallery"
	Video        Collection = "video"
	VideoGallery Collection = "video_gallery"
)

// IsSlot reports whether the collection holds at most one item.
func (c Collection) IsSlot() bool {
	return c == MainImage || c == Video
}

func (c Collection) Valid() bool {
	switch c {
	case MainImage, Gallery, Video, VideoGallery:
		return true
	}
	return false
}

type Item struct {
	ID         uuid.UUID  `json:"id"`
	PostID     uuid.UUID  `json:"post_id"`
	Collection Collection `json:"collection"`
	FileKey    string     `json:"file_key"`
	FileName   string     `json:"file_name"`
	MimeType   string     `json:"mime_type"`
	SizeBytes  int64      `json:"size_bytes"`
	Position   int        `json:"position"`
	CreatedAt  time.Time  `json:"created_at"`
}

const (
	MaxImageBytes = 5 << 20
	MaxVideoBytes = 50 << 20
)

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var videoMimeTypes = map[string]bool{
	"video/mp4":       true,
	"video/mpeg":      true,
	"video/quicktime": true,
	"video/x-msvideo": true,
	"video/webm":      true,
}

func AllowedImageMime(mime string) bool { return imageMimeTypes[mime] }

func AllowedVideoMime(mime string) bool { return videoMimeTypes[mime] }

// Allowed reports whether a file of the given MIME type and size may enter
// the collection.
func Allowed(c Collection, mime string, size int64) bool {
	switch c {
	case MainImage, Gallery:
		return imageMimeTypes[mime] && size <= MaxImageBytes
	case Video, VideoGallery:
		return videoMimeTypes[mime] && size <= MaxVideoBytes
	}
	return false
}
