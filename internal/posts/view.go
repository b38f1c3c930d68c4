package posts

import (
	"time"

	"github.com/google/uuid"

	"postroom/internal/media"
)

// URLResolver turns a stored file key into a public URL.
type URLResolver interface {
	URL(key string) string
}

type ImageView struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	ThumbURL string    `json:"thumb_url"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
}

type VideoView struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type"`
}

type View struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Body         string      `json:"body"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	MainImage    *ImageView  `json:"main_image"`
	Gallery      []ImageView `json:"gallery"`
	Video        *VideoView  `json:"video"`
	VideoGallery []VideoView `json:"video_gallery"`
}

// NewView flattens a post for the API: translatable fields resolve to the
// request locale and media items carry public URLs. Gallery slices are
// never nil so they serialize as [] rather than null.
func NewView(p *Post, locale string, urls URLResolver) *View {
	v := &View{
		ID:           p.ID,
		Title:        p.Title.Resolve(locale),
		Body:         p.Body.Resolve(locale),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Gallery:      []ImageView{},
		VideoGallery: []VideoView{},
	}
	if it := p.FirstIn(media.MainImage); it != nil {
		iv := imageView(it, urls)
		v.MainImage = &iv
	}
	for _, it := range p.ItemsIn(media.Gallery) {
		v.Gallery = append(v.Gallery, imageView(it, urls))
	}
	if it := p.FirstIn(media.Video); it != nil {
		vv := videoView(it, urls)
		v.Video = &vv
	}
	for _, it := range p.ItemsIn(media.VideoGallery) {
		v.VideoGallery = append(v.VideoGallery, videoView(it, urls))
	}
	return v
}

func NewViews(list []*Post, locale string, urls URLResolver) []*View {
	views := make([]*View, 0, len(list))
	for _, p := range list {
		views = append(views, NewView(p, locale, urls))
	}
	return views
}

func imageView(it *media.Item, urls URLResolver) ImageView {
	return ImageView{
		ID:       it.ID,
		URL:      urls.URL(it.FileKey),
		ThumbURL: urls.URL("thumb/" + it.FileKey),
		Name:     it.FileName,
		Size:     it.SizeBytes,
	}
}

func videoView(it *media.Item, urls URLResolver) VideoView {
	return VideoView{
		ID:       it.ID,
		URL:      urls.URL(it.FileKey),
		Name:     it.FileName,
		Size:     it.SizeBytes,
		MimeType: it.MimeType,
	}
}
