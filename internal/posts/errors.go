package posts

import "errors"

var (
	ErrNotFound         = errors.New("post not found")
	ErrMediaNotFound    = errors.New("media not found")
	ErrUploadNotFound   = errors.New("uploaded file not found")
	ErrInvalidMediaType = errors.New("invalid media type")
)
