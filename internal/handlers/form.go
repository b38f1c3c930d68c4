package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"postroom/internal/i18n"
	"postroom/internal/posts"
)

// textField reads a translatable field from a multipart form. The client
// sends either a single value ("title") or repeated locale keys
// ("title[en]", "title[ar]"). Returns nil when the field is absent.
func textField(form *multipart.Form, field string) *i18n.Text {
	localized := map[string]string{}
	prefix := field + "["
	for key, values := range form.Value {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		locale := key[len(prefix) : len(key)-1]
		if locale != "" {
			localized[locale] = values[0]
		}
	}
	if len(localized) > 0 {
		t := i18n.Localized(localized)
		return &t
	}
	if values := form.Value[field]; len(values) > 0 {
		t := i18n.Plain(values[0])
		return &t
	}
	return nil
}

// fileField collects uploads sent as either "name" or "name[]".
func fileField(form *multipart.Form, name string) []*multipart.FileHeader {
	headers := append([]*multipart.FileHeader{}, form.File[name]...)
	return append(headers, form.File[name+"[]"]...)
}

func boolField(form *multipart.Form, name string) bool {
	values := form.Value[name]
	if len(values) == 0 {
		return false
	}
	switch strings.ToLower(values[0]) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func stringList(form *multipart.Form, name string) []string {
	return append(append([]string{}, form.Value[name]...), form.Value[name+"[]"]...)
}

func uuidList(form *multipart.Form, name string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, s := range stringList(form, name) {
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid id", s)
		}
		out = append(out, id)
	}
	return out, nil
}

// openUpload opens a multipart file and sniffs its real content type from
// the leading bytes rather than trusting the client header.
func openUpload(header *multipart.FileHeader) (*posts.File, io.Closer, error) {
	f, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("sniff upload %s: %w", header.Filename, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}
	return &posts.File{
		Name:        header.Filename,
		ContentType: mtype.String(),
		Size:        header.Size,
		Content:     f,
	}, f, nil
}

type closers []io.Closer

func (c closers) closeAll() {
	for _, cl := range c {
		_ = cl.Close()
	}
}
