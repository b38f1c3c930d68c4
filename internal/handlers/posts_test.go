package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"postroom/internal/events"
	"postroom/internal/i18n"
	"postroom/internal/media"
	"postroom/internal/middleware"
	"postroom/internal/posts"
	"postroom/internal/uploads"
)

// pngBytes is a valid PNG signature so MIME sniffing sees image/png.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

type stubRepo struct {
	create     func(ctx context.Context, post *posts.Post, items []*media.Item) error
	get        func(ctx context.Context, id uuid.UUID) (*posts.Post, error)
	list       func(ctx context.Context, params posts.ListParams) ([]*posts.Post, error)
	count      func(ctx context.Context) (int64, error)
	update     func(ctx context.Context, id uuid.UUID, params posts.UpdateParams) (*posts.Post, []string, error)
	del        func(ctx context.Context, id uuid.UUID) ([]string, error)
	deleteItem func(ctx context.Context, postID, itemID uuid.UUID) (*media.Item, error)
}

func (s *stubRepo) Create(ctx context.Context, post *posts.Post, items []*media.Item) error {
	if s.create != nil {
		return s.create(ctx, post, items)
	}
	post.Items = items
	return nil
}

func (s *stubRepo) Get(ctx context.Context, id uuid.UUID) (*posts.Post, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &posts.Post{ID: id, Title: i18n.Plain("t"), Body: i18n.Plain("b")}, nil
}

func (s *stubRepo) List(ctx context.Context, params posts.ListParams) ([]*posts.Post, error) {
	if s.list != nil {
		return s.list(ctx, params)
	}
	return nil, nil
}

func (s *stubRepo) Count(ctx context.Context) (int64, error) {
	if s.count != nil {
		return s.count(ctx)
	}
	return 0, nil
}

func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, params posts.UpdateParams) (*posts.Post, []string, error) {
	if s.update != nil {
		return s.update(ctx, id, params)
	}
	return &posts.Post{ID: id, Title: i18n.Plain("t"), Body: i18n.Plain("b")}, nil, nil
}

func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil, nil
}

func (s *stubRepo) DeleteItem(ctx context.Context, postID, itemID uuid.UUID) (*media.Item, error) {
	if s.deleteItem != nil {
		return s.deleteItem(ctx, postID, itemID)
	}
	return &media.Item{FileKey: "k"}, nil
}

type stubStorage struct {
	uploaded []string
	deleted  []string
}

func (s *stubStorage) Upload(_ context.Context, key string, body io.Reader, _ string) error {
	io.Copy(io.Discard, body)
	s.uploaded = append(s.uploaded, key)
	return nil
}

func (s *stubStorage) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStorage) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *stubStorage) DeletePrefix(context.Context, string) error { return nil }
func (s *stubStorage) Exists(context.Context, string) (bool, error) {
	return true, nil
}
func (s *stubStorage) URL(key string) string { return "https://cdn.test/" + key }

type stubFinalized struct {
	resolve  func(filename string) (*uploads.Finalized, error)
	released []string
}

func (s *stubFinalized) Resolve(filename string) (*uploads.Finalized, error) {
	if s.resolve != nil {
		return s.resolve(filename)
	}
	return nil, uploads.ErrNotFound
}

func (s *stubFinalized) Release(filename string) error {
	s.released = append(s.released, filename)
	return nil
}

type testEnvelope struct {
	Success     bool              `json:"success"`
	Data        json.RawMessage   `json:"data"`
	Message     string            `json:"message"`
	Error       string            `json:"error"`
	Errors      map[string]string `json:"errors"`
	UnreadCount *int64            `json:"unread_count"`
}

type fixture struct {
	repo      *stubRepo
	store     *stubStorage
	finalized *stubFinalized
	mux       http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      &stubRepo{},
		store:     &stubStorage{},
		finalized: &stubFinalized{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := posts.NewService(f.repo, f.store, f.finalized, events.NoopPublisher{}, logger)

	recv := newTestUploadReceiver(t)
	ph := NewPostsHandler(svc, f.store, logger)
	uh := NewUploadsHandler(recv, svc, f.store, logger)
	nh := NewNotificationsHandler(&memNotifRepo{}, logger)
	f.mux = middleware.Language(Routes(ph, uh, nh, func(w http.ResponseWriter, r *http.Request) {}))
	return f
}

func doRequest(t *testing.T, mux http.Handler, req *http.Request) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var env testEnvelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

type formFile struct {
	field   string
	name    string
	content []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	for _, file := range files {
		part, err := w.CreateFormFile(file.field, file.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestPostsHandler_Create(t *testing.T) {
	t.Run("plain text and media", func(t *testing.T) {
		f := newFixture(t)
		var created *posts.Post
		var items []*media.Item
		f.repo.create = func(_ context.Context, post *posts.Post, its []*media.Item) error {
			created, items = post, its
			post.Items = its
			return nil
		}

		req := multipartRequest(t, http.MethodPost, "/posts",
			map[string]string{"title": "Hello", "body": "World"},
			[]formFile{
				{"main_image", "cover.png", pngBytes},
				{"gallery[]", "one.png", pngBytes},
				{"gallery[]", "two.png", pngBytes},
			})
		rec, env := doRequest(t, f.mux, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if !env.Success || env.Message != "Post created successfully" {
			t.Errorf("envelope = %+v", env)
		}
		if created == nil || created.Title.Resolve("en") != "Hello" {
			t.Fatalf("created = %+v", created)
		}
		if len(items) != 3 {
			t.Errorf("stored %d items", len(items))
		}
		if len(f.store.uploaded) != 3 {
			t.Errorf("uploaded %d files", len(f.store.uploaded))
		}

		var view posts.View
		if err := json.Unmarshal(env.Data, &view); err != nil {
			t.Fatal(err)
		}
		if view.MainImage == nil || len(view.Gallery) != 2 {
			t.Errorf("view = %+v", view)
		}
	})

	t.Run("localized title", func(t *testing.T) {
		f := newFixture(t)
		var created *posts.Post
		f.repo.create = func(_ context.Context, post *posts.Post, _ []*media.Item) error {
			created = post
			return nil
		}

		req := multipartRequest(t, http.MethodPost, "/posts",
			map[string]string{"title[en]": "Hello", "title[ar]": "مرحبا", "body": "b"}, nil)
		req.Header.Set("Accept-Language", "ar")
		rec, env := doRequest(t, f.mux, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if created.Title.Resolve("ar") != "مرحبا" {
			t.Errorf("title = %+v", created.Title)
		}
		var view posts.View
		if err := json.Unmarshal(env.Data, &view); err != nil {
			t.Fatal(err)
		}
		if view.Title != "مرحبا" {
			t.Errorf("view title = %q, want the ar value", view.Title)
		}
	})

	t.Run("missing title and body", func(t *testing.T) {
		f := newFixture(t)
		req := multipartRequest(t, http.MethodPost, "/posts", nil, nil)
		rec, env := doRequest(t, f.mux, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
		if env.Errors["title"] == "" || env.Errors["body"] == "" {
			t.Errorf("errors = %v", env.Errors)
		}
	})

	t.Run("non-image rejected for image bucket", func(t *testing.T) {
		f := newFixture(t)
		req := multipartRequest(t, http.MethodPost, "/posts",
			map[string]string{"title": "t", "body": "b"},
			[]formFile{{"main_image", "payload.png", []byte("definitely not a png")}})
		rec, env := doRequest(t, f.mux, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if env.Errors["main_image"] == "" {
			t.Errorf("errors = %v", env.Errors)
		}
		if len(f.store.uploaded) != 0 {
			t.Error("rejected file reached storage")
		}
	})

	t.Run("bad deletion id rejected", func(t *testing.T) {
		f := newFixture(t)
		req := multipartRequest(t, http.MethodPost, "/posts",
			map[string]string{"title": "t", "body": "b", "delete_gallery_ids[]": "not-a-uuid"}, nil)
		rec, env := doRequest(t, f.mux, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
		if env.Errors["delete_gallery_ids"] == "" {
			t.Errorf("errors = %v", env.Errors)
		}
	})
}

func TestPostsHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.repo.get = func(_ context.Context, got uuid.UUID) (*posts.Post, error) {
			return &posts.Post{ID: got, Title: i18n.Plain("Hello"), Body: i18n.Plain("World")}, nil
		}

		rec, env := doRequest(t, f.mux, httptest.NewRequest(http.MethodGet, "/posts/"+id.String(), nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var view posts.View
		if err := json.Unmarshal(env.Data, &view); err != nil {
			t.Fatal(err)
		}
		if view.ID != id || view.Title != "Hello" {
			t.Errorf("view = %+v", view)
		}
		if view.Gallery == nil || view.VideoGallery == nil {
			t.Error("gallery slices should serialize as [] not null")
		}
	})

	t.Run("missing post", func(t *testing.T) {
		f := newFixture(t)
		f.repo.get = func(context.Context, uuid.UUID) (*posts.Post, error) {
			return nil, posts.ErrNotFound
		}
		rec, env := doRequest(t, f.mux, httptest.NewRequest(http.MethodGet, "/posts/"+uuid.NewString(), nil))
		if rec.Code != http.StatusNotFound || env.Message != "Post not found" {
			t.Errorf("status = %d, message = %q", rec.Code, env.Message)
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := doRequest(t, f.mux, httptest.NewRequest(http.MethodGet, "/posts/123", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestPostsHandler_List(t *testing.T) {
	f := newFixture(t)
	f.repo.list = func(_ context.Context, params posts.ListParams) ([]*posts.Post, error) {
		if params.Limit != 2 || params.Offset != 2 {
			t.Errorf("params = %+v", params)
		}
		return []*posts.Post{
			{ID: uuid.New(), Title: i18n.Plain("a"), Body: i18n.Plain("a")},
			{ID: uuid.New(), Title: i18n.Plain("b"), Body: i18n.Plain("b")},
		}, nil
	}
	f.repo.count = func(context.Context) (int64, error) { return 5, nil }

	rec, env := doRequest(t, f.mux, httptest.NewRequest(http.MethodGet, "/posts?page=2&per_page=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Data       []posts.View `json:"data"`
		Total      int64        `json:"total"`
		TotalPages int          `json:"total_pages"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Data) != 2 || data.Total != 5 || data.TotalPages != 3 {
		t.Errorf("data = %+v", data)
	}
}

func TestPostsHandler_Update(t *testing.T) {
	t.Run("clears the video slot", func(t *testing.T) {
		f := newFixture(t)
		var gotParams posts.UpdateParams
		f.repo.update = func(_ context.Context, id uuid.UUID, params posts.UpdateParams) (*posts.Post, []string, error) {
			gotParams = params
			return &posts.Post{ID: id, Title: i18n.Plain("t"), Body: i18n.Plain("b")}, []string{"posts/x/v.mp4"}, nil
		}

		req := multipartRequest(t, http.MethodPost, "/posts/"+uuid.NewString(),
			map[string]string{"delete_video": "1"}, nil)
		rec, _ := doRequest(t, f.mux, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if !gotParams.ClearVideo {
			t.Error("ClearVideo not set")
		}
		if gotParams.Title != nil || gotParams.Body != nil {
			t.Error("absent text fields should stay nil")
		}
		if len(f.store.deleted) != 1 {
			t.Errorf("removed keys deleted = %v", f.store.deleted)
		}
	})

	t.Run("missing post", func(t *testing.T) {
		f := newFixture(t)
		f.repo.get = func(context.Context, uuid.UUID) (*posts.Post, error) {
			return nil, posts.ErrNotFound
		}
		req := multipartRequest(t, http.MethodPost, "/posts/"+uuid.NewString(),
			map[string]string{"title": "x"}, nil)
		rec, _ := doRequest(t, f.mux, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestPostsHandler_Delete(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.repo.del = func(_ context.Context, got uuid.UUID) ([]string, error) {
		if got != id {
			t.Errorf("got id %s", got)
		}
		return nil, nil
	}
	rec, env := doRequest(t, f.mux, httptest.NewRequest(http.MethodDelete, "/posts/"+id.String(), nil))
	if rec.Code != http.StatusOK || env.Message != "Post deleted successfully" {
		t.Errorf("status = %d, message = %q", rec.Code, env.Message)
	}
}

func TestPostsHandler_DeleteMedia(t *testing.T) {
	t.Run("media under another post", func(t *testing.T) {
		f := newFixture(t)
		f.repo.deleteItem = func(context.Context, uuid.UUID, uuid.UUID) (*media.Item, error) {
			return nil, posts.ErrMediaNotFound
		}
		target := "/posts/" + uuid.NewString() + "/media/" + uuid.NewString()
		rec, env := doRequest(t, f.mux, httptest.NewRequest(http.MethodDelete, target, nil))
		if rec.Code != http.StatusNotFound || env.Message != "Media not found" {
			t.Errorf("status = %d, message = %q", rec.Code, env.Message)
		}
	})

	t.Run("deletes and reports success", func(t *testing.T) {
		f := newFixture(t)
		target := "/posts/" + uuid.NewString() + "/media/" + uuid.NewString()
		rec, env := doRequest(t, f.mux, httptest.NewRequest(http.MethodDelete, target, nil))
		if rec.Code != http.StatusOK || env.Message != "Media deleted successfully" {
			t.Errorf("status = %d, message = %q", rec.Code, env.Message)
		}
		if len(f.store.deleted) != 1 {
			t.Errorf("deleted = %v", f.store.deleted)
		}
	})
}

func TestTextField(t *testing.T) {
	form := &multipart.Form{Value: map[string][]string{
		"title":      {"plain"},
		"body[en]":   {"english"},
		"body[nl]":   {"dutch"},
		"empty[]":    {"x"},
		"no_bracket": {"y"},
	}}

	if got := textField(form, "title"); got == nil || got.Resolve("en") != "plain" {
		t.Errorf("title = %+v", got)
	}
	body := textField(form, "body")
	if body == nil || !body.IsLocalized() || body.Resolve("nl") != "dutch" {
		t.Errorf("body = %+v", body)
	}
	if got := textField(form, "missing"); got != nil {
		t.Errorf("missing = %+v", got)
	}
}

func TestBoolField(t *testing.T) {
	form := &multipart.Form{Value: map[string][]string{
		"a": {"1"}, "b": {"true"}, "c": {"0"}, "d": {"nope"},
	}}
	for name, want := range map[string]bool{"a": true, "b": true, "c": false, "d": false, "e": false} {
		if got := boolField(form, name); got != want {
			t.Errorf("boolField(%q) = %v", name, got)
		}
	}
}
