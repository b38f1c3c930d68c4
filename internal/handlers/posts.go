package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"postroom/internal/media"
	"postroom/internal/middleware"
	"postroom/internal/posts"
)

const maxMultipartMemory = 64 << 20

type PostsHandler struct {
	svc    *posts.Service
	urls   posts.URLResolver
	logger *slog.Logger
}

func NewPostsHandler(svc *posts.Service, urls posts.URLResolver, logger *slog.Logger) *PostsHandler {
	return &PostsHandler{
		svc:    svc,
		urls:   urls,
		logger: logger,
	}
}

func (h *PostsHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

		result, err := h.svc.List(r.Context(), page, perPage)
		if err != nil {
			h.logger.Error("list posts failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching posts", err)
			return
		}

		locale := middleware.GetLocale(r.Context())
		writeSuccess(w, http.StatusOK, map[string]any{
			"data":        posts.NewViews(result.Posts, locale, h.urls),
			"total":       result.Total,
			"page":        result.Page,
			"per_page":    result.PerPage,
			"total_pages": result.TotalPages,
		}, "Posts retrieved successfully")
	}
}

func (h *PostsHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "Post not found")
		if !ok {
			return
		}
		post, err := h.svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, posts.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Post not found", nil)
				return
			}
			h.logger.Error("get post failed", "post_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Error fetching post", err)
			return
		}
		writeSuccess(w, http.StatusOK, posts.NewView(post, middleware.GetLocale(r.Context()), h.urls), "Post retrieved successfully")
	}
}

func (h *PostsHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart request", err)
			return
		}
		form := r.MultipartForm
		defer form.RemoveAll()

		errs := map[string]string{}
		title := textField(form, "title")
		if title == nil {
			errs["title"] = "required"
		}
		body := textField(form, "body")
		if body == nil {
			errs["body"] = "required"
		}

		cs, cl, csErrs := h.parseChangeSet(form, errs)
		defer cl.closeAll()
		if len(csErrs) > 0 {
			writeValidation(w, csErrs)
			return
		}

		post, err := h.svc.Create(r.Context(), *title, *body, cs)
		if err != nil {
			h.logger.Error("create post failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Error creating post", err)
			return
		}

		writeSuccess(w, http.StatusCreated, posts.NewView(post, middleware.GetLocale(r.Context()), h.urls), "Post created successfully")
	}
}

func (h *PostsHandler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "Post not found")
		if !ok {
			return
		}
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart request", err)
			return
		}
		form := r.MultipartForm
		defer form.RemoveAll()

		title := textField(form, "title")
		body := textField(form, "body")

		cs, cl, errs := h.parseChangeSet(form, map[string]string{})
		defer cl.closeAll()
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}

		post, err := h.svc.Update(r.Context(), id, title, body, cs)
		if err != nil {
			if errors.Is(err, posts.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Post not found", nil)
				return
			}
			h.logger.Error("update post failed", "post_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Error updating post", err)
			return
		}

		writeSuccess(w, http.StatusOK, posts.NewView(post, middleware.GetLocale(r.Context()), h.urls), "Post updated successfully")
	}
}

func (h *PostsHandler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id", "Post not found")
		if !ok {
			return
		}
		if err := h.svc.Delete(r.Context(), id); err != nil {
			if errors.Is(err, posts.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Post not found", nil)
				return
			}
			h.logger.Error("delete post failed", "post_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Error deleting post", err)
			return
		}
		writeSuccess(w, http.StatusOK, nil, "Post deleted successfully")
	}
}

func (h *PostsHandler) DeleteMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := pathUUID(w, r, "postId", "Post not found")
		if !ok {
			return
		}
		mediaID, ok := pathUUID(w, r, "mediaId", "Media not found")
		if !ok {
			return
		}
		if err := h.svc.DeleteMedia(r.Context(), postID, mediaID); err != nil {
			switch {
			case errors.Is(err, posts.ErrNotFound):
				writeError(w, http.StatusNotFound, "Post not found", nil)
			case errors.Is(err, posts.ErrMediaNotFound):
				writeError(w, http.StatusNotFound, "Media not found", nil)
			default:
				h.logger.Error("delete media failed", "post_id", postID, "media_id", mediaID, "error", err)
				writeError(w, http.StatusInternalServerError, "Error deleting media", err)
			}
			return
		}
		writeSuccess(w, http.StatusOK, nil, "Media deleted successfully")
	}
}

// parseChangeSet reads every media mutation field out of the form and
// validates each file against its bucket's MIME and size rules. Validation
// problems land in errs keyed by field name.
func (h *PostsHandler) parseChangeSet(form *multipart.Form, errs map[string]string) (*posts.ChangeSet, closers, map[string]string) {
	cs := &posts.ChangeSet{
		TempVideos:          stringList(form, "temp_videos"),
		ReplaceGallery:      boolField(form, "replace_gallery"),
		DeleteVideo:         boolField(form, "delete_video"),
		ReplaceVideoGallery: boolField(form, "replace_video_gallery"),
	}
	var cl closers

	openOne := func(field string, c media.Collection) *posts.File {
		headers := fileField(form, field)
		if len(headers) == 0 {
			return nil
		}
		f := h.openValidated(headers[0], c, field, errs, &cl)
		return f
	}
	openMany := func(field string, c media.Collection) []*posts.File {
		var files []*posts.File
		for i, header := range fileField(form, field) {
			if f := h.openValidated(header, c, fmt.Sprintf("%s.%d", field, i), errs, &cl); f != nil {
				files = append(files, f)
			}
		}
		return files
	}

	cs.MainImage = openOne("main_image", media.MainImage)
	cs.Gallery = openMany("gallery", media.Gallery)
	cs.Video = openOne("video", media.Video)
	cs.VideoGallery = openMany("video_gallery", media.VideoGallery)

	var err error
	if cs.DeleteGalleryIDs, err = uuidList(form, "delete_gallery_ids"); err != nil {
		errs["delete_gallery_ids"] = err.Error()
	}
	if cs.DeleteVideoGalleryIDs, err = uuidList(form, "delete_video_gallery_ids"); err != nil {
		errs["delete_video_gallery_ids"] = err.Error()
	}
	return cs, cl, errs
}

func (h *PostsHandler) openValidated(header *multipart.FileHeader, c media.Collection, field string, errs map[string]string, cl *closers) *posts.File {
	f, closer, err := openUpload(header)
	if err != nil {
		h.logger.Error("failed to read upload", "field", field, "error", err)
		errs[field] = "could not read uploaded file"
		return nil
	}
	*cl = append(*cl, closer)
	if !media.Allowed(c, f.ContentType, f.Size) {
		errs[field] = fmt.Sprintf("file type %s or size not allowed for %s", f.ContentType, c)
		return nil
	}
	return f
}

func pathUUID(w http.ResponseWriter, r *http.Request, name, notFound string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusNotFound, notFound, nil)
		return uuid.Nil, false
	}
	return id, true
}
