package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"postroom/internal/media"
	"postroom/internal/posts"
	"postroom/internal/uploads"
)

type UploadsHandler struct {
	receiver *uploads.Receiver
	svc      *posts.Service
	urls     posts.URLResolver
	validate *validator.Validate
	logger   *slog.Logger
}

func NewUploadsHandler(receiver *uploads.Receiver, svc *posts.Service, urls posts.URLResolver, logger *slog.Logger) *UploadsHandler {
	return &UploadsHandler{
		receiver: receiver,
		svc:      svc,
		urls:     urls,
		validate: validator.New(),
		logger:   logger,
	}
}

// Upload accepts one chunk of a video. Clients send a multipart "file"
// part plus a Content-Range header; a request without the header is taken
// as a whole file in one piece.
func (h *UploadsHandler) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart request", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := fileField(r.MultipartForm, "file")
		if len(headers) == 0 {
			writeError(w, http.StatusBadRequest, "No file was uploaded", nil)
			return
		}

		rng, err := uploads.ParseContentRange(r.Header.Get("Content-Range"))
		if err != nil {
			writeValidation(w, map[string]string{"content_range": err.Error()})
			return
		}

		chunk, err := headers[0].Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "No file was uploaded", err)
			return
		}
		defer chunk.Close()

		result, err := h.receiver.Receive(headers[0].Filename, chunk, rng)
		if err != nil {
			if errors.Is(err, uploads.ErrOutOfOrder) {
				writeValidation(w, map[string]string{"content_range": err.Error()})
				return
			}
			h.logger.Error("chunk receive failed", "filename", headers[0].Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Error uploading video chunk", err)
			return
		}

		if !result.Finished {
			writeSuccess(w, http.StatusOK, map[string]any{
				"done":   result.Done,
				"status": "uploading",
			}, "Chunk uploaded successfully")
			return
		}

		writeSuccess(w, http.StatusOK, map[string]any{
			"path":     "temp-videos/" + result.Filename,
			"filename": result.Filename,
			"url":      h.urls.URL("temp-videos/" + result.Filename),
		}, "Video uploaded successfully")
	}
}

type completeUploadRequest struct {
	PostID     string `json:"post_id" validate:"required,uuid"`
	Filename   string `json:"filename" validate:"required"`
	Collection string `json:"collection" validate:"required,oneof=video video_gallery"`
}

// Complete attaches a finished chunked upload to a post.
func (h *UploadsHandler) Complete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req completeUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", err)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			errs := map[string]string{}
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				for _, fe := range fieldErrs {
					errs[fe.Field()] = fe.Tag()
				}
			}
			writeValidation(w, errs)
			return
		}

		postID, err := uuid.Parse(req.PostID)
		if err != nil {
			writeValidation(w, map[string]string{"post_id": "must be a valid id"})
			return
		}

		item, err := h.svc.AttachFinalized(r.Context(), postID, req.Filename, media.Collection(req.Collection))
		if err != nil {
			switch {
			case errors.Is(err, posts.ErrNotFound):
				writeError(w, http.StatusNotFound, "Post not found", nil)
			case errors.Is(err, posts.ErrUploadNotFound):
				writeError(w, http.StatusNotFound, "Uploaded file not found", nil)
			case errors.Is(err, posts.ErrInvalidMediaType):
				writeError(w, http.StatusUnprocessableEntity, "Invalid file type. Only video files are allowed.", nil)
			default:
				h.logger.Error("complete upload failed", "post_id", postID, "filename", req.Filename, "error", err)
				writeError(w, http.StatusInternalServerError, "Error attaching video to post", err)
			}
			return
		}

		writeSuccess(w, http.StatusOK, map[string]any{
			"media_id":   item.ID,
			"media_url":  h.urls.URL(item.FileKey),
			"media_name": item.FileName,
			"media_size": item.SizeBytes,
			"mime_type":  item.MimeType,
			"collection": item.Collection,
		}, "Video attached to post successfully")
	}
}
