package posts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"postroom/internal/events"
	"postroom/internal/i18n"
	"postroom/internal/media"
	"postroom/internal/notifications"
	"postroom/internal/storage"
	"postroom/internal/uploads"
)

// FinalizedStore is the subset of the upload store the service needs to
// pull chunk-uploaded videos into a post.
type FinalizedStore interface {
	Resolve(filename string) (*uploads.Finalized, error)
	Release(filename string) error
}

// Service applies change-sets to posts. Database writes for one call happen
// in a single transaction; storage uploads happen before it and are cleaned
// up if the transaction fails, storage deletes happen after commit so a
// rollback never loses a file that is still referenced.
type Service struct {
	repo      Repository
	store     storage.Storage
	finalized FinalizedStore
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo Repository, store storage.Storage, finalized FinalizedStore, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		finalized: finalized,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) Create(ctx context.Context, title, body i18n.Text, cs *ChangeSet) (*Post, error) {
	now := time.Now().UTC()
	post := &Post{ID: uuid.New(), Title: title, Body: body, CreatedAt: now, UpdatedAt: now}

	var uploaded []string
	cleanup := func() { s.deleteKeys(context.WithoutCancel(ctx), uploaded) }

	var items []*media.Item
	addFile := func(c media.Collection, f *File) error {
		item, err := s.uploadFile(ctx, post.ID, c, f)
		if err != nil {
			return err
		}
		uploaded = append(uploaded, item.FileKey)
		items = append(items, item)
		return nil
	}

	if cs.MainImage != nil {
		if err := addFile(media.MainImage, cs.MainImage); err != nil {
			cleanup()
			return nil, err
		}
	}
	for _, f := range cs.Gallery {
		if err := addFile(media.Gallery, f); err != nil {
			cleanup()
			return nil, err
		}
	}
	if cs.Video != nil {
		if err := addFile(media.Video, cs.Video); err != nil {
			cleanup()
			return nil, err
		}
	}
	for _, f := range cs.VideoGallery {
		if err := addFile(media.VideoGallery, f); err != nil {
			cleanup()
			return nil, err
		}
	}

	pending, pendingItems, err := s.uploadPending(ctx, post.ID, cs.TempVideos)
	if err != nil {
		cleanup()
		return nil, err
	}
	uploaded = append(uploaded, keysOf(pendingItems)...)
	items = append(items, pendingItems...)

	if err := s.repo.Create(ctx, post, items); err != nil {
		cleanup()
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.releasePending(pending)
	s.dispatchCreated(ctx, post)
	return post, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, title, body *i18n.Text, cs *ChangeSet) (*Post, error) {
	// Existence check up front so a missing post does not cost uploads.
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	params := UpdateParams{
		Title:                 title,
		Body:                  body,
		ClearVideo:            cs.DeleteVideo,
		ReplaceGallery:        cs.ReplaceGallery,
		RemoveGalleryIDs:      cs.DeleteGalleryIDs,
		ReplaceVideoGallery:   cs.ReplaceVideoGallery,
		RemoveVideoGalleryIDs: cs.DeleteVideoGalleryIDs,
	}

	var uploaded []string
	cleanup := func() { s.deleteKeys(context.WithoutCancel(ctx), uploaded) }

	if cs.MainImage != nil {
		item, err := s.uploadFile(ctx, id, media.MainImage, cs.MainImage)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, item.FileKey)
		params.SetMainImage = item
	}
	if cs.Video != nil {
		item, err := s.uploadFile(ctx, id, media.Video, cs.Video)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, item.FileKey)
		params.SetVideo = item
		params.ClearVideo = false
	}
	for _, f := range cs.Gallery {
		item, err := s.uploadFile(ctx, id, media.Gallery, f)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, item.FileKey)
		params.AddGallery = append(params.AddGallery, item)
	}
	for _, f := range cs.VideoGallery {
		item, err := s.uploadFile(ctx, id, media.VideoGallery, f)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, item.FileKey)
		params.AddVideoGallery = append(params.AddVideoGallery, item)
	}

	pending, pendingItems, err := s.uploadPending(ctx, id, cs.TempVideos)
	if err != nil {
		cleanup()
		return nil, err
	}
	uploaded = append(uploaded, keysOf(pendingItems)...)
	params.AddVideoGallery = append(params.AddVideoGallery, pendingItems...)

	post, removed, err := s.repo.Update(ctx, id, params)
	if err != nil {
		cleanup()
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update post %s: %w", id, err)
	}

	s.deleteKeys(context.WithoutCancel(ctx), removed)
	s.releasePending(pending)
	return post, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, page, perPage int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}

	list, err := s.repo.List(ctx, ListParams{Limit: perPage, Offset: (page - 1) * perPage})
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &ListResult{
		Posts:      list,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// Delete removes the post, its media records, and its stored files. Files
// are owned by the post, never shared, so the whole key prefix goes.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeletePrefix(context.WithoutCancel(ctx), postPrefix(id)); err != nil {
		s.logger.Error("failed to delete post files", "post_id", id, "error", err)
	}
	return nil
}

// DeleteMedia removes one media item scoped to its post. An id under a
// different post is a hard not-found here, unlike the change-set path.
func (s *Service) DeleteMedia(ctx context.Context, postID, mediaID uuid.UUID) error {
	item, err := s.repo.DeleteItem(ctx, postID, mediaID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), item.FileKey); err != nil {
		s.logger.Error("failed to delete media file", "key", item.FileKey, "error", err)
	}
	return nil
}

// AttachFinalized attaches a finished chunked upload to a post. The target
// must be a video bucket; attaching to the video slot replaces its content.
func (s *Service) AttachFinalized(ctx context.Context, postID uuid.UUID, filename string, collection media.Collection) (*media.Item, error) {
	if collection != media.Video && collection != media.VideoGallery {
		return nil, fmt.Errorf("%w: collection %q does not accept uploads", ErrInvalidMediaType, collection)
	}

	fin, err := s.finalized.Resolve(filename)
	if err != nil {
		if errors.Is(err, uploads.ErrNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}

	mtype, err := mimetype.DetectFile(fin.Path)
	if err != nil {
		return nil, fmt.Errorf("detect mime type: %w", err)
	}
	if !media.AllowedVideoMime(mtype.String()) {
		// Invalid uploads are discarded immediately.
		if err := s.finalized.Release(filename); err != nil {
			s.logger.Error("failed to remove invalid upload", "filename", filename, "error", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidMediaType, mtype.String())
	}

	item, err := s.uploadPath(ctx, postID, collection, fin.Path, fin.Name, mtype.String(), fin.Size)
	if err != nil {
		return nil, err
	}

	params := UpdateParams{}
	if collection == media.Video {
		params.SetVideo = item
	} else {
		params.AddVideoGallery = []*media.Item{item}
	}
	_, removed, err := s.repo.Update(ctx, postID, params)
	if err != nil {
		s.deleteKeys(context.WithoutCancel(ctx), []string{item.FileKey})
		return nil, err
	}

	s.deleteKeys(context.WithoutCancel(ctx), removed)
	s.releasePending([]string{filename})
	return item, nil
}

func (s *Service) uploadFile(ctx context.Context, postID uuid.UUID, c media.Collection, f *File) (*media.Item, error) {
	item := &media.Item{
		ID:         uuid.New(),
		PostID:     postID,
		Collection: c,
		FileName:   f.Name,
		MimeType:   f.ContentType,
		SizeBytes:  f.Size,
	}
	item.FileKey = fileKey(postID, item.ID, f.Name)
	if err := s.store.Upload(ctx, item.FileKey, f.Content, f.ContentType); err != nil {
		return nil, fmt.Errorf("upload %s to storage: %w", f.Name, err)
	}
	return item, nil
}

func (s *Service) uploadPath(ctx context.Context, postID uuid.UUID, c media.Collection, path, name, mime string, size int64) (*media.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", name, err)
	}
	defer f.Close()
	return s.uploadFile(ctx, postID, c, &File{Name: name, ContentType: mime, Size: size, Content: f})
}

// uploadPending pushes finalized chunked uploads into storage as video
// gallery items. Filenames that no longer resolve are skipped, matching
// the leniency of the multipart path: the client may have already attached
// them through the complete endpoint.
func (s *Service) uploadPending(ctx context.Context, postID uuid.UUID, filenames []string) (resolved []string, items []*media.Item, err error) {
	for _, filename := range filenames {
		fin, err := s.finalized.Resolve(filename)
		if err != nil {
			if errors.Is(err, uploads.ErrNotFound) {
				s.logger.Warn("pending upload missing, skipping", "filename", filename)
				continue
			}
			return nil, nil, err
		}
		mtype, err := mimetype.DetectFile(fin.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("detect mime type of %s: %w", filename, err)
		}
		item, err := s.uploadPath(ctx, postID, media.VideoGallery, fin.Path, fin.Name, mtype.String(), fin.Size)
		if err != nil {
			return nil, nil, err
		}
		resolved = append(resolved, filename)
		items = append(items, item)
	}
	return resolved, items, nil
}

func (s *Service) releasePending(filenames []string) {
	for _, filename := range filenames {
		if err := s.finalized.Release(filename); err != nil {
			s.logger.Error("failed to release pending upload", "filename", filename, "error", err)
		}
	}
}

func (s *Service) deleteKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Error("failed to delete stored file", "key", key, "error", err)
		}
	}
}

// dispatchCreated publishes the new-post event after the transaction has
// committed. A publish failure is logged and never fails the request.
func (s *Service) dispatchCreated(ctx context.Context, post *Post) {
	title := post.Title.Resolve(i18n.DefaultLocale)
	e := events.NewPostCreated(events.PostCreatedPayload{
		PostID:      post.ID,
		Title:       title,
		BodyPreview: notifications.BodyPreview(post.Body.Resolve(i18n.DefaultLocale)),
		Message:     notifications.Message(title),
		ActionURL:   notifications.ActionURL(post.ID),
	})
	if err := s.publisher.PublishPostCreated(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Error("failed to publish post.created", "post_id", post.ID, "error", err)
	}
}

func fileKey(postID, itemID uuid.UUID, name string) string {
	base, ext := uploads.SanitizeBase(name)
	if ext != "" {
		base = base + "." + ext
	}
	return fmt.Sprintf("posts/%s/%s/%s", postID, itemID, base)
}

func postPrefix(id uuid.UUID) string {
	return fmt.Sprintf("posts/%s/", id)
}

func keysOf(items []*media.Item) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.FileKey)
	}
	return keys
}
