package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"postroom/internal/media"
)

var _ Repository = (*postgresRepository)(nil)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) begin(ctx context.Context) (*sql.Tx, func(), error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	rollback := func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}
	return tx, rollback, nil
}

func (r *postgresRepository) Create(ctx context.Context, post *Post, items []*media.Item) error {
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, title, body, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.Title, post.Body, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", post.ID, err)
	}

	positions := map[media.Collection]int{}
	for _, item := range items {
		item.PostID = post.ID
		item.Position = positions[item.Collection]
		positions[item.Collection]++
		if err := insertItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create of post %s: %w", post.ID, err)
	}
	post.Items = items
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT id, title, body, created_at, updated_at FROM posts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	post.Items, err = loadItems(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postgresRepository) List(ctx context.Context, params ListParams) ([]*Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, body, created_at, updated_at FROM posts
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		params.Limit, params.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var result []*Post
	byID := map[uuid.UUID]*Post{}
	var ids []uuid.UUID
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		result = append(result, &p)
		byID[p.ID] = &p
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	itemRows, err := r.db.QueryContext(ctx,
		`SELECT id, post_id, collection, file_key, file_name, mime_type, size_bytes, position, created_at
		 FROM media_items WHERE post_id = ANY($1) ORDER BY position, created_at`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, err
		}
		if p, ok := byID[item.PostID]; ok {
			p.Items = append(p.Items, item)
		}
	}
	return result, itemRows.Err()
}

func (r *postgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Post, []string, error) {
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer rollback()

	post, err := scanPost(tx.QueryRowContext(ctx,
		`SELECT id, title, body, created_at, updated_at FROM posts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, nil, err
	}

	if params.Title != nil {
		post.Title = *params.Title
	}
	if params.Body != nil {
		post.Body = *params.Body
	}
	post.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE posts SET title = $2, body = $3, updated_at = $4 WHERE id = $1`,
		post.ID, post.Title, post.Body, post.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("update post %s: %w", id, err)
	}

	var removed []string

	// Slots keep at most one item: setting deletes whatever was there.
	if params.SetMainImage != nil {
		keys, err := clearCollection(ctx, tx, id, media.MainImage)
		if err != nil {
			return nil, nil, err
		}
		removed = append(removed, keys...)
		if err := setSlotItem(ctx, tx, id, media.MainImage, params.SetMainImage); err != nil {
			return nil, nil, err
		}
	}
	switch {
	case params.SetVideo != nil:
		keys, err := clearCollection(ctx, tx, id, media.Video)
		if err != nil {
			return nil, nil, err
		}
		removed = append(removed, keys...)
		if err := setSlotItem(ctx, tx, id, media.Video, params.SetVideo); err != nil {
			return nil, nil, err
		}
	case params.ClearVideo:
		keys, err := clearCollection(ctx, tx, id, media.Video)
		if err != nil {
			return nil, nil, err
		}
		removed = append(removed, keys...)
	}

	keys, err := applyCollectionOps(ctx, tx, id, media.Gallery,
		params.ReplaceGallery, params.AddGallery, params.RemoveGalleryIDs, false)
	if err != nil {
		return nil, nil, err
	}
	removed = append(removed, keys...)

	keys, err = applyCollectionOps(ctx, tx, id, media.VideoGallery,
		params.ReplaceVideoGallery, params.AddVideoGallery, params.RemoveVideoGalleryIDs, true)
	if err != nil {
		return nil, nil, err
	}
	removed = append(removed, keys...)

	post.Items, err = loadItems(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit update of post %s: %w", id, err)
	}
	return post, removed, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback()

	keys, err := deleteItemsReturningKeys(ctx, tx,
		`DELETE FROM media_items WHERE post_id = $1 RETURNING file_key`, id)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete post %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete of post %s: %w", id, err)
	}
	return keys, nil
}

func (r *postgresRepository) DeleteItem(ctx context.Context, postID, itemID uuid.UUID) (*media.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM media_items WHERE id = $1 AND post_id = $2
		 RETURNING id, post_id, collection, file_key, file_name, mime_type, size_bytes, position, created_at`,
		itemID, postID,
	)
	item, err := scanItem(row)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	// Distinguish a missing post from a missing item under an existing post.
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrMediaNotFound
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanPost(row *sql.Row) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*media.Item, error) {
	var it media.Item
	err := row.Scan(&it.ID, &it.PostID, &it.Collection, &it.FileKey, &it.FileName,
		&it.MimeType, &it.SizeBytes, &it.Position, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func loadItems(ctx context.Context, q queryer, postID uuid.UUID) ([]*media.Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, post_id, collection, file_key, file_name, mime_type, size_bytes, position, created_at
		 FROM media_items WHERE post_id = $1 ORDER BY position, created_at`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("load media items for post %s: %w", postID, err)
	}
	defer rows.Close()
	var items []*media.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItem(ctx context.Context, tx execer, item *media.Item) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO media_items (id, post_id, collection, file_key, file_name, mime_type, size_bytes, position, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.PostID, item.Collection, item.FileKey, item.FileName,
		item.MimeType, item.SizeBytes, item.Position, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media item %s: %w", item.ID, err)
	}
	return nil
}

func setSlotItem(ctx context.Context, tx execer, postID uuid.UUID, c media.Collection, item *media.Item) error {
	item.PostID = postID
	item.Collection = c
	item.Position = 0
	return insertItem(ctx, tx, item)
}

func clearCollection(ctx context.Context, tx execer, postID uuid.UUID, c media.Collection) ([]string, error) {
	return deleteItemsReturningKeys(ctx, tx,
		`DELETE FROM media_items WHERE post_id = $1 AND collection = $2 RETURNING file_key`,
		postID, c)
}

// applyCollectionOps applies replace/append/remove to an ordered collection.
// Removals are scoped to the post; when matchCollection is set they must
// also match the collection name, otherwise the id is skipped silently.
func applyCollectionOps(ctx context.Context, tx execer, postID uuid.UUID, c media.Collection,
	replace bool, add []*media.Item, removeIDs []uuid.UUID, matchCollection bool) ([]string, error) {

	var removed []string
	if replace && len(add) > 0 {
		keys, err := clearCollection(ctx, tx, postID, c)
		if err != nil {
			return nil, err
		}
		removed = append(removed, keys...)
	}

	if len(add) > 0 {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM media_items WHERE post_id = $1 AND collection = $2`,
			postID, c).Scan(&next)
		if err != nil {
			return nil, fmt.Errorf("next position in %s: %w", c, err)
		}
		for _, item := range add {
			item.PostID = postID
			item.Collection = c
			item.Position = next
			next++
			if err := insertItem(ctx, tx, item); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range removeIDs {
		query := `DELETE FROM media_items WHERE id = $1 AND post_id = $2 RETURNING file_key`
		args := []any{id, postID}
		if matchCollection {
			query = `DELETE FROM media_items WHERE id = $1 AND post_id = $2 AND collection = $3 RETURNING file_key`
			args = append(args, c)
		}
		var key string
		err := tx.QueryRowContext(ctx, query, args...).Scan(&key)
		if errors.Is(err, sql.ErrNoRows) {
			continue // not this post's media, or wrong bucket
		}
		if err != nil {
			return nil, fmt.Errorf("remove media %s: %w", id, err)
		}
		removed = append(removed, key)
	}
	return removed, nil
}

func deleteItemsReturningKeys(ctx context.Context, tx execer, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete media items: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
