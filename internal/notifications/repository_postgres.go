package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"postroom/internal/events"
)

var _ Repository = (*postgresRepository)(nil)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) FanOut(ctx context.Context, payload events.PostCreatedPayload) (int64, error) {
	// One insert per user in a single statement. The (user_id, post_id)
	// unique index makes queue redeliveries idempotent.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, post_id, title, body_preview, message, action_url, created_at)
		 SELECT gen_random_uuid(), u.id, $1, $2, $3, $4, $5, $6 FROM users u
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		payload.PostID, payload.Title, payload.BodyPreview, payload.Message, payload.ActionURL,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("fan out notifications for post %s: %w", payload.PostID, err)
	}
	return res.RowsAffected()
}

func (r *postgresRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, error) {
	query := `SELECT id, user_id, post_id, title, body_preview, message, action_url, read_at, created_at
	          FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.PostID, &n.Title, &n.BodyPreview,
			&n.Message, &n.ActionURL, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *postgresRepository) CountForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

func (r *postgresRepository) StatsForUser(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE read_at IS NULL),
		        COUNT(*) FILTER (WHERE read_at IS NOT NULL)
		 FROM notifications WHERE user_id = $1`, userID,
	).Scan(&s.Total, &s.Unread, &s.Read)
	if err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}
	return &s, nil
}

func (r *postgresRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $3 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		id, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or already read; marking a read one again is fine.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)`,
			id, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (r *postgresRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL`,
		userID, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (r *postgresRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND read_at IS NOT NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	return res.RowsAffected()
}
