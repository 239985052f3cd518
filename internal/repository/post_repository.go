package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postloom/postloom/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	ClaimDue(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	UpdatePostStatus(ctx context.Context, status string, postID int64) error
	SetPublishOutcome(ctx context.Context, tx *sql.Tx, postID int64, status string, publishedAt *time.Time) error
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, caption, media_urls, platforms, page_selections, scheduled_time, status, published_at, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	var selections []byte
	err := row.Scan(&post.ID, &post.UserID, &post.Caption, pq.Array(&post.MediaURLs),
		pq.Array(&post.Platforms), &selections, &post.ScheduledTime, &post.Status,
		&post.PublishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(selections) > 0 {
		if err := json.Unmarshal(selections, &post.PageSelections); err != nil {
			return nil, err
		}
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, caption, media_urls, platforms, page_selections, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	selections, err := json.Marshal(post.PageSelections)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	args := []interface{}{post.UserID, post.Caption, pq.Array(post.MediaURLs),
		pq.Array(post.Platforms), selections, post.ScheduledTime, post.Status}

	var id int64
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY scheduled_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := `SELECT 1 FROM posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// ClaimDue atomically flips due posts from scheduled to publishing and returns
// them, so an overlapping scheduler tick cannot pick up the same post twice.
// Posts stuck in publishing since before staleBefore are reclaimed as well.
func (r *postRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time) ([]*models.Post, error) {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE (status = $3 AND scheduled_time <= $2)
		   OR (status = $1 AND updated_at <= $4)
		RETURNING ` + postColumns

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusPublishing, now, models.PostStatusScheduled, staleBefore)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET caption = $1,
			media_urls = $2,
			platforms = $3,
			page_selections = $4,
			scheduled_time = $5,
			updated_at = $6
		WHERE id = $7 AND status = $8
	`

	selections, err := json.Marshal(post.PageSelections)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	_, err = r.db.ExecContext(ctx, query, post.Caption, pq.Array(post.MediaURLs),
		pq.Array(post.Platforms), selections, post.ScheduledTime, time.Now(),
		post.ID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SetPublishOutcome(ctx context.Context, tx *sql.Tx, postID int64, status string, publishedAt *time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			published_at = $2,
			updated_at = $3
		WHERE id = $4
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, status, publishedAt, time.Now(), postID)
	} else {
		_, err = r.db.ExecContext(ctx, query, status, publishedAt, time.Now(), postID)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1 AND status = $2`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
