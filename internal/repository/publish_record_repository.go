package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postloom/postloom/internal/models"
)

type PublishRecordRepository interface {
	Create(ctx context.Context, tx *sql.Tx, record *models.PublishRecord) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishRecord, error)
	UpdateEngagement(ctx context.Context, id int64, likes, comments, shares, reach int64) error
}

type publishRecordRepository struct {
	db *sql.DB
}

func NewPublishRecordRepository(db *sql.DB) PublishRecordRepository {
	return &publishRecordRepository{db: db}
}

func (r *publishRecordRepository) Create(ctx context.Context, tx *sql.Tx, record *models.PublishRecord) (int64, error) {
	query := `
		INSERT INTO publish_records (post_id, platform, external_post_id, page_id, status, error_message, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	args := []interface{}{record.PostID, record.Platform, record.ExternalPostID,
		record.PageID, record.Status, record.ErrorMessage, record.AttemptedAt}

	var id int64
	var err error
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

func (r *publishRecordRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishRecord, error) {
	query := `
		SELECT id, post_id, platform, external_post_id, page_id, status, error_message, likes, comments, shares, reach, attempted_at
		FROM publish_records
		WHERE post_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var records []*models.PublishRecord
	for rows.Next() {
		var record models.PublishRecord
		err := rows.Scan(&record.ID, &record.PostID, &record.Platform, &record.ExternalPostID,
			&record.PageID, &record.Status, &record.ErrorMessage, &record.Likes,
			&record.Comments, &record.Shares, &record.Reach, &record.AttemptedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (r *publishRecordRepository) UpdateEngagement(ctx context.Context, id int64, likes, comments, shares, reach int64) error {
	query := `
		UPDATE publish_records
		SET likes = $1,
			comments = $2,
			shares = $3,
			reach = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, likes, comments, shares, reach, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
