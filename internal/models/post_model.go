package models

import "time"

type Post struct {
	ID             int64             `db:"id" json:"id"`
	UserID         int64             `db:"user_id" json:"user_id"`
	Caption        string            `db:"caption" json:"caption"`
	MediaURLs      []string          `db:"media_urls" json:"media_urls"`
	Platforms      []string          `db:"platforms" json:"platforms"`
	PageSelections map[string]string `db:"page_selections" json:"page_selections"`
	ScheduledTime  time.Time         `db:"scheduled_time" json:"scheduled_time"`
	Status         string            `db:"status" json:"status"`
	PublishedAt    *time.Time        `db:"published_at" json:"published_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	// PostStatusPublishing marks a post claimed by a scheduler run. A post
	// stuck here longer than the stale window is reclaimed on a later tick.
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

const (
	PublishStatusSuccess = "success"
	PublishStatusFailed  = "failed"
)

// PublishRecord is the outcome of one publish attempt on one platform,
// plus the engagement snapshot refreshed later for successful posts.
type PublishRecord struct {
	ID             int64     `db:"id" json:"id"`
	PostID         int64     `db:"post_id" json:"post_id"`
	Platform       string    `db:"platform" json:"platform"`
	ExternalPostID string    `db:"external_post_id" json:"external_post_id"`
	PageID         string    `db:"page_id" json:"page_id,omitempty"`
	Status         string    `db:"status" json:"status"`
	ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
	Likes          int64     `db:"likes" json:"likes"`
	Comments       int64     `db:"comments" json:"comments"`
	Shares         int64     `db:"shares" json:"shares"`
	Reach          int64     `db:"reach" json:"reach"`
	AttemptedAt    time.Time `db:"attempted_at" json:"attempted_at"`
}
