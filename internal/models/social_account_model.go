package models

import "time"

const (
	PlatformFacebook        = "facebook"
	PlatformInstagram       = "instagram"
	PlatformLinkedin        = "linkedin"
	PlatformLinkedinCompany = "linkedin-company"
)

type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        string    `db:"platform" json:"platform"`
	AccountID       string    `db:"account_id" json:"account_id"`
	AccountName     string    `db:"account_name" json:"account_name"`
	AccessToken     string    `db:"access_token" json:"-"`
	RefreshToken    string    `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	LastSyncedAt    time.Time `db:"last_synced_at" json:"last_synced_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
	Pages           []*SocialPage `json:"pages,omitempty"`
}

// SocialPage is a sub-resource of a facebook account: a managed Page with its
// own page-scoped access token, optionally linked to an Instagram business
// account. Write calls on facebook/instagram go through the page token.
type SocialPage struct {
	ID                 int64     `db:"id" json:"id"`
	AccountID          int64     `db:"account_id" json:"account_id"`
	PageID             string    `db:"page_id" json:"page_id"`
	PageName           string    `db:"page_name" json:"page_name"`
	PageAccessToken    string    `db:"page_access_token" json:"-"`
	InstagramAccountID string    `db:"instagram_account_id" json:"instagram_account_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
