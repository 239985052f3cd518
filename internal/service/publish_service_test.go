package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/transfer"
	"github.com/postloom/postloom/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

type mockSocialAccountRepo struct {
	getActiveFunc     func(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error)
	setLastSyncedFunc func(ctx context.Context, accountID int64, syncedAt time.Time) error
}

func (m *mockSocialAccountRepo) Upsert(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	return 0, nil
}

func (m *mockSocialAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return nil, nil
}

func (m *mockSocialAccountRepo) GetActiveByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	if m.getActiveFunc != nil {
		return m.getActiveFunc(ctx, userID, platform)
	}
	return nil, nil
}

func (m *mockSocialAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (m *mockSocialAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	return false, nil
}

func (m *mockSocialAccountRepo) SetLastSynced(ctx context.Context, accountID int64, syncedAt time.Time) error {
	if m.setLastSyncedFunc != nil {
		return m.setLastSyncedFunc(ctx, accountID, syncedAt)
	}
	return nil
}

func (m *mockSocialAccountRepo) Deactivate(ctx context.Context, id int64) error { return nil }

func (m *mockSocialAccountRepo) ReplacePages(ctx context.Context, tx *sql.Tx, accountID int64, pages []*models.SocialPage) error {
	return nil
}

func (m *mockSocialAccountRepo) ListPages(ctx context.Context, accountID int64) ([]*models.SocialPage, error) {
	return nil, nil
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error)
}

func (m *mockPublisher) Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, cred, in)
	}
	return &transfer.PublishResult{ExternalPostID: "ok"}, nil
}

func encryptedToken(t *testing.T, token string) string {
	t.Helper()
	encrypted, err := utils.Encrypt([]byte(token), []byte(testSecretKey))
	if err != nil {
		t.Fatalf("encrypting test token: %v", err)
	}
	return encrypted
}

func activeAccount(t *testing.T, platform string) *models.SocialAccount {
	return &models.SocialAccount{
		ID:          7,
		UserID:      1,
		Platform:    platform,
		AccountID:   "acc-1",
		AccessToken: encryptedToken(t, "raw-token"),
		IsActive:    true,
	}
}

func newTestPublisher(ac *mockSocialAccountRepo, fb, ig, li PlatformPublisher) *publisherService {
	return &publisherService{
		cfg:   config.Config{SecretKey: testSecretKey},
		ac:    ac,
		fb:    fb,
		ig:    ig,
		li:    li,
		media: NewMediaService(config.Config{PublicMediaURL: "https://media.example.com"}),
	}
}

func TestPublishToPlatform_Success(t *testing.T) {
	synced := false
	ac := &mockSocialAccountRepo{
		getActiveFunc: func(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
			return activeAccount(t, models.PlatformFacebook), nil
		},
		setLastSyncedFunc: func(ctx context.Context, accountID int64, syncedAt time.Time) error {
			synced = true
			return nil
		},
	}
	fb := &mockPublisher{
		publishFunc: func(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
			if cred.AccessToken != "raw-token" {
				t.Errorf("adapter must receive the decrypted token, got %q", cred.AccessToken)
			}
			if in.PageID != "page-9" {
				t.Errorf("expected page selection page-9, got %q", in.PageID)
			}
			return &transfer.PublishResult{ExternalPostID: "fb_1", PageID: "page-9"}, nil
		},
	}

	s := newTestPublisher(ac, fb, nil, nil)
	post := &models.Post{
		ID:             10,
		UserID:         1,
		Caption:        "hi",
		PageSelections: map[string]string{models.PlatformFacebook: "page-9"},
	}

	record := s.publishToPlatform(context.Background(), post, models.PlatformFacebook, "")
	if record.Status != models.PublishStatusSuccess {
		t.Fatalf("expected success record, got %s (%s)", record.Status, record.ErrorMessage)
	}
	if record.ExternalPostID != "fb_1" || record.PageID != "page-9" {
		t.Errorf("unexpected record: %+v", record)
	}
	if !synced {
		t.Error("expected last_synced_at update after a successful publish")
	}
}

func TestPublishToPlatform_NoAccount(t *testing.T) {
	s := newTestPublisher(&mockSocialAccountRepo{}, nil, nil, nil)
	post := &models.Post{ID: 10, UserID: 1}

	record := s.publishToPlatform(context.Background(), post, models.PlatformFacebook, "")
	if record.Status != models.PublishStatusFailed {
		t.Fatalf("expected failed record, got %s", record.Status)
	}
	if !strings.Contains(record.ErrorMessage, "no active facebook account") {
		t.Errorf("unexpected error message: %q", record.ErrorMessage)
	}
}

func TestPublishToPlatform_DecryptFailure(t *testing.T) {
	ac := &mockSocialAccountRepo{
		getActiveFunc: func(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
			account := activeAccount(t, models.PlatformFacebook)
			account.AccessToken = "not-a-ciphertext"
			return account, nil
		},
	}

	s := newTestPublisher(ac, &mockPublisher{}, nil, nil)
	record := s.publishToPlatform(context.Background(), &models.Post{ID: 10, UserID: 1}, models.PlatformFacebook, "")
	if record.Status != models.PublishStatusFailed {
		t.Fatalf("expected failed record, got %s", record.Status)
	}
	if !strings.Contains(record.ErrorMessage, "decrypt") {
		t.Errorf("unexpected error message: %q", record.ErrorMessage)
	}
}

func TestPublishToPlatform_AdapterErrorIsolated(t *testing.T) {
	ac := &mockSocialAccountRepo{
		getActiveFunc: func(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
			return activeAccount(t, platform), nil
		},
	}
	fb := &mockPublisher{
		publishFunc: func(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
			return nil, errors.New("facebook: upstream exploded")
		},
	}
	li := &mockPublisher{
		publishFunc: func(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
			return &transfer.PublishResult{ExternalPostID: "urn:li:share:1"}, nil
		},
	}

	s := newTestPublisher(ac, fb, nil, li)
	post := &models.Post{ID: 10, UserID: 1, Platforms: []string{models.PlatformFacebook, models.PlatformLinkedin}}

	fbRecord := s.publishToPlatform(context.Background(), post, models.PlatformFacebook, "")
	liRecord := s.publishToPlatform(context.Background(), post, models.PlatformLinkedin, "")

	if fbRecord.Status != models.PublishStatusFailed {
		t.Errorf("expected facebook failure, got %s", fbRecord.Status)
	}
	if liRecord.Status != models.PublishStatusSuccess {
		t.Errorf("facebook failure must not block linkedin, got %s (%s)", liRecord.Status, liRecord.ErrorMessage)
	}

	status, success := outcomeStatus([]*models.PublishRecord{fbRecord, liRecord})
	if !success || status != models.PostStatusPublished {
		t.Errorf("partial success should publish the post, got %s", status)
	}
}

func TestPublishToPlatform_LinkedinCompanyFallback(t *testing.T) {
	ac := &mockSocialAccountRepo{
		getActiveFunc: func(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
			if platform == models.PlatformLinkedinCompany {
				return activeAccount(t, models.PlatformLinkedinCompany), nil
			}
			return nil, nil
		},
	}
	var credPlatform string
	li := &mockPublisher{
		publishFunc: func(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
			credPlatform = cred.Platform
			return &transfer.PublishResult{ExternalPostID: "urn:li:share:2"}, nil
		},
	}

	s := newTestPublisher(ac, nil, nil, li)
	record := s.publishToPlatform(context.Background(), &models.Post{ID: 10, UserID: 1}, models.PlatformLinkedin, "")
	if record.Status != models.PublishStatusSuccess {
		t.Fatalf("expected company account fallback to succeed, got %s (%s)", record.Status, record.ErrorMessage)
	}
	if credPlatform != models.PlatformLinkedinCompany {
		t.Errorf("expected company credential, got %s", credPlatform)
	}
}

func TestOutcomeStatus(t *testing.T) {
	failed := &models.PublishRecord{Status: models.PublishStatusFailed}
	succeeded := &models.PublishRecord{Status: models.PublishStatusSuccess}

	tests := []struct {
		name     string
		records  []*models.PublishRecord
		expected string
	}{
		{"all failed", []*models.PublishRecord{failed, failed}, models.PostStatusFailed},
		{"all succeeded", []*models.PublishRecord{succeeded, succeeded}, models.PostStatusPublished},
		{"partial success", []*models.PublishRecord{failed, succeeded}, models.PostStatusPublished},
		{"no platforms", nil, models.PostStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := outcomeStatus(tt.records)
			if status != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, status)
			}
		})
	}
}
