package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
	"github.com/postloom/postloom/pkg/utils"
)

// PlatformPublisher is the adapter contract: publish one piece of content
// for one credential, returning the platform-assigned post id.
type PlatformPublisher interface {
	Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error)
}

type PublishSummary struct {
	Success bool
	Records []*models.PublishRecord
}

type PublisherService interface {
	PublishPost(ctx context.Context, post *models.Post) (*PublishSummary, error)
}

type publisherService struct {
	cfg   config.Config
	db    *sql.DB
	pr    repository.PostRepository
	rr    repository.PublishRecordRepository
	ac    repository.SocialAccountRepository
	fb    PlatformPublisher
	ig    PlatformPublisher
	li    PlatformPublisher
	media *MediaService
}

func NewPublisherService(
	cfg config.Config,
	db *sql.DB,
	pr repository.PostRepository,
	rr repository.PublishRecordRepository,
	ac repository.SocialAccountRepository,
	fb PlatformPublisher,
	ig PlatformPublisher,
	li PlatformPublisher,
	media *MediaService) PublisherService {
	return &publisherService{
		cfg:   cfg,
		db:    db,
		pr:    pr,
		rr:    rr,
		ac:    ac,
		fb:    fb,
		ig:    ig,
		li:    li,
		media: media,
	}
}

// PublishPost runs one publish attempt across all of the post's target
// platforms. Platform failures are isolated: each platform gets its own
// outcome record and a failure never stops the remaining platforms. The post
// ends published if at least one platform succeeded, failed if none did, and
// everything is persisted in a single transaction afterwards.
func (s *publisherService) PublishPost(ctx context.Context, post *models.Post) (*PublishSummary, error) {
	mediaURL := ""
	if len(post.MediaURLs) > 0 {
		mediaURL = s.media.ResolveURL(post.MediaURLs[0])
	}

	records := make([]*models.PublishRecord, 0, len(post.Platforms))
	for _, platform := range post.Platforms {
		record := s.publishToPlatform(ctx, post, platform, mediaURL)
		records = append(records, record)

		if record.Status == models.PublishStatusFailed {
			slog.Info(fmt.Sprintf("post %d: publish to %s failed: %s", post.ID, platform, record.ErrorMessage))
		}
	}

	status, success := outcomeStatus(records)

	var publishedAt *time.Time
	if success {
		now := time.Now()
		publishedAt = &now
	}

	if err := s.persistOutcome(ctx, post.ID, status, publishedAt, records); err != nil {
		return nil, err
	}

	return &PublishSummary{Success: success, Records: records}, nil
}

// outcomeStatus folds the per-platform records into the post's final status.
// Partial success still counts as published; the records carry the individual
// failures.
func outcomeStatus(records []*models.PublishRecord) (string, bool) {
	for _, record := range records {
		if record.Status == models.PublishStatusSuccess {
			return models.PostStatusPublished, true
		}
	}
	return models.PostStatusFailed, false
}

func (s *publisherService) persistOutcome(ctx context.Context, postID int64, status string, publishedAt *time.Time, records []*models.PublishRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.pr.SetPublishOutcome(ctx, tx, postID, status, publishedAt); err != nil {
		return fmt.Errorf("error updating post status: %w", err)
	}

	for _, record := range records {
		if _, err := s.rr.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("error saving publish record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish outcome: %w", err)
	}
	return nil
}

// publishToPlatform never returns an error: every outcome, including a
// missing account or a broken credential, becomes a record on the post.
func (s *publisherService) publishToPlatform(ctx context.Context, post *models.Post, platform, mediaURL string) *models.PublishRecord {
	record := &models.PublishRecord{
		PostID:      post.ID,
		Platform:    platform,
		Status:      models.PublishStatusFailed,
		AttemptedAt: time.Now(),
	}

	account, err := s.resolveAccount(ctx, post.UserID, platform)
	if err != nil {
		record.ErrorMessage = err.Error()
		return record
	}
	if account == nil {
		record.ErrorMessage = fmt.Sprintf("no active %s account connected", platform)
		return record
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		record.ErrorMessage = fmt.Sprintf("unable to decrypt stored credentials for %s", platform)
		return record
	}

	adapter := s.adapterFor(account.Platform)
	if adapter == nil {
		record.ErrorMessage = fmt.Sprintf("unsupported platform %s", platform)
		return record
	}

	cred := &transfer.Credential{
		Platform:    account.Platform,
		AccountID:   account.AccountID,
		AccessToken: accessToken,
	}
	in := &transfer.PublishInput{
		Caption:  post.Caption,
		MediaURL: mediaURL,
		PageID:   post.PageSelections[platform],
	}

	result, err := adapter.Publish(ctx, cred, in)
	if err != nil {
		record.ErrorMessage = err.Error()
		return record
	}

	record.Status = models.PublishStatusSuccess
	record.ErrorMessage = ""
	record.ExternalPostID = result.ExternalPostID
	record.PageID = result.PageID

	if err := s.ac.SetLastSynced(ctx, account.ID, time.Now()); err != nil {
		slog.Info(fmt.Sprintf("account %d: failed to update last sync: %v", account.ID, err))
	}

	return record
}

// resolveAccount looks up the active account for the target platform. A
// linkedin target falls back to a company connection when no personal one
// exists; both share the same adapter.
func (s *publisherService) resolveAccount(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	account, err := s.ac.GetActiveByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if account == nil && platform == models.PlatformLinkedin {
		return s.ac.GetActiveByUserAndPlatform(ctx, userID, models.PlatformLinkedinCompany)
	}
	return account, nil
}

func (s *publisherService) adapterFor(platform string) PlatformPublisher {
	switch platform {
	case models.PlatformFacebook:
		return s.fb
	case models.PlatformInstagram:
		return s.ig
	case models.PlatformLinkedin, models.PlatformLinkedinCompany:
		return s.li
	default:
		return nil
	}
}
