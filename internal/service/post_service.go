package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
)

const scheduledTimeLayout = "2006-01-02T15:04"

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*transfer.PostInfo, error)
	Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) error
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	cfg   config.Config
	db    *sql.DB
	pr    repository.PostRepository
	rr    repository.PublishRecordRepository
	media *MediaService
}

func NewPostService(
	cfg config.Config,
	db *sql.DB,
	pr repository.PostRepository,
	rr repository.PublishRecordRepository,
	media *MediaService) PostService {
	return &postService{
		cfg:   cfg,
		db:    db,
		pr:    pr,
		rr:    rr,
		media: media,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, err
	}
	if pc.Caption == "" {
		err := errors.New("caption cannot be empty")
		slog.Info(err.Error())
		return 0, err
	}

	if err := validatePlatforms(pc.Platforms); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	scheduledTime, err := time.Parse(scheduledTimeLayout, pc.ScheduledTime)
	if err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return 0, err
	}

	if targetsPlatform(pc.Platforms, models.PlatformInstagram) && len(files) == 0 {
		err := errors.New("instagram posts require at least one media file")
		slog.Info(err.Error())
		return 0, err
	}

	mediaKeys, err := s.uploadFiles(ctx, userID, files)
	if err != nil {
		return 0, err
	}

	post := models.Post{
		UserID:         userID,
		Caption:        pc.Caption,
		MediaURLs:      mediaKeys,
		Platforms:      pc.Platforms,
		PageSelections: pc.PageSelections,
		ScheduledTime:  scheduledTime,
		Status:         models.PostStatusScheduled,
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	return postID, nil
}

func (s *postService) uploadFiles(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]string, error) {
	var keys []string
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening uploaded file: %w", err)
		}

		fileBytes, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading uploaded file: %w", err)
		}

		kind, err := filetype.Match(fileBytes)
		if err != nil || kind == filetype.Unknown {
			err = errors.New("unsupported file type")
			slog.Info(err.Error())
			return nil, err
		}
		if kind.MIME.Type != "image" {
			err = fmt.Errorf("unsupported media type %s; only images can be published", kind.MIME.Value)
			slog.Info(err.Error())
			return nil, err
		}

		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("error generating media key: %w", err)
		}
		key := fmt.Sprintf("media/%d/%s.%s", userID, id, kind.Extension)

		if err := s.media.Upload(ctx, key, fileBytes, kind.MIME.Value); err != nil {
			return nil, fmt.Errorf("error uploading media: %w", err)
		}

		keys = append(keys, key)
	}
	return keys, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*transfer.PostInfo, error) {
	isOwner, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		err = errors.New("post not found")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil || post == nil {
		return nil, errors.New("post not found")
	}

	records, err := s.rr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	return &transfer.PostInfo{Post: post, PublishRecords: records}, nil
}

func (s *postService) Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) error {
	isOwner, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isOwner {
		return errors.New("post not found")
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil || post == nil {
		return errors.New("post not found")
	}

	// Published and failed posts are immutable history.
	if post.Status != models.PostStatusScheduled && post.Status != models.PostStatusDraft {
		err = fmt.Errorf("post %d can no longer be edited (status %s)", postID, post.Status)
		slog.Info(err.Error())
		return err
	}

	if pu.Caption != "" {
		post.Caption = pu.Caption
	}
	if len(pu.Platforms) > 0 {
		if err := validatePlatforms(pu.Platforms); err != nil {
			slog.Info(err.Error())
			return err
		}
		post.Platforms = pu.Platforms
	}
	if pu.PageSelections != nil {
		post.PageSelections = pu.PageSelections
	}
	if pu.ScheduledTime != "" {
		scheduledTime, err := time.Parse(scheduledTimeLayout, pu.ScheduledTime)
		if err != nil {
			return fmt.Errorf("invalid scheduled time format: %w", err)
		}
		post.ScheduledTime = scheduledTime
	}

	return s.pr.Update(ctx, post)
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	isOwner, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isOwner {
		return errors.New("post not found")
	}

	return s.pr.Remove(ctx, postID)
}

func validatePlatforms(platforms []string) error {
	if len(platforms) == 0 {
		return errors.New("no target platforms selected")
	}
	for _, platform := range platforms {
		switch platform {
		case models.PlatformFacebook, models.PlatformInstagram, models.PlatformLinkedin:
		default:
			return fmt.Errorf("unsupported target platform %q", platform)
		}
	}
	return nil
}

func targetsPlatform(platforms []string, platform string) bool {
	for _, p := range platforms {
		if p == platform {
			return true
		}
	}
	return false
}
