package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/pkg/utils"
)

// AnalyticsService refreshes the engagement snapshot (likes, comments,
// shares, reach) on a post's successful publish records. Refreshes are
// best-effort: one platform's read failure leaves its stale snapshot in place
// and does not block the others.
type AnalyticsService interface {
	RefreshPostAnalytics(ctx context.Context, postID int64) error
}

type analyticsService struct {
	cfg      config.Config
	pr       repository.PostRepository
	rr       repository.PublishRecordRepository
	ac       repository.SocialAccountRepository
	graphURL string
	apiURL   string
	client   *http.Client
}

func NewAnalyticsService(
	cfg config.Config,
	pr repository.PostRepository,
	rr repository.PublishRecordRepository,
	ac repository.SocialAccountRepository) AnalyticsService {
	return &analyticsService{
		cfg:      cfg,
		pr:       pr,
		rr:       rr,
		ac:       ac,
		graphURL: facebookGraphURL,
		apiURL:   linkedinAPIURL,
		client:   http.DefaultClient,
	}
}

func (s *analyticsService) RefreshPostAnalytics(ctx context.Context, postID int64) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return errors.New("post not found")
	}

	records, err := s.rr.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.Status != models.PublishStatusSuccess {
			continue
		}

		var likes, comments, shares, reach int64
		switch record.Platform {
		case models.PlatformFacebook:
			likes, comments, shares, reach, err = s.facebookEngagement(ctx, post.UserID, record)
		case models.PlatformInstagram:
			likes, comments, shares, reach, err = s.instagramEngagement(ctx, post.UserID, record)
		case models.PlatformLinkedin, models.PlatformLinkedinCompany:
			likes, comments, shares, reach, err = s.linkedinEngagement(ctx, post.UserID, record)
		default:
			continue
		}

		if err != nil {
			slog.Info(fmt.Sprintf("post %d: analytics refresh for %s failed: %v", postID, record.Platform, err))
			continue
		}

		if err := s.rr.UpdateEngagement(ctx, record.ID, likes, comments, shares, reach); err != nil {
			slog.Info(fmt.Sprintf("post %d: saving %s analytics failed: %v", postID, record.Platform, err))
		}
	}

	return nil
}

// pageToken resolves the stored page-scoped token for a record's page from
// the owner's facebook connection.
func (s *analyticsService) pageToken(ctx context.Context, userID int64, pageID string) (string, error) {
	account, err := s.ac.GetActiveByUserAndPlatform(ctx, userID, models.PlatformFacebook)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", errors.New("no active facebook account connected")
	}

	pages, err := s.ac.ListPages(ctx, account.ID)
	if err != nil {
		return "", err
	}

	for _, page := range pages {
		if page.PageID == pageID {
			return utils.Decrypt(page.PageAccessToken, []byte(s.cfg.SecretKey))
		}
	}
	return "", fmt.Errorf("page %s is no longer connected", pageID)
}

func (s *analyticsService) facebookEngagement(ctx context.Context, userID int64, record *models.PublishRecord) (likes, comments, shares, reach int64, err error) {
	token, err := s.pageToken(ctx, userID, record.PageID)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	reqURL := fmt.Sprintf(
		"%s/%s?fields=likes.summary(true),comments.summary(true),shares&access_token=%s",
		s.graphURL, record.ExternalPostID, url.QueryEscape(token),
	)

	var result struct {
		Likes struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"likes"`
		Comments struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
		Shares struct {
			Count int64 `json:"count"`
		} `json:"shares"`
	}
	if err := s.getJSON(ctx, models.PlatformFacebook, reqURL, &result); err != nil {
		return 0, 0, 0, 0, err
	}

	reach = s.graphReach(ctx, record.ExternalPostID, "post_impressions_unique", token)
	return result.Likes.Summary.TotalCount, result.Comments.Summary.TotalCount, result.Shares.Count, reach, nil
}

func (s *analyticsService) instagramEngagement(ctx context.Context, userID int64, record *models.PublishRecord) (likes, comments, shares, reach int64, err error) {
	token, err := s.pageToken(ctx, userID, record.PageID)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	reqURL := fmt.Sprintf(
		"%s/%s?fields=like_count,comments_count&access_token=%s",
		s.graphURL, record.ExternalPostID, url.QueryEscape(token),
	)

	var result struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	if err := s.getJSON(ctx, models.PlatformInstagram, reqURL, &result); err != nil {
		return 0, 0, 0, 0, err
	}

	reach = s.graphReach(ctx, record.ExternalPostID, "reach", token)
	return result.LikeCount, result.CommentsCount, 0, reach, nil
}

// graphReach reads a single-metric insights edge. Insights lag behind the
// post itself, so a failure here just leaves reach at zero.
func (s *analyticsService) graphReach(ctx context.Context, externalID, metric, token string) int64 {
	reqURL := fmt.Sprintf("%s/%s/insights?metric=%s&access_token=%s", s.graphURL, externalID, metric, url.QueryEscape(token))

	var result struct {
		Data []struct {
			Values []struct {
				Value int64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := s.getJSON(ctx, models.PlatformFacebook, reqURL, &result); err != nil {
		slog.Info(fmt.Sprintf("insights read for %s failed: %v", externalID, err))
		return 0
	}

	if len(result.Data) == 0 || len(result.Data[0].Values) == 0 {
		return 0
	}
	return result.Data[0].Values[0].Value
}

func (s *analyticsService) linkedinEngagement(ctx context.Context, userID int64, record *models.PublishRecord) (likes, comments, shares, reach int64, err error) {
	account, err := s.ac.GetActiveByUserAndPlatform(ctx, userID, record.Platform)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if account == nil && record.Platform == models.PlatformLinkedin {
		account, err = s.ac.GetActiveByUserAndPlatform(ctx, userID, models.PlatformLinkedinCompany)
		if err != nil {
			return 0, 0, 0, 0, err
		}
	}
	if account == nil {
		return 0, 0, 0, 0, fmt.Errorf("no active %s account connected", record.Platform)
	}

	token, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return 0, 0, 0, 0, err
	}

	reqURL := fmt.Sprintf("%s/socialActions/%s", s.apiURL, url.PathEscape(record.ExternalPostID))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, 0, 0, decodeLinkedinError(record.Platform, resp)
	}

	var result struct {
		LikesSummary struct {
			TotalLikes int64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, 0, 0, 0, err
	}

	return result.LikesSummary.TotalLikes, result.CommentsSummary.AggregatedTotalComments, 0, 0, nil
}

func (s *analyticsService) getJSON(ctx context.Context, platform, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeGraphError(platform, resp)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
