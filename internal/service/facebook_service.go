package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
	"github.com/postloom/postloom/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookGraphURL = "https://graph.facebook.com/v21.0"

const facebookCaptionLimit = 63206

// maxPageBatches bounds the /me/accounts pagination walk so a misbehaving
// upstream cannot keep us following next links forever.
const maxPageBatches = 25

type FacebookService interface {
	FacebookCallback(ctx context.Context, code string, userID int64) error
	Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error)
}

type facebookService struct {
	cfg      config.Config
	sa       repository.SocialAccountRepository
	graphURL string
	client   *http.Client
}

func NewFacebookService(cfg config.Config, sa repository.SocialAccountRepository) FacebookService {
	return &facebookService{
		cfg:      cfg,
		sa:       sa,
		graphURL: facebookGraphURL,
		client:   http.DefaultClient,
	}
}

// FacebookCallback exchanges the OAuth code, stores the facebook account with
// its managed pages, and upserts a derived instagram account for every page
// linked to an Instagram business account. Connecting twice updates the same
// records in place.
func (s *facebookService) FacebookCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	if userID == 0 {
		err := errors.New("user not found")
		slog.Info(err.Error())
		return err
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.FacebookClientID,
		ClientSecret: s.cfg.FacebookClientSecret,
		RedirectURL:  s.cfg.FacebookRedirectURI,
		Scopes: []string{
			"pages_show_list",
			"pages_read_engagement",
			"pages_manage_posts",
			"instagram_basic",
			"instagram_content_publish",
		},
		Endpoint: facebook.Endpoint,
	}

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" {
		err := errors.New("facebook OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to exchange facebook code: %w", err)
	}

	userInfo, err := s.getFacebookUserInfo(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	pages, err := listManagedPages(ctx, s.client, s.graphURL, models.PlatformFacebook, token.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	account := &models.SocialAccount{
		UserID:         userID,
		Platform:       models.PlatformFacebook,
		AccountID:      userInfo.ID,
		AccountName:    userInfo.Name,
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	}

	accountID, err := s.sa.Upsert(ctx, nil, account)
	if err != nil {
		return err
	}

	storedPages := make([]*models.SocialPage, 0, len(pages))
	for _, page := range pages {
		encryptedPageToken, err := utils.Encrypt([]byte(page.AccessToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}

		stored := &models.SocialPage{
			AccountID:       accountID,
			PageID:          page.ID,
			PageName:        page.Name,
			PageAccessToken: encryptedPageToken,
		}
		if page.InstagramBusinessAccount != nil {
			stored.InstagramAccountID = page.InstagramBusinessAccount.ID
		}
		storedPages = append(storedPages, stored)
	}

	if err := s.sa.ReplacePages(ctx, nil, accountID, storedPages); err != nil {
		return err
	}

	// Instagram publishing rides on the page token, so discovering a linked
	// business account here is what makes the instagram platform connectable.
	for _, page := range pages {
		if page.InstagramBusinessAccount == nil {
			continue
		}

		igAccount := &models.SocialAccount{
			UserID:         userID,
			Platform:       models.PlatformInstagram,
			AccountID:      page.InstagramBusinessAccount.ID,
			AccountName:    page.Name,
			AccessToken:    encryptedAccessToken,
			TokenExpiresAt: token.Expiry,
		}

		if _, err := s.sa.Upsert(ctx, nil, igAccount); err != nil {
			return err
		}
		break
	}

	return nil
}

func (s *facebookService) getFacebookUserInfo(ctx context.Context, accessToken string) (*transfer.FacebookUserInfo, error) {
	reqURL := fmt.Sprintf("%s/me?fields=id,name&access_token=%s", s.graphURL, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeGraphError(models.PlatformFacebook, resp)
	}

	var userInfo transfer.FacebookUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

// listManagedPages walks /me/accounts following paging.next until the list is
// exhausted. Page tokens ride along in the response; they are the only tokens
// valid for page writes.
func listManagedPages(ctx context.Context, client *http.Client, graphURL, platform, userToken string) ([]transfer.FacebookPage, error) {
	reqURL := fmt.Sprintf(
		"%s/me/accounts?fields=id,name,access_token,instagram_business_account&limit=50&access_token=%s",
		graphURL, url.QueryEscape(userToken),
	)

	var pages []transfer.FacebookPage
	for batch := 0; reqURL != ""; batch++ {
		if batch >= maxPageBatches {
			return nil, platformErrorf(platform, "page listing exceeded %d batches", maxPageBatches)
		}

		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			slog.Info(err.Error())
			return nil, platformErrorf(platform, "failed to list pages: %v", err)
		}

		if resp.StatusCode != http.StatusOK {
			err := decodeGraphError(platform, resp)
			resp.Body.Close()
			return nil, err
		}

		var batchResp transfer.FacebookPagesResponse
		err = json.NewDecoder(resp.Body).Decode(&batchResp)
		resp.Body.Close()
		if err != nil {
			slog.Info(err.Error())
			return nil, platformErrorf(platform, "failed to decode page listing: %v", err)
		}

		pages = append(pages, batchResp.Data...)
		reqURL = batchResp.Paging.Next
	}

	return pages, nil
}

// Publish posts to a facebook Page: pick the target page from the account's
// managed pages, then write with that page's own token. The user token is
// only ever used to list pages, never to post.
func (s *facebookService) Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
	pages, err := listManagedPages(ctx, s.client, s.graphURL, models.PlatformFacebook, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	page, err := selectPage(pages, in.PageID)
	if err != nil {
		return nil, err
	}

	caption := TruncateCaption(in.Caption, facebookCaptionLimit)

	var edge string
	payload := map[string]interface{}{
		"access_token": page.AccessToken,
	}

	if in.MediaURL != "" {
		if err := ensurePubliclyReachable(models.PlatformFacebook, in.MediaURL); err != nil {
			return nil, err
		}
		edge = "photos"
		payload["url"] = in.MediaURL
		payload["caption"] = caption
	} else {
		edge = "feed"
		payload["message"] = caption
	}

	postID, err := s.postToEdge(ctx, fmt.Sprintf("%s/%s/%s", s.graphURL, page.ID, edge), payload)
	if err != nil {
		return nil, err
	}

	return &transfer.PublishResult{ExternalPostID: postID, PageID: page.ID}, nil
}

func selectPage(pages []transfer.FacebookPage, pageID string) (*transfer.FacebookPage, error) {
	if len(pages) == 0 {
		return nil, platformErrorf(models.PlatformFacebook, "account manages no pages; a page is required to post")
	}

	if pageID == "" {
		return &pages[0], nil
	}

	for i := range pages {
		if pages[i].ID == pageID {
			return &pages[i], nil
		}
	}
	return nil, platformErrorf(models.PlatformFacebook, "page %s not found among managed pages", pageID)
}

func (s *facebookService) postToEdge(ctx context.Context, edgeURL string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", platformErrorf(models.PlatformFacebook, "error marshalling payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", edgeURL, bytes.NewBuffer(body))
	if err != nil {
		return "", platformErrorf(models.PlatformFacebook, "error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", platformErrorf(models.PlatformFacebook, "HTTP request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeGraphError(models.PlatformFacebook, resp)
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", platformErrorf(models.PlatformFacebook, "error reading response body: %v", err)
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", platformErrorf(models.PlatformFacebook, "error parsing response: %v", err)
	}

	// /photos returns the photo id plus the feed post id; prefer the latter.
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", platformErrorf(models.PlatformFacebook, "no post id returned")
	}
	return result.ID, nil
}
