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
	"strings"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
	"github.com/postloom/postloom/internal/transfer"
	"github.com/postloom/postloom/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

const linkedinAPIURL = "https://api.linkedin.com/v2"

const linkedinCaptionLimit = 3000

const (
	linkedinPersonURNPrefix       = "urn:li:person:"
	linkedinOrganizationURNPrefix = "urn:li:organization:"
)

type LinkedinService interface {
	LinkedinCallback(ctx context.Context, code string, userID int64, company bool) error
	Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error)
}

type linkedinService struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	apiURL string
	client *http.Client
}

func NewLinkedinService(cfg config.Config, sa repository.SocialAccountRepository) LinkedinService {
	return &linkedinService{
		cfg:    cfg,
		sa:     sa,
		apiURL: linkedinAPIURL,
		client: http.DefaultClient,
	}
}

func (s *linkedinService) LinkedinCallback(ctx context.Context, code string, userID int64, company bool) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	scopes := []string{"openid", "profile", "email", "w_member_social"}
	if company {
		scopes = append(scopes, "w_organization_social", "rw_organization_admin")
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.LinkedinClientID,
		ClientSecret: s.cfg.LinkedinClientSecret,
		RedirectURL:  s.cfg.LinkedinRedirectURI,
		Scopes:       scopes,
		Endpoint:     linkedin.Endpoint,
	}

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" {
		err := errors.New("linkedin OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to exchange linkedin code: %w", err)
	}

	userInfo, err := s.getLinkedinUserInfo(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken := ""
	if token.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	platform := models.PlatformLinkedin
	if company {
		platform = models.PlatformLinkedinCompany
	}

	account := &models.SocialAccount{
		UserID:         userID,
		Platform:       platform,
		AccountID:      userInfo.Sub,
		AccountName:    userInfo.Name,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: token.Expiry,
	}

	if _, err := s.sa.Upsert(ctx, nil, account); err != nil {
		return err
	}

	return nil
}

func (s *linkedinService) getLinkedinUserInfo(ctx context.Context, accessToken string) (*transfer.LinkedinUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL+"/userinfo", nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeLinkedinError(models.PlatformLinkedin, resp)
	}

	var userInfo transfer.LinkedinUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

// Publish creates a UGC post. Text-only posts are a single call; an image
// post first registers an upload slot, uploads the bytes, then shares the
// resulting asset.
func (s *linkedinService) Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
	author := authorURN(cred)
	caption := TruncateCaption(in.Caption, linkedinCaptionLimit)

	media := []map[string]interface{}{}
	category := "NONE"

	if in.MediaURL != "" {
		asset, err := s.uploadImage(ctx, cred.AccessToken, author, in.MediaURL)
		if err != nil {
			return nil, err
		}
		category = "IMAGE"
		media = append(media, map[string]interface{}{
			"status": "READY",
			"media":  asset,
		})
	}

	payload := map[string]interface{}{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary": map[string]string{
					"text": caption,
				},
				"shareMediaCategory": category,
				"media":              media,
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, platformErrorf(cred.Platform, "error marshalling payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL+"/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return nil, platformErrorf(cred.Platform, "error creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, platformErrorf(cred.Platform, "HTTP request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, decodeLinkedinError(cred.Platform, resp)
	}

	var result transfer.LinkedinPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, platformErrorf(cred.Platform, "error parsing response: %v", err)
	}
	if result.ID == "" {
		return nil, platformErrorf(cred.Platform, "no post id returned")
	}

	return &transfer.PublishResult{ExternalPostID: result.ID}, nil
}

// authorURN derives the post author from the stored platform id. Already
// prefixed ids pass through untouched, so re-normalizing is idempotent.
func authorURN(cred *transfer.Credential) string {
	if strings.HasPrefix(cred.AccountID, "urn:li:") {
		return cred.AccountID
	}
	if cred.Platform == models.PlatformLinkedinCompany {
		return linkedinOrganizationURNPrefix + cred.AccountID
	}
	return linkedinPersonURNPrefix + cred.AccountID
}

// uploadImage registers an upload slot, fetches the image bytes, and streams
// them to the returned upload URL. Returns the asset URN for the share.
func (s *linkedinService) uploadImage(ctx context.Context, accessToken, owner, mediaURL string) (string, error) {
	uploadURL, asset, err := s.registerUpload(ctx, accessToken, owner)
	if err != nil {
		return "", err
	}

	imageBytes, err := s.fetchImage(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(imageBytes))
	if err != nil {
		return "", platformErrorf(models.PlatformLinkedin, "error creating upload request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", platformErrorf(models.PlatformLinkedin, "image upload error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", decodeLinkedinError(models.PlatformLinkedin, resp)
	}

	return asset, nil
}

func (s *linkedinService) registerUpload(ctx context.Context, accessToken, owner string) (uploadURL, asset string, err error) {
	payload := map[string]interface{}{
		"registerUploadRequest": map[string]interface{}{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   owner,
			"serviceRelationships": []map[string]string{
				{
					"relationshipType": "OWNER",
					"identifier":       "urn:li:userGeneratedContent",
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", platformErrorf(models.PlatformLinkedin, "error marshalling payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL+"/assets?action=registerUpload", bytes.NewBuffer(body))
	if err != nil {
		return "", "", platformErrorf(models.PlatformLinkedin, "error creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", platformErrorf(models.PlatformLinkedin, "HTTP request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", decodeLinkedinError(models.PlatformLinkedin, resp)
	}

	var result transfer.LinkedinRegisterUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", platformErrorf(models.PlatformLinkedin, "error parsing response: %v", err)
	}

	uploadURL = result.Value.UploadMechanism.Request.UploadURL
	asset = result.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", "", platformErrorf(models.PlatformLinkedin, "register upload returned no upload slot")
	}
	return uploadURL, asset, nil
}

func (s *linkedinService) fetchImage(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		return nil, platformErrorf(models.PlatformLinkedin, "error creating media request: %v", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, platformErrorf(models.PlatformLinkedin, "failed to fetch media %s: %v", mediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, platformErrorf(models.PlatformLinkedin, "failed to fetch media %s: status %d", mediaURL, resp.StatusCode)
	}

	imageBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, platformErrorf(models.PlatformLinkedin, "error reading media bytes: %v", err)
	}
	return imageBytes, nil
}
