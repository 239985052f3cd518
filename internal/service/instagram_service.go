package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/transfer"
)

const instagramCaptionLimit = 2200

// Container status codes reported by the Graph API while Instagram processes
// an uploaded media container.
const (
	containerStatusFinished   = "FINISHED"
	containerStatusError      = "ERROR"
	containerStatusExpired    = "EXPIRED"
	containerStatusInProgress = "IN_PROGRESS"
)

type InstagramService interface {
	Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error)
}

type instagramService struct {
	cfg             config.Config
	graphURL        string
	client          *http.Client
	pollInterval    time.Duration
	pollMaxAttempts int
}

func NewInstagramService(cfg config.Config) InstagramService {
	return &instagramService{
		cfg:             cfg,
		graphURL:        facebookGraphURL,
		client:          http.DefaultClient,
		pollInterval:    time.Duration(cfg.IGPollSeconds) * time.Second,
		pollMaxAttempts: cfg.IGPollMaxAttempts,
	}
}

// Publish runs Instagram's two-phase flow: create a media container on the
// business account, poll it until processing finishes, then publish it. Both
// phases use the page-scoped token of the page linked to the business
// account, resolved fresh from the page listing.
func (s *instagramService) Publish(ctx context.Context, cred *transfer.Credential, in *transfer.PublishInput) (*transfer.PublishResult, error) {
	if in.MediaURL == "" {
		return nil, platformErrorf(models.PlatformInstagram, "instagram posts require media")
	}

	if err := ensurePubliclyReachable(models.PlatformInstagram, in.MediaURL); err != nil {
		return nil, err
	}

	igAccountID, pageID, pageToken, err := s.resolveBusinessAccount(ctx, cred)
	if err != nil {
		return nil, err
	}

	creationID, err := s.createContainer(ctx, igAccountID, pageToken, in)
	if err != nil {
		return nil, err
	}

	if err := s.waitForContainer(ctx, creationID, pageToken); err != nil {
		return nil, err
	}

	postID, err := s.publishContainer(ctx, igAccountID, creationID, pageToken)
	if err != nil {
		return nil, err
	}

	return &transfer.PublishResult{ExternalPostID: postID, PageID: pageID}, nil
}

// resolveBusinessAccount finds the managed page linked to the credential's
// Instagram business account and returns that page's token. The user token is
// never used for the publish calls themselves.
func (s *instagramService) resolveBusinessAccount(ctx context.Context, cred *transfer.Credential) (igAccountID, pageID, pageToken string, err error) {
	pages, err := listManagedPages(ctx, s.client, s.graphURL, models.PlatformInstagram, cred.AccessToken)
	if err != nil {
		return "", "", "", err
	}

	for _, page := range pages {
		if page.InstagramBusinessAccount == nil {
			continue
		}
		if cred.AccountID != "" && page.InstagramBusinessAccount.ID != cred.AccountID {
			continue
		}
		return page.InstagramBusinessAccount.ID, page.ID, page.AccessToken, nil
	}

	return "", "", "", platformErrorf(models.PlatformInstagram, "no page linked to instagram business account %s", cred.AccountID)
}

func (s *instagramService) createContainer(ctx context.Context, igAccountID, pageToken string, in *transfer.PublishInput) (string, error) {
	payload := map[string]interface{}{
		"image_url":    in.MediaURL,
		"caption":      TruncateCaption(in.Caption, instagramCaptionLimit),
		"access_token": pageToken,
	}

	result, err := s.postJSON(ctx, fmt.Sprintf("%s/%s/media", s.graphURL, igAccountID), payload)
	if err != nil {
		return "", err
	}

	if result.ID == "" {
		return "", platformErrorf(models.PlatformInstagram, "no creation id returned for media container")
	}
	return result.ID, nil
}

// waitForContainer polls the container's status_code until it reaches
// FINISHED. ERROR and EXPIRED are terminal; transient polling failures count
// against the same attempt budget, so the loop always terminates after at
// most pollMaxAttempts checks.
func (s *instagramService) waitForContainer(ctx context.Context, creationID, pageToken string) error {
	for attempt := 1; attempt <= s.pollMaxAttempts; attempt++ {
		status, err := s.containerStatus(ctx, creationID, pageToken)
		if err != nil {
			// A 400/404 on the container itself means it is gone; anything
			// else is transient and just burns an attempt.
			if pe, ok := err.(*PlatformError); ok && (pe.StatusCode == http.StatusBadRequest || pe.StatusCode == http.StatusNotFound) {
				return err
			}
			slog.Info(fmt.Sprintf("instagram container %s: transient poll failure: %v", creationID, err))
		} else {
			switch status {
			case containerStatusFinished:
				return nil
			case containerStatusError, containerStatusExpired:
				return platformErrorf(models.PlatformInstagram, "media container %s failed processing (status %s)", creationID, status)
			}
		}

		if attempt < s.pollMaxAttempts {
			select {
			case <-ctx.Done():
				return platformErrorf(models.PlatformInstagram, "publish cancelled while waiting for media container: %v", ctx.Err())
			case <-time.After(s.pollInterval):
			}
		}
	}

	return platformErrorf(models.PlatformInstagram, "media container %s not ready after %d checks", creationID, s.pollMaxAttempts)
}

func (s *instagramService) containerStatus(ctx context.Context, creationID, pageToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", s.graphURL, creationID, url.QueryEscape(pageToken))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", platformErrorf(models.PlatformInstagram, "error creating request: %v", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", platformErrorf(models.PlatformInstagram, "HTTP request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeGraphError(models.PlatformInstagram, resp)
	}

	var status transfer.InstagramContainerStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", platformErrorf(models.PlatformInstagram, "error parsing container status: %v", err)
	}
	return status.StatusCode, nil
}

func (s *instagramService) publishContainer(ctx context.Context, igAccountID, creationID, pageToken string) (string, error) {
	payload := map[string]interface{}{
		"creation_id":  creationID,
		"access_token": pageToken,
	}

	result, err := s.postJSON(ctx, fmt.Sprintf("%s/%s/media_publish", s.graphURL, igAccountID), payload)
	if err != nil {
		return "", err
	}

	if result.ID == "" {
		return "", platformErrorf(models.PlatformInstagram, "no post id returned from media_publish")
	}
	return result.ID, nil
}

func (s *instagramService) postJSON(ctx context.Context, reqURL string, payload map[string]interface{}) (*transfer.InstagramContainerStatus, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, platformErrorf(models.PlatformInstagram, "error marshalling payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, platformErrorf(models.PlatformInstagram, "error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, platformErrorf(models.PlatformInstagram, "HTTP request error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeGraphError(models.PlatformInstagram, resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, platformErrorf(models.PlatformInstagram, "error reading response body: %v", err)
	}

	var result transfer.InstagramContainerStatus
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, platformErrorf(models.PlatformInstagram, "error parsing response: %v", err)
	}
	return &result, nil
}
