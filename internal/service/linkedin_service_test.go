package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/transfer"
)

func newTestLinkedinService(srv *httptest.Server) *linkedinService {
	return &linkedinService{
		cfg:    config.Config{},
		apiURL: srv.URL,
		client: srv.Client(),
	}
}

func TestAuthorURN(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		account  string
		expected string
	}{
		{
			name:     "person id",
			platform: models.PlatformLinkedin,
			account:  "abc123",
			expected: "urn:li:person:abc123",
		},
		{
			name:     "organization id",
			platform: models.PlatformLinkedinCompany,
			account:  "555",
			expected: "urn:li:organization:555",
		},
		{
			name:     "already a person urn",
			platform: models.PlatformLinkedin,
			account:  "urn:li:person:abc123",
			expected: "urn:li:person:abc123",
		},
		{
			name:     "already an organization urn",
			platform: models.PlatformLinkedinCompany,
			account:  "urn:li:organization:555",
			expected: "urn:li:organization:555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &transfer.Credential{Platform: tt.platform, AccountID: tt.account}
			if got := authorURN(cred); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLinkedinPublish_TextPost(t *testing.T) {
	var ugcPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ugcPosts" {
			t.Errorf("unexpected request: %s", r.URL.Path)
			return
		}
		if r.Header.Get("X-Restli-Protocol-Version") != "2.0.0" {
			t.Errorf("missing Restli protocol header")
		}
		if r.Header.Get("Authorization") != "Bearer access-token" {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&ugcPayload)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"urn:li:share:1"}`)
	}))
	defer srv.Close()

	s := newTestLinkedinService(srv)
	cred := &transfer.Credential{Platform: models.PlatformLinkedin, AccountID: "abc", AccessToken: "access-token"}

	result, err := s.Publish(context.Background(), cred, &transfer.PublishInput{Caption: "hello network"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.ExternalPostID != "urn:li:share:1" {
		t.Errorf("expected share urn, got %s", result.ExternalPostID)
	}
	if ugcPayload["author"] != "urn:li:person:abc" {
		t.Errorf("expected person urn author, got %v", ugcPayload["author"])
	}

	content := ugcPayload["specificContent"].(map[string]interface{})["com.linkedin.ugc.ShareContent"].(map[string]interface{})
	if content["shareMediaCategory"] != "NONE" {
		t.Errorf("expected NONE media category for text post, got %v", content["shareMediaCategory"])
	}
}

func TestLinkedinPublish_ImagePost(t *testing.T) {
	var srv *httptest.Server
	uploaded := false
	var ugcPayload map[string]interface{}
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assets":
			resp := transfer.LinkedinRegisterUploadResponse{}
			resp.Value.Asset = "urn:li:digitalmediaAsset:img1"
			resp.Value.UploadMechanism.Request.UploadURL = srv.URL + "/upload"
			json.NewEncoder(w).Encode(resp)
		case "/img":
			w.Write([]byte("fake-image-bytes"))
		case "/upload":
			if r.Method != "PUT" {
				t.Errorf("expected PUT upload, got %s", r.Method)
			}
			if r.Header.Get("Content-Type") != "application/octet-stream" {
				t.Errorf("unexpected upload content type %q", r.Header.Get("Content-Type"))
			}
			uploaded = true
			w.WriteHeader(http.StatusCreated)
		case "/ugcPosts":
			json.NewDecoder(r.Body).Decode(&ugcPayload)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"urn:li:share:2"}`)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s := newTestLinkedinService(srv)
	cred := &transfer.Credential{Platform: models.PlatformLinkedin, AccountID: "abc", AccessToken: "access-token"}
	in := &transfer.PublishInput{Caption: "with picture", MediaURL: srv.URL + "/img"}

	result, err := s.Publish(context.Background(), cred, in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.ExternalPostID != "urn:li:share:2" {
		t.Errorf("expected share urn, got %s", result.ExternalPostID)
	}
	if !uploaded {
		t.Error("image bytes were never uploaded")
	}

	content := ugcPayload["specificContent"].(map[string]interface{})["com.linkedin.ugc.ShareContent"].(map[string]interface{})
	if content["shareMediaCategory"] != "IMAGE" {
		t.Errorf("expected IMAGE media category, got %v", content["shareMediaCategory"])
	}
	media := content["media"].([]interface{})
	if len(media) != 1 {
		t.Fatalf("expected 1 media entry, got %d", len(media))
	}
	if media[0].(map[string]interface{})["media"] != "urn:li:digitalmediaAsset:img1" {
		t.Errorf("share does not reference the uploaded asset: %v", media[0])
	}
}

func TestLinkedinPublish_CaptionTruncated(t *testing.T) {
	var ugcPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&ugcPayload)
		fmt.Fprint(w, `{"id":"urn:li:share:3"}`)
	}))
	defer srv.Close()

	s := newTestLinkedinService(srv)
	cred := &transfer.Credential{Platform: models.PlatformLinkedin, AccountID: "abc", AccessToken: "access-token"}

	_, err := s.Publish(context.Background(), cred, &transfer.PublishInput{
		Caption: strings.Repeat("x", linkedinCaptionLimit+50),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	content := ugcPayload["specificContent"].(map[string]interface{})["com.linkedin.ugc.ShareContent"].(map[string]interface{})
	text := content["shareCommentary"].(map[string]interface{})["text"].(string)
	if len([]rune(text)) != linkedinCaptionLimit {
		t.Errorf("expected caption cut to %d runes, got %d", linkedinCaptionLimit, len([]rune(text)))
	}
}

func TestLinkedinPublish_ErrorNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Invalid access token","serviceErrorCode":65600,"status":401}`)
	}))
	defer srv.Close()

	s := newTestLinkedinService(srv)
	cred := &transfer.Credential{Platform: models.PlatformLinkedin, AccountID: "abc", AccessToken: "expired"}

	_, err := s.Publish(context.Background(), cred, &transfer.PublishInput{Caption: "x"})
	pe, ok := err.(*PlatformError)
	if !ok {
		t.Fatalf("expected *PlatformError, got %T (%v)", err, err)
	}
	if pe.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", pe.StatusCode)
	}
	if pe.Message != "Invalid access token" {
		t.Errorf("expected upstream message, got %q", pe.Message)
	}
}
