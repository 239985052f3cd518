package service

import (
	"testing"

	config "github.com/postloom/postloom/configs"
	"github.com/postloom/postloom/internal/models"
)

func TestResolveURL(t *testing.T) {
	m := NewMediaService(config.Config{PublicMediaURL: "https://media.example.com/"})

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"empty", "", ""},
		{"absolute https", "https://cdn.other.com/a.jpg", "https://cdn.other.com/a.jpg"},
		{"absolute http", "http://cdn.other.com/a.jpg", "http://cdn.other.com/a.jpg"},
		{"object key", "media/1/abc.jpg", "https://media.example.com/media/1/abc.jpg"},
		{"leading slash key", "/media/1/abc.jpg", "https://media.example.com/media/1/abc.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.ResolveURL(tt.raw); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestEnsurePubliclyReachable(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public host", "https://media.example.com/a.jpg", false},
		{"localhost", "http://localhost:9000/a.jpg", true},
		{"loopback ipv4", "http://127.0.0.1/a.jpg", true},
		{"loopback ipv6", "http://[::1]/a.jpg", true},
		{"no host", "/media/a.jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ensurePubliclyReachable(models.PlatformInstagram, tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q, got nil", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error for %q, got %v", tt.url, err)
			}
		})
	}
}
