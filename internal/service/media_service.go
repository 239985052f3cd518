package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/postloom/postloom/configs"
)

// MediaService stores uploaded media in R2 and rebases stored object keys
// onto the configured public base URL so platform servers can fetch them.
type MediaService struct {
	config cfg.Config
}

func NewMediaService(cfg cfg.Config) *MediaService {
	return &MediaService{config: cfg}
}

func (m *MediaService) r2Client() (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.config.R2.AccessKey, m.config.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", m.config.R2.AccountID))
	}), nil
}

func (m *MediaService) Upload(ctx context.Context, key string, file []byte, contentType string) error {
	client, err := m.r2Client()
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

// ResolveURL turns a stored media reference into an absolute URL. Values that
// are already absolute pass through unchanged; object keys are rebased onto
// the public media base.
func (m *MediaService) ResolveURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return strings.TrimRight(m.config.PublicMediaURL, "/") + "/" + strings.TrimLeft(raw, "/")
}

// ensurePubliclyReachable rejects media URLs that platform servers cannot
// dereference, such as a localhost development base.
func ensurePubliclyReachable(platform, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return platformErrorf(platform, "invalid media url: %v", err)
	}

	host := parsed.Hostname()
	if host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return platformErrorf(platform, "media url %q is not publicly reachable", rawURL)
	}
	return nil
}
