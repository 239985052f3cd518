package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/postloom/postloom/internal/transfer"
)

// PlatformError is the normalized failure for any platform API call: platform
// name, upstream HTTP status (0 when the request never completed), and a
// human-readable message stored on the post's publish record.
type PlatformError struct {
	Platform   string
	StatusCode int
	Message    string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}

func platformErrorf(platform string, format string, args ...interface{}) *PlatformError {
	return &PlatformError{Platform: platform, Message: fmt.Sprintf(format, args...)}
}

// decodeGraphError maps a non-2xx Graph API response (Facebook and Instagram
// share the envelope) to a PlatformError.
func decodeGraphError(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var graphErr transfer.GraphErrorResponse
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &graphErr); err == nil && graphErr.Error.Message != "" {
		message = graphErr.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	}

	return &PlatformError{
		Platform:   platform,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// decodeLinkedinError maps a non-2xx LinkedIn REST response to a PlatformError.
func decodeLinkedinError(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var liErr transfer.LinkedinErrorResponse
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &liErr); err == nil && liErr.Message != "" {
		message = liErr.Message
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	}

	return &PlatformError{
		Platform:   platform,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
