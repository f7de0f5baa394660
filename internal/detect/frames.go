package detect

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFrameSource implements the FrameSource interface against a camera
// service that serves its latest snapshot over HTTP (e.g. an MJPEG snapshot
// endpoint).
type HTTPFrameSource struct {
	url    string
	client *http.Client
}

// NewHTTPFrameSource creates a new HTTPFrameSource instance
func NewHTTPFrameSource(url string) (*HTTPFrameSource, error) {
	if url == "" {
		return nil, fmt.Errorf("camera url is required")
	}
	return &HTTPFrameSource{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}, nil
}

// Capture fetches the latest frame from the camera service
func (h *HTTPFrameSource) Capture() ([]byte, string, error) {
	resp, err := h.client.Get(h.url)
	if err != nil {
		return nil, "", fmt.Errorf("fetching frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("camera service error (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading frame: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}
