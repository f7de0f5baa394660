package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client implements the Service interface against the account backend's
// HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new account Client instance
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("account service url is required")
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// GetProfile looks up a user profile. A 404 means the user does not exist
// and is reported as (nil, nil), not an error.
func (c *Client) GetProfile(ctx context.Context, id string) (*Profile, error) {
	reqURL := fmt.Sprintf("%s/api/users/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling account API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("account API error (status %d): %s", resp.StatusCode, string(body))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &profile, nil
}

// AddPoints credits points to a user's account
func (c *Client) AddPoints(ctx context.Context, id string, points int) error {
	body, err := json.Marshal(map[string]int{"points": points})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/api/users/%s/points", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling account API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("account API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
