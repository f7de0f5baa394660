package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Ollama implements the Detector interface using a local Ollama server.
// Useful for kiosks that cannot reach a hosted model.
type Ollama struct {
	baseURL string
	model   string
	frames  FrameSource
	policy  Policy
	client  *http.Client
}

// NewOllama creates a new Ollama Detector instance. llava is the default
// vision model; smaller variants trade accuracy for sample latency.
func NewOllama(baseURL string, modelName string, frames FrameSource, policy Policy) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}
	if frames == nil {
		return nil, fmt.Errorf("frame source is required")
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		frames:  frames,
		policy:  policy,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models can be slow on kiosk hardware
		},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Sample captures the current camera frame and classifies it
func (o *Ollama) Sample(ctx context.Context) (*Detection, error) {
	frame, contentType, err := o.frames.Capture()
	if err != nil {
		return nil, fmt.Errorf("capturing frame: %w", err)
	}

	finalFrame, err := normalizeFrame(frame, contentType)
	if err != nil {
		return nil, err
	}

	imageBase64 := base64.StdEncoding.EncodeToString(finalFrame)

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are the vision system of a recycling kiosk. You classify objects held in front of the camera.",
			},
			{
				Role:    "user",
				Content: classifyPrompt,
			},
		},
		Images: []string{imageBase64},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	det, err := parseDetectionJSON(chatResp.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing detection: %w", err)
	}
	if det == nil {
		return nil, nil
	}

	if !o.policy.Admit(*det) {
		slog.Debug("detection rejected by policy", "label", det.Label, "confidence", det.Confidence)
		return nil, nil
	}

	return det, nil
}

// Close closes the Ollama detector (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
