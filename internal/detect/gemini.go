package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Detector interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	frames FrameSource
	policy Policy
}

// NewGemini creates a new Gemini Detector instance
func NewGemini(apiKey string, modelName string, frames FrameSource, policy Policy) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	if frames == nil {
		return nil, fmt.Errorf("frame source is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		client: client,
		model:  model,
		frames: frames,
		policy: policy,
	}, nil
}

// Sample captures the current camera frame and classifies it. A nil result
// means no admissible item is in front of the camera.
func (g *Gemini) Sample(ctx context.Context) (*Detection, error) {
	frame, contentType, err := g.frames.Capture()
	if err != nil {
		return nil, fmt.Errorf("capturing frame: %w", err)
	}

	finalFrame, err := normalizeFrame(frame, contentType)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix (e.g., "png"), not the
	// full MIME type. After normalizeFrame, everything is PNG.
	parts := []genai.Part{
		genai.ImageData("png", finalFrame),
		genai.Text(classifyPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	// Extract text response
	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	det, err := parseDetectionJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing detection: %w", err)
	}
	if det == nil {
		return nil, nil
	}

	if !g.policy.Admit(*det) {
		slog.Debug("detection rejected by policy", "label", det.Label, "confidence", det.Confidence)
		return nil, nil
	}

	return det, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
