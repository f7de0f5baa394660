package detect

import (
	"encoding/json"
	"fmt"
	"strings"
)

// detectionJSON mirrors the JSON shape the vision models are prompted to
// return. Label is a pointer so an explicit null (nothing in frame) can be
// told apart from a missing field.
type detectionJSON struct {
	Label      *string `json:"label"`
	Confidence float64 `json:"confidence"`
}

// parseDetectionJSON parses the JSON response from a vision model. It
// returns (nil, nil) when the model reports no object, and an error only
// when the response is not usable JSON.
func parseDetectionJSON(text string) (*Detection, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw detectionJSON
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if raw.Label == nil {
		return nil, nil
	}

	label := strings.ToLower(strings.TrimSpace(*raw.Label))
	if label == "" || label == "null" || label == "none" {
		return nil, nil
	}

	confidence := raw.Confidence
	if confidence <= 0 {
		return nil, nil
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Detection{
		Label:      label,
		Confidence: confidence,
	}, nil
}
