package detect

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"
)

// classifyPrompt is the shared prompt used by all vision model providers for
// classifying the kiosk camera frame
const classifyPrompt = `You are the vision system of a recycling kiosk. Look at the camera frame and decide whether a single recyclable container is clearly visible in front of the camera.

Recognize common container classes such as: water bottle, pop bottle, wine bottle, can, cup.

Return ONLY valid JSON in this exact format:
{
  "label": "class name",
  "confidence": 0.0
}

Important:
- The label must be a short lowercase class name (for example "water bottle" or "can")
- The confidence must be a number between 0.0 and 1.0 (not a string)
- If no container is clearly visible, use null for the label
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// normalizeFrame converts a camera frame to PNG for the vision models. PNG
// frames pass through untouched.
func normalizeFrame(data []byte, contentType string) ([]byte, error) {
	if strings.Contains(strings.ToLower(contentType), "png") {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
