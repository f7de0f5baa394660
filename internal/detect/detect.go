package detect

import "context"

// Detection is a single confident classification of the object in front of
// the camera. Detections are transient: each sample produces a fresh one and
// nothing is persisted.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // in (0, 1]
}

// Detector defines the interface for the classification oracle. Sample
// returns nil (with a nil error) when nothing is confidently recognized;
// that is a normal outcome, not an error.
type Detector interface {
	// Sample classifies the current camera frame
	Sample(ctx context.Context) (*Detection, error)
	// Close closes the detector and releases resources
	Close() error
}

// FrameSource provides the latest camera frame. The camera itself is an
// external collaborator; the kiosk only ever asks it for a snapshot.
type FrameSource interface {
	// Capture returns the most recent frame and its content type
	Capture() (data []byte, contentType string, err error)
}
