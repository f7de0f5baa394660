package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// ImageStore defines the interface for storing rendered QR images
type ImageStore interface {
	// Save stores the rendered image for a receipt nonce and returns its path
	Save(nonce string, png []byte) (string, error)

	// Get retrieves the rendered image for a receipt nonce
	Get(nonce string) ([]byte, error)

	// Delete removes the rendered image for a receipt nonce
	Delete(nonce string) error
}

// LocalImageStore implements the ImageStore interface using the local
// filesystem, one PNG per receipt nonce.
type LocalImageStore struct {
	basePath string
}

// NewLocalImageStore creates a new LocalImageStore instance
func NewLocalImageStore(basePath string) (*LocalImageStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &LocalImageStore{basePath: basePath}, nil
}

func (l *LocalImageStore) path(nonce string) string {
	return filepath.Join(l.basePath, nonce+".png")
}

// Save stores a rendered QR image
func (l *LocalImageStore) Save(nonce string, png []byte) (string, error) {
	path := l.path(nonce)
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return path, nil
}

// Get retrieves a rendered QR image
func (l *LocalImageStore) Get(nonce string) ([]byte, error) {
	data, err := os.ReadFile(l.path(nonce))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// Delete removes a rendered QR image
func (l *LocalImageStore) Delete(nonce string) error {
	if err := os.Remove(l.path(nonce)); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
