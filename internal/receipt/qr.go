package receipt

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the rendered QR image size in pixels.
const DefaultQRSize = 400

// Encoder renders a signed receipt payload into a scannable image. Encoding
// fails when the payload exceeds QR capacity; the signed payload itself
// remains valid regardless.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

// QREncoder implements the Encoder interface using QR codes rendered as PNG
type QREncoder struct {
	size int
}

// NewQREncoder creates a new QREncoder with the given image size in pixels
func NewQREncoder(size int) *QREncoder {
	if size <= 0 {
		size = DefaultQRSize
	}
	return &QREncoder{size: size}
}

// Encode renders the payload as a PNG QR code
func (e *QREncoder) Encode(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, e.size)
	if err != nil {
		return nil, fmt.Errorf("encoding receipt qr: %w", err)
	}
	return png, nil
}
