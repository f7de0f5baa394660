package receipt_test

import (
	"bytes"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/trashure/kiosk/internal/receipt"
)

var _ = Describe("QREncoder", func() {
	var encoder *receipt.QREncoder

	BeforeEach(func() {
		encoder = receipt.NewQREncoder(receipt.DefaultQRSize)
	})

	Describe("Encode", func() {
		It("renders a payload as a PNG of the configured size", func() {
			data, err := encoder.Encode(`{"kioskId":"kiosk_001","points":10}`)
			Expect(err).NotTo(HaveOccurred())

			img, err := png.Decode(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(receipt.DefaultQRSize))
		})

		It("fails when the payload exceeds QR capacity", func() {
			_, err := encoder.Encode(strings.Repeat("x", 10000))
			Expect(err).To(MatchError(ContainSubstring("encoding receipt qr")))
		})
	})

	Describe("NewQREncoder", func() {
		It("falls back to the default size for non-positive sizes", func() {
			data, err := receipt.NewQREncoder(0).Encode("hello")
			Expect(err).NotTo(HaveOccurred())

			img, err := png.Decode(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(receipt.DefaultQRSize))
		})
	})
})

var _ = Describe("LocalImageStore", func() {
	var store *receipt.LocalImageStore

	BeforeEach(func() {
		var err error
		store, err = receipt.NewLocalImageStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips an image by nonce", func() {
		path, err := store.Save("nonce-1", []byte("png-bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix("nonce-1.png"))

		data, err := store.Get("nonce-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("png-bytes")))
	})

	It("errors on a missing image", func() {
		_, err := store.Get("missing")
		Expect(err).To(HaveOccurred())
	})

	It("deletes stored images", func() {
		_, err := store.Save("nonce-1", []byte("png-bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Delete("nonce-1")).To(Succeed())

		_, err = store.Get("nonce-1")
		Expect(err).To(HaveOccurred())
	})
})
