package detect

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// stubFrameSource serves a canned frame
type stubFrameSource struct {
	data        []byte
	contentType string
	err         error
}

func (s *stubFrameSource) Capture() ([]byte, string, error) {
	return s.data, s.contentType, s.err
}

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		frames   *stubFrameSource
		detector *Ollama
	)

	chatResponse := func(content string) map[string]any {
		return map[string]any{
			"message": map[string]any{"role": "assistant", "content": content},
			"done":    true,
		}
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		frames = &stubFrameSource{data: []byte("fake-png-frame"), contentType: "image/png"}

		var err error
		detector, err = NewOllama(server.URL(), "llava", frames, DefaultPolicy())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("NewOllama", func() {
		It("requires a frame source", func() {
			_, err := NewOllama(server.URL(), "llava", nil, DefaultPolicy())
			Expect(err).To(MatchError(ContainSubstring("frame source is required")))
		})
	})

	Describe("Sample", func() {
		When("the model reports an admissible container", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/api/chat"),
					ghttp.VerifyContentType("application/json"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, chatResponse(`{"label": "can", "confidence": 0.9}`)),
				))
			})

			It("returns the detection", func() {
				det, err := detector.Sample(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(det).NotTo(BeNil())
				Expect(det.Label).To(Equal("can"))
				Expect(det.Confidence).To(Equal(0.9))
			})
		})

		When("the model reports a disallowed object", func() {
			BeforeEach(func() {
				server.AppendHandlers(
					ghttp.RespondWithJSONEncoded(http.StatusOK, chatResponse(`{"label": "banana peel", "confidence": 0.9}`)),
				)
			})

			It("returns nothing detected", func() {
				det, err := detector.Sample(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(det).To(BeNil())
			})
		})

		When("the model reports low confidence", func() {
			BeforeEach(func() {
				server.AppendHandlers(
					ghttp.RespondWithJSONEncoded(http.StatusOK, chatResponse(`{"label": "can", "confidence": 0.1}`)),
				)
			})

			It("returns nothing detected", func() {
				det, err := detector.Sample(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(det).To(BeNil())
			})
		})

		When("the model sees an empty platform", func() {
			BeforeEach(func() {
				server.AppendHandlers(
					ghttp.RespondWithJSONEncoded(http.StatusOK, chatResponse(`{"label": null, "confidence": 0}`)),
				)
			})

			It("returns nothing detected", func() {
				det, err := detector.Sample(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(det).To(BeNil())
			})
		})

		When("the API returns an error status", func() {
			BeforeEach(func() {
				server.AppendHandlers(
					ghttp.RespondWith(http.StatusInternalServerError, "model crashed"),
				)
			})

			It("returns an error", func() {
				_, err := detector.Sample(context.Background())
				Expect(err).To(MatchError(ContainSubstring("ollama API error")))
			})
		})

		When("the camera is unavailable", func() {
			BeforeEach(func() {
				frames.err = errors.New("camera offline")
			})

			It("returns an error without calling the API", func() {
				_, err := detector.Sample(context.Background())
				Expect(err).To(MatchError(ContainSubstring("capturing frame")))
				Expect(server.ReceivedRequests()).To(BeEmpty())
			})
		})
	})
})

var _ = Describe("HTTPFrameSource", func() {
	var server *ghttp.Server

	BeforeEach(func() {
		server = ghttp.NewServer()
	})

	AfterEach(func() {
		server.Close()
	})

	It("fetches the latest snapshot", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest("GET", "/frame"),
			ghttp.RespondWith(http.StatusOK, "jpeg-bytes", http.Header{"Content-Type": []string{"image/jpeg"}}),
		))

		frames, err := NewHTTPFrameSource(fmt.Sprintf("%s/frame", server.URL()))
		Expect(err).NotTo(HaveOccurred())

		data, contentType, err := frames.Capture()
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("jpeg-bytes")))
		Expect(contentType).To(Equal("image/jpeg"))
	})

	It("defaults the content type to JPEG", func() {
		server.AppendHandlers(
			ghttp.RespondWith(http.StatusOK, "frame", http.Header{"Content-Type": []string{""}}),
		)

		frames, err := NewHTTPFrameSource(server.URL())
		Expect(err).NotTo(HaveOccurred())

		_, contentType, err := frames.Capture()
		Expect(err).NotTo(HaveOccurred())
		Expect(contentType).To(Equal("image/jpeg"))
	})

	It("rejects non-OK camera responses", func() {
		server.AppendHandlers(
			ghttp.RespondWith(http.StatusServiceUnavailable, ""),
		)

		frames, err := NewHTTPFrameSource(server.URL())
		Expect(err).NotTo(HaveOccurred())

		_, _, err = frames.Capture()
		Expect(err).To(MatchError(ContainSubstring("camera service error")))
	})

	It("requires a url", func() {
		_, err := NewHTTPFrameSource("")
		Expect(err).To(MatchError(ContainSubstring("camera url is required")))
	})
})
