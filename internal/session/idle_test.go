package session_test

import (
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/trashure/kiosk/internal/session"
)

var _ = Describe("IdleTimer", func() {
	var (
		fired *atomic.Int32
		timer *session.IdleTimer
	)

	BeforeEach(func() {
		fired = &atomic.Int32{}
		counter := fired
		timer = session.NewIdleTimer(func() { counter.Add(1) })
	})

	AfterEach(func() {
		timer.Stop()
	})

	Describe("Start", func() {
		It("fires the expiry callback exactly once when the deadline passes", func() {
			timer.Start(20 * time.Millisecond)
			Eventually(fired.Load, "1s", "2ms").Should(Equal(int32(1)))
			Consistently(fired.Load, "60ms", "5ms").Should(Equal(int32(1)))
		})

		It("replaces a previous cycle", func() {
			timer.Start(20 * time.Millisecond)
			timer.Start(time.Hour)
			Consistently(fired.Load, "60ms", "5ms").Should(Equal(int32(0)))
		})
	})

	Describe("Reset", func() {
		It("pushes the deadline back by the full duration", func() {
			timer.Start(150 * time.Millisecond)
			for i := 0; i < 4; i++ {
				time.Sleep(50 * time.Millisecond)
				timer.Reset()
			}
			// Resets kept arriving well inside the window, so no expiry yet.
			Expect(fired.Load()).To(Equal(int32(0)))

			Eventually(fired.Load, "1s", "2ms").Should(Equal(int32(1)))
		})

		It("is inert before Start", func() {
			timer.Reset()
			Expect(timer.Remaining()).To(BeZero())
			Consistently(fired.Load, "30ms", "5ms").Should(Equal(int32(0)))
		})

		It("is inert after expiry", func() {
			timer.Start(10 * time.Millisecond)
			Eventually(fired.Load, "1s", "2ms").Should(Equal(int32(1)))

			timer.Reset()
			Expect(timer.Remaining()).To(BeZero())
			Consistently(fired.Load, "60ms", "5ms").Should(Equal(int32(1)))
		})
	})

	Describe("Remaining", func() {
		It("is zero before Start", func() {
			Expect(timer.Remaining()).To(BeZero())
		})

		It("tracks the authoritative deadline", func() {
			timer.Start(time.Hour)
			rem := timer.Remaining()
			Expect(rem).To(BeNumerically(">", 59*time.Minute))
			Expect(rem).To(BeNumerically("<=", time.Hour))
		})

		It("is zero after expiry", func() {
			timer.Start(10 * time.Millisecond)
			Eventually(fired.Load, "1s", "2ms").Should(Equal(int32(1)))
			Expect(timer.Remaining()).To(BeZero())
		})
	})

	Describe("Stop", func() {
		It("cancels without firing", func() {
			timer.Start(20 * time.Millisecond)
			timer.Stop()
			Consistently(fired.Load, "60ms", "5ms").Should(Equal(int32(0)))
			Expect(timer.Remaining()).To(BeZero())
		})
	})
})
