package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/trashure/kiosk/internal/detect"
)

// stubDetector returns whatever detection it is currently scripted with.
type stubDetector struct {
	mu  sync.Mutex
	det *detect.Detection
	err error
}

func (s *stubDetector) Sample(ctx context.Context) (*detect.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.det, s.err
}

func (s *stubDetector) Close() error { return nil }

func (s *stubDetector) set(det *detect.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.det = det
}

func (s *stubDetector) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type confirmEntry struct {
	label  string
	manual bool
}

type confirmLog struct {
	mu      sync.Mutex
	entries []confirmEntry
}

func (l *confirmLog) record(label string, manual bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, confirmEntry{label: label, manual: manual})
}

func (l *confirmLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *confirmLog) all() []confirmEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]confirmEntry(nil), l.entries...)
}

var _ = Describe("Runner", func() {
	var (
		detector *stubDetector
		confirms *confirmLog
		cfg      Config
		runner   *Runner
	)

	BeforeEach(func() {
		detector = &stubDetector{}
		confirms = &confirmLog{}
		cfg = Config{
			CountdownTicks: 3,
			TickInterval:   5 * time.Millisecond,
			SampleInterval: 5 * time.Millisecond,
			SampleTimeout:  time.Second,
			AutoHold:       20 * time.Millisecond,
			ManualHold:     20 * time.Millisecond,
		}
	})

	JustBeforeEach(func() {
		runner = NewRunner(NewMachine(cfg), detector, confirms.record)
		runner.Start()
	})

	AfterEach(func() {
		runner.Stop()
	})

	Describe("automatic confirmation", func() {
		When("an item stays visible for the whole countdown", func() {
			BeforeEach(func() {
				detector.set(d("can"))
			})

			It("confirms it exactly once and returns to idle", func() {
				Eventually(confirms.count, "2s", "2ms").Should(Equal(1))
				detector.set(nil)

				entries := confirms.all()
				Expect(entries[0].label).To(Equal("can"))
				Expect(entries[0].manual).To(BeFalse())

				Consistently(confirms.count, "100ms", "5ms").Should(Equal(1))
				Eventually(func() Phase { return runner.State().Phase }, "1s", "2ms").Should(Equal(PhaseIdle))
			})
		})

		When("the item disappears mid-countdown", func() {
			BeforeEach(func() {
				cfg.CountdownTicks = 100
				detector.set(d("can"))
			})

			It("aborts without confirming", func() {
				Eventually(func() Phase { return runner.State().Phase }, "1s", "2ms").Should(Equal(PhaseDetecting))
				detector.set(nil)

				Eventually(func() Phase { return runner.State().Phase }, "1s", "2ms").Should(Equal(PhaseIdle))
				Expect(confirms.count()).To(Equal(0))
			})
		})

		When("the label swaps mid-countdown", func() {
			BeforeEach(func() {
				cfg.CountdownTicks = 100
				detector.set(d("can"))
			})

			It("starts a fresh countdown for the new label", func() {
				Eventually(func() string { return runner.State().Label }, "1s", "2ms").Should(Equal("can"))
				detector.set(d("cup"))

				Eventually(func() string { return runner.State().Label }, "1s", "2ms").Should(Equal("cup"))
				Expect(confirms.count()).To(Equal(0))
			})
		})

		When("the detector fails", func() {
			BeforeEach(func() {
				detector.fail(errors.New("oracle offline"))
			})

			It("treats failures as nothing detected and recovers", func() {
				Consistently(func() Phase { return runner.State().Phase }, "50ms", "5ms").Should(Equal(PhaseIdle))
				Expect(confirms.count()).To(Equal(0))

				detector.fail(nil)
				detector.set(d("can"))
				Eventually(confirms.count, "2s", "2ms").Should(Equal(1))
			})
		})
	})

	Describe("ForceConfirm", func() {
		BeforeEach(func() {
			// No background sampling so the manual path is the only actor.
			cfg.SampleInterval = time.Hour
		})

		When("idle with an item present", func() {
			BeforeEach(func() {
				detector.set(d("cup"))
			})

			It("confirms immediately", func() {
				tr := runner.ForceConfirm()
				Expect(tr.Outcome).To(Equal(OutcomeConfirmed))
				Expect(tr.Label).To(Equal("cup"))
				Expect(tr.Manual).To(BeTrue())

				entries := confirms.all()
				Expect(entries).To(HaveLen(1))
				Expect(entries[0].manual).To(BeTrue())
			})
		})

		When("idle with nothing on the platform", func() {
			It("reports no detection", func() {
				tr := runner.ForceConfirm()
				Expect(tr.Outcome).To(Equal(OutcomeNoDetection))
				Expect(confirms.count()).To(Equal(0))
				Expect(runner.State().Phase).To(Equal(PhaseIdle))
			})
		})

		When("during the success hold", func() {
			BeforeEach(func() {
				cfg.ManualHold = time.Hour
				detector.set(d("cup"))
			})

			It("is rejected", func() {
				Expect(runner.ForceConfirm().Outcome).To(Equal(OutcomeConfirmed))
				Expect(runner.ForceConfirm().Outcome).To(Equal(OutcomeNotReady))
				Expect(confirms.count()).To(Equal(1))
			})
		})

		When("the runner has stopped", func() {
			It("is rejected", func() {
				runner.Stop()
				Expect(runner.ForceConfirm().Outcome).To(Equal(OutcomeNotReady))
			})
		})
	})

	Describe("confirm ordering", func() {
		BeforeEach(func() {
			cfg.SampleInterval = time.Hour
			cfg.ManualHold = 5 * time.Millisecond
		})

		It("delivers callbacks in confirmation order", func() {
			detector.set(d("can"))
			Expect(runner.ForceConfirm().Outcome).To(Equal(OutcomeConfirmed))
			Eventually(func() Phase { return runner.State().Phase }, "1s", "2ms").Should(Equal(PhaseIdle))

			detector.set(d("cup"))
			Expect(runner.ForceConfirm().Outcome).To(Equal(OutcomeConfirmed))

			entries := confirms.all()
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].label).To(Equal("can"))
			Expect(entries[1].label).To(Equal("cup"))
		})
	})
})
