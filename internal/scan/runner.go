package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/trashure/kiosk/internal/detect"
	"github.com/trashure/kiosk/internal/metrics"
)

// ConfirmFunc is called exactly once per confirmed item, from the runner's
// event loop, in the order the confirms happened.
type ConfirmFunc func(label string, manual bool)

type forceRequest struct {
	reply chan Transition
}

// Runner drives a Machine from a single event loop goroutine. It owns the
// three timer sources of a scan session - the fixed-cadence detector
// sampler, the countdown ticker that only exists while Detecting, and the
// success-hold timer - and guarantees all of them are cancelled when their
// owning state is left and when the runner stops.
type Runner struct {
	mu        sync.Mutex
	machine   *Machine
	detector  detect.Detector
	onConfirm ConfirmFunc
	cfg       Config

	cmds     chan forceRequest
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRunner creates a new Runner around a machine. The runner does not
// start sampling until Start is called.
func NewRunner(machine *Machine, detector detect.Detector, onConfirm ConfirmFunc) *Runner {
	return &Runner{
		machine:   machine,
		detector:  detector,
		onConfirm: onConfirm,
		cfg:       machine.Config(),
		cmds:      make(chan forceRequest),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the event loop
func (r *Runner) Start() {
	go r.loop()
}

// Stop terminates the event loop and waits for it to exit. After Stop
// returns, no further confirm callbacks will be delivered. Safe to call
// more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
	<-r.done
}

// State returns a copy of the machine's current state
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.State()
}

// ForceConfirm requests a manual single-shot scan and waits for its result.
// It is rejected (OutcomeNotReady) while the machine is not idle or after
// the runner has stopped; it is never queued.
func (r *Runner) ForceConfirm() Transition {
	req := forceRequest{reply: make(chan Transition, 1)}
	select {
	case r.cmds <- req:
		return <-req.reply
	case <-r.done:
		return Transition{Outcome: OutcomeNotReady}
	}
}

func (r *Runner) loop() {
	defer close(r.done)

	sampler := time.NewTicker(r.cfg.SampleInterval)
	defer sampler.Stop()

	// The countdown ticker and hold timer exist only in their owning
	// phases; a nil channel never fires in the select below.
	var countdown *time.Ticker
	var countdownC <-chan time.Time
	var hold *time.Timer
	var holdC <-chan time.Time

	stopCountdown := func() {
		if countdown != nil {
			countdown.Stop()
			countdown = nil
			countdownC = nil
		}
	}
	stopHold := func() {
		if hold != nil {
			hold.Stop()
			hold = nil
			holdC = nil
		}
	}
	defer stopCountdown()
	defer stopHold()

	startHold := func(manual bool) {
		d := r.cfg.AutoHold
		if manual {
			d = r.cfg.ManualHold
		}
		hold = time.NewTimer(d)
		holdC = hold.C
	}

	confirm := func(tr Transition) {
		stopCountdown()
		startHold(tr.Manual)
		mode := "auto"
		if tr.Manual {
			mode = "manual"
		}
		metrics.ItemsConfirmedTotal.WithLabelValues(mode).Inc()
		if r.onConfirm != nil {
			r.onConfirm(tr.Label, tr.Manual)
		}
	}

	for {
		select {
		case <-r.quit:
			return

		case <-sampler.C:
			r.mu.Lock()
			inSuccess := r.machine.State().Phase == PhaseSuccess
			r.mu.Unlock()
			if inSuccess {
				continue
			}
			det := r.sample()
			r.mu.Lock()
			tr := r.machine.Sample(det)
			r.mu.Unlock()
			switch tr.Outcome {
			case OutcomeCountdownStarted:
				slog.Debug("countdown started", "label", tr.Label)
				countdown = time.NewTicker(r.cfg.TickInterval)
				countdownC = countdown.C
			case OutcomeCountdownAborted:
				slog.Debug("countdown aborted", "label", tr.Label)
				metrics.CountdownAbortsTotal.Inc()
				stopCountdown()
			}

		case <-countdownC:
			r.mu.Lock()
			tr := r.machine.Tick()
			r.mu.Unlock()
			if tr.Outcome == OutcomeConfirmed {
				confirm(tr)
			}

		case <-holdC:
			stopHold()
			r.mu.Lock()
			r.machine.CompleteHold()
			r.mu.Unlock()

		case req := <-r.cmds:
			r.mu.Lock()
			phase := r.machine.State().Phase
			r.mu.Unlock()
			if phase != PhaseIdle {
				req.reply <- Transition{Outcome: OutcomeNotReady}
				continue
			}
			// The manual path takes one fresh sample and commits on it.
			det := r.sample()
			r.mu.Lock()
			tr := r.machine.ForceConfirm(det)
			r.mu.Unlock()
			if tr.Outcome == OutcomeConfirmed {
				confirm(tr)
			}
			req.reply <- tr
		}
	}
}

// sample calls the detector once. Oracle failures are logged and treated as
// "nothing detected" so a flaky model never aborts the session.
func (r *Runner) sample() *detect.Detection {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SampleTimeout)
	defer cancel()

	det, err := r.detector.Sample(ctx)
	if err != nil {
		slog.Warn("detector sample failed", "error", err)
		metrics.DetectionSamplesTotal.WithLabelValues("error").Inc()
		return nil
	}
	if det == nil {
		metrics.DetectionSamplesTotal.WithLabelValues("none").Inc()
		return nil
	}
	metrics.DetectionSamplesTotal.WithLabelValues("detected").Inc()
	return det
}
