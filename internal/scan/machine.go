package scan

import (
	"time"

	"github.com/trashure/kiosk/internal/detect"
)

const (
	// DefaultCountdownTicks is how many one-second ticks an item must stay
	// visible before it is confirmed.
	DefaultCountdownTicks = 3
	// DefaultTickInterval is the countdown tick interval.
	DefaultTickInterval = time.Second
	// DefaultSampleInterval is the fixed detector sampling cadence.
	DefaultSampleInterval = 500 * time.Millisecond
	// DefaultSampleTimeout bounds a single oracle call.
	DefaultSampleTimeout = 10 * time.Second
	// DefaultAutoHold is the success display hold after an automatic confirm.
	DefaultAutoHold = 2 * time.Second
	// DefaultManualHold is the success display hold after a manual confirm.
	DefaultManualHold = 1500 * time.Millisecond
)

// Config holds the scan timing parameters shared by the Machine and the
// Runner.
type Config struct {
	CountdownTicks int
	TickInterval   time.Duration
	SampleInterval time.Duration
	SampleTimeout  time.Duration
	AutoHold       time.Duration
	ManualHold     time.Duration
}

func (c Config) withDefaults() Config {
	if c.CountdownTicks <= 0 {
		c.CountdownTicks = DefaultCountdownTicks
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.SampleTimeout <= 0 {
		c.SampleTimeout = DefaultSampleTimeout
	}
	if c.AutoHold <= 0 {
		c.AutoHold = DefaultAutoHold
	}
	if c.ManualHold <= 0 {
		c.ManualHold = DefaultManualHold
	}
	return c
}

// Machine is the confirmation state machine. It turns a stream of noisy,
// repeating detection samples plus manual trigger requests into single
// confirmed-item transitions. All methods are synchronous; the caller is
// responsible for serializing them (the Runner does this).
type Machine struct {
	cfg   Config
	state State
	now   func() time.Time
}

// NewMachine creates a new Machine in the idle phase
func NewMachine(cfg Config) *Machine {
	return &Machine{
		cfg:   cfg.withDefaults(),
		state: State{Phase: PhaseIdle},
		now:   time.Now,
	}
}

// Config returns the effective timing configuration
func (m *Machine) Config() Config {
	return m.cfg
}

// State returns a copy of the current state
func (m *Machine) State() State {
	return m.state
}

// Sample applies one detector sample. A nil detection means nothing was
// recognized this cycle.
func (m *Machine) Sample(det *detect.Detection) Transition {
	switch m.state.Phase {
	case PhaseIdle:
		if det == nil {
			return Transition{Outcome: OutcomeNone}
		}
		ticks := m.cfg.CountdownTicks
		m.state = State{
			Phase:     PhaseDetecting,
			Label:     det.Label,
			Remaining: ticks,
			Deadline:  m.now().Add(time.Duration(ticks) * m.cfg.TickInterval),
		}
		return Transition{Outcome: OutcomeCountdownStarted, Label: det.Label}

	case PhaseDetecting:
		// The item must stay continuously visible with the same label for
		// the whole countdown. A swap to a different label cancels rather
		// than retargets; the new label starts its own countdown on the
		// next sample.
		if det == nil || det.Label != m.state.Label {
			label := m.state.Label
			m.state = State{Phase: PhaseIdle}
			return Transition{Outcome: OutcomeCountdownAborted, Label: label}
		}
		// Matching detections do not restart or affect the countdown.
		return Transition{Outcome: OutcomeNone}

	default:
		// No detections are consumed while in Success.
		return Transition{Outcome: OutcomeNone}
	}
}

// Tick applies one countdown tick. Only meaningful while Detecting.
func (m *Machine) Tick() Transition {
	if m.state.Phase != PhaseDetecting {
		return Transition{Outcome: OutcomeNone}
	}
	m.state.Remaining--
	if m.state.Remaining > 0 {
		return Transition{Outcome: OutcomeNone}
	}
	label := m.state.Label
	m.state = State{Phase: PhaseSuccess, Label: label}
	return Transition{Outcome: OutcomeConfirmed, Label: label}
}

// ForceConfirm applies a manual trigger with a freshly taken sample. It
// bypasses the countdown entirely: the user already decided to commit, so
// latency matters more than debounce robustness here.
func (m *Machine) ForceConfirm(det *detect.Detection) Transition {
	if m.state.Phase != PhaseIdle {
		return Transition{Outcome: OutcomeNotReady}
	}
	if det == nil {
		return Transition{Outcome: OutcomeNoDetection}
	}
	m.state = State{Phase: PhaseSuccess, Label: det.Label, Manual: true}
	return Transition{Outcome: OutcomeConfirmed, Label: det.Label, Manual: true}
}

// CompleteHold ends the success display hold and returns the machine to idle
func (m *Machine) CompleteHold() Transition {
	if m.state.Phase != PhaseSuccess {
		return Transition{Outcome: OutcomeNone}
	}
	m.state = State{Phase: PhaseIdle}
	return Transition{Outcome: OutcomeIdle}
}
