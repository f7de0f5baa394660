package scan

import "time"

// Phase is the current phase of the confirmation state machine.
type Phase int

const (
	// PhaseIdle means no item is being tracked.
	PhaseIdle Phase = iota
	// PhaseDetecting means an item is visible and the countdown is running.
	PhaseDetecting
	// PhaseSuccess means an item was just confirmed and the success display
	// hold is in progress.
	PhaseSuccess
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDetecting:
		return "detecting"
	case PhaseSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// State is the full state of the confirmation machine. Exactly one instance
// exists per active scan session; it is mutated only through the Machine's
// transition methods.
type State struct {
	Phase     Phase
	Label     string    // item being tracked (Detecting) or just confirmed (Success)
	Remaining int       // countdown ticks left while Detecting
	Deadline  time.Time // when the countdown completes while Detecting
	Manual    bool      // Success was entered via the manual path
}

// Outcome describes the externally visible result of applying an input to
// the machine.
type Outcome int

const (
	// OutcomeNone means the input caused no externally visible change.
	OutcomeNone Outcome = iota
	// OutcomeCountdownStarted means a new item entered the countdown.
	OutcomeCountdownStarted
	// OutcomeCountdownAborted means the countdown was cancelled because the
	// item disappeared or changed.
	OutcomeCountdownAborted
	// OutcomeConfirmed means the item was confirmed; exactly one confirmed
	// event is emitted per transition with this outcome.
	OutcomeConfirmed
	// OutcomeNoDetection means a manual scan found nothing in front of the
	// camera. A reported result, not an error and not a persisted state.
	OutcomeNoDetection
	// OutcomeNotReady means a manual scan was requested while the machine
	// was not idle; the request is ignored.
	OutcomeNotReady
	// OutcomeIdle means the success hold completed and the machine returned
	// to idle.
	OutcomeIdle
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeCountdownStarted:
		return "countdown_started"
	case OutcomeCountdownAborted:
		return "countdown_aborted"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeNoDetection:
		return "no_detection"
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Transition is the result of applying one input to the machine.
type Transition struct {
	Outcome Outcome
	Label   string // item label for countdown and confirm outcomes
	Manual  bool   // confirm came from the manual path
}
