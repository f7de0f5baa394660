package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trashure/kiosk/internal/account"
	"github.com/trashure/kiosk/internal/detect"
	"github.com/trashure/kiosk/internal/metrics"
	"github.com/trashure/kiosk/internal/receipt"
	"github.com/trashure/kiosk/internal/scan"
	"github.com/trashure/kiosk/internal/session"
)

// Finalize reasons.
const (
	ReasonFinished    = "finished"
	ReasonIdleTimeout = "idle_timeout"
)

var (
	// ErrNoSession is returned when an operation needs an active scan
	// session and none exists.
	ErrNoSession = errors.New("no active session")

	// ErrSessionActive is returned when a session start is requested while
	// one is already running. The kiosk runs exactly one session at a time.
	ErrSessionActive = errors.New("a session is already active")
)

// Config holds the kiosk-wide settings. The kiosk identity and signing
// secret are process-wide read-only configuration.
type Config struct {
	KioskID       string
	PointsPerItem int
	IdleTimeout   time.Duration
	Scan          scan.Config
}

// IDGenerator generates unique session IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates session IDs using random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// activeSession bundles everything owned by one scan session. The session
// context is created at session start and consumed by Finish; nothing about
// it is global.
type activeSession struct {
	id        string
	user      *account.Profile
	ledger    *session.Ledger
	idle      *session.IdleTimer
	runner    *scan.Runner
	startedAt time.Time
}

// Service coordinates the kiosk's single active scan session and the
// receipt pipeline around it.
type Service struct {
	cfg      Config
	detector detect.Detector
	accounts account.Service // nil disables profile lookup and crediting
	signer   *receipt.Signer
	encoder  receipt.Encoder
	archive  receipt.Archive
	images   receipt.ImageStore
	idGen    IDGenerator
	clock    TimeSource

	mu     sync.Mutex
	active *activeSession
}

// NewService creates a new Service with default ID generator and time source
func NewService(cfg Config, detector detect.Detector, accounts account.Service, signer *receipt.Signer, encoder receipt.Encoder, archive receipt.Archive, images receipt.ImageStore) *Service {
	return NewServiceWithDeps(cfg, detector, accounts, signer, encoder, archive, images, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(cfg Config, detector detect.Detector, accounts account.Service, signer *receipt.Signer, encoder receipt.Encoder, archive receipt.Archive, images receipt.ImageStore, idGen IDGenerator, clock TimeSource) *Service {
	if cfg.PointsPerItem <= 0 {
		cfg.PointsPerItem = session.DefaultPointsPerItem
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &Service{
		cfg:      cfg,
		detector: detector,
		accounts: accounts,
		signer:   signer,
		encoder:  encoder,
		archive:  archive,
		images:   images,
		idGen:    idGen,
		clock:    clock,
	}
}

// SessionStatus is a read-only snapshot of the active session for the UI
// layer. Countdown and idle values are derived from the authoritative
// deadlines, never from separately maintained counters.
type SessionStatus struct {
	SessionID          string           `json:"session_id"`
	User               *account.Profile `json:"user,omitempty"`
	Phase              string           `json:"phase"`
	DetectingLabel     string           `json:"detecting_label,omitempty"`
	CountdownRemaining int              `json:"countdown_remaining,omitempty"`
	Items              []session.Item   `json:"items"`
	TotalPoints        int              `json:"total_points"`
	IdleRemainingMs    int64            `json:"idle_remaining_ms"`
	StartedAt          time.Time        `json:"started_at"`
}

// ManualScanResult is the reported outcome of a manual scan request
type ManualScanResult struct {
	Result string `json:"result"` // confirmed, not_found, not_ready
	Label  string `json:"label,omitempty"`
}

// FinishResult is the outcome of finalizing a session
type FinishResult struct {
	Receipt     receipt.SignedReceipt `json:"receipt"`
	Payload     string                `json:"payload"`
	QRAvailable bool                  `json:"qr_available"`
	Credit      string                `json:"credit"` // credited, failed, none
}

// StartSession starts a new scan session, optionally attached to a user. A
// failed or empty profile lookup degrades to a guest session; it never
// blocks scanning.
func (s *Service) StartSession(ctx context.Context, userID string) (*SessionStatus, error) {
	var user *account.Profile
	if userID != "" && s.accounts != nil {
		profile, err := s.accounts.GetProfile(ctx, userID)
		switch {
		case err != nil:
			slog.Warn("profile lookup failed, continuing as guest", "user", userID, "error", err)
		case profile == nil:
			slog.Warn("user not found, continuing as guest", "user", userID)
		default:
			user = profile
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, ErrSessionActive
	}

	id := s.idGen.Generate()
	attachedID := ""
	if user != nil {
		attachedID = user.ID
	}
	ledger := session.NewLedger(s.cfg.KioskID, attachedID, s.cfg.PointsPerItem)

	idle := session.NewIdleTimer(func() {
		s.expireSession(id)
	})

	machine := scan.NewMachine(s.cfg.Scan)
	runner := scan.NewRunner(machine, s.detector, func(label string, manual bool) {
		item, err := ledger.Append(label)
		if err != nil {
			// Cannot happen while the runner is live: the runner is always
			// stopped before the ledger is finalized.
			slog.Error("appending confirmed item", "label", label, "error", err)
			return
		}
		idle.Reset() // a confirmed scan is activity
		slog.Info("item confirmed",
			"session", id,
			"label", label,
			"manual", manual,
			"sequence", item.Sequence,
		)
	})

	sess := &activeSession{
		id:        id,
		user:      user,
		ledger:    ledger,
		idle:      idle,
		runner:    runner,
		startedAt: s.clock.Now(),
	}
	s.active = sess

	runner.Start()
	idle.Start(s.cfg.IdleTimeout)
	metrics.SessionsStartedTotal.Inc()
	slog.Info("session started", "session", id, "user", attachedID)

	return s.status(sess), nil
}

// Status returns a snapshot of the active session
func (s *Service) Status() (*SessionStatus, error) {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess == nil {
		return nil, ErrNoSession
	}
	return s.status(sess), nil
}

func (s *Service) status(sess *activeSession) *SessionStatus {
	st := sess.runner.State()
	status := &SessionStatus{
		SessionID:       sess.id,
		User:            sess.user,
		Phase:           st.Phase.String(),
		Items:           sess.ledger.Items(),
		TotalPoints:     sess.ledger.TotalPoints(),
		IdleRemainingMs: sess.idle.Remaining().Milliseconds(),
		StartedAt:       sess.startedAt,
	}
	if st.Phase == scan.PhaseDetecting {
		status.DetectingLabel = st.Label
		status.CountdownRemaining = st.Remaining
	}
	return status
}

// ForceConfirm performs a manual single-shot scan on the active session.
// The manual trigger itself counts as activity even when nothing is
// detected.
func (s *Service) ForceConfirm() (*ManualScanResult, error) {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess == nil {
		return nil, ErrNoSession
	}

	sess.idle.Reset()
	tr := sess.runner.ForceConfirm()

	result := &ManualScanResult{Label: tr.Label}
	switch tr.Outcome {
	case scan.OutcomeConfirmed:
		result.Result = "confirmed"
	case scan.OutcomeNoDetection:
		result.Result = "not_found"
	default:
		result.Result = "not_ready"
	}
	metrics.ManualScansTotal.WithLabelValues(result.Result).Inc()
	return result, nil
}

// Touch records UI activity (screen navigation) against the idle supervisor
func (s *Service) Touch() error {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}
	sess.idle.Reset()
	return nil
}

// Finish finalizes the active session: all session timers are cancelled
// before the ledger is finalized, then the record is credited (best
// effort), signed, archived and rendered.
func (s *Service) Finish(ctx context.Context, reason string) (*FinishResult, error) {
	s.mu.Lock()
	sess := s.active
	s.active = nil
	s.mu.Unlock()
	if sess == nil {
		return nil, ErrNoSession
	}
	return s.finalize(ctx, sess, reason)
}

// expireSession finalizes the session on idle timeout. The session is only
// taken if it is still the one that timed out; a finish racing the timeout
// wins cleanly.
func (s *Service) expireSession(id string) {
	s.mu.Lock()
	sess := s.active
	if sess == nil || sess.id != id {
		s.mu.Unlock()
		return
	}
	s.active = nil
	s.mu.Unlock()

	slog.Info("session idle timeout", "session", id)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := s.finalize(ctx, sess, ReasonIdleTimeout); err != nil {
		slog.Error("finalizing idle session", "session", id, "error", err)
	}
}

func (s *Service) finalize(ctx context.Context, sess *activeSession, reason string) (*FinishResult, error) {
	// Stop order matters: the idle timer first so no expiry fires mid
	// finalize, then the runner, which waits for the event loop to exit so
	// no late confirmation can append to the finalized ledger.
	sess.idle.Stop()
	sess.runner.Stop()

	rec, err := sess.ledger.Finalize()
	if err != nil {
		return nil, fmt.Errorf("finalizing ledger: %w", err)
	}

	credit := "none"
	if userID := sess.ledger.UserID(); userID != "" && s.accounts != nil {
		if err := s.accounts.AddPoints(ctx, userID, rec.Points); err != nil {
			// Crediting failure is reported, not fatal: the signed receipt
			// is the fallback proof of the session.
			slog.Error("crediting account failed", "user", userID, "points", rec.Points, "error", err)
			metrics.AccountCreditFailuresTotal.Inc()
			credit = "failed"
		} else {
			credit = "credited"
		}
	}

	signed := s.signer.Sign(rec)

	if err := s.archive.SaveReceipt(&signed); err != nil {
		slog.Error("archiving receipt failed", "nonce", rec.Nonce, "error", err)
	}

	result := &FinishResult{
		Receipt: signed,
		Credit:  credit,
	}

	payload, err := signed.Payload()
	if err != nil {
		slog.Error("serializing receipt payload", "nonce", rec.Nonce, "error", err)
	} else {
		result.Payload = payload
		if png, err := s.encoder.Encode(payload); err != nil {
			slog.Error("receipt representation failed", "nonce", rec.Nonce, "error", err)
			metrics.ReceiptEncodeFailuresTotal.Inc()
		} else if _, err := s.images.Save(rec.Nonce, png); err != nil {
			slog.Error("saving receipt image", "nonce", rec.Nonce, "error", err)
		} else {
			result.QRAvailable = true
		}
	}

	metrics.SessionsFinalizedTotal.WithLabelValues(reason).Inc()
	slog.Info("session finalized",
		"session", sess.id,
		"reason", reason,
		"items", len(rec.Items),
		"points", rec.Points,
		"credit", credit,
	)
	return result, nil
}

// VerifyReceipt checks a signed receipt against the kiosk's signing secret
func (s *Service) VerifyReceipt(sr receipt.SignedReceipt) bool {
	return s.signer.Verify(sr)
}

// GetReceipt retrieves an archived receipt by nonce
func (s *Service) GetReceipt(nonce string) (*receipt.SignedReceipt, error) {
	sr, err := s.archive.GetReceipt(nonce)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return sr, nil
}

// ListReceipts returns all archived receipts
func (s *Service) ListReceipts() ([]*receipt.SignedReceipt, error) {
	receipts, err := s.archive.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetReceiptImage retrieves the rendered QR image for an archived receipt
func (s *Service) GetReceiptImage(nonce string) ([]byte, error) {
	data, err := s.images.Get(nonce)
	if err != nil {
		return nil, fmt.Errorf("getting receipt image: %w", err)
	}
	return data, nil
}

// Close shuts the service down, finalizing any session still in progress
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := s.Finish(ctx, ReasonFinished); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	return nil
}
