package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPointsPerItem is the fixed reward for each confirmed item.
const DefaultPointsPerItem = 10

// ErrFinalized is returned when a ledger is used after Finalize. It is a
// usage error: the ledger's state is not corrupted by the rejected call.
var ErrFinalized = errors.New("session ledger already finalized")

// Item is one confirmed item in a session, immutable once created. Items
// are appended in arrival order; the order is meaningful because receipts
// list items in scan order.
type Item struct {
	Label         string `json:"label"`
	PointsAwarded int    `json:"points_awarded"`
	Sequence      int    `json:"sequence"`
}

// Record is the immutable snapshot of a finalized ledger. It is the exact
// payload that gets signed: field names and order are the wire contract for
// any downstream redemption system.
type Record struct {
	KioskID   string   `json:"kioskId"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
	Points    int      `json:"points"`
	Items     []string `json:"items"` // labels in scan order
	Nonce     string   `json:"nonce"`
}

// NonceGenerator generates receipt nonces
type NonceGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultNonceGenerator generates nonces using random UUIDs
type defaultNonceGenerator struct{}

func (g *defaultNonceGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Ledger accumulates confirmed items and points for one scan session. It is
// single-writer by contract: only the scan runner's confirm callback appends
// and finalize is the last operation; the internal mutex exists so status
// reads can happen concurrently with that writer.
type Ledger struct {
	mu        sync.Mutex
	kioskID   string
	userID    string
	perItem   int
	items     []Item
	total     int
	finalized bool
	nonces    NonceGenerator
	clock     TimeSource
}

// NewLedger creates a new Ledger with default nonce generator and time
// source. An empty userID means a guest session.
func NewLedger(kioskID, userID string, pointsPerItem int) *Ledger {
	return NewLedgerWithDeps(kioskID, userID, pointsPerItem, &defaultNonceGenerator{}, &defaultTimeSource{})
}

// NewLedgerWithDeps creates a new Ledger with custom dependencies for testing
func NewLedgerWithDeps(kioskID, userID string, pointsPerItem int, nonces NonceGenerator, clock TimeSource) *Ledger {
	if pointsPerItem <= 0 {
		pointsPerItem = DefaultPointsPerItem
	}
	return &Ledger{
		kioskID: kioskID,
		userID:  userID,
		perItem: pointsPerItem,
		items:   make([]Item, 0),
		nonces:  nonces,
		clock:   clock,
	}
}

// Append records one confirmed item, assigning the next sequence number and
// the fixed per-item reward. The ledger does not deduplicate; that is the
// confirmation state machine's job via its debounce contract.
func (l *Ledger) Append(label string) (Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return Item{}, ErrFinalized
	}

	item := Item{
		Label:         label,
		PointsAwarded: l.perItem,
		Sequence:      len(l.items),
	}
	l.items = append(l.items, item)
	l.total += item.PointsAwarded
	return item, nil
}

// Finalize snapshots the ledger into a Record with a fresh nonce and
// timestamp and closes the ledger. A second Finalize fails with
// ErrFinalized; it never silently re-finalizes.
func (l *Ledger) Finalize() (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return Record{}, ErrFinalized
	}
	l.finalized = true

	labels := make([]string, len(l.items))
	for i, item := range l.items {
		labels[i] = item.Label
	}

	return Record{
		KioskID:   l.kioskID,
		Timestamp: l.clock.Now().UnixMilli(),
		Points:    l.total,
		Items:     labels,
		Nonce:     l.nonces.Generate(),
	}, nil
}

// Items returns a copy of the confirmed items in scan order
func (l *Ledger) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]Item, len(l.items))
	copy(items, l.items)
	return items
}

// TotalPoints returns the running point total
func (l *Ledger) TotalPoints() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// UserID returns the attached user, or "" for a guest session
func (l *Ledger) UserID() string {
	return l.userID
}

// Finalized reports whether the ledger has been closed
func (l *Ledger) Finalized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finalized
}
