package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const receiptBucketName = "receipts"

// Archive defines the interface for persisting signed receipts. Every
// finalized session is archived by nonce so a redemption backend or an
// operator can audit and replay it later.
type Archive interface {
	// SaveReceipt saves a signed receipt to the archive
	SaveReceipt(sr *SignedReceipt) error

	// GetReceipt retrieves a signed receipt by nonce
	GetReceipt(nonce string) (*SignedReceipt, error)

	// ListReceipts returns all archived receipts
	ListReceipts() ([]*SignedReceipt, error)

	// Close closes the archive
	Close() error
}

// BoltArchive implements the Archive interface using BoltDB
type BoltArchive struct {
	db *bbolt.DB
}

// NewBoltArchive creates a new BoltArchive instance
func NewBoltArchive(path string) (*BoltArchive, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(receiptBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltArchive{db: db}, nil
}

// SaveReceipt saves a signed receipt to the archive
func (b *BoltArchive) SaveReceipt(sr *SignedReceipt) error {
	if sr.Nonce == "" {
		return fmt.Errorf("receipt nonce is required")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data, err := json.Marshal(sr)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put([]byte(sr.Nonce), data)
	})
}

// GetReceipt retrieves a signed receipt by nonce
func (b *BoltArchive) GetReceipt(nonce string) (*SignedReceipt, error) {
	var sr *SignedReceipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data := bucket.Get([]byte(nonce))
		if data == nil {
			return fmt.Errorf("receipt not found: %s", nonce)
		}
		return json.Unmarshal(data, &sr)
	})
	if err != nil {
		return nil, err
	}
	return sr, nil
}

// ListReceipts returns all archived receipts
func (b *BoltArchive) ListReceipts() ([]*SignedReceipt, error) {
	receipts := make([]*SignedReceipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var sr SignedReceipt
			if err := json.Unmarshal(v, &sr); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &sr)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// Close closes the archive
func (b *BoltArchive) Close() error {
	return b.db.Close()
}
