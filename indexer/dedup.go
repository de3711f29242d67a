package indexer

import (
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

// DedupStore tracks which transactions have already been scanned so an event
// is never emitted twice across polls.
type DedupStore interface {
	// Seen reports whether the transaction was already processed.
	Seen(txid string) (bool, error)

	// Mark records the transaction as processed.
	Mark(txid string) error
}

// MemDedup is an in-memory processed set. Restart tolerance is delegated to
// the reconciler's per-txid claim uniqueness.
type MemDedup struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// Compile-time interface check.
var _ DedupStore = (*MemDedup)(nil)

// NewMemDedup creates an empty in-memory processed set.
func NewMemDedup() *MemDedup {
	return &MemDedup{seen: make(map[string]struct{})}
}

// Seen reports whether the transaction was already processed.
func (d *MemDedup) Seen(txid string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[txid]
	return ok, nil
}

// Mark records the transaction as processed.
func (d *MemDedup) Mark(txid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[txid] = struct{}{}
	return nil
}

var bucketSeen = []byte("indexer_seen")

// BoltDedup persists the processed set so a restarted indexer does not
// rescan the full address history.
type BoltDedup struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ DedupStore = (*BoltDedup)(nil)

// NewBoltDedup creates the dedup bucket if needed.
func NewBoltDedup(db *bbolt.DB) (*BoltDedup, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSeen)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: create bucket: %w", err)
	}
	return &BoltDedup{db: db}, nil
}

// Seen reports whether the transaction was already processed.
func (d *BoltDedup) Seen(txid string) (bool, error) {
	var seen bool
	err := d.db.View(func(tx *bbolt.Tx) error {
		seen = tx.Bucket(bucketSeen).Get([]byte(txid)) != nil
		return nil
	})
	return seen, err
}

// Mark records the transaction as processed.
func (d *BoltDedup) Mark(txid string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSeen).Put([]byte(txid), []byte{1})
	})
}
