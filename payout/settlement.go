// Package payout turns a committed distribution into broadcast ledger
// transactions and durably records every outcome. Settlement records are the
// source of truth for payout status; callers never need to infer it from
// ledger state.
package payout

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// Stage is the last attempted step of a payment's execution. Retries resume
// from the recorded stage; broadcast is the one step that is never repeated
// with a fresh transaction.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageBuild     Stage = "build"
	StageSign      Stage = "sign"
	StageBroadcast Stage = "broadcast"
	StageConfirm   Stage = "confirm"
)

// Status is the outcome of a settlement attempt.
type Status string

const (
	// StatusSucceeded means the payment transaction is confirmed on the
	// ledger.
	StatusSucceeded Status = "succeeded"

	// StatusFailed means the recorded stage failed; Reason says why.
	StatusFailed Status = "failed"

	// StatusPending means the transaction is broadcast but not yet
	// confirmed.
	StatusPending Status = "pending"
)

// SettlementRecord is one durable settlement attempt for one payment.
// TxID and RawTxHex survive across attempts so a signed-but-unconfirmed
// transaction is re-broadcast verbatim instead of being rebuilt.
type SettlementRecord struct {
	ID             string    `json:"id"`
	DistributionID string    `json:"distribution_id"`
	PaymentID      string    `json:"payment_id"`
	HolderID       string    `json:"holder_id"`
	Address        string    `json:"address"`
	Amount         uint64    `json:"amount"`
	Stage          Stage     `json:"stage"`
	Status         Status    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	TxID           string    `json:"txid,omitempty"`
	RawTxHex       string    `json:"raw_tx_hex,omitempty"`
	Attempt        int       `json:"attempt"`
	At             time.Time `json:"at"`
}

// Store is an append-only settlement log.
type Store interface {
	// Append durably records one attempt.
	Append(rec *SettlementRecord) error

	// Latest returns the most recent record for a payment, or
	// ErrRecordNotFound.
	Latest(paymentID string) (*SettlementRecord, error)

	// ByPayment returns all records for a payment in append order.
	ByPayment(paymentID string) ([]*SettlementRecord, error)

	// ByDistribution returns all records for a distribution in append
	// order.
	ByDistribution(distributionID string) ([]*SettlementRecord, error)
}

// MemStore is an in-memory settlement log for tests.
type MemStore struct {
	mu      sync.RWMutex
	records []*SettlementRecord
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory settlement log.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append durably records one attempt.
func (s *MemStore) Append(rec *SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

// Latest returns the most recent record for a payment.
func (s *MemStore) Latest(paymentID string) (*SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].PaymentID == paymentID {
			cp := *s.records[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: payment %q", ErrRecordNotFound, paymentID)
}

// ByPayment returns all records for a payment in append order.
func (s *MemStore) ByPayment(paymentID string) ([]*SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SettlementRecord
	for _, rec := range s.records {
		if rec.PaymentID == paymentID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ByDistribution returns all records for a distribution in append order.
func (s *MemStore) ByDistribution(distributionID string) ([]*SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SettlementRecord
	for _, rec := range s.records {
		if rec.DistributionID == distributionID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

var bucketSettlements = []byte("payout_settlements")

// BoltStore is a bbolt-backed settlement log. Keys are
// "<paymentID>\x00<seq>" so one payment's attempts cluster under a prefix in
// append order.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// NewBoltStore creates the settlement bucket if needed.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSettlements)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("payout: create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func settlementKey(paymentID string, seq uint64) []byte {
	key := make([]byte, 0, len(paymentID)+9)
	key = append(key, paymentID...)
	key = append(key, 0x00)
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

func encodeRecord(rec *SettlementRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*SettlementRecord, error) {
	rec := &SettlementRecord{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Append durably records one attempt.
func (s *BoltStore) Append(rec *SettlementRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSettlements)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("payout: encode record: %w", err)
		}
		return b.Put(settlementKey(rec.PaymentID, seq), data)
	})
}

// Latest returns the most recent record for a payment.
func (s *BoltStore) Latest(paymentID string) (*SettlementRecord, error) {
	records, err := s.ByPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: payment %q", ErrRecordNotFound, paymentID)
	}
	return records[len(records)-1], nil
}

// ByPayment returns all records for a payment in append order.
func (s *BoltStore) ByPayment(paymentID string) ([]*SettlementRecord, error) {
	prefix := append([]byte(paymentID), 0x00)
	var out []*SettlementRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSettlements).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			rec, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("payout: decode record: %w", err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ByDistribution returns all records for a distribution in append order.
func (s *BoltStore) ByDistribution(distributionID string) ([]*SettlementRecord, error) {
	type seqRec struct {
		seq uint64
		rec *SettlementRecord
	}
	var matched []seqRec
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettlements).ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("payout: decode record: %w", err)
			}
			if rec.DistributionID != distributionID {
				return nil
			}
			seq := binary.BigEndian.Uint64(k[len(k)-8:])
			matched = append(matched, seqRec{seq: seq, rec: rec})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]*SettlementRecord, len(matched))
	for i, m := range matched {
		out[i] = m.rec
	}
	return out, nil
}
