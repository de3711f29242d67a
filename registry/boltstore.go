package registry

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
)

var bucketHolders = []byte("registry_holders")

// BoltStore persists holder balances in bbolt. Intended to share a database
// file with the other pipeline stores.
type BoltStore struct {
	db           *bbolt.DB
	issuedSupply uint64
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// NewBoltStore creates the registry bucket if needed and returns a Store
// backed by db. issuedSupply caps the sum of all balances; zero disables it.
func NewBoltStore(db *bbolt.DB, issuedSupply uint64) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketHolders)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("registry: create bucket: %w", err)
	}
	return &BoltStore{db: db, issuedSupply: issuedSupply}, nil
}

func encodeHolder(h *Holder) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHolder(data []byte) (*Holder, error) {
	h := &Holder{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Get returns the holder's entry, or ErrHolderNotFound.
func (s *BoltStore) Get(holderID string) (*Holder, error) {
	var holder *Holder
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketHolders).Get([]byte(holderID))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrHolderNotFound, holderID)
		}
		h, err := decodeHolder(data)
		if err != nil {
			return fmt.Errorf("registry: decode holder: %w", err)
		}
		holder = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holder, nil
}

// CreditAvailable adds amount to the holder's available balance.
func (s *BoltStore) CreditAvailable(holderID string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHolders)

		if s.issuedSupply > 0 {
			var total uint64
			if err := b.ForEach(func(_, v []byte) error {
				h, err := decodeHolder(v)
				if err != nil {
					return err
				}
				total += h.Available + h.Staked
				return nil
			}); err != nil {
				return fmt.Errorf("registry: scan balances: %w", err)
			}
			if total+amount > s.issuedSupply {
				return fmt.Errorf("%w: total %d + %d > supply %d",
					ErrSupplyExceeded, total, amount, s.issuedSupply)
			}
		}

		h := &Holder{ID: holderID}
		if data := b.Get([]byte(holderID)); data != nil {
			existing, err := decodeHolder(data)
			if err != nil {
				return fmt.Errorf("registry: decode holder: %w", err)
			}
			h = existing
		}
		h.Available += amount

		data, err := encodeHolder(h)
		if err != nil {
			return fmt.Errorf("registry: encode holder: %w", err)
		}
		return b.Put([]byte(holderID), data)
	})
}

// ConfirmStake moves amount from available to staked.
func (s *BoltStore) ConfirmStake(holderID, payoutAddress string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketHolders)
		data := b.Get([]byte(holderID))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrHolderNotFound, holderID)
		}
		h, err := decodeHolder(data)
		if err != nil {
			return fmt.Errorf("registry: decode holder: %w", err)
		}
		if h.Available < amount {
			return fmt.Errorf("%w: available %d < %d", ErrInsufficientAvailable, h.Available, amount)
		}
		h.Available -= amount
		h.Staked += amount
		if payoutAddress != "" {
			h.PayoutAddress = payoutAddress
		}

		encoded, err := encodeHolder(h)
		if err != nil {
			return fmt.Errorf("registry: encode holder: %w", err)
		}
		return b.Put([]byte(holderID), encoded)
	})
}

// Snapshot returns the current staked balances ordered by holder ID.
func (s *BoltStore) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHolders).ForEach(func(_, v []byte) error {
			h, err := decodeHolder(v)
			if err != nil {
				return fmt.Errorf("registry: decode holder: %w", err)
			}
			if h.Staked == 0 {
				return nil
			}
			snap.Holders = append(snap.Holders, SnapshotEntry{
				HolderID:      h.ID,
				PayoutAddress: h.PayoutAddress,
				Staked:        h.Staked,
			})
			snap.TotalStaked += h.Staked
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(snap.Holders, func(i, j int) bool {
		return snap.Holders[i].HolderID < snap.Holders[j].HolderID
	})
	return snap, nil
}

// TotalStaked returns the sum of all staked balances.
func (s *BoltStore) TotalStaked() (uint64, error) {
	var total uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHolders).ForEach(func(_, v []byte) error {
			h, err := decodeHolder(v)
			if err != nil {
				return err
			}
			total += h.Staked
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("registry: scan balances: %w", err)
	}
	return total, nil
}
