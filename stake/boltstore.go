package stake

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketRequests = []byte("stake_requests")
	bucketClaims   = []byte("stake_claims")
)

// BoltStore persists stake requests in bbolt. The claim index maps deposit
// txids to request IDs so a deposit can never be claimed twice, even across
// restarts.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// NewBoltStore creates the stake buckets if needed and returns a Store
// backed by db.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRequests, bucketClaims} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stake: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func encodeRequest(req *Request) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRequest(data []byte) (*Request, error) {
	req := &Request{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Put stores a new request.
func (s *BoltStore) Put(req *Request) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		if b.Get([]byte(req.ID)) != nil {
			return fmt.Errorf("%w: %q", ErrDuplicateRequest, req.ID)
		}
		data, err := encodeRequest(req)
		if err != nil {
			return fmt.Errorf("stake: encode request: %w", err)
		}
		return b.Put([]byte(req.ID), data)
	})
}

// Get returns the request, or ErrRequestNotFound.
func (s *BoltStore) Get(id string) (*Request, error) {
	var req *Request
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRequests).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrRequestNotFound, id)
		}
		var err error
		req, err = decodeRequest(data)
		if err != nil {
			return fmt.Errorf("stake: decode request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// PendingInOrder returns pending requests oldest first.
func (s *BoltStore) PendingInOrder() ([]*Request, error) {
	var pending []*Request
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRequests).ForEach(func(_, v []byte) error {
			req, err := decodeRequest(v)
			if err != nil {
				return fmt.Errorf("stake: decode request: %w", err)
			}
			if req.Status == StatusPendingDeposit {
				pending = append(pending, req)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortPending(pending)
	return pending, nil
}

// ClaimDeposit binds a deposit transaction to a pending request. The claim
// index entry and the request update commit in one transaction.
func (s *BoltStore) ClaimDeposit(id, txid string, amount uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		claims := tx.Bucket(bucketClaims)
		if other := claims.Get([]byte(txid)); other != nil {
			return fmt.Errorf("%w: %s claimed by %q", ErrTxIDClaimed, txid, other)
		}

		b := tx.Bucket(bucketRequests)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrRequestNotFound, id)
		}
		req, err := decodeRequest(data)
		if err != nil {
			return fmt.Errorf("stake: decode request: %w", err)
		}
		if req.Status != StatusPendingDeposit {
			return fmt.Errorf("%w: %q is %s", ErrNotPending, id, req.Status)
		}
		req.DepositTxID = txid
		req.ConfirmedAmount = amount

		encoded, err := encodeRequest(req)
		if err != nil {
			return fmt.Errorf("stake: encode request: %w", err)
		}
		if err := b.Put([]byte(id), encoded); err != nil {
			return err
		}
		return claims.Put([]byte(txid), []byte(id))
	})
}

// ByDepositTxID returns the request that claimed the deposit.
func (s *BoltStore) ByDepositTxID(txid string) (*Request, error) {
	var req *Request
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketClaims).Get([]byte(txid))
		if id == nil {
			return fmt.Errorf("%w: no claim for txid %s", ErrRequestNotFound, txid)
		}
		data := tx.Bucket(bucketRequests).Get(id)
		if data == nil {
			return fmt.Errorf("%w: %q", ErrRequestNotFound, id)
		}
		var err error
		req, err = decodeRequest(data)
		if err != nil {
			return fmt.Errorf("stake: decode request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// MarkCredited records that the claimed amount reached the registry.
func (s *BoltStore) MarkCredited(id string) error {
	return s.update(id, func(req *Request) error {
		req.Credited = true
		return nil
	})
}

// MarkConfirmed moves the request to StatusConfirmed.
func (s *BoltStore) MarkConfirmed(id string) error {
	return s.update(id, func(req *Request) error {
		req.Status = StatusConfirmed
		return nil
	})
}

// MarkExpired moves a pending request to StatusExpired.
func (s *BoltStore) MarkExpired(id string) error {
	return s.update(id, func(req *Request) error {
		if req.Status != StatusPendingDeposit {
			return fmt.Errorf("%w: %q is %s", ErrNotPending, id, req.Status)
		}
		req.Status = StatusExpired
		return nil
	})
}

func (s *BoltStore) update(id string, fn func(*Request) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrRequestNotFound, id)
		}
		req, err := decodeRequest(data)
		if err != nil {
			return fmt.Errorf("stake: decode request: %w", err)
		}
		if err := fn(req); err != nil {
			return err
		}
		encoded, err := encodeRequest(req)
		if err != nil {
			return fmt.Errorf("stake: encode request: %w", err)
		}
		return b.Put([]byte(id), encoded)
	})
}
