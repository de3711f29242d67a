// Package stake tracks stake requests through their lifecycle: a holder
// announces an intended deposit, the reconciler matches an observed on-chain
// deposit against it, and the matched amount moves into the holder's staked
// balance. Requests whose deposit never arrives expire after a deadline.
package stake

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the lifecycle state of a stake request.
type Status string

const (
	// StatusPendingDeposit means the request is waiting for its on-chain
	// deposit to be observed.
	StatusPendingDeposit Status = "pending_deposit"

	// StatusConfirmed means a deposit was matched and the holder's staked
	// balance updated.
	StatusConfirmed Status = "confirmed"

	// StatusExpired means the deposit deadline passed with no matching
	// deposit.
	StatusExpired Status = "expired"
)

// Request is one stake request.
type Request struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	PayoutAddress   string    `json:"payout_address"`
	ExpectedAmount  uint64    `json:"expected_amount"`
	CreatedAt       time.Time `json:"created_at"`
	DepositDeadline time.Time `json:"deposit_deadline"`
	Status          Status    `json:"status"`

	// Set once a deposit is matched.
	DepositTxID     string `json:"deposit_txid,omitempty"`
	ConfirmedAmount uint64 `json:"confirmed_amount,omitempty"`

	// Credited records that the matched amount has been applied to the
	// holder's registry balance. It lets a restarted reconciler resume a
	// claim that was interrupted between the claim and the registry write.
	Credited bool `json:"credited,omitempty"`
}

// Store persists stake requests. Implementations must make ClaimDeposit
// durable before returning so a matched deposit is never matched twice.
type Store interface {
	// Put stores a new request, or ErrDuplicateRequest.
	Put(req *Request) error

	// Get returns the request, or ErrRequestNotFound.
	Get(id string) (*Request, error)

	// PendingInOrder returns all pending requests ordered by creation
	// time, oldest first, ties broken by request ID.
	PendingInOrder() ([]*Request, error)

	// ClaimDeposit binds a deposit transaction to a pending request.
	// Fails with ErrTxIDClaimed if the txid is already bound elsewhere and
	// ErrNotPending if the request has left the pending state.
	ClaimDeposit(id, txid string, amount uint64) error

	// ByDepositTxID returns the request that claimed the given deposit,
	// or ErrRequestNotFound.
	ByDepositTxID(txid string) (*Request, error)

	// MarkCredited records that the claimed amount reached the registry.
	MarkCredited(id string) error

	// MarkConfirmed moves the request to StatusConfirmed.
	MarkConfirmed(id string) error

	// MarkExpired moves a pending request to StatusExpired.
	MarkExpired(id string) error
}

// MemStore is an in-memory Store for tests and single-process use.
type MemStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
	claims   map[string]string // deposit txid -> request ID
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory request store.
func NewMemStore() *MemStore {
	return &MemStore{
		requests: make(map[string]*Request),
		claims:   make(map[string]string),
	}
}

// Put stores a new request.
func (s *MemStore) Put(req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRequest, req.ID)
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

// Get returns the request, or ErrRequestNotFound.
func (s *MemStore) Get(id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRequestNotFound, id)
	}
	cp := *req
	return &cp, nil
}

// PendingInOrder returns pending requests oldest first.
func (s *MemStore) PendingInOrder() ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*Request
	for _, req := range s.requests {
		if req.Status != StatusPendingDeposit {
			continue
		}
		cp := *req
		pending = append(pending, &cp)
	}
	sortPending(pending)
	return pending, nil
}

// ClaimDeposit binds a deposit transaction to a pending request.
func (s *MemStore) ClaimDeposit(id, txid string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if other, ok := s.claims[txid]; ok {
		return fmt.Errorf("%w: %s claimed by %q", ErrTxIDClaimed, txid, other)
	}
	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRequestNotFound, id)
	}
	if req.Status != StatusPendingDeposit {
		return fmt.Errorf("%w: %q is %s", ErrNotPending, id, req.Status)
	}
	req.DepositTxID = txid
	req.ConfirmedAmount = amount
	s.claims[txid] = id
	return nil
}

// ByDepositTxID returns the request that claimed the deposit.
func (s *MemStore) ByDepositTxID(txid string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.claims[txid]
	if !ok {
		return nil, fmt.Errorf("%w: no claim for txid %s", ErrRequestNotFound, txid)
	}
	cp := *s.requests[id]
	return &cp, nil
}

// MarkCredited records that the claimed amount reached the registry.
func (s *MemStore) MarkCredited(id string) error {
	return s.update(id, func(req *Request) error {
		req.Credited = true
		return nil
	})
}

// MarkConfirmed moves the request to StatusConfirmed.
func (s *MemStore) MarkConfirmed(id string) error {
	return s.update(id, func(req *Request) error {
		req.Status = StatusConfirmed
		return nil
	})
}

// MarkExpired moves a pending request to StatusExpired.
func (s *MemStore) MarkExpired(id string) error {
	return s.update(id, func(req *Request) error {
		if req.Status != StatusPendingDeposit {
			return fmt.Errorf("%w: %q is %s", ErrNotPending, id, req.Status)
		}
		req.Status = StatusExpired
		return nil
	})
}

func (s *MemStore) update(id string, fn func(*Request) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRequestNotFound, id)
	}
	return fn(req)
}

func sortPending(reqs []*Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}
