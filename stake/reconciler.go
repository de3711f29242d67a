package stake

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/b0ase/libcustody-go/audit"
	"github.com/b0ase/libcustody-go/registry"
)

// Deposit is one observed custody deposit handed to the reconciler. The
// reconciler matches deposits by amount only; the transaction is already
// known to pay the pool's custody address.
type Deposit struct {
	TxID   string
	Amount uint64
}

// ReconcilerConfig bounds deposit matching.
type ReconcilerConfig struct {
	// Tolerance is the maximum absolute difference between a deposit and
	// a request's expected amount for the two to match.
	Tolerance uint64

	// DepositDeadline is how long a request waits for its deposit before
	// expiring.
	DepositDeadline time.Duration
}

// Reconciler matches observed deposits against pending stake requests and
// moves matched amounts into holders' staked balances. All mutating entry
// points are serialized so each deposit is evaluated against a settled view
// of the pending set.
type Reconciler struct {
	cfg      ReconcilerConfig
	store    Store
	registry registry.Store
	sink     audit.Sink
	clock    clockwork.Clock
	log      *slog.Logger

	mu sync.Mutex
}

// NewReconciler wires a reconciler. A nil sink discards audit events.
func NewReconciler(cfg ReconcilerConfig, store Store, reg registry.Store, sink audit.Sink, clock clockwork.Clock, log *slog.Logger) *Reconciler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		cfg:      cfg,
		store:    store,
		registry: reg,
		sink:     sink,
		clock:    clock,
		log:      log,
	}
}

// Submit registers a new stake request and starts its deposit deadline.
func (r *Reconciler) Submit(ownerID, payoutAddress string, expectedAmount uint64) (*Request, error) {
	if expectedAmount == 0 {
		return nil, ErrZeroAmount
	}

	now := r.clock.Now().UTC()
	req := &Request{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		PayoutAddress:   payoutAddress,
		ExpectedAmount:  expectedAmount,
		CreatedAt:       now,
		DepositDeadline: now.Add(r.cfg.DepositDeadline),
		Status:          StatusPendingDeposit,
	}
	if err := r.store.Put(req); err != nil {
		return nil, err
	}

	r.log.Info("stake request submitted",
		"request_id", req.ID,
		"owner_id", ownerID,
		"expected_amount", expectedAmount)
	cp := *req
	return &cp, nil
}

// ApplyDeposits runs each deposit through matching. Deposits already claimed
// by an earlier run are resumed or skipped rather than re-matched, so
// replaying the same batch after a crash is safe. Unmatched deposits are
// logged and left for manual review; they are not an error.
func (r *Reconciler) ApplyDeposits(deposits []Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dep := range deposits {
		if err := r.applyDeposit(dep); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) applyDeposit(dep Deposit) error {
	// A replayed deposit resumes the claim it already made.
	if req, err := r.store.ByDepositTxID(dep.TxID); err == nil {
		if req.Status == StatusConfirmed {
			return nil
		}
		return r.settle(req)
	}

	match, err := r.findMatch(dep.Amount)
	if err != nil {
		return err
	}
	if match == nil {
		r.log.Warn("deposit matched no pending stake request",
			"txid", dep.TxID,
			"amount", dep.Amount)
		return nil
	}

	if err := r.store.ClaimDeposit(match.ID, dep.TxID, dep.Amount); err != nil {
		return fmt.Errorf("claim deposit %s: %w", dep.TxID, err)
	}
	match.DepositTxID = dep.TxID
	match.ConfirmedAmount = dep.Amount
	return r.settle(match)
}

// findMatch returns the oldest pending request within tolerance of amount.
func (r *Reconciler) findMatch(amount uint64) (*Request, error) {
	pending, err := r.store.PendingInOrder()
	if err != nil {
		return nil, err
	}
	for _, req := range pending {
		if req.DepositTxID != "" {
			continue
		}
		if absDiff(req.ExpectedAmount, amount) <= r.cfg.Tolerance {
			return req, nil
		}
	}
	return nil, nil
}

// settle applies a claimed deposit: credit the registry, then move the
// credited amount into the staked balance, persisting each step so a crash
// mid-settle resumes instead of double-crediting.
func (r *Reconciler) settle(req *Request) error {
	if !req.Credited {
		if err := r.registry.CreditAvailable(req.OwnerID, req.ConfirmedAmount); err != nil {
			return fmt.Errorf("credit %q: %w", req.OwnerID, err)
		}
		if err := r.store.MarkCredited(req.ID); err != nil {
			return err
		}
	}

	if err := r.registry.ConfirmStake(req.OwnerID, req.PayoutAddress, req.ConfirmedAmount); err != nil {
		return fmt.Errorf("confirm stake %q: %w", req.ID, err)
	}
	if err := r.store.MarkConfirmed(req.ID); err != nil {
		return err
	}

	r.log.Info("stake confirmed",
		"request_id", req.ID,
		"owner_id", req.OwnerID,
		"txid", req.DepositTxID,
		"amount", req.ConfirmedAmount)
	r.sink.Emit(audit.Event{
		Type: audit.EventStakeConfirmed,
		At:   r.clock.Now().UTC(),
		Ref:  req.ID,
		Attrs: map[string]string{
			"owner_id": req.OwnerID,
			"txid":     req.DepositTxID,
			"amount":   strconv.FormatUint(req.ConfirmedAmount, 10),
		},
	})
	return nil
}

// ExpireOverdue expires every pending request whose deadline has passed and
// returns how many were expired. Requests that already claimed a deposit are
// never expired.
func (r *Reconciler) ExpireOverdue() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, err := r.store.PendingInOrder()
	if err != nil {
		return 0, err
	}

	now := r.clock.Now().UTC()
	expired := 0
	for _, req := range pending {
		if req.DepositTxID != "" || now.Before(req.DepositDeadline) {
			continue
		}
		if err := r.store.MarkExpired(req.ID); err != nil {
			return expired, err
		}
		expired++

		r.log.Info("stake request expired",
			"request_id", req.ID,
			"owner_id", req.OwnerID,
			"expected_amount", req.ExpectedAmount)
		r.sink.Emit(audit.Event{
			Type: audit.EventStakeExpired,
			At:   now,
			Ref:  req.ID,
			Attrs: map[string]string{
				"owner_id":        req.OwnerID,
				"expected_amount": strconv.FormatUint(req.ExpectedAmount, 10),
			},
		})
	}
	return expired, nil
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
