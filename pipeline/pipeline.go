// Package pipeline assembles the custody components into one running unit:
// the deposit indexer feeds the stake reconciler, and distribution requests
// flow through the dividend engine into the payout executor. The pipeline
// decides none of the policy itself; it owns the wiring, the distribution
// freeze, and the identity stamping of committed distributions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/b0ase/libcustody-go/audit"
	"github.com/b0ase/libcustody-go/config"
	"github.com/b0ase/libcustody-go/dividend"
	"github.com/b0ase/libcustody-go/indexer"
	"github.com/b0ase/libcustody-go/payout"
	"github.com/b0ase/libcustody-go/registry"
	"github.com/b0ase/libcustody-go/stake"
)

// Settler is the payout side of the pipeline. Satisfied by
// *payout.Executor; a stub implementation makes dry runs possible.
type Settler interface {
	Execute(ctx context.Context, dist *dividend.Distribution) ([]*payout.SettlementRecord, error)
}

// Pipeline is one custody pool's full deposit-to-payout flow.
type Pipeline struct {
	cfg        config.PoolConfig
	indexer    *indexer.Indexer
	reconciler *stake.Reconciler
	registry   registry.Store
	settler    Settler
	sink       audit.Sink
	clock      clockwork.Clock
	log        *slog.Logger

	// distMu freezes the registry view while a distribution is computed
	// and committed, so concurrent stake confirmations cannot split a
	// snapshot.
	distMu sync.Mutex
}

// New wires a pipeline from its components.
func New(cfg config.PoolConfig, ix *indexer.Indexer, rec *stake.Reconciler, reg registry.Store, settler Settler, sink audit.Sink, clock clockwork.Clock, log *slog.Logger) *Pipeline {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		indexer:    ix,
		reconciler: rec,
		registry:   reg,
		settler:    settler,
		sink:       sink,
		clock:      clock,
		log:        log,
	}
}

// SubmitStake registers a stake request with the reconciler.
func (p *Pipeline) SubmitStake(ownerID, payoutAddress string, expectedAmount uint64) (*stake.Request, error) {
	return p.reconciler.Submit(ownerID, payoutAddress, expectedAmount)
}

// Run drives the background loops: deposit polling feeding the reconciler,
// and the stake expiry sweep. It blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.indexer.Run(ctx, p.cfg.PollInterval, p.applyDeposits)
	})

	g.Go(func() error {
		ticker := p.clock.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.Chan():
			}
			if n, err := p.reconciler.ExpireOverdue(); err != nil {
				p.log.Error("expiry sweep failed", "err", err)
			} else if n > 0 {
				p.log.Info("expired overdue stake requests", "count", n)
			}
		}
	})

	return g.Wait()
}

func (p *Pipeline) applyDeposits(ctx context.Context, events []indexer.DepositEvent) error {
	deposits := make([]stake.Deposit, len(events))
	for i, ev := range events {
		deposits[i] = stake.Deposit{TxID: ev.TxID, Amount: ev.Amount}
	}
	return p.reconciler.ApplyDeposits(deposits)
}

// snapshotHolders converts the current registry snapshot into dividend
// engine input.
func (p *Pipeline) snapshotHolders() ([]dividend.Holder, error) {
	snap, err := p.registry.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot registry: %w", err)
	}
	holders := make([]dividend.Holder, len(snap.Holders))
	for i, e := range snap.Holders {
		holders[i] = dividend.Holder{
			ID:      e.HolderID,
			Address: e.PayoutAddress,
			Balance: e.Staked,
		}
	}
	return holders, nil
}

// Simulate computes the distribution a pool amount would produce right now,
// with summary statistics, committing nothing. Because the engine is pure,
// the returned distribution is exactly what Distribute would commit from the
// same registry state.
func (p *Pipeline) Simulate(poolAmount uint64) (*dividend.Distribution, dividend.Summary, error) {
	p.distMu.Lock()
	defer p.distMu.Unlock()

	holders, err := p.snapshotHolders()
	if err != nil {
		return nil, dividend.Summary{}, err
	}
	dividendAmount := dividend.ApplyBPS(poolAmount, p.cfg.DividendPercentBPS)
	dist, summary := dividend.Simulate(dividendAmount, holders, p.cfg.MinPayment)
	return dist, summary, nil
}

// Distribute runs one full distribution: snapshot the registry, compute the
// dividend share of poolAmount pro-rata, stamp the result with an identity
// and timestamp, and hand it to the payout executor. The conservation
// invariant is checked before anything is committed; a violation aborts the
// distribution entirely.
func (p *Pipeline) Distribute(ctx context.Context, poolAmount uint64) (*dividend.Distribution, []*payout.SettlementRecord, error) {
	p.distMu.Lock()
	defer p.distMu.Unlock()

	holders, err := p.snapshotHolders()
	if err != nil {
		return nil, nil, err
	}

	dividendAmount := dividend.ApplyBPS(poolAmount, p.cfg.DividendPercentBPS)
	dist := dividend.CalculateProRata(dividendAmount, holders, p.cfg.MinPayment)
	if err := dividend.Validate(dist); err != nil {
		return nil, nil, err
	}

	if len(dist.Payments) == 0 {
		p.log.Info("distribution has no payable holders, nothing committed",
			"pool_amount", poolAmount,
			"excluded", dist.ExcludedHolders)
		return dist, nil, nil
	}

	dist.ID = uuid.NewString()
	dist.CreatedAt = p.clock.Now().UTC()

	p.log.Info("distribution committed",
		"distribution_id", dist.ID,
		"total", dist.TotalAmount,
		"payments", len(dist.Payments),
		"remainder", dist.Remainder,
		"excluded", dist.ExcludedHolders)
	p.sink.Emit(audit.Event{
		Type: audit.EventDistributionCommitted,
		At:   dist.CreatedAt,
		Ref:  dist.ID,
		Attrs: map[string]string{
			"total":     strconv.FormatUint(dist.TotalAmount, 10),
			"payments":  strconv.Itoa(len(dist.Payments)),
			"remainder": strconv.FormatUint(dist.Remainder, 10),
		},
	})

	records, err := p.settler.Execute(ctx, dist)
	if err != nil {
		return dist, nil, fmt.Errorf("execute distribution %s: %w", dist.ID, err)
	}
	return dist, records, nil
}

// MaybeDistribute triggers a distribution when the pool balance has crossed
// the configured threshold. With the threshold unset or uncrossed it does
// nothing and reports false.
func (p *Pipeline) MaybeDistribute(ctx context.Context, poolAmount uint64) (bool, *dividend.Distribution, []*payout.SettlementRecord, error) {
	if p.cfg.DistributionThreshold == 0 || poolAmount < p.cfg.DistributionThreshold {
		return false, nil, nil, nil
	}
	dist, records, err := p.Distribute(ctx, poolAmount)
	return err == nil, dist, records, err
}
