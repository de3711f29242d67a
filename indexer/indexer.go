// Package indexer polls a custody address for incoming token transfers and
// emits normalized deposit events. It is the pipeline's only reader of the
// ledger's query API on the deposit path.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/b0ase/libcustody-go/audit"
	"github.com/b0ase/libcustody-go/ledger"
	"github.com/b0ase/libcustody-go/token"
)

// DepositEvent is one observed token transfer at the custody address. It is
// an immutable fact derived from the ledger.
type DepositEvent struct {
	TxID             string `json:"txid"`
	Vout             uint32 `json:"vout"`
	ToAddress        string `json:"to_address"`
	Ticker           string `json:"ticker"`
	Amount           uint64 `json:"amount"`
	ObservedAtHeight uint64 `json:"observed_at_height"`
}

// Config bounds what the indexer scans for.
type Config struct {
	// CustodyAddress is the pool address whose history is polled.
	CustodyAddress string

	// Ticker is the token identifier to scan for. Markers for other
	// tickers at the same address are discarded silently.
	Ticker string

	// AddressVersion is the version byte used when decoding recipient
	// addresses from output scripts.
	AddressVersion byte
}

// Indexer polls the custody address and emits deduplicated deposit events.
// Poll cycles are serialized; a slow cycle delays the next rather than
// overlapping it.
type Indexer struct {
	cfg   Config
	svc   ledger.Service
	dedup DedupStore
	sink  audit.Sink
	clock clockwork.Clock
	log   *slog.Logger

	mu sync.Mutex
}

// New wires an indexer. A nil dedup store gets an in-memory one; a nil sink
// discards audit events.
func New(cfg Config, svc ledger.Service, dedup DedupStore, sink audit.Sink, clock clockwork.Clock, log *slog.Logger) *Indexer {
	if dedup == nil {
		dedup = NewMemDedup()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		cfg:   cfg,
		svc:   svc,
		dedup: dedup,
		sink:  sink,
		clock: clock,
		log:   log,
	}
}

// Poll fetches the custody address history and returns deposit events for
// every not-yet-seen transaction carrying a matching transfer marker. A
// history or tip fetch error fails the whole cycle; a detail fetch error
// skips that transaction without marking it, so the next cycle retries it.
func (ix *Indexer) Poll(ctx context.Context) ([]DepositEvent, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	history, err := ix.svc.AddressHistory(ctx, ix.cfg.CustodyAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	tip, err := ix.svc.GetBestBlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch tip height: %w", err)
	}

	var events []DepositEvent
	for _, item := range history {
		seen, err := ix.dedup.Seen(item.TxID)
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}

		tx, err := ix.svc.GetTx(ctx, item.TxID)
		if err != nil {
			// Left unmarked so the next cycle retries it.
			ix.log.Warn("skipping transaction, detail fetch failed",
				"txid", item.TxID, "err", err)
			continue
		}

		txEvents := ix.scanTx(tx, tip)
		if err := ix.dedup.Mark(item.TxID); err != nil {
			return nil, err
		}
		events = append(events, txEvents...)
	}

	for _, ev := range events {
		ix.sink.Emit(audit.Event{
			Type: audit.EventDepositObserved,
			At:   ix.clock.Now().UTC(),
			Ref:  ev.TxID,
			Attrs: map[string]string{
				"to_address": ev.ToAddress,
				"ticker":     ev.Ticker,
				"amount":     strconv.FormatUint(ev.Amount, 10),
			},
		})
	}
	return events, nil
}

// scanTx extracts deposit events from one transaction's outputs. Outputs
// without a marker, with a foreign ticker, with an undecodable recipient, or
// addressed back to the custody address itself are all discarded silently.
func (ix *Indexer) scanTx(tx *ledger.Tx, tip uint64) []DepositEvent {
	height := tx.BlockHeight
	if height == 0 {
		height = tip
	}

	var events []DepositEvent
	for _, out := range tx.Outputs {
		marker, err := token.ParseTransferMarker(out.Script)
		if err != nil {
			if !errors.Is(err, token.ErrNoMarker) && !errors.Is(err, token.ErrScriptTruncated) {
				ix.log.Debug("discarding malformed marker",
					"txid", tx.TxID, "vout", out.Index, "err", err)
			}
			continue
		}
		if marker.Ticker != ix.cfg.Ticker {
			continue
		}

		recipient, err := token.Recipient(out.Script, ix.cfg.AddressVersion)
		if err != nil {
			ix.log.Debug("discarding marker without decodable recipient",
				"txid", tx.TxID, "vout", out.Index, "err", err)
			continue
		}
		if recipient == ix.cfg.CustodyAddress {
			// Self-transfer.
			continue
		}

		events = append(events, DepositEvent{
			TxID:             tx.TxID,
			Vout:             out.Index,
			ToAddress:        recipient,
			Ticker:           marker.Ticker,
			Amount:           marker.Amount,
			ObservedAtHeight: height,
		})
	}
	return events
}

// Run polls on a fixed interval until ctx is cancelled, handing each
// non-empty batch to apply. Poll and apply errors are logged and the cycle
// skipped; the loop itself only stops with the context.
func (ix *Indexer) Run(ctx context.Context, interval time.Duration, apply func(context.Context, []DepositEvent) error) error {
	ticker := ix.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		events, err := ix.Poll(ctx)
		if err != nil {
			ix.log.Warn("poll cycle skipped", "err", err)
			continue
		}
		if len(events) == 0 {
			continue
		}
		if err := apply(ctx, events); err != nil {
			ix.log.Error("applying deposit events failed", "err", err)
		}
	}
}
