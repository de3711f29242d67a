package payout

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/b0ase/libcustody-go/audit"
	"github.com/b0ase/libcustody-go/dividend"
	"github.com/b0ase/libcustody-go/ledger"
	"github.com/b0ase/libcustody-go/token"
)

// ExecutorConfig bounds payout execution.
type ExecutorConfig struct {
	// Ticker is the token identifier written into transfer outputs.
	Ticker string

	// AddressVersion is the version byte for validating and decoding
	// payment addresses.
	AddressVersion byte

	// FundingAddress holds the satoshi pool that pays carrier outputs and
	// fees. Recipients always receive their exact computed token amount;
	// fees never come out of payments.
	FundingAddress string

	// FeeRatePerKB is the fee rate in sat/KB.
	FeeRatePerKB uint64

	// DustThreshold is the minimum transferable payment amount.
	DustThreshold uint64

	// MaxConcurrent caps in-flight payment executions per batch.
	MaxConcurrent int

	// RetryAttempts and RetryDelay bound broadcast retries and
	// confirmation polling.
	RetryAttempts int
	RetryDelay    time.Duration
}

// Executor settles distributions on the ledger. Each payment is executed in
// stages (validate, build, sign, broadcast, confirm) and every outcome is
// appended to the settlement log before Execute returns. A payment whose
// broadcast transaction may still be in flight is resumed with the original
// signed bytes re-broadcast verbatim; a transaction the ledger definitively
// rejected is discarded and rebuilt.
type Executor struct {
	cfg      ExecutorConfig
	svc      ledger.Service
	store    Store
	selector *Selector
	key      *ec.PrivateKey
	sink     audit.Sink
	clock    clockwork.Clock
	log      *slog.Logger
}

// NewExecutor wires an executor. key signs funding inputs and must
// correspond to cfg.FundingAddress.
func NewExecutor(cfg ExecutorConfig, svc ledger.Service, store Store, key *ec.PrivateKey, sink audit.Sink, clock clockwork.Clock, log *slog.Logger) *Executor {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	return &Executor{
		cfg:      cfg,
		svc:      svc,
		store:    store,
		selector: NewSelector(svc, cfg.FundingAddress),
		key:      key,
		sink:     sink,
		clock:    clock,
		log:      log,
	}
}

// PaymentID derives the settlement key for one payment of a distribution.
func PaymentID(distributionID, holderID string) string {
	return distributionID + "/" + holderID
}

// Execute settles every payment of a committed distribution. Payments are
// independent: a validation or broadcast failure in one never blocks the
// rest. The returned records are the final settlement state per payment, in
// payment order. The returned error reports only infrastructure failures
// (settlement log writes), never per-payment outcomes.
func (ex *Executor) Execute(ctx context.Context, dist *dividend.Distribution) ([]*SettlementRecord, error) {
	if dist.ID == "" {
		return nil, ErrNoDistributionID
	}

	records := make([]*SettlementRecord, len(dist.Payments))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.cfg.MaxConcurrent)
	for i, p := range dist.Payments {
		g.Go(func() error {
			rec, err := ex.settle(ctx, dist.ID, p)
			if err != nil {
				return err
			}
			mu.Lock()
			records[i] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// settle runs one payment to its final state for this batch.
func (ex *Executor) settle(ctx context.Context, distID string, p dividend.Payment) (*SettlementRecord, error) {
	paymentID := PaymentID(distID, p.HolderID)

	attempt := 1
	if latest, err := ex.store.Latest(paymentID); err == nil {
		if latest.Status == StatusSucceeded {
			return latest, nil
		}
		attempt = latest.Attempt + 1
		if latest.TxID != "" {
			// A transaction exists; broadcast must not be repeated
			// with a fresh one.
			return ex.resume(ctx, latest, attempt)
		}
	} else if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	base := SettlementRecord{
		DistributionID: distID,
		PaymentID:      paymentID,
		HolderID:       p.HolderID,
		Address:        p.Address,
		Amount:         p.Amount,
		Attempt:        attempt,
	}

	if err := ValidatePayment(p, ex.cfg.AddressVersion, ex.cfg.DustThreshold); err != nil {
		return ex.record(base, StageValidate, StatusFailed, err.Error(), "", "")
	}

	signedHex, txid, sel, stage, err := ex.buildAndSign(ctx, p)
	if err != nil {
		if sel != nil {
			ex.selector.Release(sel)
		}
		return ex.record(base, stage, StatusFailed, err.Error(), "", "")
	}

	if err := ex.broadcast(ctx, signedHex); err != nil {
		if errors.Is(err, ledger.ErrBroadcastRejected) {
			// A rejection means the transaction never entered the
			// mempool. Free its inputs and let the next attempt
			// build a fresh one.
			ex.selector.Release(sel)
			return ex.record(base, StageBroadcast, StatusFailed, err.Error(), "", "")
		}
		// The transaction may have reached the network; keep the
		// signed bytes so the next attempt re-broadcasts them.
		return ex.record(base, StageBroadcast, StatusFailed, err.Error(), txid, signedHex)
	}
	if _, err := ex.record(base, StageBroadcast, StatusPending, "", txid, signedHex); err != nil {
		return nil, err
	}

	return ex.confirm(ctx, base, txid, signedHex)
}

// resume continues a payment from its recorded stage. The existing signed
// transaction is reused while it may still be in flight; only a definitive
// ledger rejection clears it so a later attempt can rebuild.
func (ex *Executor) resume(ctx context.Context, latest *SettlementRecord, attempt int) (*SettlementRecord, error) {
	base := *latest
	base.Attempt = attempt
	base.Reason = ""

	if st, err := ex.svc.GetTxStatus(ctx, latest.TxID); err == nil && st.Confirmed {
		return ex.record(base, StageConfirm, StatusSucceeded, "", latest.TxID, latest.RawTxHex)
	}

	if latest.Stage == StageBroadcast && latest.Status == StatusFailed {
		if err := ex.broadcast(ctx, latest.RawTxHex); err != nil {
			if errors.Is(err, ledger.ErrBroadcastRejected) {
				ex.releaseInputs(latest.RawTxHex)
				return ex.record(base, StageBroadcast, StatusFailed, err.Error(), "", "")
			}
			return ex.record(base, StageBroadcast, StatusFailed, err.Error(), latest.TxID, latest.RawTxHex)
		}
		if _, err := ex.record(base, StageBroadcast, StatusPending, "", latest.TxID, latest.RawTxHex); err != nil {
			return nil, err
		}
	}
	return ex.confirm(ctx, base, latest.TxID, latest.RawTxHex)
}

// buildAndSign constructs and signs the payout transaction for one payment.
// The returned selection is non-nil once funding inputs are reserved, even
// on error, so the caller can release them. The returned stage reports
// where a failure happened.
func (ex *Executor) buildAndSign(ctx context.Context, p dividend.Payment) (string, string, *Selection, Stage, error) {
	_, recipientHash, err := token.DecodeAddress(p.Address)
	if err != nil {
		return "", "", nil, StageBuild, fmt.Errorf("decode recipient: %w", err)
	}
	transferScript, err := token.BuildTransferScript(recipientHash, ex.cfg.Ticker, p.Amount)
	if err != nil {
		return "", "", nil, StageBuild, fmt.Errorf("build transfer script: %w", err)
	}
	// The unspent endpoint carries no scripts; the funding pool is plain
	// P2PKH, so every input's source locking script is derived from the
	// funding address. Change returns to the same script.
	fundingLock, err := ex.fundingLock()
	if err != nil {
		return "", "", nil, StageBuild, err
	}

	// One carrier output plus change; the transfer envelope is the only
	// non-standard script in the transaction.
	extra := len(transferScript)
	sel, err := ex.selector.Select(ctx, DustLimit, 2, extra, ex.cfg.FeeRatePerKB)
	if err != nil {
		return "", "", nil, StageBuild, err
	}

	sdkTx := transaction.NewTransaction()
	unlocker, err := p2pkh.Unlock(ex.key, nil)
	if err != nil {
		return "", "", sel, StageBuild, fmt.Errorf("create unlocker: %w", err)
	}
	for _, u := range sel.UTXOs {
		sourceHash, err := txidToHash(u.TxID)
		if err != nil {
			return "", "", sel, StageBuild, fmt.Errorf("invalid funding txid: %w", err)
		}
		input := &transaction.TransactionInput{
			SourceTXID:       sourceHash,
			SourceTxOutIndex: u.Vout,
			SequenceNumber:   transaction.DefaultSequenceNumber,
		}
		input.SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      u.Amount,
			LockingScript: fundingLock,
		})
		input.UnlockingScriptTemplate = unlocker
		sdkTx.AddInput(input)
	}

	sdkTx.Outputs = append(sdkTx.Outputs, &transaction.TransactionOutput{
		Satoshis:      DustLimit,
		LockingScript: script.NewFromBytes(transferScript),
	})
	if sel.Change > DustLimit {
		sdkTx.Outputs = append(sdkTx.Outputs, &transaction.TransactionOutput{
			Satoshis:      sel.Change,
			LockingScript: fundingLock,
		})
	}

	if err := sdkTx.Sign(); err != nil {
		return "", "", sel, StageSign, fmt.Errorf("sign: %w", err)
	}
	return sdkTx.Hex(), sdkTx.TxID().String(), sel, StageSign, nil
}

// fundingLock builds the P2PKH locking script for the funding address.
func (ex *Executor) fundingLock() (*script.Script, error) {
	_, fundingHash, err := token.DecodeAddress(ex.cfg.FundingAddress)
	if err != nil {
		return nil, fmt.Errorf("decode funding address: %w", err)
	}
	addr, err := script.NewAddressFromPublicKeyHash(fundingHash[:], ex.cfg.AddressVersion == token.MainnetVersion)
	if err != nil {
		return nil, fmt.Errorf("funding address: %w", err)
	}
	lock, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("funding lock: %w", err)
	}
	return lock, nil
}

// releaseInputs returns the funding outpoints spent by a signed transaction
// that never entered the mempool.
func (ex *Executor) releaseInputs(rawHex string) {
	parsed, err := transaction.NewTransactionFromHex(rawHex)
	if err != nil {
		ex.log.Warn("parse rejected transaction for input release", "err", err)
		return
	}
	sel := &Selection{}
	for _, in := range parsed.Inputs {
		sel.UTXOs = append(sel.UTXOs, &ledger.UTXO{
			TxID: in.SourceTXID.String(),
			Vout: in.SourceTxOutIndex,
		})
	}
	ex.selector.Release(sel)
}

// broadcast submits the signed hex, retrying transient failures with a
// fixed delay. A rejection from the ledger is permanent and not retried.
func (ex *Executor) broadcast(ctx context.Context, rawHex string) error {
	var lastErr error
	for i := 0; i < ex.cfg.RetryAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ex.clock.After(ex.cfg.RetryDelay):
			}
		}
		_, err := ex.svc.BroadcastTx(ctx, rawHex)
		if err == nil {
			return nil
		}
		if errors.Is(err, ledger.ErrBroadcastRejected) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("broadcast not accepted after %d attempts: %w", ex.cfg.RetryAttempts, lastErr)
}

// confirm polls the transaction status until it confirms or attempts run
// out. An unconfirmed transaction stays pending; a later Execute resumes it.
func (ex *Executor) confirm(ctx context.Context, base SettlementRecord, txid, rawHex string) (*SettlementRecord, error) {
	for i := 0; i < ex.cfg.RetryAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ex.clock.After(ex.cfg.RetryDelay):
			}
		}
		st, err := ex.svc.GetTxStatus(ctx, txid)
		if err != nil {
			ex.log.Warn("settlement status check failed", "txid", txid, "err", err)
			continue
		}
		if st.Confirmed {
			return ex.record(base, StageConfirm, StatusSucceeded, "", txid, rawHex)
		}
	}
	reason := fmt.Sprintf("unconfirmed after %d checks", ex.cfg.RetryAttempts)
	return ex.record(base, StageConfirm, StatusPending, reason, txid, rawHex)
}

// record appends one settlement record and emits it as an audit event.
func (ex *Executor) record(base SettlementRecord, stage Stage, status Status, reason, txid, rawHex string) (*SettlementRecord, error) {
	rec := base
	rec.ID = uuid.NewString()
	rec.Stage = stage
	rec.Status = status
	rec.Reason = reason
	rec.TxID = txid
	rec.RawTxHex = rawHex
	rec.At = ex.clock.Now().UTC()

	if err := ex.store.Append(&rec); err != nil {
		return nil, fmt.Errorf("append settlement record: %w", err)
	}

	ex.log.Info("settlement recorded",
		"payment_id", rec.PaymentID,
		"stage", stage,
		"status", status,
		"txid", txid,
		"reason", reason)
	ex.sink.Emit(audit.Event{
		Type: audit.EventSettlementRecorded,
		At:   rec.At,
		Ref:  rec.PaymentID,
		Attrs: map[string]string{
			"stage":   string(stage),
			"status":  string(status),
			"txid":    txid,
			"amount":  strconv.FormatUint(rec.Amount, 10),
			"attempt": strconv.Itoa(rec.Attempt),
		},
	})
	return &rec, nil
}

// txidToHash converts a display-order hex txid to the hash's internal byte
// order.
func txidToHash(txid string) (*chainhash.Hash, error) {
	raw, err := hex.DecodeString(txid)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	return chainhash.NewHash(raw)
}
