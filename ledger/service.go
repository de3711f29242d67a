package ledger

import "context"

// Service is the primary interface for ledger interaction. The ledger is an
// external, eventually-consistent system: every method can fail transiently,
// and callers treat failures as "try again next cycle".
type Service interface {
	// AddressHistory returns the recent transaction history for an address,
	// most recent first.
	AddressHistory(ctx context.Context, address string) ([]HistoryItem, error)

	// ListUnspent returns all unspent transaction outputs for the given address.
	ListUnspent(ctx context.Context, address string) ([]*UTXO, error)

	// GetTx returns the full detail of a transaction, including every output's
	// locking script.
	GetTx(ctx context.Context, txID string) (*Tx, error)

	// GetTxStatus returns the confirmation status of a transaction.
	GetTxStatus(ctx context.Context, txID string) (*TxStatus, error)

	// BroadcastTx submits a raw transaction hex to the ledger and returns the txid.
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)

	// GetBestBlockHeight returns the height of the current chain tip.
	GetBestBlockHeight(ctx context.Context) (uint64, error)
}

// HistoryItem is one entry in an address's transaction history.
type HistoryItem struct {
	TxID   string `json:"tx_hash"`
	Height int64  `json:"height"` // 0 or negative while unconfirmed
}

// Tx is a transaction as reported by the ledger's detail endpoint.
type Tx struct {
	TxID        string     `json:"txid"`
	BlockHeight uint64     `json:"blockheight"`
	BlockTime   int64      `json:"blocktime"`
	Outputs     []TxOutput `json:"vout"`
}

// TxOutput is one output of a transaction. Value is in satoshis; Script is
// the raw locking script bytes.
type TxOutput struct {
	Index  uint32 `json:"n"`
	Value  uint64 `json:"value"`
	Script []byte `json:"script"`
}

// TxStatus is the confirmation status of a transaction.
type TxStatus struct {
	Confirmed     bool   `json:"confirmed"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"block_hash"`
	BlockHeight   uint64 `json:"block_height"`
}

// UTXO is an unspent transaction output. The unspent endpoint does not
// return locking scripts; spenders derive them from the address they
// queried.
type UTXO struct {
	TxID          string `json:"tx_hash"`
	Vout          uint32 `json:"tx_pos"`
	Amount        uint64 `json:"value"`
	Confirmations int64  `json:"confirmations"`
}
