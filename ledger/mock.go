package ledger

import "context"

// MockService is a test double for Service.
// All function fields must be set before the corresponding method is called.
type MockService struct {
	AddressHistoryFn     func(ctx context.Context, address string) ([]HistoryItem, error)
	ListUnspentFn        func(ctx context.Context, address string) ([]*UTXO, error)
	GetTxFn              func(ctx context.Context, txID string) (*Tx, error)
	GetTxStatusFn        func(ctx context.Context, txID string) (*TxStatus, error)
	BroadcastTxFn        func(ctx context.Context, rawTxHex string) (string, error)
	GetBestBlockHeightFn func(ctx context.Context) (uint64, error)
}

func (m *MockService) AddressHistory(ctx context.Context, address string) ([]HistoryItem, error) {
	return m.AddressHistoryFn(ctx, address)
}
func (m *MockService) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	return m.ListUnspentFn(ctx, address)
}
func (m *MockService) GetTx(ctx context.Context, txID string) (*Tx, error) {
	return m.GetTxFn(ctx, txID)
}
func (m *MockService) GetTxStatus(ctx context.Context, txID string) (*TxStatus, error) {
	return m.GetTxStatusFn(ctx, txID)
}
func (m *MockService) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	return m.BroadcastTxFn(ctx, rawTxHex)
}
func (m *MockService) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	return m.GetBestBlockHeightFn(ctx)
}
