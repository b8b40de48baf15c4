package network

import "context"

// MockBroadcaster is a test double for Broadcaster.
// SubmitTxFn must be set before SubmitTx is called.
type MockBroadcaster struct {
	NameVal    string
	SubmitTxFn func(ctx context.Context, rawTx []byte) (string, error)
}

func (m *MockBroadcaster) Name() string { return m.NameVal }

func (m *MockBroadcaster) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	return m.SubmitTxFn(ctx, rawTx)
}

// MockChainReader is a test double for ChainReader.
// All function fields must be set before the corresponding method is called.
type MockChainReader struct {
	ListUnspentFn func(ctx context.Context, address string) ([]*UTXO, error)
	ChainHeightFn func(ctx context.Context) (uint32, error)
}

func (m *MockChainReader) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	return m.ListUnspentFn(ctx, address)
}

func (m *MockChainReader) ChainHeight(ctx context.Context) (uint32, error) {
	return m.ChainHeightFn(ctx)
}
