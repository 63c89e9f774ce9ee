package types

import "context"

// LedgerClient is the read/write surface of a full node.
//
// GetCoinRecordByName returns ErrNotFound when the ledger has no such coin.
// Failures of the transport itself are wrapped with Transient.
type LedgerClient interface {
	GetCoinRecordByName(ctx context.Context, id Bytes32) (*CoinRecord, error)
	// GetPuzzleAndSolution returns the spend of a coin spent at height.
	GetPuzzleAndSolution(ctx context.Context, id Bytes32, height uint32) (*CoinSpend, error)
	GetCoinRecordsByHint(ctx context.Context, hint Bytes32, includeSpent bool) ([]CoinRecord, error)
	GetCoinRecordsByPuzzleHash(ctx context.Context, puzzleHash Bytes32, includeSpent bool) ([]CoinRecord, error)
	PushTx(ctx context.Context, bundle SpendBundle) (*TxStatus, error)
}

// TransferRequest asks the wallet to send an asset. An empty AssetID means
// the native currency. Amounts and fee are in base units.
type TransferRequest struct {
	AssetID string
	Address string
	Amount  uint64
	Fee     uint64
	Memos   []HexBytes
}

// SigningGateway is the wallet: it owns the keys and signs on request.
// ListPublicKeys returns ErrGatewayUnavailable when the wallet cannot answer.
type SigningGateway interface {
	ListPublicKeys(ctx context.Context, limit, offset int) ([][]byte, error)
	SignSpends(ctx context.Context, spends []CoinSpend) ([]byte, error)
	RequestTransfer(ctx context.Context, req TransferRequest) error
}
