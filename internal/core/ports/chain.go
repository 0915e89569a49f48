package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainProvider is the read/broadcast boundary towards an EVM JSON-RPC node.
// Implementations must be safe for concurrent use: read-only calls are not
// serialized by the engine and may interleave freely with signing.
type ChainProvider interface {
	// GetBalance returns the current balance of the address in wei.
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)
	// GetTransactionCount returns the number of transactions sent from the
	// address, ie. its next nonce.
	GetTransactionCount(ctx context.Context, address common.Address) (uint64, error)
	// GetGasPrice returns the gas price suggested by the node in wei.
	GetGasPrice(ctx context.Context) (*big.Int, error)
	// GetTransactionReceipt returns the receipt of a mined transaction, or
	// nil without error if the transaction is not yet included in a block.
	GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	// SendRawTransaction broadcasts an already-signed RLP-encoded transaction
	// and returns its hash.
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
}
