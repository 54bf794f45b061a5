package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type BlockNotification struct {
	Hash   common.Hash
	Height uint64
}

type BlockInfo struct {
	Hash             common.Hash
	Height           uint64
	Time             time.Time
	TransactionCount uint
}

// Outcome of a single transaction in a finalized block
type TxSummary struct {
	Hash common.Hash

	// Nil if the sender couldn't be recovered (e.g. system transactions)
	Sender *common.Address

	// Included in the block, but execution failed
	Rejected bool

	Logs []*types.Log
}

type AccountInfo struct {
	Address common.Address
	Balance *big.Int
	Nonce   uint64
}

type AccountNonce struct {
	Nonce uint64

	// False if some transactions of the account aren't finalized yet
	AllFinal bool
}

type ChainParameters struct {
	ChainId *big.Int
}

// Facade over the ledger node. All methods are safe for concurrent use.
type Client interface {
	// Stream of finalized blocks starting at height, in order and without gaps
	GetFinalizedBlocksFrom(ctx context.Context, height uint64) (*BlockStream, error)

	GetBlockInfo(ctx context.Context, hash common.Hash) (*BlockInfo, error)

	// Summaries of all transactions in the block, in block order
	GetTransactionEvents(ctx context.Context, hash common.Hash) ([]*TxSummary, error)

	GetAccountInfo(ctx context.Context, address common.Address) (*AccountInfo, error)

	// Errors wrap ErrDuplicate or ErrInvalidArgument when the node rejects the transaction for good
	SubmitTransaction(ctx context.Context, serializedTx []byte) error

	GetNextAccountNonce(ctx context.Context, address common.Address) (*AccountNonce, error)

	GetChainParameters(ctx context.Context) (*ChainParameters, error)

	// False if the node has never seen the transaction, or already dropped it from the pool
	IsTransactionKnown(ctx context.Context, hash common.Hash) (bool, error)
}
