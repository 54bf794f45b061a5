package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var finalizedBlock = big.NewInt(int64(rpc.FinalizedBlockNumber))

var _ Client = (*EvmClient)(nil)

// Client of an EVM node exposing the finalized block tag
type EvmClient struct {
	log     *logrus.Entry
	config  *config.Ledger
	eth     *ethclient.Client
	limiter *rate.Limiter

	chainMtx sync.Mutex
	chainId  *big.Int
}

func NewEvmClient(ctx context.Context, config *config.Config) (self *EvmClient, err error) {
	self = new(EvmClient)
	self.log = logger.NewSublogger("ledger")
	self.config = &config.Ledger
	self.limiter = rate.NewLimiter(rate.Limit(config.Ledger.RequestsPerSecond), config.Ledger.RequestsBurst)

	self.eth, err = ethclient.DialContext(ctx, config.Ledger.Url)
	if err != nil {
		self.log.WithError(err).Error("Cannot get ETH client")
		return nil, err
	}
	return
}

func (self *EvmClient) Close() {
	self.eth.Close()
}

// Rate limited call with the per request timeout
func (self *EvmClient) call(ctx context.Context, f func(ctx context.Context) error) (err error) {
	err = self.limiter.Wait(ctx)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, self.config.RequestTimeout)
	defer cancel()

	return f(ctx)
}

func (self *EvmClient) GetFinalizedBlocksFrom(ctx context.Context, height uint64) (*BlockStream, error) {
	stream := NewBlockStream(ctx, self.config.StreamBufferSize)
	go self.produce(stream, height)
	return stream, nil
}

// Polls the finalized head and pushes every height up to it
func (self *EvmClient) produce(stream *BlockStream, next uint64) {
	ctx := stream.Context()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			stream.Finish(ctx.Err())
			return
		case <-timer.C:
		}

		var finalized *types.Header
		err := self.call(ctx, func(ctx context.Context) (err error) {
			finalized, err = self.eth.HeaderByNumber(ctx, finalizedBlock)
			return
		})
		if err != nil {
			self.log.WithError(err).Warn("Failed to get finalized head")
			stream.Finish(err)
			return
		}

		for ; next <= finalized.Number.Uint64(); next++ {
			var header *types.Header
			err = self.call(ctx, func(ctx context.Context) (err error) {
				header, err = self.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(next))
				return
			})
			if err != nil {
				self.log.WithError(err).WithField("height", next).Warn("Failed to get finalized header")
				stream.Finish(err)
				return
			}

			if !stream.Push(BlockNotification{Hash: header.Hash(), Height: next}) {
				stream.Finish(ctx.Err())
				return
			}
		}

		timer.Reset(self.config.PollInterval)
	}
}

func (self *EvmClient) GetBlockInfo(ctx context.Context, hash common.Hash) (out *BlockInfo, err error) {
	var header *types.Header
	err = self.call(ctx, func(ctx context.Context) (err error) {
		header, err = self.eth.HeaderByHash(ctx, hash)
		return
	})
	if err != nil {
		return
	}

	var count uint
	err = self.call(ctx, func(ctx context.Context) (err error) {
		count, err = self.eth.TransactionCount(ctx, hash)
		return
	})
	if err != nil {
		return
	}

	return &BlockInfo{
		Hash:             hash,
		Height:           header.Number.Uint64(),
		Time:             time.Unix(int64(header.Time), 0).UTC(),
		TransactionCount: count,
	}, nil
}

func (self *EvmClient) GetTransactionEvents(ctx context.Context, hash common.Hash) (out []*TxSummary, err error) {
	var block *types.Block
	err = self.call(ctx, func(ctx context.Context) (err error) {
		block, err = self.eth.BlockByHash(ctx, hash)
		return
	})
	if err != nil {
		return
	}

	var receipts []*types.Receipt
	err = self.call(ctx, func(ctx context.Context) (err error) {
		receipts, err = self.eth.BlockReceipts(ctx, rpc.BlockNumberOrHashWithHash(hash, true))
		return
	})
	if err != nil {
		return
	}

	txs := block.Transactions()
	if len(receipts) != len(txs) {
		return nil, fmt.Errorf("block %s has %d transactions and %d receipts", hash, len(txs), len(receipts))
	}

	chainId, err := self.getChainId(ctx)
	if err != nil {
		return
	}
	signer := types.LatestSignerForChainID(chainId)

	out = make([]*TxSummary, 0, len(txs))
	for i, tx := range txs {
		summary := &TxSummary{
			Hash:     tx.Hash(),
			Rejected: receipts[i].Status == types.ReceiptStatusFailed,
			Logs:     receipts[i].Logs,
		}
		sender, err := types.Sender(signer, tx)
		if err == nil {
			summary.Sender = &sender
		}
		out = append(out, summary)
	}
	return
}

func (self *EvmClient) GetAccountInfo(ctx context.Context, address common.Address) (out *AccountInfo, err error) {
	out = &AccountInfo{Address: address}
	err = self.call(ctx, func(ctx context.Context) (err error) {
		out.Balance, err = self.eth.BalanceAt(ctx, address, finalizedBlock)
		return
	})
	if err != nil {
		return nil, err
	}

	err = self.call(ctx, func(ctx context.Context) (err error) {
		out.Nonce, err = self.eth.NonceAt(ctx, address, finalizedBlock)
		return
	})
	if err != nil {
		return nil, err
	}
	return
}

func (self *EvmClient) SubmitTransaction(ctx context.Context, serializedTx []byte) (err error) {
	tx := new(types.Transaction)
	err = tx.UnmarshalBinary(serializedTx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	err = self.call(ctx, func(ctx context.Context) error {
		return self.eth.SendTransaction(ctx, tx)
	})
	return ClassifySubmitError(err)
}

func (self *EvmClient) GetNextAccountNonce(ctx context.Context, address common.Address) (out *AccountNonce, err error) {
	var pending, final uint64
	err = self.call(ctx, func(ctx context.Context) (err error) {
		pending, err = self.eth.PendingNonceAt(ctx, address)
		return
	})
	if err != nil {
		return
	}

	err = self.call(ctx, func(ctx context.Context) (err error) {
		final, err = self.eth.NonceAt(ctx, address, finalizedBlock)
		return
	})
	if err != nil {
		return
	}

	return &AccountNonce{Nonce: pending, AllFinal: pending == final}, nil
}

func (self *EvmClient) GetChainParameters(ctx context.Context) (*ChainParameters, error) {
	chainId, err := self.getChainId(ctx)
	if err != nil {
		return nil, err
	}
	return &ChainParameters{ChainId: chainId}, nil
}

func (self *EvmClient) getChainId(ctx context.Context) (out *big.Int, err error) {
	self.chainMtx.Lock()
	defer self.chainMtx.Unlock()

	if self.chainId != nil {
		return self.chainId, nil
	}

	err = self.call(ctx, func(ctx context.Context) (err error) {
		out, err = self.eth.ChainID(ctx)
		return
	})
	if err != nil {
		return
	}
	self.chainId = out
	return
}

func (self *EvmClient) IsTransactionKnown(ctx context.Context, hash common.Hash) (known bool, err error) {
	err = self.call(ctx, func(ctx context.Context) (err error) {
		_, _, err = self.eth.TransactionByHash(ctx, hash)
		return
	})
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return
	}
	return true, nil
}
