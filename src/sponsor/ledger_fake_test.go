package sponsor

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/mysomeid/sponsor/src/utils/ledger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeBlock struct {
	info      ledger.BlockInfo
	summaries []*ledger.TxSummary
}

// In memory ledger
type fakeLedger struct {
	mtx sync.Mutex

	blocks []*fakeBlock
	added  chan struct{}

	// Number of streams that fail right away
	streamFailures int

	// Number of block info queries that fail
	blockInfoFailures int

	// Decides the outcome of each submission, nil accepts everything
	onSubmit  func(raw []byte) error
	submitted [][]byte

	known   map[common.Hash]bool
	nonce   ledger.AccountNonce
	balance *big.Int
	chainId *big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		added:   make(chan struct{}),
		known:   make(map[common.Hash]bool),
		nonce:   ledger.AccountNonce{AllFinal: true},
		balance: big.NewInt(1e18),
		chainId: big.NewInt(1337),
	}
}

func fakeBlockHash(height uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(height + 1_000_000))
}

// Appends a finalized block, returns its height
func (self *fakeLedger) AddBlock(summaries ...*ledger.TxSummary) uint64 {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	height := uint64(len(self.blocks))
	self.blocks = append(self.blocks, &fakeBlock{
		info: ledger.BlockInfo{
			Hash:             fakeBlockHash(height),
			Height:           height,
			Time:             time.Unix(1700000000+int64(height), 0).UTC(),
			TransactionCount: uint(len(summaries)),
		},
		summaries: summaries,
	})
	close(self.added)
	self.added = make(chan struct{})
	return height
}

// Appends empty blocks until the given height exists
func (self *fakeLedger) AddEmptyBlocksUntil(height uint64) {
	for {
		self.mtx.Lock()
		count := uint64(len(self.blocks))
		self.mtx.Unlock()
		if count > height {
			return
		}
		self.AddBlock()
	}
}

func (self *fakeLedger) Submitted() [][]byte {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	out := make([][]byte, len(self.submitted))
	copy(out, self.submitted)
	return out
}

func (self *fakeLedger) GetFinalizedBlocksFrom(ctx context.Context, height uint64) (*ledger.BlockStream, error) {
	stream := ledger.NewBlockStream(ctx, 16)

	self.mtx.Lock()
	fail := self.streamFailures > 0
	if fail {
		self.streamFailures--
	}
	self.mtx.Unlock()

	if fail {
		stream.Finish(errors.New("connection reset"))
		return stream, nil
	}

	go func() {
		next := height
		for {
			self.mtx.Lock()
			var block *fakeBlock
			if next < uint64(len(self.blocks)) {
				block = self.blocks[next]
			}
			added := self.added
			self.mtx.Unlock()

			if block == nil {
				select {
				case <-stream.Context().Done():
					stream.Finish(stream.Context().Err())
					return
				case <-added:
				}
				continue
			}

			if !stream.Push(ledger.BlockNotification{Hash: block.info.Hash, Height: block.info.Height}) {
				stream.Finish(stream.Context().Err())
				return
			}
			next++
		}
	}()
	return stream, nil
}

func (self *fakeLedger) findBlock(hash common.Hash) (*fakeBlock, error) {
	for _, block := range self.blocks {
		if block.info.Hash == hash {
			return block, nil
		}
	}
	return nil, errors.New("not found")
}

func (self *fakeLedger) GetBlockInfo(ctx context.Context, hash common.Hash) (*ledger.BlockInfo, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.blockInfoFailures > 0 {
		self.blockInfoFailures--
		return nil, errors.New("node unavailable")
	}

	block, err := self.findBlock(hash)
	if err != nil {
		return nil, err
	}
	info := block.info
	return &info, nil
}

func (self *fakeLedger) GetTransactionEvents(ctx context.Context, hash common.Hash) ([]*ledger.TxSummary, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	block, err := self.findBlock(hash)
	if err != nil {
		return nil, err
	}
	return block.summaries, nil
}

func (self *fakeLedger) GetAccountInfo(ctx context.Context, address common.Address) (*ledger.AccountInfo, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return &ledger.AccountInfo{Address: address, Balance: self.balance, Nonce: self.nonce.Nonce}, nil
}

func (self *fakeLedger) SubmitTransaction(ctx context.Context, serializedTx []byte) error {
	self.mtx.Lock()
	onSubmit := self.onSubmit
	self.mtx.Unlock()

	if onSubmit != nil {
		err := onSubmit(serializedTx)
		if err != nil {
			return err
		}
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.submitted = append(self.submitted, serializedTx)

	tx := new(types.Transaction)
	if tx.UnmarshalBinary(serializedTx) == nil {
		self.known[tx.Hash()] = true
	}
	return nil
}

func (self *fakeLedger) GetNextAccountNonce(ctx context.Context, address common.Address) (*ledger.AccountNonce, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	nonce := self.nonce
	return &nonce, nil
}

func (self *fakeLedger) GetChainParameters(ctx context.Context) (*ledger.ChainParameters, error) {
	return &ledger.ChainParameters{ChainId: self.chainId}, nil
}

func (self *fakeLedger) IsTransactionKnown(ctx context.Context, hash common.Hash) (bool, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.known[hash], nil
}
