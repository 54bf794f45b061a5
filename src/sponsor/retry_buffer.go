package sponsor

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/deque"
)

var ErrDuplicateNonce = errors.New("nonce already buffered")

// Transaction waiting for its turn, or for another submission attempt
type bufferedTx struct {
	txHash       common.Hash
	serializedTx []byte
	retriesLeft  int
}

// Ordered map from nonce to transaction. Nonces arrive nearly contiguous, so it's a window
// over consecutive nonces starting at base. Empty slots are nil, first and last slots are never empty.
type RetryBuffer struct {
	base   uint64
	window *deque.Deque[*bufferedTx]
	size   int
}

func NewRetryBuffer() *RetryBuffer {
	return &RetryBuffer{
		window: deque.New[*bufferedTx](),
	}
}

func (self *RetryBuffer) Len() int {
	return self.size
}

func (self *RetryBuffer) Insert(nonce uint64, tx *bufferedTx) error {
	if tx == nil {
		return errors.New("nil transaction")
	}

	if self.window.Len() == 0 {
		self.base = nonce
		self.window.PushBack(tx)
		self.size++
		return nil
	}

	for nonce < self.base {
		self.window.PushFront(nil)
		self.base--
	}

	idx := int(nonce - self.base)
	for self.window.Len() <= idx {
		self.window.PushBack(nil)
	}

	if self.window.At(idx) != nil {
		return fmt.Errorf("%w: %d", ErrDuplicateNonce, nonce)
	}
	self.window.Set(idx, tx)
	self.size++
	return nil
}

// Smallest buffered nonce
func (self *RetryBuffer) Min() (nonce uint64, ok bool) {
	if self.window.Len() == 0 {
		return 0, false
	}
	return self.base, true
}

func (self *RetryBuffer) PopMin() (nonce uint64, tx *bufferedTx, ok bool) {
	if self.window.Len() == 0 {
		return 0, nil, false
	}

	nonce = self.base
	tx = self.window.PopFront()
	self.base++
	self.size--

	// Keep the first slot occupied
	for self.window.Len() > 0 && self.window.Front() == nil {
		self.window.PopFront()
		self.base++
	}

	return nonce, tx, true
}
