package sponsor

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// Sender's inbox is full, the client should come back later
	ErrBusy = errors.New("too many pending transactions")

	// Sender doesn't accept transactions anymore
	ErrSenderStopped = errors.New("transaction sender stopped")
)

// Signed transaction on its way to the sender
type PendingSend struct {
	Nonce        uint64
	TxHash       common.Hash
	SerializedTx []byte
	Sponsoree    common.Address
	Ack          *Ack
}

// Guards the next nonce of the sponsoring account. Nonce is consumed only when the transaction
// signed with it was accepted by the sender's inbox, so nonces reaching the sender have no gaps.
type NonceCounter struct {
	mtx    sync.Mutex
	next   uint64
	inbox  chan *PendingSend
	closed bool
	died   <-chan struct{}
}

func NewNonceCounter(next uint64, inbox chan *PendingSend) *NonceCounter {
	return &NonceCounter{
		next:  next,
		inbox: inbox,
	}
}

// Closed when the service can't process transactions anymore
func (self *NonceCounter) WithDied(v <-chan struct{}) *NonceCounter {
	self.died = v
	return self
}

func (self *NonceCounter) Next() uint64 {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.next
}

// Builds the transaction with the current nonce and hands it to the sender without blocking.
// build runs under the lock, it must not do any I/O.
func (self *NonceCounter) IncrementAndHandoff(build func(nonce uint64) (*PendingSend, error)) (*PendingSend, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.closed {
		return nil, ErrSenderStopped
	}

	if self.died != nil {
		select {
		case <-self.died:
			return nil, ErrSenderStopped
		default:
		}
	}

	send, err := build(self.next)
	if err != nil {
		return nil, err
	}

	select {
	case self.inbox <- send:
	default:
		return nil, ErrBusy
	}

	self.next++
	return send, nil
}

// Closes the sender's inbox, the sender finishes what's queued and exits
func (self *NonceCounter) Close() {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.closed {
		return
	}
	self.closed = true
	close(self.inbox)
}
