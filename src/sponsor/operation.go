package sponsor

import (
	"context"
	"errors"
	"sync"

	"github.com/mysomeid/sponsor/src/utils/ledger"
	"github.com/mysomeid/sponsor/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
)

var ErrDatabaseClosed = errors.New("database writer stopped")

// Mutation applied by the writer. Implemented by *InsertBlock, *InsertTransaction and *MarkTransaction.
type DatabaseOperation interface {
	operationName() string
}

type TransactionMark struct {
	TxHash common.Hash
	Status model.TransactionStatus
}

// Everything learned from one finalized block, stored atomically together with the checkpoint
type InsertBlock struct {
	Block  *ledger.BlockInfo
	Events []ledger.ChainEvent

	// Outcome of the operator's own transactions included in the block
	Marks []TransactionMark
}

func (*InsertBlock) operationName() string { return "insert-block" }

// Pending transaction record. The only operation carrying an acknowledgement.
type InsertTransaction struct {
	Sponsoree    common.Address
	TxHash       common.Hash
	SerializedTx []byte
	Ack          *Ack
}

func (*InsertTransaction) operationName() string { return "insert-transaction" }

type MarkTransaction struct {
	TxHash common.Hash
	Status model.TransactionStatus
}

func (*MarkTransaction) operationName() string { return "mark-transaction" }

// One-shot acknowledgement, resolved once the pending record is durable
type Ack struct {
	done      chan struct{}
	once      sync.Once
	mtx       sync.Mutex
	abandoned bool
}

func NewAck() *Ack {
	return &Ack{done: make(chan struct{})}
}

// Returns false if nobody waits for the acknowledgement anymore
func (self *Ack) Resolve() bool {
	self.once.Do(func() { close(self.done) })

	self.mtx.Lock()
	defer self.mtx.Unlock()
	return !self.abandoned
}

// Called by the waiting side when it gives up
func (self *Ack) Abandon() {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.abandoned = true
}

func (self *Ack) Done() <-chan struct{} {
	return self.done
}

// Bounded queue of operations with a single consumer, the writer.
// The writer closes it when it can't persist anything anymore, senders observe that as ErrDatabaseClosed.
type DatabaseChannel struct {
	ops       chan DatabaseOperation
	closed    chan struct{}
	closeOnce sync.Once
}

func NewDatabaseChannel(size int) *DatabaseChannel {
	return &DatabaseChannel{
		ops:    make(chan DatabaseOperation, size),
		closed: make(chan struct{}),
	}
}

// Blocks while the queue is full
func (self *DatabaseChannel) Send(ctx context.Context, op DatabaseOperation) error {
	select {
	case <-self.closed:
		return ErrDatabaseClosed
	default:
	}

	select {
	case <-self.closed:
		return ErrDatabaseClosed
	case <-ctx.Done():
		return ctx.Err()
	case self.ops <- op:
		return nil
	}
}

// Writer side
func (self *DatabaseChannel) Close() {
	self.closeOnce.Do(func() { close(self.closed) })
}

func (self *DatabaseChannel) Closed() <-chan struct{} {
	return self.closed
}

func (self *DatabaseChannel) Len() int {
	return len(self.ops)
}
