package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bounded queue of finalized block notifications.
// One producer pushes notifications and finishes the stream, one consumer pulls chunks.
type BlockStream struct {
	ch     chan BlockNotification
	ctx    context.Context
	cancel context.CancelFunc

	mtx sync.Mutex
	err error
}

func NewBlockStream(ctx context.Context, capacity int) (self *BlockStream) {
	self = new(BlockStream)
	self.ch = make(chan BlockNotification, capacity)
	self.ctx, self.cancel = context.WithCancel(ctx)
	return
}

// Context of the producer, cancelled once the consumer closes the stream
func (self *BlockStream) Context() context.Context {
	return self.ctx
}

// Blocks until there's space in the queue. False means the consumer is gone.
func (self *BlockStream) Push(n BlockNotification) bool {
	select {
	case <-self.ctx.Done():
		return false
	case self.ch <- n:
		return true
	}
}

// Called by the producer exactly once, after the last Push
func (self *BlockStream) Finish(err error) {
	self.mtx.Lock()
	self.err = err
	self.mtx.Unlock()
	close(self.ch)
}

// Called by the consumer, stops the producer
func (self *BlockStream) Close() {
	self.cancel()
}

func (self *BlockStream) failure() error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.err == nil {
		return ErrStreamFailed
	}
	return fmt.Errorf("%w: %w", ErrStreamFailed, self.err)
}

// Waits at most timeout for the first notification, then takes whatever else is already queued, up to max.
// Returns ErrTimeout if nothing arrived in time. If the stream ended, the returned error wraps ErrStreamFailed
// and chunk holds notifications received before that.
func (self *BlockStream) NextChunkTimeout(ctx context.Context, max int, timeout time.Duration) (chunk []BlockNotification, err error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	case n, ok := <-self.ch:
		if !ok {
			return nil, self.failure()
		}
		chunk = append(chunk, n)
	}

	for len(chunk) < max {
		select {
		case n, ok := <-self.ch:
			if !ok {
				return chunk, self.failure()
			}
			chunk = append(chunk, n)
		default:
			return chunk, nil
		}
	}
	return chunk, nil
}
