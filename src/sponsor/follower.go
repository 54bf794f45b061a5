package sponsor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/ledger"
	"github.com/mysomeid/sponsor/src/utils/model"
	"github.com/mysomeid/sponsor/src/utils/monitoring"
	"github.com/mysomeid/sponsor/src/utils/task"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrFollowerGaveUp    = errors.New("too many failures without progress")
	ErrInconsistentBlock = errors.New("node returned an unexpected block")
)

// Block with everything needed to extract events
type fetchedBlock struct {
	info      *ledger.BlockInfo
	summaries []*ledger.TxSummary
	err       error
}

// Follows finalized blocks in order, extracts token events and outcomes of the operator's transactions.
// Each block becomes a single database operation. Transient failures are retried with exponential backoff.
type Follower struct {
	*task.Task

	monitor  monitoring.Monitor
	client   ledger.Client
	contract *ledger.Contract
	operator common.Address
	output   *DatabaseChannel

	// Blocks fetched at once
	maxParallel int

	// Next height to process
	height uint64

	// Consecutive failures without progress
	retry int
}

func NewFollower(config *config.Config) (self *Follower) {
	self = new(Follower)

	self.maxParallel = max(config.Follower.MaxParallel, 1)

	self.Task = task.NewTask(config, "follower").
		WithSubtaskFunc(self.run).
		WithWorkerPool(self.maxParallel, self.maxParallel)

	return
}

func (self *Follower) WithMonitor(monitor monitoring.Monitor) *Follower {
	self.monitor = monitor
	return self
}

func (self *Follower) WithClient(client ledger.Client) *Follower {
	self.client = client
	return self
}

func (self *Follower) WithContract(v *ledger.Contract) *Follower {
	self.contract = v
	return self
}

// Account whose transactions get marked
func (self *Follower) WithOperator(v common.Address) *Follower {
	self.operator = v
	return self
}

func (self *Follower) WithOutputChannel(v *DatabaseChannel) *Follower {
	self.output = v
	return self
}

func (self *Follower) WithStartHeight(v uint64) *Follower {
	self.height = v
	return self
}

// Delay before the next attempt
func (self *Follower) backoff() time.Duration {
	return self.Config.Follower.BackoffBase << uint(min(self.retry, self.Config.Follower.BackoffCap))
}

func isFatal(err error) bool {
	return errors.Is(err, ledger.ErrTokenIdOutOfRange) ||
		errors.Is(err, ErrInconsistentBlock)
}

func (self *Follower) run() error {
	for {
		start := self.height

		err := self.follow()
		if err == nil {
			return nil
		}
		if isFatal(err) {
			return err
		}

		if self.height > start {
			self.retry = 0
		}
		self.retry++
		self.monitor.GetReport().Sponsor.Errors.FollowerFailures.Inc()
		self.monitor.GetReport().Sponsor.State.FollowerRetryAttempt.Store(int64(self.retry))

		if self.retry > self.Config.Follower.MaxRetries {
			self.Log.WithError(err).WithField("height", self.height).Error("Failed to follow the chain, giving up")
			return fmt.Errorf("%w: %w", ErrFollowerGaveUp, err)
		}

		delay := self.backoff()
		self.Log.WithError(err).
			WithField("height", self.height).
			WithField("retry", self.retry).
			WithField("delay", delay).
			Warn("Failed to follow the chain, retrying")

		select {
		case <-self.StopChannel:
			return nil
		case <-time.After(delay):
		}
	}
}

// Nil means a clean stop
func (self *Follower) follow() (err error) {
	stream, err := self.client.GetFinalizedBlocksFrom(self.Ctx, self.height)
	if err != nil {
		return
	}
	defer stream.Close()

	for {
		chunk, streamErr := stream.NextChunkTimeout(self.Ctx, self.maxParallel, self.Config.Follower.MaxBehind)
		if self.Ctx.Err() != nil {
			return nil
		}
		if len(chunk) == 0 {
			return streamErr
		}

		for _, result := range self.fetch(chunk) {
			fetched := <-result
			if fetched.err != nil {
				if self.Ctx.Err() != nil {
					return nil
				}
				return fetched.err
			}

			err = self.process(fetched)
			if errors.Is(err, ErrDatabaseClosed) || errors.Is(err, context.Canceled) {
				self.Log.WithError(err).Info("Database channel closed, stopping")
				return nil
			}
			if err != nil {
				return
			}
		}

		if streamErr != nil {
			return streamErr
		}
	}
}

// Downloads blocks in parallel, results are returned in chunk order
func (self *Follower) fetch(chunk []ledger.BlockNotification) []chan fetchedBlock {
	out := make([]chan fetchedBlock, len(chunk))
	for i, notification := range chunk {
		result := make(chan fetchedBlock, 1)
		out[i] = result

		notification := notification
		ok := self.SubmitToWorker(func() {
			result <- self.fetchBlock(notification)
		})
		if !ok {
			result <- fetchedBlock{err: self.Ctx.Err()}
		}
	}
	return out
}

func (self *Follower) fetchBlock(notification ledger.BlockNotification) (out fetchedBlock) {
	out.info, out.err = self.client.GetBlockInfo(self.Ctx, notification.Hash)
	if out.err != nil {
		out.err = fmt.Errorf("failed to get block %d info: %w", notification.Height, out.err)
		return
	}

	if out.info.Height != notification.Height {
		out.err = fmt.Errorf("%w: got height %d, expected %d", ErrInconsistentBlock, out.info.Height, notification.Height)
		return
	}

	if out.info.TransactionCount == 0 {
		return
	}

	out.summaries, out.err = self.client.GetTransactionEvents(self.Ctx, notification.Hash)
	if out.err != nil {
		out.err = fmt.Errorf("failed to get block %d transactions: %w", notification.Height, out.err)
	}
	return
}

func (self *Follower) process(fetched fetchedBlock) (err error) {
	if fetched.info.Height != self.height {
		return fmt.Errorf("%w: got height %d, expected %d", ErrInconsistentBlock, fetched.info.Height, self.height)
	}

	op := &InsertBlock{Block: fetched.info}
	ownTransactions := 0

	for _, summary := range fetched.summaries {
		events, err := self.contract.ExtractEvents(summary)
		if err != nil {
			return err
		}
		op.Events = append(op.Events, events...)

		if summary.Sender == nil || *summary.Sender != self.operator {
			continue
		}

		status := model.TransactionStatusFinalized
		if summary.Rejected {
			status = model.TransactionStatusFailed
		}
		op.Marks = append(op.Marks, TransactionMark{TxHash: summary.Hash, Status: status})
		ownTransactions++
	}

	err = self.output.Send(self.Ctx, op)
	if err != nil {
		return
	}

	self.height++

	state := &self.monitor.GetReport().Sponsor.State
	state.FollowerCurrentHeight.Store(fetched.info.Height)
	state.FollowerBlocksProcessed.Inc()
	state.FollowerEventsFound.Add(uint64(len(op.Events)))
	state.FollowerOwnTransactionsSeen.Add(uint64(ownTransactions))
	state.FollowerRetryAttempt.Store(0)

	if len(op.Events) > 0 || ownTransactions > 0 {
		self.Log.WithField("height", fetched.info.Height).
			WithField("events", len(op.Events)).
			WithField("own_txs", ownTransactions).
			Debug("Block processed")
	}
	return nil
}
