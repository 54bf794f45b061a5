package sponsor

import (
	"errors"
	"fmt"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/ledger"
	"github.com/mysomeid/sponsor/src/utils/monitoring"
	"github.com/mysomeid/sponsor/src/utils/task"

	"go.uber.org/ratelimit"
)

var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// Submits signed transactions in strictly increasing nonce order.
// Every transaction is first recorded as pending in the database, then submitted.
// Out of order arrivals and transient submission failures wait in the retry buffer.
type Sender struct {
	*task.Task

	monitor monitoring.Monitor
	client  ledger.Client

	input  chan *PendingSend
	output *DatabaseChannel

	nextNonce     uint64
	buffer        *RetryBuffer
	retryBudget   int
	retryInterval time.Duration
	pacer         ratelimit.Limiter
}

func NewSender(config *config.Config) (self *Sender) {
	self = new(Sender)

	self.buffer = NewRetryBuffer()
	self.retryBudget = config.Sender.RetryBudget
	self.retryInterval = config.Writer.RetryDelay

	if config.Sender.MaxSubmissionsPerSecond > 0 {
		self.pacer = ratelimit.New(config.Sender.MaxSubmissionsPerSecond)
	} else {
		self.pacer = ratelimit.NewUnlimited()
	}

	self.Task = task.NewTask(config, "sender").
		WithSubtaskFunc(self.run)

	return
}

func (self *Sender) WithMonitor(monitor monitoring.Monitor) *Sender {
	self.monitor = monitor
	return self
}

func (self *Sender) WithClient(client ledger.Client) *Sender {
	self.client = client
	return self
}

// Closed by the nonce counter, that's the only way to stop the sender
func (self *Sender) WithInputChannel(v chan *PendingSend) *Sender {
	self.input = v
	return self
}

func (self *Sender) WithOutputChannel(v *DatabaseChannel) *Sender {
	self.output = v
	return self
}

// First nonce that will be submitted
func (self *Sender) WithNextNonce(v uint64) *Sender {
	self.nextNonce = v
	return self
}

func (self *Sender) WithRetryInterval(v time.Duration) *Sender {
	self.retryInterval = v
	return self
}

// Valid once the sender stopped
func (self *Sender) NextNonce() uint64 {
	return self.nextNonce
}

func (self *Sender) run() (err error) {
	self.monitor.GetReport().Sponsor.State.SenderNextNonce.Store(self.nextNonce)

	for {
		// Buffered transactions are retried even if nothing new arrives
		var retry <-chan time.Time
		if self.buffer.Len() > 0 {
			retry = time.After(self.retryInterval)
		}

		select {
		case send, ok := <-self.input:
			if !ok {
				return self.finish()
			}
			err = self.handle(send)
		case <-retry:
			err = self.drain()
		}
		if err != nil {
			return
		}
	}
}

// Last attempt for whatever is still buffered
func (self *Sender) finish() (err error) {
	if self.buffer.Len() > 0 {
		err = self.drain()
		if err != nil {
			return
		}
	}

	if self.buffer.Len() > 0 {
		min, _ := self.buffer.Min()
		self.Log.WithField("count", self.buffer.Len()).
			WithField("lowest_nonce", min).
			Warn("Stopping with transactions that weren't submitted")
	}

	self.Log.WithField("next_nonce", self.nextNonce).Info("Input closed, sender finished")
	return nil
}

func (self *Sender) handle(send *PendingSend) (err error) {
	log := self.Log.WithField("nonce", send.Nonce).WithField("tx", send.TxHash)

	// Record goes first, so the transaction is never on the ledger without a trace in the database
	err = self.output.Send(self.Ctx, &InsertTransaction{
		Sponsoree:    send.Sponsoree,
		TxHash:       send.TxHash,
		SerializedTx: send.SerializedTx,
		Ack:          send.Ack,
	})
	if err != nil {
		return fmt.Errorf("failed to forward transaction %s: %w", send.TxHash, err)
	}

	if send.Nonce < self.nextNonce {
		return fmt.Errorf("nonce %d already used, next nonce is %d", send.Nonce, self.nextNonce)
	}

	tx := &bufferedTx{
		txHash:       send.TxHash,
		serializedTx: send.SerializedTx,
		retriesLeft:  self.retryBudget,
	}

	if send.Nonce > self.nextNonce {
		log.WithField("next_nonce", self.nextNonce).Debug("Transaction arrived ahead of its turn")
		err = self.buffer.Insert(send.Nonce, tx)
		if err != nil {
			return
		}
		self.updateBuffered()
		return self.drain()
	}

	err = self.submit(send.Nonce, tx)
	switch {
	case err == nil:
	case ledger.IsPermanentSubmitError(err):
		log.WithError(err).Error("Node rejected transaction")
		return err
	default:
		log.WithError(err).Warn("Failed to submit transaction, will retry")
		err = self.buffer.Insert(send.Nonce, tx)
		if err != nil {
			return
		}
		self.updateBuffered()
	}

	return self.drain()
}

// Submits buffered transactions as long as the smallest one is next in line
func (self *Sender) drain() error {
	for {
		nonce, ok := self.buffer.Min()
		if !ok || nonce != self.nextNonce {
			return nil
		}

		nonce, tx, _ := self.buffer.PopMin()
		self.updateBuffered()

		err := self.submit(nonce, tx)
		if errors.Is(err, ledger.ErrAlreadyKnown) {
			// Earlier attempt reached the node after all
			self.Log.WithField("nonce", nonce).WithField("tx", tx.txHash).Info("Transaction already known to the node")
			self.advance()
			continue
		}
		if err == nil {
			continue
		}

		log := self.Log.WithError(err).WithField("nonce", nonce).WithField("tx", tx.txHash)
		if tx.retriesLeft == 0 {
			log.Error("Failed to submit transaction, giving up")
			return fmt.Errorf("%w: nonce %d: %w", ErrRetriesExhausted, nonce, err)
		}
		tx.retriesLeft--
		log.WithField("retries_left", tx.retriesLeft).Warn("Failed to resubmit transaction")

		err = self.buffer.Insert(nonce, tx)
		if err != nil {
			return err
		}
		self.updateBuffered()
		return nil
	}
}

// Nonce is consumed only if the node accepted the transaction
func (self *Sender) submit(nonce uint64, tx *bufferedTx) (err error) {
	self.pacer.Take()

	err = self.client.SubmitTransaction(self.Ctx, tx.serializedTx)
	if err != nil {
		self.monitor.GetReport().Sponsor.Errors.SenderSubmitFailures.Inc()
		return
	}

	self.Log.WithField("nonce", nonce).WithField("tx", tx.txHash).Debug("Transaction submitted")
	self.monitor.GetReport().Sponsor.State.SenderTransactionsSubmitted.Inc()
	self.advance()
	return nil
}

func (self *Sender) advance() {
	self.nextNonce++
	self.monitor.GetReport().Sponsor.State.SenderNextNonce.Store(self.nextNonce)
}

func (self *Sender) updateBuffered() {
	self.monitor.GetReport().Sponsor.State.SenderBufferedTransactions.Store(int64(self.buffer.Len()))
}
