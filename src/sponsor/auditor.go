package sponsor

import (
	"context"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/ledger"
	"github.com/mysomeid/sponsor/src/utils/model"
	"github.com/mysomeid/sponsor/src/utils/monitoring"
	"github.com/mysomeid/sponsor/src/utils/task"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron"
	"go.uber.org/atomic"
)

// Periodically marks pending transactions the node has never heard of as missing
type Auditor struct {
	*task.Task

	monitor monitoring.Monitor
	client  ledger.Client
	reader  *Reader
	output  *DatabaseChannel

	cron    *cron.Cron
	running atomic.Bool
}

func NewAuditor(config *config.Config) (self *Auditor) {
	self = new(Auditor)

	self.cron = cron.New()

	self.Task = task.NewTask(config, "auditor").
		WithOnBeforeStart(func() error {
			err := self.cron.AddFunc(config.Auditor.Schedule, self.audit)
			if err != nil {
				return err
			}
			self.cron.Start()
			return nil
		}).
		WithSubtaskFunc(func() error {
			<-self.StopChannel
			self.cron.Stop()
			return nil
		})

	return
}

func (self *Auditor) WithMonitor(v monitoring.Monitor) *Auditor {
	self.monitor = v
	return self
}

func (self *Auditor) WithClient(v ledger.Client) *Auditor {
	self.client = v
	return self
}

func (self *Auditor) WithReader(v *Reader) *Auditor {
	self.reader = v
	return self
}

func (self *Auditor) WithOutputChannel(v *DatabaseChannel) *Auditor {
	self.output = v
	return self
}

func (self *Auditor) audit() {
	// Runs never overlap
	if !self.running.CompareAndSwap(false, true) {
		return
	}
	defer self.running.Store(false)

	_, err := self.Audit(self.Ctx)
	if err != nil {
		self.monitor.GetReport().Sponsor.Errors.AuditorFailures.Inc()
		self.Log.WithError(err).Warn("Audit failed")
	}
}

// Returns the number of transactions marked as missing
func (self *Auditor) Audit(ctx context.Context) (marked int, err error) {
	pending, err := self.reader.GetPendingOlderThan(ctx, self.Config.Auditor.MaxPendingAge, self.Config.Auditor.BatchSize)
	if err != nil {
		return
	}

	for _, tx := range pending {
		hash := common.HexToHash(tx.TxHash)

		known, err := self.client.IsTransactionKnown(ctx, hash)
		if err != nil {
			self.monitor.GetReport().Sponsor.Errors.AuditorFailures.Inc()
			self.Log.WithError(err).WithField("tx", tx.TxHash).Warn("Failed to check transaction")
			continue
		}
		if known {
			continue
		}

		err = self.output.Send(ctx, &MarkTransaction{TxHash: hash, Status: model.TransactionStatusMissing})
		if err != nil {
			return marked, err
		}
		marked++
		self.monitor.GetReport().Sponsor.State.AuditorTransactionsMarkedMissing.Inc()
		self.Log.WithField("tx", tx.TxHash).WithField("inserted", tx.InsertTime).Warn("Pending transaction unknown to the node")
	}
	return
}
