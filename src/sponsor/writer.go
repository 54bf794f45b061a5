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

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrOperationFailed = errors.New("database operation keeps failing")

// Receives stored events, e.g. the Redis publisher
type EventSink interface {
	Offer(event *model.Event) bool
}

// Sole writer of the database. Applies operations one at a time, in arrival order.
// A failed operation is retried on a fresh connection, so nothing is lost or reordered.
// An operation that keeps failing on healthy connections stops the writer.
type Writer struct {
	*task.Task

	monitor   monitoring.Monitor
	db        *gorm.DB
	connector model.Connector
	input     *DatabaseChannel
	sink      EventSink

	// Id of the next stored event
	nextEventId int64
}

func NewWriter(config *config.Config) (self *Writer) {
	self = new(Writer)

	self.Task = task.NewTask(config, "writer").
		WithSubtaskFunc(self.run).
		WithOnAfterStop(func() {
			model.Close(self.db)
		})

	return
}

func (self *Writer) WithMonitor(monitor monitoring.Monitor) *Writer {
	self.monitor = monitor
	return self
}

func (self *Writer) WithConnection(db *gorm.DB) *Writer {
	self.db = db
	return self
}

// Used to replace a broken connection
func (self *Writer) WithConnector(v model.Connector) *Writer {
	self.connector = v
	return self
}

func (self *Writer) WithInputChannel(v *DatabaseChannel) *Writer {
	self.input = v
	return self
}

func (self *Writer) WithEventSink(v EventSink) *Writer {
	self.sink = v
	return self
}

func (self *Writer) WithNextEventId(v int64) *Writer {
	self.nextEventId = v
	return self
}

func (self *Writer) run() (err error) {
	// Nobody can enqueue anything after the writer is gone
	defer self.input.Close()

	for {
		// Queued operations take precedence over stopping
		select {
		case op := <-self.input.ops:
			err = self.process(op)
			if err != nil {
				return
			}
			continue
		default:
		}

		select {
		case op := <-self.input.ops:
			err = self.process(op)
			if err != nil {
				return
			}
		case <-self.StopChannel:
			return self.drain()
		}
	}
}

// Applies whatever is still queued
func (self *Writer) drain() (err error) {
	count := 0
	for {
		select {
		case op := <-self.input.ops:
			err = self.process(op)
			if err != nil {
				return
			}
			count++
		default:
			self.Log.WithField("count", count).Info("Applied queued operations")
			return nil
		}
	}
}

func (self *Writer) process(op DatabaseOperation) error {
	for attempt := 1; ; attempt++ {
		err := self.apply(op)
		if err == nil {
			return nil
		}

		self.monitor.GetReport().Sponsor.Errors.WriterOperationFailures.Inc()

		if attempt >= self.Config.Writer.MaxOperationAttempts {
			self.Log.WithError(err).WithField("op", op.operationName()).WithField("attempts", attempt).Error("Database operation keeps failing, giving up")
			return fmt.Errorf("%w: %s: %w", ErrOperationFailed, op.operationName(), err)
		}

		self.Log.WithError(err).WithField("op", op.operationName()).WithField("attempt", attempt).Warn("Database operation failed, reconnecting")

		// Not interrupted by stopping, the operation must not be lost
		time.Sleep(self.Config.Writer.RetryDelay)

		err = self.reconnect()
		if err != nil {
			self.monitor.GetReport().Sponsor.Errors.WriterReconnectFailures.Inc()
			self.Log.WithError(err).Error("Failed to reconnect to the database, giving up")
			return fmt.Errorf("database unavailable: %w", err)
		}
	}
}

func (self *Writer) reconnect() error {
	return task.NewRetry().
		WithInitialInterval(self.Config.Writer.ReconnectBaseDelay).
		WithMaxAttempts(uint64(self.Config.Writer.ReconnectMaxAttempts)).
		WithoutJitter().
		WithOnError(func(err error) error {
			self.Log.WithError(err).Warn("Reconnection attempt failed")
			return err
		}).
		Run(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), self.Config.Writer.OperationTimeout)
			defer cancel()

			db, err := self.connector(ctx)
			if err != nil {
				return err
			}

			model.Close(self.db)
			self.db = db
			self.monitor.GetReport().Sponsor.State.WriterReconnects.Inc()
			return nil
		})
}

func (self *Writer) apply(op DatabaseOperation) error {
	// Stopping doesn't cancel operations in flight
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.Writer.OperationTimeout)
	defer cancel()

	switch op := op.(type) {
	case *InsertBlock:
		return self.insertBlock(ctx, op)
	case *InsertTransaction:
		return self.insertTransaction(ctx, op)
	case *MarkTransaction:
		return self.markTransaction(ctx, op)
	}
	return fmt.Errorf("unknown database operation %T", op)
}

func eventType(t ledger.ChainEventType) model.EventType {
	if t == ledger.ChainEventBurn {
		return model.EventTypeBurn
	}
	return model.EventTypeMint
}

func (self *Writer) insertBlock(ctx context.Context, op *InsertBlock) (err error) {
	height := int64(op.Block.Height)

	// Counter is restored if the transaction doesn't commit
	firstEventId := self.nextEventId
	var (
		events         []*model.Event
		alreadyApplied bool
	)

	err = self.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var checkpoint model.Checkpoint
		err := tx.Where("id = ?", 0).Take(&checkpoint).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case checkpoint.LastProcessedHeight >= height:
			// Committed before, but the result got lost with the connection
			alreadyApplied = true
			return nil
		}

		events = make([]*model.Event, 0, len(op.Events))
		nextEventId := firstEventId
		for _, e := range op.Events {
			events = append(events, &model.Event{
				Id:        nextEventId,
				TxHash:    e.TxHash.Hex(),
				EventType: eventType(e.Type),
				Owner:     e.Owner.Hex(),
				TokenId:   e.TokenId,
				BlockTime: op.Block.Time,
			})
			nextEventId++
		}
		if len(events) > 0 {
			err = tx.Create(&events).Error
			if err != nil {
				return err
			}
		}

		for _, mark := range op.Marks {
			err = tx.Model(&model.Transaction{}).
				Where("tx_hash = ?", mark.TxHash.Hex()).
				Update("status", mark.Status).
				Error
			if err != nil {
				return err
			}
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_processed_height"}),
		}).Create(&model.Checkpoint{Id: 0, LastProcessedHeight: height}).Error
		if err != nil {
			return err
		}

		self.nextEventId = nextEventId
		return nil
	})
	if err != nil {
		self.nextEventId = firstEventId
		return
	}

	if alreadyApplied {
		self.Log.WithField("height", height).Warn("Block already stored")
		resume, err := model.LoadResumePoint(ctx, self.db)
		if err != nil {
			return err
		}
		self.nextEventId = resume.NextEventId
		return nil
	}

	state := &self.monitor.GetReport().Sponsor.State
	state.WriterCheckpointHeight.Store(op.Block.Height)
	state.WriterBlocksInserted.Inc()
	state.WriterEventsInserted.Add(uint64(len(events)))
	state.WriterTransactionsMarked.Add(uint64(len(op.Marks)))

	if self.sink != nil {
		for _, event := range events {
			self.sink.Offer(event)
		}
	}
	return nil
}

func (self *Writer) insertTransaction(ctx context.Context, op *InsertTransaction) (err error) {
	// Replaying after a lost commit is a no-op
	err = self.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Transaction{
			TxHash:       op.TxHash.Hex(),
			AccountIndex: op.Sponsoree.Hex(),
			SerializedTx: op.SerializedTx,
			InsertTime:   time.Now().UTC(),
			Status:       model.TransactionStatusPending,
		}).Error
	if err != nil {
		return
	}

	self.monitor.GetReport().Sponsor.State.WriterTransactionsInserted.Inc()

	if op.Ack != nil && !op.Ack.Resolve() {
		self.monitor.GetReport().Sponsor.Errors.WriterUnacknowledged.Inc()
		self.Log.WithField("tx", op.TxHash).Warn("Transaction stored, but nobody waits for it anymore")
	}
	return nil
}

func (self *Writer) markTransaction(ctx context.Context, op *MarkTransaction) (err error) {
	result := self.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("tx_hash = ?", op.TxHash.Hex()).
		Update("status", op.Status)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		self.Log.WithField("tx", op.TxHash).Debug("Marked transaction isn't stored")
		return nil
	}

	self.monitor.GetReport().Sponsor.State.WriterTransactionsMarked.Inc()
	return nil
}
