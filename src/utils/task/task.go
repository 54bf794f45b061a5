package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mysomeid/sponsor/src/utils/common"
	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/logger"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Boilerplate for running long lived tasks.
type Task struct {
	Config *config.Config
	Log    *logrus.Entry
	Name   string

	// Stopping
	IsStopping    *atomic.Bool
	StopChannel   chan bool
	stopOnce      *sync.Once
	stopWaitGroup sync.WaitGroup

	// Context active as long as there's anything running in the task.
	// Used outside the task.
	CtxRunning    context.Context
	cancelRunning context.CancelFunc

	// Context cancelled when Stop() is called.
	// Used inside the task
	Ctx    context.Context
	cancel context.CancelFunc

	// Workers that perform the task
	Workers            *workerpool.WorkerPool
	workerMaxQueueSize int

	// First error returned by a subtask
	errMtx sync.Mutex
	err    error

	// Callbacks
	onBeforeStart []func() error
	onStop        []func()
	onAfterStop   []func()
	onSubtaskExit []func(err error)
	subtasksFunc  []func() error
	subtasks      []*Task
}

func NewTask(config *config.Config, name string) (self *Task) {
	self = new(Task)
	self.Name = name
	self.Log = logger.NewSublogger(name)
	self.Config = config

	// Context cancelled when Stop() is called
	self.Ctx, self.cancel = context.WithCancel(context.Background())
	self.Ctx = common.SetConfig(self.Ctx, config)

	// Context active as long as there's anything running in the task
	self.CtxRunning, self.cancelRunning = context.WithCancel(context.Background())
	self.CtxRunning = common.SetConfig(self.CtxRunning, config)

	// Stopping
	self.stopOnce = &sync.Once{}
	self.IsStopping = atomic.NewBool(false)
	self.StopChannel = make(chan bool, 1)

	return
}

func (self *Task) WithOnBeforeStart(f func() error) *Task {
	self.onBeforeStart = append(self.onBeforeStart, f)
	return self
}

func (self *Task) WithOnAfterStop(f func()) *Task {
	self.onAfterStop = append(self.onAfterStop, f)
	return self
}

func (self *Task) WithOnStop(f func()) *Task {
	self.onStop = append(self.onStop, f)
	return self
}

// Called every time a subtask function returns, also after a recovered panic.
func (self *Task) WithOnSubtaskExit(f func(err error)) *Task {
	self.onSubtaskExit = append(self.onSubtaskExit, f)
	return self
}

func (self *Task) WithSubtask(t *Task) *Task {
	// Ensure context will be cancelled after all kinds of subtasks finish
	t = t.WithOnBeforeStart(func() error {
		self.stopWaitGroup.Add(1)
		return nil
	}).WithOnAfterStop(func() {
		self.stopWaitGroup.Done()
	})
	self.subtasks = append(self.subtasks, t)
	return self
}

func (self *Task) WithSubtaskFunc(f func() error) *Task {
	self.subtasksFunc = append(self.subtasksFunc, f)
	return self
}

func (self *Task) WithPeriodicSubtaskFunc(period time.Duration, f func() error) *Task {
	self.subtasksFunc = append(self.subtasksFunc, func() error {
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-self.StopChannel:
				self.Log.Debug("Task stopped")
				return nil
			case <-timer.C:
			}

			err := f()
			if err != nil {
				return err
			}

			timer.Reset(period)
		}
	})
	return self
}

func (self *Task) WithWorkerPool(maxWorkers int, maxQueueSize int) *Task {
	self.Workers = workerpool.New(maxWorkers)
	self.workerMaxQueueSize = maxQueueSize
	return self.WithOnAfterStop(func() {
		self.Workers.StopWait()
	})
}

// Blocks while the worker queue is full. Returns false if the task got stopped in the meantime.
func (self *Task) SubmitToWorker(f func()) bool {
	for self.workerMaxQueueSize > 0 && self.Workers.WaitingQueueSize() >= self.workerMaxQueueSize {
		select {
		case <-self.Ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
	self.Workers.Submit(f)
	return true
}

func (self *Task) GetWorkerQueueFillFactor() float32 {
	if self.workerMaxQueueSize <= 0 {
		return 0
	}
	return float32(self.Workers.WaitingQueueSize()) / float32(self.workerMaxQueueSize)
}

// First error returned by any of the subtask functions
func (self *Task) Err() error {
	self.errMtx.Lock()
	defer self.errMtx.Unlock()
	return self.err
}

func (self *Task) setErr(err error) {
	self.errMtx.Lock()
	defer self.errMtx.Unlock()
	if self.err == nil {
		self.err = err
	}
}

func (self *Task) run(subtask func() error) {
	self.stopWaitGroup.Add(1)
	go func() {
		var err error
		defer func() {
			if p := recover(); p != nil {
				switch p := p.(type) {
				case error:
					err = fmt.Errorf("panic: %w", p)
				default:
					err = fmt.Errorf("panic: %v", p)
				}
				self.Log.WithError(err).Error("Panic. Stopping.")
			}

			if err != nil {
				self.setErr(err)
			}

			for _, cb := range self.onSubtaskExit {
				cb(err)
			}

			self.stopWaitGroup.Done()
		}()

		err = subtask()
		if err != nil {
			self.Log.WithError(err).Error("Subtask failed")
		}
	}()
}

func (self *Task) Start() (err error) {
	// Run callbacks
	for _, cb := range self.onBeforeStart {
		err = cb()
		if err != nil {
			return
		}
	}

	// Start subtasks
	for _, subtask := range self.subtasks {
		err = subtask.Start()
		if err != nil {
			return
		}
	}

	// Start subtasks that are plain functions
	for _, subtask := range self.subtasksFunc {
		self.run(subtask)
	}

	// Goroutine that will cancel the context
	go func() {
		// Infinite wait, assuming all subtasks will eventually close using the StopChannel
		self.stopWaitGroup.Wait()

		// Run hooks
		for _, cb := range self.onAfterStop {
			cb()
		}

		// Inform that task doesn't run anymore
		self.cancelRunning()
	}()

	return nil
}

func (self *Task) Stop() {
	self.stopOnce.Do(func() {
		self.Log.Info("Stopping...")

		// Stop subtasks
		for _, subtask := range self.subtasks {
			subtask.Stop()
		}

		// Mark that we're stopping
		self.IsStopping.Store(true)

		// Signals that we're stopping
		close(self.StopChannel)

		// Inform child context that we're stopping
		self.cancel()

		// Run hooks
		for _, cb := range self.onStop {
			cb()
		}
	})
}

// Stops the task and waits until everything it runs finishes, at most Config.StopTimeout
func (self *Task) StopWait() {
	ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
	defer cancel()

	self.Stop()

	select {
	case <-ctx.Done():
		self.Log.Error("Timeout reached, failed to stop")
	case <-self.CtxRunning.Done():
		self.Log.Info("Task finished")
	}
}
