package task

import (
	"errors"
	"testing"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

func TestTaskTestSuite(t *testing.T) {
	suite.Run(t, new(TaskTestSuite))
}

type TaskTestSuite struct {
	suite.Suite
	config *config.Config
}

func (s *TaskTestSuite) SetupSuite() {
	s.config = config.Default()
	s.config.StopTimeout = 5 * time.Second
}

func (s *TaskTestSuite) TestLifecycle() {
	var stopped, afterStop atomic.Bool
	task := NewTask(s.config, "test").
		WithOnStop(func() { stopped.Store(true) }).
		WithOnAfterStop(func() { afterStop.Store(true) })
	task = task.WithSubtaskFunc(func() error {
		<-task.StopChannel
		return nil
	})

	require.NoError(s.T(), task.Start())
	require.False(s.T(), task.IsStopping.Load())

	task.StopWait()
	require.True(s.T(), stopped.Load())
	require.True(s.T(), afterStop.Load())
	require.Error(s.T(), task.CtxRunning.Err())
}

func (s *TaskTestSuite) TestSubtaskExitReportsError() {
	boom := errors.New("boom")
	exits := make(chan error, 1)
	task := NewTask(s.config, "test").
		WithSubtaskFunc(func() error { return boom }).
		WithOnSubtaskExit(func(err error) { exits <- err })

	require.NoError(s.T(), task.Start())

	select {
	case err := <-exits:
		require.ErrorIs(s.T(), err, boom)
	case <-time.After(time.Second):
		s.T().Fatal("subtask exit not reported")
	}

	<-task.CtxRunning.Done()
	require.ErrorIs(s.T(), task.Err(), boom)
}

func (s *TaskTestSuite) TestPanicIsRecovered() {
	exits := make(chan error, 1)
	task := NewTask(s.config, "test").
		WithSubtaskFunc(func() error { panic("unexpected") }).
		WithOnSubtaskExit(func(err error) { exits <- err })

	require.NoError(s.T(), task.Start())

	select {
	case err := <-exits:
		require.ErrorContains(s.T(), err, "unexpected")
	case <-time.After(time.Second):
		s.T().Fatal("panic not reported")
	}
}

func (s *TaskTestSuite) TestPeriodicSubtask() {
	var calls atomic.Int32
	task := NewTask(s.config, "test").
		WithPeriodicSubtaskFunc(10*time.Millisecond, func() error {
			calls.Inc()
			return nil
		})

	require.NoError(s.T(), task.Start())
	require.Eventually(s.T(), func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	task.StopWait()
}

func (s *TaskTestSuite) TestWorkerPool() {
	var done atomic.Int32
	task := NewTask(s.config, "test").WithWorkerPool(2, 10)

	require.True(s.T(), task.SubmitToWorker(func() { done.Inc() }))
	require.True(s.T(), task.SubmitToWorker(func() { done.Inc() }))
	require.Eventually(s.T(), func() bool { return done.Load() == 2 }, time.Second, 5*time.Millisecond)
	task.Workers.StopWait()
}

func (s *TaskTestSuite) TestRetryStopsOnPermanent() {
	var calls int
	err := NewRetry().
		WithInitialInterval(time.Millisecond).
		WithMaxAttempts(10).
		WithOnError(func(err error) error {
			if calls == 2 {
				return backoff.Permanent(err)
			}
			return err
		}).
		Run(func() error {
			calls++
			return errors.New("failed")
		})
	require.Error(s.T(), err)
	require.Equal(s.T(), 2, calls)
}

func (s *TaskTestSuite) TestRetryMaxAttempts() {
	var calls int
	err := NewRetry().
		WithInitialInterval(time.Millisecond).
		WithoutJitter().
		WithMaxAttempts(3).
		Run(func() error {
			calls++
			return errors.New("failed")
		})
	require.Error(s.T(), err)
	require.Equal(s.T(), 3, calls)
}
