package task

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Implement operation retrying
type Retry struct {
	ctx             context.Context
	initialInterval time.Duration
	maxElapsedTime  time.Duration
	maxInterval     time.Duration
	maxAttempts     uint64
	jitter          bool
	onError         func(error) error
}

func NewRetry() *Retry {
	return &Retry{
		ctx:    context.Background(),
		jitter: true,
	}
}

func (self *Retry) WithContext(ctx context.Context) *Retry {
	self.ctx = ctx
	return self
}

func (self *Retry) WithInitialInterval(v time.Duration) *Retry {
	self.initialInterval = v
	return self
}

// 0 means no limit
func (self *Retry) WithMaxElapsedTime(maxElapsedTime time.Duration) *Retry {
	self.maxElapsedTime = maxElapsedTime
	return self
}

func (self *Retry) WithMaxInterval(maxInterval time.Duration) *Retry {
	self.maxInterval = maxInterval
	return self
}

// Total number of calls, including the first one. 0 means no limit
func (self *Retry) WithMaxAttempts(v uint64) *Retry {
	self.maxAttempts = v
	return self
}

// Intervals are exactly initial * 2^n
func (self *Retry) WithoutJitter() *Retry {
	self.jitter = false
	return self
}

// Called after each failure. Returned error is passed to the backoff, wrap it with backoff.Permanent to stop retrying.
func (self *Retry) WithOnError(v func(error) error) *Retry {
	self.onError = v
	return self
}

func (self *Retry) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if self.initialInterval > 0 {
		b.InitialInterval = self.initialInterval
	}
	if self.maxInterval > 0 {
		b.MaxInterval = self.maxInterval
	}
	b.MaxElapsedTime = self.maxElapsedTime
	if !self.jitter {
		b.RandomizationFactor = 0
		b.Multiplier = 2
	}

	var out backoff.BackOff = b
	if self.maxAttempts > 0 {
		out = backoff.WithMaxRetries(out, self.maxAttempts-1)
	}
	return backoff.WithContext(out, self.ctx)
}

func (self *Retry) Run(f func() error) error {
	return backoff.Retry(func() error {
		err := f()
		if err == nil || self.onError == nil {
			return err
		}
		return self.onError(err)
	}, self.backOff())
}
