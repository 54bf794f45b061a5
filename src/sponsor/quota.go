package sponsor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
)

var ErrTooManyRequests = errors.New("daily mint limit reached")

type SubmissionCounter interface {
	GetNumSubmittedLastDay(ctx context.Context, account common.Address) (int64, error)
}

// Limits mints per account within 24 hours. Counts come from the database and are cached for a short while.
type Quota struct {
	counter SubmissionCounter
	cache   *cache.Cache
	max     int64
}

func NewQuota(counter SubmissionCounter, max int, ttl time.Duration) *Quota {
	return &Quota{
		counter: counter,
		cache:   cache.New(ttl, 2*ttl),
		max:     int64(max),
	}
}

func (self *Quota) count(ctx context.Context, account common.Address) (int64, error) {
	if v, ok := self.cache.Get(account.Hex()); ok {
		return v.(int64), nil
	}

	count, err := self.counter.GetNumSubmittedLastDay(ctx, account)
	if err != nil {
		return 0, err
	}
	self.cache.SetDefault(account.Hex(), count)
	return count, nil
}

func (self *Quota) Check(ctx context.Context, account common.Address) error {
	count, err := self.count(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to count submissions: %w", err)
	}
	if count >= self.max {
		return fmt.Errorf("%w: %d mints in the last 24h", ErrTooManyRequests, count)
	}
	return nil
}

// Accounts for an accepted mint before it reaches the database
func (self *Quota) Record(account common.Address) {
	_, _ = self.cache.IncrementInt64(account.Hex(), 1)
}
