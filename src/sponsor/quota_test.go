package sponsor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type staticCounter struct {
	counts map[common.Address]int64
	calls  int
	err    error
}

func (self *staticCounter) GetNumSubmittedLastDay(ctx context.Context, account common.Address) (int64, error) {
	self.calls++
	return self.counts[account], self.err
}

type QuotaTestSuite struct {
	suite.Suite
	ctx     context.Context
	counter *staticCounter
}

func TestQuotaTestSuite(t *testing.T) {
	suite.Run(t, new(QuotaTestSuite))
}

func (s *QuotaTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.counter = &staticCounter{counts: map[common.Address]int64{alice: 4, bob: 5}}
}

func (s *QuotaTestSuite) TestLimitIsInclusive() {
	quota := NewQuota(s.counter, 5, time.Minute)
	require.NoError(s.T(), quota.Check(s.ctx, alice))
	require.ErrorIs(s.T(), quota.Check(s.ctx, bob), ErrTooManyRequests)
}

func (s *QuotaTestSuite) TestRecordedMintsCount() {
	quota := NewQuota(s.counter, 5, time.Minute)
	require.NoError(s.T(), quota.Check(s.ctx, alice))
	quota.Record(alice)
	require.ErrorIs(s.T(), quota.Check(s.ctx, alice), ErrTooManyRequests)

	// Served from memory
	require.Equal(s.T(), 1, s.counter.calls)
}

func (s *QuotaTestSuite) TestExpiredCountIsReloaded() {
	quota := NewQuota(s.counter, 5, 10*time.Millisecond)
	require.NoError(s.T(), quota.Check(s.ctx, alice))
	time.Sleep(20 * time.Millisecond)
	require.NoError(s.T(), quota.Check(s.ctx, alice))
	require.Equal(s.T(), 2, s.counter.calls)
}

func (s *QuotaTestSuite) TestCounterFailure() {
	s.counter.err = errors.New("connection refused")
	quota := NewQuota(s.counter, 5, time.Minute)
	err := quota.Check(s.ctx, alice)
	require.Error(s.T(), err)
	require.NotErrorIs(s.T(), err, ErrTooManyRequests)
}
