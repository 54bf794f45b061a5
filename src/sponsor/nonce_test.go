package sponsor

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type NonceCounterTestSuite struct {
	suite.Suite
}

func TestNonceCounterTestSuite(t *testing.T) {
	suite.Run(t, new(NonceCounterTestSuite))
}

func build(nonce uint64) (*PendingSend, error) {
	return &PendingSend{Nonce: nonce, Ack: NewAck()}, nil
}

func (s *NonceCounterTestSuite) TestIncrement() {
	inbox := make(chan *PendingSend, 10)
	counter := NewNonceCounter(7, inbox)

	for i := 0; i < 3; i++ {
		send, err := counter.IncrementAndHandoff(build)
		require.NoError(s.T(), err)
		require.Equal(s.T(), uint64(7+i), send.Nonce)
	}
	require.Equal(s.T(), uint64(10), counter.Next())
	require.Len(s.T(), inbox, 3)
}

func (s *NonceCounterTestSuite) TestBusyKeepsNonce() {
	inbox := make(chan *PendingSend, 1)
	counter := NewNonceCounter(0, inbox)

	_, err := counter.IncrementAndHandoff(build)
	require.NoError(s.T(), err)

	_, err = counter.IncrementAndHandoff(build)
	require.ErrorIs(s.T(), err, ErrBusy)
	require.Equal(s.T(), uint64(1), counter.Next())

	<-inbox
	send, err := counter.IncrementAndHandoff(build)
	require.NoError(s.T(), err)
	require.Equal(s.T(), uint64(1), send.Nonce)
}

func (s *NonceCounterTestSuite) TestBuildFailureKeepsNonce() {
	inbox := make(chan *PendingSend, 1)
	counter := NewNonceCounter(5, inbox)

	failure := errors.New("signing failed")
	_, err := counter.IncrementAndHandoff(func(nonce uint64) (*PendingSend, error) {
		return nil, failure
	})
	require.ErrorIs(s.T(), err, failure)
	require.Equal(s.T(), uint64(5), counter.Next())
	require.Len(s.T(), inbox, 0)
}

func (s *NonceCounterTestSuite) TestClosed() {
	inbox := make(chan *PendingSend, 1)
	counter := NewNonceCounter(0, inbox)
	counter.Close()
	counter.Close()

	_, ok := <-inbox
	require.False(s.T(), ok)

	_, err := counter.IncrementAndHandoff(build)
	require.ErrorIs(s.T(), err, ErrSenderStopped)
	require.Equal(s.T(), uint64(0), counter.Next())
}

func (s *NonceCounterTestSuite) TestDied() {
	died := make(chan struct{})
	counter := NewNonceCounter(0, make(chan *PendingSend, 1)).WithDied(died)
	close(died)

	_, err := counter.IncrementAndHandoff(build)
	require.ErrorIs(s.T(), err, ErrSenderStopped)
}

func (s *NonceCounterTestSuite) TestConcurrentNoncesAreUnique() {
	inbox := make(chan *PendingSend, 100)
	counter := NewNonceCounter(0, inbox)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := counter.IncrementAndHandoff(build)
			require.NoError(s.T(), err)
		}()
	}
	wg.Wait()
	close(inbox)

	seen := make(map[uint64]bool)
	for send := range inbox {
		require.False(s.T(), seen[send.Nonce])
		seen[send.Nonce] = true
	}
	require.Len(s.T(), seen, 100)
	require.Equal(s.T(), uint64(100), counter.Next())
}
