package sponsor

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/ledger"
	monitor_sponsor "github.com/mysomeid/sponsor/src/utils/monitoring/sponsor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type SenderTestSuite struct {
	suite.Suite
	config  *config.Config
	monitor *monitor_sponsor.Monitor
	ledger  *fakeLedger
	input   chan *PendingSend
	output  *DatabaseChannel
}

func TestSenderTestSuite(t *testing.T) {
	suite.Run(t, new(SenderTestSuite))
}

func (s *SenderTestSuite) SetupTest() {
	s.config = config.Default()
	s.config.StopTimeout = 5 * time.Second
	s.monitor = monitor_sponsor.NewMonitor(s.config)
	s.ledger = newFakeLedger()
	s.input = make(chan *PendingSend, 100)
	s.output = NewDatabaseChannel(100)
}

func (s *SenderTestSuite) TearDownTest() {
	goleak.VerifyNone(s.T())
}

func (s *SenderTestSuite) newSender(next uint64) *Sender {
	return NewSender(s.config).
		WithMonitor(s.monitor).
		WithClient(s.ledger).
		WithInputChannel(s.input).
		WithOutputChannel(s.output).
		WithNextNonce(next).
		WithRetryInterval(10 * time.Millisecond)
}

func pending(nonce uint64) *PendingSend {
	return &PendingSend{
		Nonce:        nonce,
		TxHash:       common.BigToHash(new(big.Int).SetUint64(nonce)),
		SerializedTx: []byte{byte(nonce)},
		Ack:          NewAck(),
	}
}

// Runs the sender until the input is exhausted
func (s *SenderTestSuite) run(sender *Sender, nonces ...uint64) error {
	for _, nonce := range nonces {
		s.input <- pending(nonce)
	}
	close(s.input)

	require.NoError(s.T(), sender.Start())
	select {
	case <-sender.CtxRunning.Done():
	case <-time.After(5 * time.Second):
		s.T().Fatal("sender didn't finish")
	}
	return sender.Err()
}

func (s *SenderTestSuite) submittedNonces() (out []uint64) {
	for _, raw := range s.ledger.Submitted() {
		out = append(out, uint64(raw[0]))
	}
	return
}

func (s *SenderTestSuite) forwardedHashes() (out []common.Hash) {
	for s.output.Len() > 0 {
		op := <-s.output.ops
		insert, ok := op.(*InsertTransaction)
		require.True(s.T(), ok)
		out = append(out, insert.TxHash)
	}
	return
}

func (s *SenderTestSuite) TestOutOfOrderArrival() {
	sender := s.newSender(3)
	require.NoError(s.T(), s.run(sender, 5, 3, 4))

	require.Equal(s.T(), []uint64{3, 4, 5}, s.submittedNonces())
	require.Equal(s.T(), uint64(6), sender.NextNonce())
	require.Equal(s.T(), 0, sender.buffer.Len())

	// Records are forwarded in arrival order
	require.Equal(s.T(), []common.Hash{pending(5).TxHash, pending(3).TxHash, pending(4).TxHash}, s.forwardedHashes())
}

func (s *SenderTestSuite) TestRandomPermutations() {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		s.SetupTest()
		sender := s.newSender(10)

		var nonces []uint64
		for _, i := range rng.Perm(20) {
			nonces = append(nonces, uint64(10+i))
		}
		require.NoError(s.T(), s.run(sender, nonces...))

		var expected []uint64
		for i := 0; i < 20; i++ {
			expected = append(expected, uint64(10+i))
		}
		require.Equal(s.T(), expected, s.submittedNonces())
		require.Equal(s.T(), uint64(30), sender.NextNonce())
	}
}

func (s *SenderTestSuite) TestTransientFailureIsRetried() {
	failures := 2
	s.ledger.onSubmit = func(raw []byte) error {
		if raw[0] == 1 && failures > 0 {
			failures--
			return errors.New("502 Bad Gateway")
		}
		return nil
	}

	sender := s.newSender(0)
	require.NoError(s.T(), s.run(sender, 0, 1, 2))

	require.Equal(s.T(), []uint64{0, 1, 2}, s.submittedNonces())
	require.Equal(s.T(), uint64(3), sender.NextNonce())
	require.Equal(s.T(), uint64(2), s.monitor.GetReport().Sponsor.Errors.SenderSubmitFailures.Load())
}

func (s *SenderTestSuite) TestRetriesExhausted() {
	s.config.Sender.RetryBudget = 2
	s.ledger.onSubmit = func(raw []byte) error {
		return errors.New("503 Service Unavailable")
	}

	sender := s.newSender(0)

	s.input <- pending(0)
	require.NoError(s.T(), sender.Start())

	select {
	case <-sender.CtxRunning.Done():
	case <-time.After(5 * time.Second):
		s.T().Fatal("sender didn't give up")
	}
	require.ErrorIs(s.T(), sender.Err(), ErrRetriesExhausted)
	require.Equal(s.T(), uint64(0), sender.NextNonce())

	// First attempt and 2 retries, then the third retry fails with no budget left
	require.Equal(s.T(), uint64(4), s.monitor.GetReport().Sponsor.Errors.SenderSubmitFailures.Load())
	close(s.input)
}

func (s *SenderTestSuite) TestDuplicateIsFatal() {
	s.ledger.onSubmit = func(raw []byte) error {
		return ledger.ClassifySubmitError(errors.New("nonce too low"))
	}

	sender := s.newSender(0)
	err := s.run(sender, 0)
	require.ErrorIs(s.T(), err, ledger.ErrDuplicate)
	require.Equal(s.T(), uint64(0), sender.NextNonce())
}

func (s *SenderTestSuite) TestAlreadyKnownOnRetryCountsAsSubmitted() {
	attempts := 0
	s.ledger.onSubmit = func(raw []byte) error {
		attempts++
		if attempts == 1 {
			return errors.New("i/o timeout")
		}
		return ledger.ClassifySubmitError(errors.New("already known"))
	}

	sender := s.newSender(0)
	require.NoError(s.T(), s.run(sender, 0))
	require.Equal(s.T(), uint64(1), sender.NextNonce())
}

func (s *SenderTestSuite) TestNonceBehindIsFatal() {
	sender := s.newSender(5)
	err := s.run(sender, 4)
	require.Error(s.T(), err)
	require.Empty(s.T(), s.ledger.Submitted())
}

func (s *SenderTestSuite) TestDatabaseClosed() {
	s.output.Close()

	sender := s.newSender(0)
	err := s.run(sender, 0)
	require.ErrorIs(s.T(), err, ErrDatabaseClosed)
	require.Empty(s.T(), s.ledger.Submitted())
}
