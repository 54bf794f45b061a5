package sponsor

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/ledger"
	monitor_sponsor "github.com/mysomeid/sponsor/src/utils/monitoring/sponsor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testOperatorKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, req *MintRequest) error {
	return errors.New("proof doesn't match")
}

type MinterTestSuite struct {
	suite.Suite
	ctx     context.Context
	config  *config.Config
	monitor *monitor_sponsor.Monitor
	inbox   chan *PendingSend
	counter *NonceCounter
	quota   *staticCounter
	died    chan struct{}
}

func TestMinterTestSuite(t *testing.T) {
	suite.Run(t, new(MinterTestSuite))
}

func (s *MinterTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.config = config.Default()
	s.config.Minter.AckTimeout = time.Second
	s.monitor = monitor_sponsor.NewMonitor(s.config)
	s.inbox = make(chan *PendingSend, 1)
	s.died = make(chan struct{})
	s.counter = NewNonceCounter(42, s.inbox).WithDied(s.died)
	s.quota = &staticCounter{counts: map[common.Address]int64{bob: 5}}
}

func (s *MinterTestSuite) newMinter() *Minter {
	signer, err := ledger.NewSigner(testOperatorKey, big.NewInt(1337))
	require.NoError(s.T(), err)
	contract, err := ledger.NewContract(contractAddress)
	require.NoError(s.T(), err)
	fees, err := ledger.ParseFees(300000, "2000000000", "1000000000")
	require.NoError(s.T(), err)

	return NewMinter(s.config).
		WithMonitor(s.monitor).
		WithNonceCounter(s.counter).
		WithSigner(signer).
		WithContract(contract).
		WithFees(fees).
		WithQuota(NewQuota(s.quota, 5, time.Minute)).
		WithDied(s.died)
}

// Plays the role of the sender and the writer
func (s *MinterTestSuite) acknowledge() <-chan *PendingSend {
	out := make(chan *PendingSend, 1)
	go func() {
		send := <-s.inbox
		send.Ack.Resolve()
		out <- send
	}()
	return out
}

func (s *MinterTestSuite) TestAccepted() {
	minter := s.newMinter()
	acknowledged := s.acknowledge()

	out, err := minter.Mint(s.ctx, &MintRequest{Account: alice, Platform: 1, Payload: []byte(`{"name":"Ada"}`)})
	require.NoError(s.T(), err)

	send := <-acknowledged
	require.Equal(s.T(), send.TxHash, out.TransactionHash)
	require.Equal(s.T(), uint64(42), send.Nonce)
	require.Equal(s.T(), alice, send.Sponsoree)
	require.Len(s.T(), out.DecryptionKey, 32)
	require.Equal(s.T(), uint64(43), s.counter.Next())
	require.Equal(s.T(), uint64(1), s.monitor.GetReport().Sponsor.State.MinterAccepted.Load())
}

func (s *MinterTestSuite) TestTooManyRequests() {
	_, err := s.newMinter().Mint(s.ctx, &MintRequest{Account: bob})
	require.ErrorIs(s.T(), err, ErrTooManyRequests)
	require.Equal(s.T(), uint64(42), s.counter.Next())
	require.Len(s.T(), s.inbox, 0)
}

func (s *MinterTestSuite) TestBusy() {
	s.inbox <- &PendingSend{}

	_, err := s.newMinter().Mint(s.ctx, &MintRequest{Account: alice})
	require.ErrorIs(s.T(), err, ErrBusy)
	require.Equal(s.T(), uint64(42), s.counter.Next())
	require.Equal(s.T(), uint64(1), s.monitor.GetReport().Sponsor.Errors.MinterBusy.Load())
}

func (s *MinterTestSuite) TestRejectedByVerifier() {
	_, err := s.newMinter().WithVerifier(rejectingVerifier{}).Mint(s.ctx, &MintRequest{Account: alice})
	require.ErrorIs(s.T(), err, ErrInvalidRequest)
	require.Len(s.T(), s.inbox, 0)
}

func (s *MinterTestSuite) TestServiceDied() {
	minter := s.newMinter()
	go func() {
		<-s.inbox
		close(s.died)
	}()

	_, err := minter.Mint(s.ctx, &MintRequest{Account: alice})
	require.ErrorIs(s.T(), err, ErrInternal)
}

func (s *MinterTestSuite) TestAckTimeout() {
	s.config.Minter.AckTimeout = 10 * time.Millisecond
	minter := s.newMinter()

	_, err := minter.Mint(s.ctx, &MintRequest{Account: alice})
	require.ErrorIs(s.T(), err, ErrInternal)

	// Writer finds out nobody waits
	send := <-s.inbox
	require.False(s.T(), send.Ack.Resolve())
}

func (s *MinterTestSuite) TestServiceStopping() {
	ctx, cancel := context.WithCancel(context.Background())
	minter := s.newMinter().WithContext(ctx)
	cancel()

	_, err := minter.Mint(s.ctx, &MintRequest{Account: alice})
	require.ErrorIs(s.T(), err, ErrInternal)
}
