package sponsor

import (
	"context"
	"testing"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/model"
	monitor_sponsor "github.com/mysomeid/sponsor/src/utils/monitoring/sponsor"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type AuditorTestSuite struct {
	suite.Suite
	ctx     context.Context
	config  *config.Config
	monitor *monitor_sponsor.Monitor
	db      *gorm.DB
	ledger  *fakeLedger
	output  *DatabaseChannel
}

func TestAuditorTestSuite(t *testing.T) {
	suite.Run(t, new(AuditorTestSuite))
}

func (s *AuditorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.config = config.Default()
	s.config.StopTimeout = 5 * time.Second
	s.config.Auditor.MaxPendingAge = time.Hour
	s.monitor = monitor_sponsor.NewMonitor(s.config)
	s.db = mustOpenTestDatabase(s.T())
	s.ledger = newFakeLedger()
	s.output = NewDatabaseChannel(10)
}

func (s *AuditorTestSuite) TearDownTest() {
	model.Close(s.db)
}

func (s *AuditorTestSuite) newAuditor() *Auditor {
	return NewAuditor(s.config).
		WithMonitor(s.monitor).
		WithClient(s.ledger).
		WithReader(NewReader(s.config, s.db)).
		WithOutputChannel(s.output)
}

func (s *AuditorTestSuite) insert(i int64, age time.Duration, status model.TransactionStatus) {
	require.NoError(s.T(), s.db.Create(&model.Transaction{
		TxHash:       txHash(i).Hex(),
		AccountIndex: alice.Hex(),
		InsertTime:   time.Now().UTC().Add(-age),
		Status:       status,
	}).Error)
}

func (s *AuditorTestSuite) TestMarksUnknownTransactions() {
	s.insert(1, 2*time.Hour, model.TransactionStatusPending)
	s.insert(2, 2*time.Hour, model.TransactionStatusPending)
	s.insert(3, 2*time.Hour, model.TransactionStatusFinalized)
	s.insert(4, time.Minute, model.TransactionStatusPending)
	s.ledger.known[txHash(2)] = true

	marked, err := s.newAuditor().Audit(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, marked)

	require.Equal(s.T(), 1, s.output.Len())
	op := (<-s.output.ops).(*MarkTransaction)
	require.Equal(s.T(), txHash(1), op.TxHash)
	require.Equal(s.T(), model.TransactionStatusMissing, op.Status)
	require.Equal(s.T(), uint64(1), s.monitor.GetReport().Sponsor.State.AuditorTransactionsMarkedMissing.Load())
}

func (s *AuditorTestSuite) TestDatabaseClosed() {
	s.insert(1, 2*time.Hour, model.TransactionStatusPending)
	s.output.Close()

	_, err := s.newAuditor().Audit(s.ctx)
	require.ErrorIs(s.T(), err, ErrDatabaseClosed)
}

func (s *AuditorTestSuite) TestScheduled() {
	s.config.Auditor.Schedule = "@every 1s"
	s.insert(1, 2*time.Hour, model.TransactionStatusPending)

	auditor := s.newAuditor()
	require.NoError(s.T(), auditor.Start())

	select {
	case op := <-s.output.ops:
		require.Equal(s.T(), txHash(1), op.(*MarkTransaction).TxHash)
	case <-time.After(5 * time.Second):
		s.T().Fatal("audit didn't run")
	}
	auditor.StopWait()
}

func (s *AuditorTestSuite) TestInvalidSchedule() {
	s.config.Auditor.Schedule = "not a schedule"
	require.Error(s.T(), s.newAuditor().Start())
}
