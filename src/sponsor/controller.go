package sponsor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/ledger"
	"github.com/mysomeid/sponsor/src/utils/model"
	monitor_sponsor "github.com/mysomeid/sponsor/src/utils/monitoring/sponsor"
	"github.com/mysomeid/sponsor/src/utils/publisher"
	"github.com/mysomeid/sponsor/src/utils/task"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/atomic"
	"gorm.io/gorm"
)

var ErrUnfinalizedTransactions = errors.New("sponsoring account has transactions that aren't finalized")

// External resources of the controller
type Dependencies struct {
	Client ledger.Client

	// Writer's connection and a way to replace it
	Db        *gorm.DB
	Connector model.Connector

	ReadDb *gorm.DB

	// Optional
	Verifier Verifier
}

// Runs the whole service. Components are started together, but stopped one by one
// so that everything accepted gets stored before the process exits.
type Controller struct {
	*task.Task

	deps    Dependencies
	monitor *monitor_sponsor.Monitor

	counter   *NonceCounter
	reader    *Reader
	minter    *Minter
	writer    *Writer
	sender    *Sender
	follower  *Follower
	auditor   *Auditor
	server    *Server
	events    chan *model.Event
	publisher *publisher.RedisPublisher[*model.Event]

	// Closed when any component stops on its own
	died         chan struct{}
	diedOnce     sync.Once
	shuttingDown atomic.Bool

	errMtx sync.Mutex
	err    error
}

// Connects to the ledger and the database
func NewController(ctx context.Context, config *config.Config) (self *Controller, err error) {
	client, err := ledger.NewEvmClient(ctx, config)
	if err != nil {
		return
	}

	db, err := model.NewConnection(ctx, config, "writer")
	if err != nil {
		client.Close()
		return
	}

	readDb, err := model.NewReadOnlyConnection(ctx, config, "reader")
	if err != nil {
		client.Close()
		model.Close(db)
		return
	}

	self, err = NewControllerWithDependencies(ctx, config, Dependencies{
		Client:    client,
		Db:        db,
		Connector: model.NewConnector(config, "writer"),
		ReadDb:    readDb,
	})
	if err != nil {
		client.Close()
		model.Close(db)
		model.Close(readDb)
		return
	}

	self.Task = self.Task.WithOnAfterStop(client.Close)
	return
}

func NewControllerWithDependencies(ctx context.Context, config *config.Config, deps Dependencies) (self *Controller, err error) {
	self = new(Controller)
	self.deps = deps
	self.died = make(chan struct{})

	self.Task = task.NewTask(config, "controller").
		WithOnBeforeStart(self.startComponents).
		WithSubtaskFunc(self.supervise).
		WithOnAfterStop(func() {
			model.Close(self.deps.ReadDb)
		})

	self.monitor = monitor_sponsor.NewMonitor(config)

	if !common.IsHexAddress(config.Ledger.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %q", config.Ledger.ContractAddress)
	}
	contract, err := ledger.NewContract(common.HexToAddress(config.Ledger.ContractAddress))
	if err != nil {
		return
	}

	fees, err := ledger.ParseFees(config.Ledger.GasLimit, config.Ledger.MaxFeePerGas, config.Ledger.MaxPriorityFeePerGas)
	if err != nil {
		return
	}

	params, err := deps.Client.GetChainParameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain parameters: %w", err)
	}

	signer, err := ledger.NewSigner(config.Ledger.OperatorKey, params.ChainId)
	if err != nil {
		return
	}

	// Nonces are tracked locally, so there must be nothing in flight
	nonce, err := deps.Client.GetNextAccountNonce(ctx, signer.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account nonce: %w", err)
	}
	if !nonce.AllFinal {
		return nil, fmt.Errorf("%w: %s", ErrUnfinalizedTransactions, signer.Address)
	}

	account, err := deps.Client.GetAccountInfo(ctx, signer.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}

	resume, err := model.LoadResumePoint(ctx, deps.Db)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	startHeight := config.Follower.StartHeight
	if resume.LastProcessedHeight != nil {
		startHeight = *resume.LastProcessedHeight + 1
	}

	self.Log.WithField("account", signer.Address).
		WithField("balance", account.Balance).
		WithField("nonce", nonce.Nonce).
		WithField("chain_id", params.ChainId).
		WithField("contract", contract.Address).
		WithField("start_height", startHeight).
		WithField("next_event_id", resume.NextEventId).
		Info("Starting sponsor")

	inbox := make(chan *PendingSend, config.Sender.InboxSize)
	operations := NewDatabaseChannel(config.Writer.InboxSize)

	self.counter = NewNonceCounter(nonce.Nonce, inbox).
		WithDied(self.died)

	self.writer = NewWriter(config).
		WithMonitor(self.monitor).
		WithConnection(deps.Db).
		WithConnector(deps.Connector).
		WithInputChannel(operations).
		WithNextEventId(resume.NextEventId)

	if config.Redis.Enabled {
		self.events = make(chan *model.Event, config.Redis.QueueSize)
		self.publisher = publisher.NewRedisPublisher[*model.Event](config, "publisher").
			WithInputChannel(self.events).
			WithMonitor(self.monitor)
		self.writer.WithEventSink(self.publisher)
	}

	self.sender = NewSender(config).
		WithMonitor(self.monitor).
		WithClient(deps.Client).
		WithInputChannel(inbox).
		WithOutputChannel(operations).
		WithNextNonce(nonce.Nonce)

	self.follower = NewFollower(config).
		WithMonitor(self.monitor).
		WithClient(deps.Client).
		WithContract(contract).
		WithOperator(signer.Address).
		WithOutputChannel(operations).
		WithStartHeight(startHeight)

	self.reader = NewReader(config, deps.ReadDb)

	self.minter = NewMinter(config).
		WithMonitor(self.monitor).
		WithNonceCounter(self.counter).
		WithSigner(signer).
		WithContract(contract).
		WithFees(fees).
		WithQuota(NewQuota(self.reader, config.Minter.MaxDailyMints, config.Minter.QuotaCacheTTL)).
		WithVerifier(deps.Verifier).
		WithContext(self.Ctx).
		WithDied(self.died)

	if config.Auditor.Enabled {
		self.auditor = NewAuditor(config).
			WithMonitor(self.monitor).
			WithClient(deps.Client).
			WithReader(self.reader).
			WithOutputChannel(operations)
	}

	self.server = NewServer(config).
		WithMonitor(self.monitor).
		WithMinter(self.minter).
		WithReader(self.reader)

	return
}

func (self *Controller) GetMonitor() *monitor_sponsor.Monitor {
	return self.monitor
}

func (self *Controller) GetMinter() *Minter {
	return self.minter
}

func (self *Controller) GetServer() *Server {
	return self.server
}

func (self *Controller) setErr(err error) {
	self.errMtx.Lock()
	defer self.errMtx.Unlock()
	if self.err == nil {
		self.err = err
	}
}

func (self *Controller) firstErr() error {
	self.errMtx.Lock()
	defer self.errMtx.Unlock()
	return self.err
}

// Any exit before shutdown is a failure of the whole service
func (self *Controller) onExit(name string) func(err error) {
	return func(err error) {
		if err != nil {
			self.setErr(fmt.Errorf("%s: %w", name, err))
		}
		if self.shuttingDown.Load() && err == nil {
			return
		}

		self.Log.WithError(err).WithField("component", name).Error("Component stopped")
		self.monitor.MarkDead()
		self.diedOnce.Do(func() { close(self.died) })
	}
}

func (self *Controller) startComponents() (err error) {
	type component struct {
		name string
		task *task.Task
	}

	components := []component{{"monitor", self.monitor.Task}}
	if self.publisher != nil {
		components = append(components, component{"publisher", self.publisher.Task})
	}
	components = append(components,
		component{"writer", self.writer.Task},
		component{"sender", self.sender.Task},
		component{"follower", self.follower.Task},
	)
	if self.auditor != nil {
		components = append(components, component{"auditor", self.auditor.Task})
	}
	components = append(components, component{"server", self.server.Task})

	for _, c := range components {
		err = c.task.WithOnSubtaskExit(self.onExit(c.name)).Start()
		if err != nil {
			return fmt.Errorf("failed to start %s: %w", c.name, err)
		}
	}
	return nil
}

func (self *Controller) supervise() error {
	select {
	case <-self.StopChannel:
		self.Log.Info("Stop requested")
	case <-self.died:
		self.Log.Error("Shutting down after a component failure")
	}

	self.shutdown()
	return self.firstErr()
}

// Producers stop first, the writer last, so that everything accepted is stored
func (self *Controller) shutdown() {
	self.shuttingDown.Store(true)

	// No new mint requests
	self.server.StopWait()

	if self.auditor != nil {
		self.auditor.StopWait()
	}

	self.follower.StopWait()

	// Sender finishes its inbox and exits
	self.counter.Close()
	select {
	case <-self.sender.CtxRunning.Done():
	case <-time.After(self.Config.StopTimeout):
		self.Log.Error("Timeout reached, sender didn't finish")
	}

	// Applies queued operations
	self.writer.StopWait()

	if self.publisher != nil {
		select {
		case <-self.writer.CtxRunning.Done():
			// Publisher exits after the last stored event
			close(self.events)
			self.publisher.StopWait()
		default:
			self.publisher.Stop()
		}
	}

	self.monitor.StopWait()

	self.Log.Info("All components stopped")
}
