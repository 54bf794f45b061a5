package sponsor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/ledger"
	"github.com/mysomeid/sponsor/src/utils/logger"
	"github.com/mysomeid/sponsor/src/utils/monitoring"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/teivah/onecontext"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

// Decides whether the request may be sponsored, e.g. checks a proof of the private data
type Verifier interface {
	Verify(ctx context.Context, req *MintRequest) error
}

type MintRequest struct {
	Account  common.Address
	Platform uint8

	// Private token data, stored on chain only in sealed form
	Payload []byte
}

type MintResponse struct {
	TransactionHash common.Hash   `json:"transactionHash"`
	DecryptionKey   hexutil.Bytes `json:"decryptionKey"`
}

// Turns mint requests into signed transactions handed to the sender.
// A response is returned only after the pending transaction was stored.
type Minter struct {
	log     *logrus.Entry
	config  *config.Config
	monitor monitoring.Monitor

	counter  *NonceCounter
	signer   *ledger.Signer
	contract *ledger.Contract
	fees     ledger.Fees
	quota    *Quota
	sealer   Sealer
	verifier Verifier

	// Done when the service stops
	ctx context.Context

	// Closed when the service can't process transactions anymore
	died <-chan struct{}
}

func NewMinter(config *config.Config) *Minter {
	return &Minter{
		log:    logger.NewSublogger("minter"),
		config: config,
		sealer: AesSealer{},
		ctx:    context.Background(),
	}
}

func (self *Minter) WithMonitor(v monitoring.Monitor) *Minter {
	self.monitor = v
	return self
}

func (self *Minter) WithNonceCounter(v *NonceCounter) *Minter {
	self.counter = v
	return self
}

func (self *Minter) WithSigner(v *ledger.Signer) *Minter {
	self.signer = v
	return self
}

func (self *Minter) WithContract(v *ledger.Contract) *Minter {
	self.contract = v
	return self
}

func (self *Minter) WithFees(v ledger.Fees) *Minter {
	self.fees = v
	return self
}

func (self *Minter) WithQuota(v *Quota) *Minter {
	self.quota = v
	return self
}

func (self *Minter) WithSealer(v Sealer) *Minter {
	self.sealer = v
	return self
}

func (self *Minter) WithVerifier(v Verifier) *Minter {
	self.verifier = v
	return self
}

func (self *Minter) WithContext(v context.Context) *Minter {
	self.ctx = v
	return self
}

func (self *Minter) WithDied(v <-chan struct{}) *Minter {
	self.died = v
	return self
}

func (self *Minter) Mint(ctx context.Context, req *MintRequest) (out *MintResponse, err error) {
	errs := &self.monitor.GetReport().Sponsor.Errors
	self.monitor.GetReport().Sponsor.State.MinterRequests.Inc()

	ctx, cancel := onecontext.Merge(ctx, self.ctx)
	defer cancel()

	log := self.log.WithField("account", req.Account)

	if self.verifier != nil {
		err = self.verifier.Verify(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	err = self.quota.Check(ctx, req.Account)
	if errors.Is(err, ErrTooManyRequests) {
		errs.MinterTooManyRequests.Inc()
		return nil, err
	}
	if err != nil {
		errs.MinterInternal.Inc()
		log.WithError(err).Error("Failed to check quota")
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	sealed, key, err := self.sealer.Seal(req.Payload)
	if err != nil {
		errs.MinterInternal.Inc()
		return nil, fmt.Errorf("%w: failed to seal payload: %w", ErrInternal, err)
	}

	data, err := self.contract.PackMint(req.Account, req.Platform, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	send, err := self.counter.IncrementAndHandoff(func(nonce uint64) (*PendingSend, error) {
		tx, serialized, err := self.signer.Sign(nonce, self.contract.Address, data, self.fees)
		if err != nil {
			return nil, err
		}
		return &PendingSend{
			Nonce:        nonce,
			TxHash:       tx.Hash(),
			SerializedTx: serialized,
			Sponsoree:    req.Account,
			Ack:          NewAck(),
		}, nil
	})
	switch {
	case errors.Is(err, ErrBusy):
		errs.MinterBusy.Inc()
		return nil, err
	case err != nil:
		errs.MinterInternal.Inc()
		log.WithError(err).Error("Failed to hand over transaction")
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	self.quota.Record(req.Account)

	log = log.WithField("nonce", send.Nonce).WithField("tx", send.TxHash)

	// Nonce lock is released, waiting for the record doesn't hold other requests
	timer := time.NewTimer(self.config.Minter.AckTimeout)
	defer timer.Stop()

	select {
	case <-send.Ack.Done():
	case <-self.died:
		send.Ack.Abandon()
		errs.MinterInternal.Inc()
		return nil, fmt.Errorf("%w: %w", ErrInternal, ErrSenderStopped)
	case <-ctx.Done():
		send.Ack.Abandon()
		errs.MinterInternal.Inc()
		log.Warn("Request ended before the transaction was stored")
		return nil, fmt.Errorf("%w: %w", ErrInternal, ctx.Err())
	case <-timer.C:
		send.Ack.Abandon()
		errs.MinterInternal.Inc()
		log.Error("Transaction wasn't stored in time")
		return nil, fmt.Errorf("%w: transaction %s wasn't stored in time", ErrInternal, send.TxHash)
	}

	self.monitor.GetReport().Sponsor.State.MinterAccepted.Inc()
	log.Info("Mint accepted")

	return &MintResponse{
		TransactionHash: send.TxHash,
		DecryptionKey:   key,
	}, nil
}
