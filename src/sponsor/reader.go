package sponsor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/logger"
	"github.com/mysomeid/sponsor/src/utils/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Read only queries, safe for concurrent use
type Reader struct {
	log    *logrus.Entry
	config *config.Reader
	db     *gorm.DB

	now func() time.Time
}

func NewReader(config *config.Config, db *gorm.DB) *Reader {
	return &Reader{
		log:    logger.NewSublogger("reader"),
		config: &config.Reader,
		db:     db,
		now:    time.Now,
	}
}

// Requested page size capped at the configured maximum, zero means the maximum
func (self *Reader) Limit(limit int) int {
	if limit <= 0 || limit > self.config.MaxLimit {
		return self.config.MaxLimit
	}
	return limit
}

// Events of the owner with id <= from, newest first. Nil from starts at the latest event.
func (self *Reader) GetEvents(ctx context.Context, owner common.Address, from *int64, limit int) (out []model.Event, err error) {
	start := int64(math.MaxInt64)
	if from != nil {
		start = *from
	}

	ctx, cancel := context.WithTimeout(ctx, self.config.QueryTimeout)
	defer cancel()

	err = self.db.WithContext(ctx).
		Where("owner = ? AND id <= ?", owner.Hex(), start).
		Order("id DESC").
		Limit(self.Limit(limit)).
		Find(&out).
		Error
	return
}

// Transactions sponsored for the account within the last 24 hours
func (self *Reader) GetNumSubmittedLastDay(ctx context.Context, account common.Address) (count int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, self.config.QueryTimeout)
	defer cancel()

	err = self.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("account_index = ? AND insert_time >= ?", account.Hex(), self.now().UTC().Add(-24*time.Hour)).
		Count(&count).
		Error
	return
}

// Nil if the transaction isn't stored
func (self *Reader) GetTransaction(ctx context.Context, hash common.Hash) (out *model.Transaction, err error) {
	ctx, cancel := context.WithTimeout(ctx, self.config.QueryTimeout)
	defer cancel()

	out = new(model.Transaction)
	err = self.db.WithContext(ctx).Where("tx_hash = ?", hash.Hex()).Take(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return
}

// Oldest pending transactions inserted before the cutoff
func (self *Reader) GetPendingOlderThan(ctx context.Context, age time.Duration, limit int) (out []model.Transaction, err error) {
	ctx, cancel := context.WithTimeout(ctx, self.config.QueryTimeout)
	defer cancel()

	err = self.db.WithContext(ctx).
		Where("status = ? AND insert_time < ?", model.TransactionStatusPending, self.now().UTC().Add(-age)).
		Order("insert_time").
		Limit(limit).
		Find(&out).
		Error
	return
}
