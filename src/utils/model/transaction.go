package model

import "time"

const TableTransaction = "transactions"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFinalized TransactionStatus = "finalized"
	TransactionStatusFailed    TransactionStatus = "failed"

	// Expired without ever reaching the chain
	TransactionStatusMissing TransactionStatus = "missing"
)

// Transaction sent on behalf of a sponsoree. Rows are never deleted.
type Transaction struct {
	TxHash string `gorm:"primaryKey" json:"txHash"`

	// Address of the sponsored account
	AccountIndex string `gorm:"index:idx_transactions_account_time,priority:1" json:"accountIndex"`

	SerializedTx []byte            `json:"-"`
	InsertTime   time.Time         `gorm:"index:idx_transactions_account_time,priority:2" json:"insertTime"`
	Status       TransactionStatus `json:"status"`
}

func (Transaction) TableName() string {
	return TableTransaction
}
