package model

import (
	"encoding/json"
	"time"
)

const TableEvent = "events"

type EventType string

const (
	EventTypeMint EventType = "mint"
	EventTypeBurn EventType = "burn"
)

// Token lifecycle event emitted by the tracked contract
type Event struct {
	Id        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TxHash    string    `json:"txHash"`
	EventType EventType `json:"eventType"`
	Owner     string    `gorm:"index:idx_events_owner_id,priority:1" json:"owner"`
	TokenId   int64     `json:"tokenId"`
	BlockTime time.Time `json:"blockTime"`
}

func (Event) TableName() string {
	return TableEvent
}

func (self *Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(self)
}
