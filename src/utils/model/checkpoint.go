package model

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const TableCheckpoint = "checkpoints"

// Single row, id is always 0
type Checkpoint struct {
	Id                  int16 `gorm:"primaryKey;autoIncrement:false"`
	LastProcessedHeight int64
}

func (Checkpoint) TableName() string {
	return TableCheckpoint
}

// Where processing resumes after a restart
type ResumePoint struct {
	// Nil when nothing was processed yet
	LastProcessedHeight *uint64

	// Id assigned to the next stored event
	NextEventId int64
}

func LoadResumePoint(ctx context.Context, db *gorm.DB) (out *ResumePoint, err error) {
	out = new(ResumePoint)

	var checkpoint Checkpoint
	err = db.WithContext(ctx).Where("id = ?", 0).Take(&checkpoint).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = nil
	case err != nil:
		return nil, err
	default:
		height := uint64(checkpoint.LastProcessedHeight)
		out.LastProcessedHeight = &height
	}

	var maxId int64
	err = db.WithContext(ctx).Model(&Event{}).Select("COALESCE(MAX(id), -1)").Scan(&maxId).Error
	if err != nil {
		return nil, err
	}
	out.NextEventId = maxId + 1
	return
}

// Tables managed by the migrations, in creation order
func Tables() []interface{} {
	return []interface{}{&Event{}, &Transaction{}, &Checkpoint{}}
}
