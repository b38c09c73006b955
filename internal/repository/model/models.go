package model

import (
	"time"

	"github.com/google/uuid"
)

type CallRecord struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID       string     `gorm:"size:255;index:idx_call_history_user_start,priority:1;not null"`
	RoomID       string     `gorm:"size:64;not null"`
	Type         string     `gorm:"size:16;not null"`
	StartTime    time.Time  `gorm:"index:idx_call_history_user_start,priority:2,sort:desc;not null"`
	EndTime      *time.Time `gorm:"column:end_time"`
	Duration     int64      `gorm:"not null;default:0"`
	Participants string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

func (CallRecord) TableName() string {
	return "call_history"
}
