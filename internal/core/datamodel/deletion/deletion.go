package deletion

import "time"

type DeletionRequest struct {
	ID          int64      `gorm:"primaryKey"`
	RequestedBy int64      `gorm:"column:requested_by;not null;index"`
	Module      string     `gorm:"column:module;size:50;not null"`
	ObjectID    string     `gorm:"column:object_id;size:100;not null"`
	Reason      string     `gorm:"column:reason;not null"`
	Status      string     `gorm:"column:status;size:20;not null;index"`
	ReviewedBy  *int64     `gorm:"column:reviewed_by"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at"`
	ReviewNote  string     `gorm:"column:review_note;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (DeletionRequest) TableName() string { return "deletion_requests" }
