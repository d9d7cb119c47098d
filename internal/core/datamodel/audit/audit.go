package audit

import "time"

type AuditLog struct {
	ID                int64     `gorm:"primaryKey"`
	UserID            *int64    `gorm:"column:user_id;index"`
	Action            string    `gorm:"column:action;size:100;not null"`
	ModelName         string    `gorm:"column:model_name;size:100;not null"`
	ObjectID          string    `gorm:"column:object_id;size:100;not null"`
	ChangeDescription string    `gorm:"column:change_description;not null"`
	Timestamp         time.Time `gorm:"column:timestamp;not null;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
