package vehicle

import "time"

type Vehicle struct {
	ID                 int64  `gorm:"primaryKey"`
	RegistrationNumber string `gorm:"column:registration_number;size:20;not null;uniqueIndex"`
	EngineNumber       string `gorm:"column:engine_number;size:50;not null;uniqueIndex"`
	ChassisNumber      string `gorm:"column:chassis_number;size:50;not null;uniqueIndex"`

	RCDocumentNumber string     `gorm:"column:rc_document_number;size:100;not null"`
	RCExpiryDate     *time.Time `gorm:"column:rc_expiry_date;type:date"`
	RCFile           string     `gorm:"column:rc_file;not null"`

	InsuranceDocumentNumber string     `gorm:"column:insurance_document_number;size:100;not null"`
	InsuranceExpiryDate     *time.Time `gorm:"column:insurance_expiry_date;type:date;index"`
	InsuranceFile           string     `gorm:"column:insurance_file;not null"`

	TaxDocumentNumber string     `gorm:"column:tax_document_number;size:100;not null"`
	TaxExpiryDate     *time.Time `gorm:"column:tax_expiry_date;type:date;index"`
	TaxFile           string     `gorm:"column:tax_file;not null"`

	PermitDocumentNumber string     `gorm:"column:permit_document_number;size:100;not null"`
	PermitExpiryDate     *time.Time `gorm:"column:permit_expiry_date;type:date;index"`
	PermitFile           string     `gorm:"column:permit_file;not null"`

	FitnessDocumentNumber string     `gorm:"column:fitness_document_number;size:100;not null"`
	FitnessExpiryDate     *time.Time `gorm:"column:fitness_expiry_date;type:date"`
	FitnessFile           string     `gorm:"column:fitness_file;not null"`

	PUCDocumentNumber string     `gorm:"column:puc_document_number;size:100;not null"`
	PUCExpiryDate     *time.Time `gorm:"column:puc_expiry_date;type:date"`
	PUCFile           string     `gorm:"column:puc_file;not null"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;index"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Vehicle) TableName() string { return "vehicles" }
