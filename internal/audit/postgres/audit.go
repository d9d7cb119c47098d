package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	auditDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/audit"
)

// Repository is append-only: there is no update or delete path.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, l *audit.Log) error {
	row := audit.ToDataModel(l)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	l.ID = row.ID
	return nil
}

func (r *Repository) List(ctx context.Context, filter audit.ListFilter) ([]*audit.Log, int64, error) {
	q := r.db.WithContext(ctx).Model(&auditDatamodel.AuditLog{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.ModelName != "" {
		q = q.Where("model_name = ?", filter.ModelName)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.ObjectID != "" {
		q = q.Where("object_id = ?", filter.ObjectID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	var rows []*auditDatamodel.AuditLog
	err := q.Order("timestamp DESC").Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	return audit.FromDataModelSlice(rows), total, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*audit.Log, error) {
	var row auditDatamodel.AuditLog
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, audit.ErrNotFound
		}
		return nil, err
	}
	return audit.FromDataModel(&row), nil
}
