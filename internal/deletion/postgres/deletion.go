package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	auditPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit/postgres"
	deletionDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/deletion"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/deletion"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req *deletion.Request) error {
	row := deletion.ToDataModel(req)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	req.ID = row.ID
	req.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*deletion.Request, error) {
	var row deletionDatamodel.DeletionRequest
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, deletion.ErrNotFound
		}
		return nil, err
	}
	return deletion.FromDataModel(&row), nil
}

func (r *Repository) List(ctx context.Context, filter deletion.ListFilter) ([]*deletion.Request, int64, error) {
	q := r.db.WithContext(ctx).Model(&deletionDatamodel.DeletionRequest{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Module != "" {
		q = q.Where("module = ?", filter.Module)
	}
	if filter.RequestedBy != nil {
		q = q.Where("requested_by = ?", *filter.RequestedBy)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count deletion requests: %w", err)
	}

	var rows []*deletionDatamodel.DeletionRequest
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list deletion requests: %w", err)
	}

	reqs := make([]*deletion.Request, len(rows))
	for i, row := range rows {
		reqs[i] = deletion.FromDataModel(row)
	}
	return reqs, total, nil
}

// Review is a compare-and-set on status; concurrent reviewers race on the
// WHERE clause and only one sees a row affected.
func (r *Repository) Review(ctx context.Context, id int64, status deletion.Status, reviewer *int64, at time.Time, note string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&deletionDatamodel.DeletionRequest{}).
		Where("id = ? AND status = ?", id, string(deletion.StatusPending)).
		Updates(map[string]interface{}{
			"status":      string(status),
			"reviewed_by": reviewer,
			"reviewed_at": at,
			"review_note": note,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TargetFactory binds a module's soft-delete handler to a transaction.
type TargetFactory func(tx *gorm.DB) deletion.Target

type UnitOfWork struct {
	db      *gorm.DB
	targets map[deletion.Module]TargetFactory
}

func NewUnitOfWork(db *gorm.DB, targets map[deletion.Module]TargetFactory) *UnitOfWork {
	return &UnitOfWork{db: db, targets: targets}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(tx deletion.Tx) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		targets := make(map[deletion.Module]deletion.Target, len(u.targets))
		for m, factory := range u.targets {
			targets[m] = factory(tx)
		}
		return fn(deletion.Tx{
			Requests: NewRepository(tx),
			Audit:    audit.NewRecorder(auditPostgres.NewRepository(tx)),
			Targets:  targets,
		})
	})
}
