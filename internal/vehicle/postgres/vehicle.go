package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	auditPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit/postgres"
	vehicleDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/vehicle"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle"
)

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&vehicleDatamodel.Vehicle{}).Where("is_deleted = ?", false)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*vehicle.Vehicle, error) {
	var row vehicleDatamodel.Vehicle
	if err := r.active(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, vehicle.ErrNotFound
		}
		return nil, err
	}
	return vehicle.FromDataModel(&row), nil
}

func (r *Repository) List(ctx context.Context, filter vehicle.ListFilter) ([]*vehicle.Vehicle, int64, error) {
	q := r.active(ctx)
	if filter.RegistrationNumber != "" {
		q = q.Where("registration_number = ?", filter.RegistrationNumber)
	}
	if filter.InsuranceExpiryDate != nil {
		q = q.Where("insurance_expiry_date = ?", filter.InsuranceExpiryDate.Time)
	}
	if filter.TaxExpiryDate != nil {
		q = q.Where("tax_expiry_date = ?", filter.TaxExpiryDate.Time)
	}
	if filter.PermitExpiryDate != nil {
		q = q.Where("permit_expiry_date = ?", filter.PermitExpiryDate.Time)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count vehicles: %w", err)
	}

	var rows []*vehicleDatamodel.Vehicle
	err := q.Order(orderClause(filter.Ordering)).
		Order("id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list vehicles: %w", err)
	}

	vehicles := make([]*vehicle.Vehicle, len(rows))
	for i, row := range rows {
		vehicles[i] = vehicle.FromDataModel(row)
	}
	return vehicles, total, nil
}

var orderColumns = map[string]string{
	"registration_number":   "registration_number",
	"insurance_expiry_date": "insurance_expiry_date",
	"tax_expiry_date":       "tax_expiry_date",
	"permit_expiry_date":    "permit_expiry_date",
}

// orderClause maps a validated ordering onto a column; unknown names fall
// back to registration_number.
func orderClause(ordering string) string {
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
		ordering = ordering[1:]
	}
	col, ok := orderColumns[ordering]
	if !ok {
		col = "registration_number"
	}
	return col + " " + dir
}

// Taken spans soft-deleted vehicles too; the unique indexes do.
func (r *Repository) Taken(ctx context.Context, field vehicle.Identifier, value string, excludeID int64) (bool, error) {
	col, ok := map[vehicle.Identifier]string{
		vehicle.IdentifierRegistration: "registration_number",
		vehicle.IdentifierEngine:       "engine_number",
		vehicle.IdentifierChassis:      "chassis_number",
	}[field]
	if !ok {
		return false, fmt.Errorf("unknown identifier %q", field)
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&vehicleDatamodel.Vehicle{}).
		Where(col+" = ? AND id <> ?", value, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, v *vehicle.Vehicle) error {
	row := vehicle.ToDataModel(v)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	v.ID = row.ID
	v.CreatedAt = row.CreatedAt
	v.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, v *vehicle.Vehicle) error {
	row := vehicle.ToDataModel(v)
	res := r.db.WithContext(ctx).Model(&vehicleDatamodel.Vehicle{}).
		Where("id = ? AND is_deleted = ?", v.ID, false).
		Select("*").
		Omit("id", "is_deleted", "deleted_at", "created_at").
		Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vehicle.ErrNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&vehicleDatamodel.Vehicle{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": r.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return vehicle.ErrNotFound
	}
	return nil
}

type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(tx vehicle.Tx) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(vehicle.Tx{
			Vehicles: NewRepository(tx),
			Audit:    audit.NewRecorder(auditPostgres.NewRepository(tx)),
		})
	})
}
