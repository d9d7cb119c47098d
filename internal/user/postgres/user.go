package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	auditPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit/postgres"
	userDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/user"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user"
)

const employeeSequence = "employee_id"

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("users.is_deleted = ?", false)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var row userDatamodel.User
	err := r.active(ctx).Preload("Role").Where("users.id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var row userDatamodel.User
	err := r.active(ctx).Preload("Role").Where("users.email = ?", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

func (r *Repository) List(ctx context.Context, filter user.ListUsersFilter) ([]*user.User, int64, error) {
	q := r.active(ctx).Model(&userDatamodel.User{})
	if filter.RoleID != nil {
		q = q.Where("users.role_id = ?", *filter.RoleID)
	}
	if filter.IsActive != nil {
		q = q.Where("users.is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(users.username) LIKE ? OR LOWER(users.full_name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(users.employee_id) LIKE ?",
			like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var rows []*userDatamodel.User
	err := q.Preload("Role").
		Order("users.id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	users := make([]*user.User, len(rows))
	for i, row := range rows {
		users[i] = user.FromDataModel(row)
	}
	return users, total, nil
}

// Uniqueness spans deleted users too; the unique indexes do.
func (r *Repository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.exists(ctx, "username = ? AND id <> ?", username, excludeID)
}

func (r *Repository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, "email = ? AND id <> ?", email, excludeID)
}

func (r *Repository) EmployeeIDTaken(ctx context.Context, employeeID string) (bool, error) {
	return r.exists(ctx, "employee_id = ?", employeeID)
}

func (r *Repository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where(query, args...).Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, u *user.User) error {
	row := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return err
	}
	u.ID = row.ID
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now()
	return r.update(ctx, u.ID, map[string]interface{}{
		"username":   u.Username,
		"full_name":  u.FullName,
		"email":      u.Email,
		"phone":      u.Phone,
		"role_id":    u.RoleID,
		"is_active":  u.IsActive,
		"updated_at": u.UpdatedAt,
	})
}

func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, map[string]interface{}{
		"password_hash": hash,
		"updated_at":    time.Now(),
	})
}

func (r *Repository) SetOTP(ctx context.Context, id int64, code string, expiry time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"otp_code":   code,
		"otp_expiry": expiry,
	})
}

func (r *Repository) ConsumeOTP(ctx context.Context, id int64, code string, now time.Time, hash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ? AND is_deleted = ? AND otp_code = ? AND otp_expiry > ?", id, false, code, now).
		Updates(map[string]interface{}{
			"password_hash": hash,
			"otp_code":      nil,
			"otp_expiry":    nil,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SoftDelete also deactivates the account so it can no longer sign in.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"is_deleted": true,
		"is_active":  false,
		"updated_at": time.Now(),
	})
}

func (r *Repository) update(ctx context.Context, id int64, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

// NextEmployeeNumber increments the counter row. Under Postgres the UPDATE
// holds the row lock until the surrounding transaction ends.
func (r *Repository) NextEmployeeNumber(ctx context.Context) (int64, error) {
	if err := r.ensureSequence(ctx); err != nil {
		return 0, err
	}

	err := r.db.WithContext(ctx).Model(&userDatamodel.EmployeeSequence{}).
		Where("name = ?", employeeSequence).
		UpdateColumn("value", gorm.Expr("value + 1")).Error
	if err != nil {
		return 0, fmt.Errorf("increment employee sequence: %w", err)
	}

	var seq userDatamodel.EmployeeSequence
	if err := r.db.WithContext(ctx).Where("name = ?", employeeSequence).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("read employee sequence: %w", err)
	}
	return seq.Value, nil
}

func (r *Repository) BumpEmployeeNumber(ctx context.Context, atLeast int64) error {
	if err := r.ensureSequence(ctx); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&userDatamodel.EmployeeSequence{}).
		Where("name = ? AND value < ?", employeeSequence, atLeast).
		UpdateColumn("value", atLeast).Error
}

// ensureSequence seeds the counter from the highest PTn already issued.
func (r *Repository) ensureSequence(ctx context.Context) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.EmployeeSequence{}).
		Where("name = ?", employeeSequence).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check employee sequence: %w", err)
	}
	if count > 0 {
		return nil
	}

	var ids []string
	err = r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("employee_id LIKE ?", user.EmployeeIDPrefix+"%").
		Pluck("employee_id", &ids).Error
	if err != nil {
		return fmt.Errorf("scan employee ids: %w", err)
	}
	var max int64
	for _, id := range ids {
		if n, ok := user.ParseEmployeeID(id); ok && n > max {
			max = n
		}
	}

	seq := userDatamodel.EmployeeSequence{Name: employeeSequence, Value: max}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error
}

func (r *Repository) GetRole(ctx context.Context, id int64) (*user.Role, error) {
	var row userDatamodel.Role
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrRoleNotFound
		}
		return nil, err
	}
	return user.RoleFromDataModel(&row), nil
}

func (r *Repository) ListRoles(ctx context.Context) ([]*user.Role, error) {
	var rows []*userDatamodel.Role
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]*user.Role, len(rows))
	for i, row := range rows {
		roles[i] = user.RoleFromDataModel(row)
	}
	return roles, nil
}

func (r *Repository) RoleNameTaken(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.Role{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateRole(ctx context.Context, role *user.Role) error {
	row := user.RoleToDataModel(role)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	role.ID = row.ID
	role.CreatedAt = row.CreatedAt
	return nil
}

type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(tx user.Tx) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(user.Tx{
			Users: NewRepository(tx),
			Audit: audit.NewRecorder(auditPostgres.NewRepository(tx)),
		})
	})
}
