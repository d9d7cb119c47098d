package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	userDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindCredentials looks a non-deleted user up by username, then by email.
func (r *Repository) FindCredentials(ctx context.Context, login string) (*auth.Credentials, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("username = ? OR email = ?", login, login).
		Order("id").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("find credentials: %w", err)
	}

	return &auth.Credentials{
		UserID:       row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
	}, nil
}

// LoadPrincipal returns auth.ErrNotFound for deleted or inactive users.
func (r *Repository) LoadPrincipal(ctx context.Context, userID int64) (*auth.Principal, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Preload("Role").
		Where("id = ? AND is_deleted = ? AND is_active = ?", userID, false, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}

	p := &auth.Principal{
		UserID:     row.ID,
		Username:   row.Username,
		EmployeeID: row.EmployeeID,
		RoleID:     row.RoleID,
	}
	if row.Role != nil {
		p.RoleName = row.Role.Name
		p.Capabilities = auth.ParseCapabilities(row.Role.Capabilities, row.Role.CanDelete)
	}
	return p, nil
}
