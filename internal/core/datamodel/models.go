package datamodel

import (
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/audit"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/deletion"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/user"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/vehicle"
)

// All lists every table model, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&user.Role{},
		&user.User{},
		&user.EmployeeSequence{},
		&deletion.DeletionRequest{},
		&audit.AuditLog{},
		&vehicle.Vehicle{},
	}
}
