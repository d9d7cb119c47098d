package audit

import (
	"fmt"
	"strconv"
	"time"

	auditDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/audit"
)

type Action string

const (
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionPasswordChange Action = "password_change"
	ActionPasswordReset  Action = "password_reset"
)

// Target names the entity an action was applied to.
type Target struct {
	Model    string
	ObjectID string
}

func TargetOf(model string, id int64) Target {
	return Target{Model: model, ObjectID: strconv.FormatInt(id, 10)}
}

type Log struct {
	ID                int64     `json:"id"`
	UserID            *int64    `json:"user_id"`
	Action            string    `json:"action"`
	ModelName         string    `json:"model_name"`
	ObjectID          string    `json:"object_id"`
	ChangeDescription string    `json:"change_description"`
	Timestamp         time.Time `json:"timestamp"`
}

// Describe renders the human readable line stored with every entry.
func Describe(action Action, target Target) string {
	return fmt.Sprintf("%s %s (ID: %s)", action, target.Model, target.ObjectID)
}

func NewLog(actorID *int64, action Action, target Target, at time.Time) *Log {
	return &Log{
		UserID:            actorID,
		Action:            string(action),
		ModelName:         target.Model,
		ObjectID:          target.ObjectID,
		ChangeDescription: Describe(action, target),
		Timestamp:         at,
	}
}

func ToDataModel(l *Log) *auditDatamodel.AuditLog {
	return &auditDatamodel.AuditLog{
		ID:                l.ID,
		UserID:            l.UserID,
		Action:            l.Action,
		ModelName:         l.ModelName,
		ObjectID:          l.ObjectID,
		ChangeDescription: l.ChangeDescription,
		Timestamp:         l.Timestamp,
	}
}

func FromDataModel(l *auditDatamodel.AuditLog) *Log {
	return &Log{
		ID:                l.ID,
		UserID:            l.UserID,
		Action:            l.Action,
		ModelName:         l.ModelName,
		ObjectID:          l.ObjectID,
		ChangeDescription: l.ChangeDescription,
		Timestamp:         l.Timestamp,
	}
}

func FromDataModelSlice(logs []*auditDatamodel.AuditLog) []*Log {
	result := make([]*Log, len(logs))
	for i, l := range logs {
		result[i] = FromDataModel(l)
	}
	return result
}
