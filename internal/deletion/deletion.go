package deletion

import (
	"context"
	"errors"
	"strconv"
	"time"

	deletionDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/deletion"
)

type Module string

const (
	ModuleUser    Module = "user"
	ModuleVehicle Module = "vehicle"
	ModuleChallan Module = "challan"
	ModuleDriver  Module = "driver"
	ModuleOther   Module = "other"
)

var modelNames = map[Module]string{
	ModuleUser:    "User",
	ModuleVehicle: "Vehicle",
	ModuleChallan: "Challan",
	ModuleDriver:  "Driver",
	ModuleOther:   "Other",
}

func Modules() []string {
	return []string{string(ModuleChallan), string(ModuleVehicle), string(ModuleDriver), string(ModuleUser), string(ModuleOther)}
}

func (m Module) Valid() bool {
	_, ok := modelNames[m]
	return ok
}

// ModelName is the audit model name of the module's records.
func (m Module) ModelName() string {
	return modelNames[m]
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

const ModelDeletionRequest = "DeletionRequest"

var (
	ErrNotFound       = errors.New("deletion request not found")
	ErrTargetNotFound = errors.New("deletion target not found")
)

type Request struct {
	ID          int64      `json:"id"`
	Module      Module     `json:"module"`
	ObjectID    string     `json:"object_id"`
	Reason      string     `json:"reason"`
	RequestedBy int64      `json:"requested_by"`
	Status      Status     `json:"status"`
	IsApproved  bool       `json:"is_approved"`
	ReviewedBy  *int64     `json:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	ReviewNote  string     `json:"review_note"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Target soft-deletes the records of one module.
type Target interface {
	SoftDelete(ctx context.Context, objectID int64) error
}

type TargetFunc func(ctx context.Context, objectID int64) error

func (f TargetFunc) SoftDelete(ctx context.Context, objectID int64) error {
	return f(ctx, objectID)
}

// MapNotFound translates the module's own not-found error into ErrTargetNotFound.
func MapNotFound(t Target, notFound error) Target {
	return TargetFunc(func(ctx context.Context, objectID int64) error {
		err := t.SoftDelete(ctx, objectID)
		if err != nil && errors.Is(err, notFound) {
			return ErrTargetNotFound
		}
		return err
	})
}

func parseObjectID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

func ToDataModel(r *Request) *deletionDatamodel.DeletionRequest {
	return &deletionDatamodel.DeletionRequest{
		ID:          r.ID,
		RequestedBy: r.RequestedBy,
		Module:      string(r.Module),
		ObjectID:    r.ObjectID,
		Reason:      r.Reason,
		Status:      string(r.Status),
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  r.ReviewedAt,
		ReviewNote:  r.ReviewNote,
		CreatedAt:   r.CreatedAt,
	}
}

func FromDataModel(r *deletionDatamodel.DeletionRequest) *Request {
	return &Request{
		ID:          r.ID,
		Module:      Module(r.Module),
		ObjectID:    r.ObjectID,
		Reason:      r.Reason,
		RequestedBy: r.RequestedBy,
		Status:      Status(r.Status),
		IsApproved:  Status(r.Status) == StatusApproved,
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  r.ReviewedAt,
		ReviewNote:  r.ReviewNote,
		CreatedAt:   r.CreatedAt,
	}
}
