package deletion

import (
	"strings"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/common/validation"
)

type CreateRequestDTO struct {
	Module   string `json:"module"`
	ObjectID string `json:"object_id"`
	Reason   string `json:"reason"`
}

func (d *CreateRequestDTO) Normalize() {
	d.Module = strings.ToLower(strings.TrimSpace(d.Module))
	d.ObjectID = strings.TrimSpace(d.ObjectID)
	d.Reason = strings.TrimSpace(d.Reason)
}

func (d CreateRequestDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("module", d.Module).Required().OneOf(Modules()...)
	v.Field("object_id", d.ObjectID).Required().MaxLength(100)
	v.Field("reason", d.Reason).Required()
	return v.Err()
}

type RejectDTO struct {
	ReviewNote string `json:"review_note"`
}

type ListFilter struct {
	Status      string
	Module      string
	RequestedBy *int64
	Limit       int
	Offset      int
}

func (f *ListFilter) Validate() error {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	v := validation.NewValidator()
	v.Field("status", f.Status).OneOf(string(StatusPending), string(StatusApproved), string(StatusRejected))
	v.Field("module", f.Module).OneOf(Modules()...)
	return v.Err()
}

type ListResponse struct {
	Count   int64      `json:"count"`
	Results []*Request `json:"results"`
}
