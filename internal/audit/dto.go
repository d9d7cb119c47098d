package audit

import (
	errors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type ListFilter struct {
	UserID    *int64
	ModelName string
	Action    string
	ObjectID  string
	Limit     int
	Offset    int
}

func (f *ListFilter) Normalize() error {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		return errors.NewValidationFieldError("offset", "offset must not be negative", errors.ErrCodeInvalidFormat)
	}
	return nil
}

type ListResponse struct {
	Count   int64  `json:"count"`
	Results []*Log `json:"results"`
}
