package vehicle

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/common/validation"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/storage"
)

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".pdf"}

// Upload is one uploaded document file.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Ext is the lower-cased extension of the uploaded file name.
func (u *Upload) Ext() string {
	return strings.ToLower(filepath.Ext(u.Filename))
}

// DocumentInput carries the supplied fields of one document group. Nil means
// not supplied.
type DocumentInput struct {
	Number     *string
	ExpiryDate *string
	File       *Upload
}

// VehicleInput is the body of a create or a partial update.
type VehicleInput struct {
	RegistrationNumber *string
	EngineNumber       *string
	ChassisNumber      *string
	Documents          map[DocumentKind]DocumentInput
}

func (in *VehicleInput) Normalize() {
	trim := func(s *string) {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	trim(in.RegistrationNumber)
	trim(in.EngineNumber)
	trim(in.ChassisNumber)
	for kind, doc := range in.Documents {
		trim(doc.Number)
		trim(doc.ExpiryDate)
		in.Documents[kind] = doc
	}
}

// validator checks field shapes. When partial is false every field the
// create form needs is required.
func (in *VehicleInput) validator(partial bool, today Date) *validation.ValidationBuilder {
	v := validation.NewValidator()

	identifier := func(name string, value *string, max int) {
		if value == nil && partial {
			return
		}
		v.Field(name, value).Required().MaxLength(max)
	}
	identifier("registration_number", in.RegistrationNumber, 20)
	if in.RegistrationNumber != nil && *in.RegistrationNumber != "" && !storage.IsKeySegment(*in.RegistrationNumber) {
		v.Add("registration_number", "Registration number may contain only letters, digits, hyphens and underscores.", apperrors.ErrCodeInvalidFormat)
	}
	identifier("engine_number", in.EngineNumber, 50)
	identifier("chassis_number", in.ChassisNumber, 50)

	for _, kind := range documentKinds {
		doc := in.Documents[kind]

		if doc.Number != nil || !partial {
			v.Field(kind.NumberField(), doc.Number).Required().MaxLength(100)
		}

		switch {
		case doc.ExpiryDate != nil && *doc.ExpiryDate != "":
			raw := *doc.ExpiryDate
			v.Field(kind.ExpiryField(), raw).Custom(func(interface{}) *apperrors.AppError {
				if err := ValidateExpiry(raw, today); err != nil {
					return apperrors.NewValidationFieldError(kind.ExpiryField(), err.Message, err.Code)
				}
				return nil
			})
		case kind.ExpiryRequired() && (!partial || doc.ExpiryDate != nil):
			v.Field(kind.ExpiryField(), doc.ExpiryDate).Required()
		}

		if doc.File != nil {
			upload := doc.File
			v.Field(kind.FileField(), upload).Custom(func(interface{}) *apperrors.AppError {
				if err := ValidateUpload(upload.Filename, upload.Size); err != nil {
					return apperrors.NewValidationFieldError(kind.FileField(), err.Message, err.Code)
				}
				return nil
			})
		} else if !partial {
			v.Field(kind.FileField(), nil).Required()
		}
	}
	return v
}

// FieldError is a single rejected value.
type FieldError struct {
	Message string
	Code    apperrors.ErrorCode
}

// ValidateExpiry accepts a YYYY-MM-DD date that is today or later.
func ValidateExpiry(raw string, today Date) *FieldError {
	d, err := ParseDate(raw)
	if err != nil {
		return &FieldError{
			Message: "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.",
			Code:    apperrors.ErrCodeInvalidDate,
		}
	}
	if d.Before(today.Time) {
		return &FieldError{
			Message: fmt.Sprintf("The date %s is in the past, please provide a valid future date.", d),
			Code:    apperrors.ErrCodeExpiredDate,
		}
	}
	return nil
}

// ValidateUpload enforces the extension allow-list and the 5 MiB ceiling.
func ValidateUpload(filename string, size int64) *FieldError {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range allowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return &FieldError{
			Message: "Only .jpg, .jpeg, .png, or .pdf files are allowed.",
			Code:    apperrors.ErrCodeFileType,
		}
	}
	if size > MaxUploadSize {
		return &FieldError{
			Message: "File size should not exceed 5MB.",
			Code:    apperrors.ErrCodeFileTooLarge,
		}
	}
	return nil
}

var orderings = []string{
	"registration_number", "-registration_number",
	"insurance_expiry_date", "-insurance_expiry_date",
	"tax_expiry_date", "-tax_expiry_date",
	"permit_expiry_date", "-permit_expiry_date",
}

type ListFilter struct {
	RegistrationNumber  string
	InsuranceExpiryDate *Date
	TaxExpiryDate       *Date
	PermitExpiryDate    *Date
	Ordering            string
	Limit               int
	Offset              int
}

// ParseListFilter reads the raw query values into a filter.
func ParseListFilter(get func(string) string, limit, offset int) (ListFilter, error) {
	f := ListFilter{
		RegistrationNumber: strings.TrimSpace(get("registration_number")),
		Ordering:           strings.TrimSpace(get("ordering")),
		Limit:              limit,
		Offset:             offset,
	}

	v := validation.NewValidator()
	date := func(field string, dst **Date) {
		raw := strings.TrimSpace(get(field))
		if raw == "" {
			return
		}
		d, err := ParseDate(raw)
		if err != nil {
			v.Add(field, "Enter a valid date.", apperrors.ErrCodeInvalidDate)
			return
		}
		*dst = &d
	}
	date("insurance_expiry_date", &f.InsuranceExpiryDate)
	date("tax_expiry_date", &f.TaxExpiryDate)
	date("permit_expiry_date", &f.PermitExpiryDate)
	v.Field("ordering", f.Ordering).OneOf(orderings...)
	if err := v.Err(); err != nil {
		return ListFilter{}, err
	}

	f.Normalize()
	return f, nil
}

func (f *ListFilter) Normalize() {
	if f.Ordering == "" {
		f.Ordering = "registration_number"
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

type ListResponse struct {
	Count   int64      `json:"count"`
	Results []*Vehicle `json:"results"`
}

// DocumentFile is an opened stored document.
type DocumentFile struct {
	Name        string
	ContentType string
	Body        io.ReadCloser
}
