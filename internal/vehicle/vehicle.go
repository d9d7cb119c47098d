package vehicle

import (
	"encoding/json"
	"errors"
	"time"

	vehicleDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/vehicle"
)

const (
	ModelVehicle = "Vehicle"

	DateLayout    = "2006-01-02"
	MaxUploadSize = 5 * 1024 * 1024
)

var ErrNotFound = errors.New("vehicle not found")

// DocumentKind names one of the six regulatory document groups.
type DocumentKind string

const (
	KindRC        DocumentKind = "rc"
	KindInsurance DocumentKind = "insurance"
	KindTax       DocumentKind = "tax"
	KindPermit    DocumentKind = "permit"
	KindFitness   DocumentKind = "fitness"
	KindPUC       DocumentKind = "puc"
)

var documentKinds = []DocumentKind{KindRC, KindInsurance, KindTax, KindPermit, KindFitness, KindPUC}

func DocumentKinds() []DocumentKind {
	return append([]DocumentKind(nil), documentKinds...)
}

func (k DocumentKind) Valid() bool {
	for _, kind := range documentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ExpiryRequired reports whether the group needs an expiry date on create.
// The RC never carried one.
func (k DocumentKind) ExpiryRequired() bool {
	return k != KindRC
}

func (k DocumentKind) NumberField() string { return string(k) + "_document_number" }
func (k DocumentKind) ExpiryField() string { return string(k) + "_expiry_date" }
func (k DocumentKind) FileField() string   { return string(k) + "_file" }

// Date is a calendar date, held at UTC midnight.
type Date struct {
	time.Time
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf is the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Date())
}

func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

type Document struct {
	Number     string
	ExpiryDate *Date
	File       string
}

type Vehicle struct {
	ID                 int64
	RegistrationNumber string
	EngineNumber       string
	ChassisNumber      string
	Documents          map[DocumentKind]Document
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (v *Vehicle) Document(kind DocumentKind) Document {
	return v.Documents[kind]
}

func (v *Vehicle) SetDocument(kind DocumentKind, doc Document) {
	if v.Documents == nil {
		v.Documents = make(map[DocumentKind]Document, len(documentKinds))
	}
	v.Documents[kind] = doc
}

// MarshalJSON flattens the document groups into
// {kind}_document_number, {kind}_expiry_date and {kind}_file.
func (v *Vehicle) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"id":                  v.ID,
		"registration_number": v.RegistrationNumber,
		"engine_number":       v.EngineNumber,
		"chassis_number":      v.ChassisNumber,
		"created_at":          v.CreatedAt,
		"updated_at":          v.UpdatedAt,
	}
	for _, kind := range documentKinds {
		doc := v.Documents[kind]
		out[kind.NumberField()] = doc.Number
		out[kind.ExpiryField()] = doc.ExpiryDate
		out[kind.FileField()] = doc.File
	}
	return json.Marshal(out)
}

type documentColumns struct {
	number *string
	expiry **time.Time
	file   *string
}

func columnsOf(row *vehicleDatamodel.Vehicle, kind DocumentKind) documentColumns {
	switch kind {
	case KindRC:
		return documentColumns{&row.RCDocumentNumber, &row.RCExpiryDate, &row.RCFile}
	case KindInsurance:
		return documentColumns{&row.InsuranceDocumentNumber, &row.InsuranceExpiryDate, &row.InsuranceFile}
	case KindTax:
		return documentColumns{&row.TaxDocumentNumber, &row.TaxExpiryDate, &row.TaxFile}
	case KindPermit:
		return documentColumns{&row.PermitDocumentNumber, &row.PermitExpiryDate, &row.PermitFile}
	case KindFitness:
		return documentColumns{&row.FitnessDocumentNumber, &row.FitnessExpiryDate, &row.FitnessFile}
	default:
		return documentColumns{&row.PUCDocumentNumber, &row.PUCExpiryDate, &row.PUCFile}
	}
}

func ToDataModel(v *Vehicle) *vehicleDatamodel.Vehicle {
	row := &vehicleDatamodel.Vehicle{
		ID:                 v.ID,
		RegistrationNumber: v.RegistrationNumber,
		EngineNumber:       v.EngineNumber,
		ChassisNumber:      v.ChassisNumber,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
	for _, kind := range documentKinds {
		doc := v.Documents[kind]
		cols := columnsOf(row, kind)
		*cols.number = doc.Number
		*cols.file = doc.File
		if doc.ExpiryDate != nil {
			t := doc.ExpiryDate.Time
			*cols.expiry = &t
		}
	}
	return row
}

func FromDataModel(row *vehicleDatamodel.Vehicle) *Vehicle {
	v := &Vehicle{
		ID:                 row.ID,
		RegistrationNumber: row.RegistrationNumber,
		EngineNumber:       row.EngineNumber,
		ChassisNumber:      row.ChassisNumber,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
	for _, kind := range documentKinds {
		cols := columnsOf(row, kind)
		doc := Document{Number: *cols.number, File: *cols.file}
		if *cols.expiry != nil {
			d := DateOf(**cols.expiry)
			doc.ExpiryDate = &d
		}
		v.SetDocument(kind, doc)
	}
	return v
}
