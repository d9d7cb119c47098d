package vehicle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/common/validation"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/storage"
)

// Identifier is one of the unique vehicle numbers.
type Identifier string

const (
	IdentifierRegistration Identifier = "registration_number"
	IdentifierEngine       Identifier = "engine_number"
	IdentifierChassis      Identifier = "chassis_number"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Vehicle, error)
	List(ctx context.Context, filter ListFilter) ([]*Vehicle, int64, error)
	Taken(ctx context.Context, field Identifier, value string, excludeID int64) (bool, error)
	Create(ctx context.Context, v *Vehicle) error
	Update(ctx context.Context, v *Vehicle) error
	SoftDelete(ctx context.Context, id int64) error
}

type Tx struct {
	Vehicles Repository
	Audit    audit.Recorder
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type Service struct {
	repo     Repository
	uow      UnitOfWork
	files    storage.Storage
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone whose calendar decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewService(repo Repository, uow UnitOfWork, files storage.Storage, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		uow:      uow,
		files:    files,
		now:      time.Now,
		location: time.Local,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() Date {
	return DateOf(s.now().In(s.location))
}

func (s *Service) Create(ctx context.Context, p auth.Principal, in VehicleInput) (*Vehicle, error) {
	in.Normalize()
	v := in.validator(false, s.today())
	if err := s.checkUnique(ctx, v, in, 0); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	veh := &Vehicle{
		RegistrationNumber: *in.RegistrationNumber,
		EngineNumber:       *in.EngineNumber,
		ChassisNumber:      *in.ChassisNumber,
	}
	uploads := s.apply(veh, in)

	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Vehicles.Create(ctx, veh); err != nil {
			return err
		}
		if err := s.store(ctx, uploads); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionCreate, audit.TargetOf(ModelVehicle, veh.ID))
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create vehicle", "error", err, "registration_number", veh.RegistrationNumber)
		return nil, apperrors.NewInternalError("failed to create vehicle", err)
	}

	s.logger.InfoContext(ctx, "vehicle created", "vehicle_id", veh.ID, "registration_number", veh.RegistrationNumber)
	return veh, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Vehicle, error) {
	veh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrVehicleNotFound
		}
		return nil, apperrors.NewInternalError("failed to get vehicle", err)
	}
	return veh, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	filter.Normalize()
	vehicles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list vehicles", "error", err)
		return nil, apperrors.NewInternalError("failed to list vehicles", err)
	}
	return &ListResponse{Count: total, Results: vehicles}, nil
}

// Update changes only the supplied fields; replaced files are stored again.
func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, in VehicleInput) (*Vehicle, error) {
	veh, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in.Normalize()
	v := in.validator(true, s.today())
	if err := s.checkUnique(ctx, v, in, id); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if in.RegistrationNumber != nil {
		veh.RegistrationNumber = *in.RegistrationNumber
	}
	if in.EngineNumber != nil {
		veh.EngineNumber = *in.EngineNumber
	}
	if in.ChassisNumber != nil {
		veh.ChassisNumber = *in.ChassisNumber
	}
	uploads := s.apply(veh, in)

	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Vehicles.Update(ctx, veh); err != nil {
			return err
		}
		if err := s.store(ctx, uploads); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionUpdate, audit.TargetOf(ModelVehicle, veh.ID))
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrVehicleNotFound
		}
		s.logger.ErrorContext(ctx, "failed to update vehicle", "error", err, "vehicle_id", id)
		return nil, apperrors.NewInternalError("failed to update vehicle", err)
	}

	s.logger.InfoContext(ctx, "vehicle updated", "vehicle_id", id, "files_replaced", len(uploads))
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if !p.Can(auth.CapabilityDeleteRecords) {
		s.logger.WarnContext(ctx, "vehicle delete denied", "user_id", p.UserID, "vehicle_id", id)
		return apperrors.ErrPermissionDenied
	}

	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Vehicles.SoftDelete(ctx, id); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionDelete, audit.TargetOf(ModelVehicle, id))
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.ErrVehicleNotFound
		}
		s.logger.ErrorContext(ctx, "failed to delete vehicle", "error", err, "vehicle_id", id)
		return apperrors.NewInternalError("failed to delete vehicle", err)
	}

	s.logger.InfoContext(ctx, "vehicle deleted", "vehicle_id", id)
	return nil
}

// OpenDocument streams a stored document back. The caller closes Body.
func (s *Service) OpenDocument(ctx context.Context, id int64, kind DocumentKind) (*DocumentFile, error) {
	if !kind.Valid() {
		return nil, apperrors.ErrDocumentNotFound
	}
	veh, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	key := veh.Document(kind).File
	if key == "" {
		return nil, apperrors.ErrDocumentNotFound
	}

	body, err := s.files.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "stored document missing", "vehicle_id", id, "kind", kind, "key", key)
			return nil, apperrors.ErrDocumentNotFound
		}
		return nil, apperrors.NewInternalError("failed to open document", err)
	}
	return &DocumentFile{
		Name:        path.Base(key),
		ContentType: storage.ContentType(key),
		Body:        body,
	}, nil
}

func (s *Service) checkUnique(ctx context.Context, v *validation.ValidationBuilder, in VehicleInput, excludeID int64) error {
	checks := []struct {
		field Identifier
		value *string
		label string
	}{
		{IdentifierRegistration, in.RegistrationNumber, "registration number"},
		{IdentifierEngine, in.EngineNumber, "engine number"},
		{IdentifierChassis, in.ChassisNumber, "chassis number"},
	}
	for _, c := range checks {
		if c.value == nil || *c.value == "" {
			continue
		}
		taken, err := s.repo.Taken(ctx, c.field, *c.value, excludeID)
		if err != nil {
			return apperrors.NewInternalError("failed to check "+c.label, err)
		}
		if taken {
			v.Add(string(c.field), fmt.Sprintf("vehicle with this %s already exists.", c.label), apperrors.ErrCodeDuplicate)
		}
	}
	return nil
}

type pendingUpload struct {
	key    string
	upload *Upload
}

// apply copies validated document fields onto veh and returns the files to
// store, keyed under the vehicle's current registration number.
func (s *Service) apply(veh *Vehicle, in VehicleInput) []pendingUpload {
	var uploads []pendingUpload
	for _, kind := range documentKinds {
		doc := veh.Document(kind)
		supplied := in.Documents[kind]
		if supplied.Number != nil {
			doc.Number = *supplied.Number
		}
		if supplied.ExpiryDate != nil {
			doc.ExpiryDate = nil
			if d, err := ParseDate(*supplied.ExpiryDate); err == nil {
				doc.ExpiryDate = &d
			}
		}
		if supplied.File != nil {
			doc.File = storage.DocumentKey(veh.RegistrationNumber, string(kind), supplied.File.Ext())
			uploads = append(uploads, pendingUpload{key: doc.File, upload: supplied.File})
		}
		veh.SetDocument(kind, doc)
	}
	return uploads
}

func (s *Service) store(ctx context.Context, uploads []pendingUpload) error {
	for _, u := range uploads {
		if err := s.files.Save(ctx, u.key, u.upload.Content, u.upload.Size); err != nil {
			return fmt.Errorf("store %s: %w", u.key, err)
		}
	}
	return nil
}
