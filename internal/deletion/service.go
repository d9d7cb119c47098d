package deletion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id int64) (*Request, error)
	List(ctx context.Context, filter ListFilter) ([]*Request, int64, error)
	// Review moves a pending request to status. It reports false when the
	// request was no longer pending.
	Review(ctx context.Context, id int64, status Status, reviewer *int64, at time.Time, note string) (bool, error)
}

type Tx struct {
	Requests Repository
	Audit    audit.Recorder
	// Targets holds a soft-delete handler for each module that has one.
	Targets map[Module]Target
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type MetricsRecorder interface {
	DeletionReviewed(decision, module string)
}

type Service struct {
	repo    Repository
	uow     UnitOfWork
	metrics MetricsRecorder
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(repo Repository, uow UnitOfWork, metrics MetricsRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		uow:     uow,
		metrics: metrics,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *Service) Create(ctx context.Context, p auth.Principal, dto CreateRequestDTO) (*Request, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	req := &Request{
		Module:      Module(dto.Module),
		ObjectID:    dto.ObjectID,
		Reason:      dto.Reason,
		RequestedBy: p.UserID,
		Status:      StatusPending,
	}

	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Requests.Create(ctx, req); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionCreate, audit.TargetOf(ModelDeletionRequest, req.ID))
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create deletion request", "error", err)
		return nil, apperrors.NewInternalError("failed to create deletion request", err)
	}

	s.logger.InfoContext(ctx, "deletion request created",
		"deletion_request_id", req.ID,
		"module", req.Module,
		"object_id", req.ObjectID)
	return req, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	reqs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list deletion requests", "error", err)
		return nil, apperrors.NewInternalError("failed to list deletion requests", err)
	}
	return &ListResponse{Count: total, Results: reqs}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrDeletionRequestNotFound
		}
		return nil, apperrors.NewInternalError("failed to get deletion request", err)
	}
	return req, nil
}

// Approve flips the request to approved and soft-deletes its target in the
// same transaction. A missing target rolls the approval back.
func (s *Service) Approve(ctx context.Context, p auth.Principal, id int64) (*Request, error) {
	if !p.Can(auth.CapabilityApproveDeletion) {
		s.logger.WarnContext(ctx, "deletion approval denied", "user_id", p.UserID, "deletion_request_id", id)
		return nil, apperrors.ErrPermissionDenied
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Module == ModuleUser {
		if objectID, ok := parseObjectID(req.ObjectID); ok && objectID == p.UserID {
			return nil, apperrors.NewValidationError("You cannot approve the deletion of your own account.", apperrors.ErrCodeValidationFailed)
		}
	}

	at := s.now()
	targetHandled := false
	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.Requests.Review(ctx, id, StatusApproved, p.ActorID(), at, "")
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrAlreadyReviewed
		}
		if err := tx.Audit.Record(ctx, p.ActorID(), audit.ActionApprove, audit.TargetOf(ModelDeletionRequest, id)); err != nil {
			return err
		}

		target, ok := tx.Targets[req.Module]
		if !ok {
			return nil
		}
		objectID, ok := parseObjectID(req.ObjectID)
		if !ok {
			return apperrors.ErrDeletionTargetNotFound
		}
		if err := target.SoftDelete(ctx, objectID); err != nil {
			if errors.Is(err, ErrTargetNotFound) {
				return apperrors.ErrDeletionTargetNotFound
			}
			return err
		}
		targetHandled = true
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionDelete, audit.TargetOf(req.Module.ModelName(), objectID))
	})
	if err != nil {
		return nil, s.reviewError(ctx, err, id)
	}

	if s.metrics != nil {
		s.metrics.DeletionReviewed(string(StatusApproved), string(req.Module))
	}
	s.logger.InfoContext(ctx, "deletion request approved",
		"deletion_request_id", id,
		"module", req.Module,
		"object_id", req.ObjectID,
		"target_handled", targetHandled)

	return s.Get(ctx, id)
}

func (s *Service) Reject(ctx context.Context, p auth.Principal, id int64, dto RejectDTO) (*Request, error) {
	if !p.Can(auth.CapabilityApproveDeletion) {
		s.logger.WarnContext(ctx, "deletion rejection denied", "user_id", p.UserID, "deletion_request_id", id)
		return nil, apperrors.ErrPermissionDenied
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.Requests.Review(ctx, id, StatusRejected, p.ActorID(), s.now(), dto.ReviewNote)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrAlreadyReviewed
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionReject, audit.TargetOf(ModelDeletionRequest, id))
	})
	if err != nil {
		return nil, s.reviewError(ctx, err, id)
	}

	if s.metrics != nil {
		s.metrics.DeletionReviewed(string(StatusRejected), string(req.Module))
	}
	s.logger.InfoContext(ctx, "deletion request rejected", "deletion_request_id", id, "module", req.Module)

	return s.Get(ctx, id)
}

func (s *Service) reviewError(ctx context.Context, err error, id int64) error {
	if appErr, ok := apperrors.IsAppError(err); ok {
		return appErr
	}
	s.logger.ErrorContext(ctx, "failed to review deletion request", "error", err, "deletion_request_id", id)
	return apperrors.NewInternalError("failed to review deletion request", err)
}
