package audit

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("audit log not found")

type RepositoryAPI interface {
	Writer
	List(ctx context.Context, filter ListFilter) ([]*Log, int64, error)
	GetByID(ctx context.Context, id int64) (*Log, error)
}

// Service is the read side of the audit trail.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list audit logs", "error", err)
		return nil, apperrors.NewInternalError("failed to list audit logs", err)
	}

	return &ListResponse{Count: total, Results: logs}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Log, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrAuditLogNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get audit log", "error", err, "audit_log_id", id)
		return nil, apperrors.NewInternalError("failed to get audit log", err)
	}
	return l, nil
}
