package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
)

type Repository interface {
	FindCredentials(ctx context.Context, login string) (*Credentials, error)
	LoadPrincipal(ctx context.Context, userID int64) (*Principal, error)
}

type passwordChecker interface {
	CheckPassword(hash, password string) bool
}

// Service is the main auth service with dependencies
type Service struct {
	repo           Repository
	tokenGenerator TokenGenerator
	passwords      passwordChecker
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(repo Repository, tokenGen TokenGenerator, passwords passwordChecker, logger *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		passwords:      passwords,
		logger:         logger,
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.repo.FindCredentials(ctx, dto.Login())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthTokens{}, apperrors.ErrInvalidCredentials
		}
		return AuthTokens{}, apperrors.NewInternalError("failed to load credentials", err)
	}

	if !s.passwords.CheckPassword(creds.PasswordHash, dto.Password) {
		s.logger.WarnContext(ctx, "login rejected: wrong password", "user_id", creds.UserID)
		return AuthTokens{}, apperrors.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return AuthTokens{}, apperrors.ErrInvalidCredentials
	}

	return s.issue(strconv.FormatInt(creds.UserID, 10), creds.Username)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, dto RefreshTokenDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	claims, err := s.tokenGenerator.ValidateToken(dto.RefreshToken, TokenTypeRefresh)
	if err != nil {
		return AuthTokens{}, tokenError(err)
	}

	p, err := s.principalFor(ctx, claims)
	if err != nil {
		return AuthTokens{}, err
	}

	return s.issue(claims.UserID, p.Username)
}

// Authorize validates an access token and loads the caller it belongs to.
func (s *Service) Authorize(ctx context.Context, accessToken string) (Principal, error) {
	if accessToken == "" {
		return Principal{}, apperrors.ErrMissingToken
	}

	claims, err := s.tokenGenerator.ValidateToken(accessToken, TokenTypeAccess)
	if err != nil {
		return Principal{}, tokenError(err)
	}

	p, err := s.principalFor(ctx, claims)
	if err != nil {
		return Principal{}, err
	}
	return *p, nil
}

func (s *Service) principalFor(ctx context.Context, claims *Claims) (*Principal, error) {
	uid, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	p, err := s.repo.LoadPrincipal(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrUserInactive
		}
		return nil, apperrors.NewInternalError("failed to load principal", err)
	}
	return p, nil
}

func (s *Service) issue(userID, username string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, username)
	if err != nil {
		return AuthTokens{}, apperrors.NewInternalError("failed to issue token", err)
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, username)
	if err != nil {
		return AuthTokens{}, apperrors.NewInternalError("failed to issue token", err)
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func tokenError(err error) error {
	if errors.Is(err, ErrTokenExpired) {
		return apperrors.ErrTokenExpired
	}
	return apperrors.ErrInvalidToken
}
