package auth

import (
	"log/slog"
	"net/http"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport"
)

// RBACAuthorization gates routes on capabilities of the request principal.
type RBACAuthorization struct {
	base   *transport.BaseHandler
	logger *slog.Logger
}

func NewRBACAuthorization(base *transport.BaseHandler) *RBACAuthorization {
	return &RBACAuthorization{
		base:   base,
		logger: base.Logger,
	}
}

// RequireCapability passes the request on only when the principal holds c.
func (ra *RBACAuthorization) RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				ra.logger.WarnContext(r.Context(), "authorization check failed: principal not found in context")
				ra.base.HandleServiceError(w, r, apperrors.ErrMissingToken)
				return
			}

			if !p.Can(c) {
				ra.logger.WarnContext(r.Context(), "access denied: missing capability",
					"user_id", p.UserID,
					"required_capability", c,
					"capabilities", p.Capabilities)
				ra.base.HandleServiceError(w, r, apperrors.ErrPermissionDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
