package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/pkg/logger"
)

const maxJSONBody = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteDetail writes the {"detail": "..."} acknowledgement body.
func (h *BaseHandler) WriteDetail(w http.ResponseWriter, status int, detail string) {
	h.WriteJSON(w, status, map[string]string{"detail": detail})
}

// WriteError writes an error response without a service error behind it.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	appErr := &apperrors.AppError{
		Type:       errorTypeForStatus(status),
		Code:       apperrors.ErrorCode(strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))),
		Message:    message,
		StatusCode: status,
	}
	h.writeAppError(w, appErr)
}

// HandleServiceError maps a service error onto the HTTP error envelope.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		appErr = apperrors.NewInternalError("internal server error", err)
	}

	lg := logger.From(r.Context())
	if appErr.StatusCode >= http.StatusInternalServerError {
		lg.Error("request failed", "error", err, "path", r.URL.Path)
	} else {
		lg.Warn("request rejected", "error", appErr.GetDetailedMessage(), "code", appErr.Code, "path", r.URL.Path)
	}

	h.writeAppError(w, appErr)
}

func (h *BaseHandler) writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	status, body := appErr.ToHTTPResponse()
	if status >= http.StatusInternalServerError {
		body = apperrors.Response{Error: &apperrors.AppError{
			Type:    appErr.Type,
			Code:    appErr.Code,
			Message: appErr.Message,
		}}
	}
	h.WriteJSON(w, status, body)
}

// DecodeJSON decodes a bounded JSON body into dst.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is empty", apperrors.ErrCodeValidationFailed)
		}
		return apperrors.NewValidationError("invalid request body", apperrors.ErrCodeInvalidFormat).WithCause(err)
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be omitted.
func (h *BaseHandler) DecodeOptionalJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("invalid request body", apperrors.ErrCodeInvalidFormat).WithCause(err)
	}
	return nil
}

// ParseIDParam reads a positive integer URL parameter.
func (h *BaseHandler) ParseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationFieldError(name, "must be a positive integer", apperrors.ErrCodeInvalidFormat)
	}
	return id, nil
}

// ParsePagination reads limit/offset query parameters, leaving zeros for defaults.
func (h *BaseHandler) ParsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}

	return strings.TrimSpace(authHeader[7:])
}

func errorTypeForStatus(status int) apperrors.ErrorType {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return apperrors.ErrorTypeValidation
	case http.StatusUnauthorized:
		return apperrors.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return apperrors.ErrorTypeForbidden
	case http.StatusNotFound:
		return apperrors.ErrorTypeNotFound
	case http.StatusConflict:
		return apperrors.ErrorTypeConflict
	}
	return apperrors.ErrorTypeInternal
}
