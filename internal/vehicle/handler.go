package vehicle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport"
)

const multipartMemory = 8 << 20

type ServiceAPI interface {
	Create(ctx context.Context, p auth.Principal, in VehicleInput) (*Vehicle, error)
	Get(ctx context.Context, id int64) (*Vehicle, error)
	List(ctx context.Context, filter ListFilter) (*ListResponse, error)
	Update(ctx context.Context, p auth.Principal, id int64, in VehicleInput) (*Vehicle, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
	OpenDocument(ctx context.Context, id int64, kind DocumentKind) (*DocumentFile, error)
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI, maxUploadBytes int64) *Handler {
	return &Handler{
		BaseHandler:    base,
		Service:        svc,
		MaxUploadBytes: maxUploadBytes,
	}
}

// List handles GET /vehicles
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.ParsePagination(r)
	filter, err := ParseListFilter(r.URL.Query().Get, limit, offset)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	resp, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Create handles POST /vehicles
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, apperrors.ErrMissingToken)
		return
	}

	in, cleanup, err := h.parseForm(w, r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	defer cleanup()

	veh, err := h.Service.Create(r.Context(), p, in)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, veh)
}

// Get handles GET /vehicles/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	veh, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, veh)
}

// Update handles PUT and PATCH /vehicles/{id}; both are partial.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, apperrors.ErrMissingToken)
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	in, cleanup, err := h.parseForm(w, r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	defer cleanup()

	veh, err := h.Service.Update(r.Context(), p, id, in)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, veh)
}

// Delete handles DELETE /vehicles/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, apperrors.ErrMissingToken)
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.Delete(r.Context(), p, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Document handles GET /vehicles/{id}/documents/{kind}
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	doc, err := h.Service.OpenDocument(r.Context(), id, DocumentKind(chi.URLParam(r, "kind")))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	defer doc.Body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, doc.Body); err != nil {
		h.Logger.Warn("document stream interrupted", "error", err, "vehicle_id", id)
	}
}

// parseForm reads a multipart or urlencoded vehicle form. Only the fields
// present in the form are set on the input.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (VehicleInput, func(), error) {
	noop := func() {}
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}

	var values map[string][]string
	var files map[string][]*multipart.FileHeader
	err := r.ParseMultipartForm(multipartMemory)
	switch {
	case err == nil:
		values = r.MultipartForm.Value
		files = r.MultipartForm.File
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return VehicleInput{}, noop, apperrors.NewValidationError("invalid form body", apperrors.ErrCodeInvalidFormat).WithCause(err)
		}
		values = r.PostForm
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return VehicleInput{}, noop, apperrors.NewValidationError("request body too large", apperrors.ErrCodeFileTooLarge).WithCause(err)
		}
		return VehicleInput{}, noop, apperrors.NewValidationError("invalid multipart body", apperrors.ErrCodeInvalidFormat).WithCause(err)
	}

	value := func(name string) *string {
		if vs, ok := values[name]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}

	in := VehicleInput{
		RegistrationNumber: value("registration_number"),
		EngineNumber:       value("engine_number"),
		ChassisNumber:      value("chassis_number"),
		Documents:          make(map[DocumentKind]DocumentInput, len(documentKinds)),
	}

	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	for _, kind := range documentKinds {
		doc := DocumentInput{
			Number:     value(kind.NumberField()),
			ExpiryDate: value(kind.ExpiryField()),
		}
		if fhs := files[kind.FileField()]; len(fhs) > 0 {
			f, err := fhs[0].Open()
			if err != nil {
				cleanup()
				return VehicleInput{}, noop, apperrors.NewInternalError("failed to read upload", err)
			}
			opened = append(opened, f)
			doc.File = &Upload{Filename: fhs[0].Filename, Size: fhs[0].Size, Content: f}
		}
		in.Documents[kind] = doc
	}
	return in, cleanup, nil
}
