package templates

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dentalcrm/internal/http/respond"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// Handler serves the template and category endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListTemplates handles GET /api/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.ListTemplates(r.Context(), TemplateFilter{
		CategoryID:  strings.TrimSpace(q.Get("categoryId")),
		MessageType: MessageType(strings.ToUpper(q.Get("messageType"))),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in TemplateInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.CreateTemplate(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, t)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var in TemplateInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteTemplate(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"id": id})
}

// PreviewTemplate handles POST /api/templates/{id}/preview
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.Preview(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, verr.Field, verr.Reason)
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrCategoryNotFound), errors.Is(err, ErrUnknownPatient):
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, err.Error())
	case errors.Is(err, ErrDefaultCategory):
		respond.Error(w, http.StatusConflict, respond.CodeConflict, err.Error())
	case errors.Is(err, ErrDuplicateCategory):
		respond.FieldError(w, http.StatusConflict, respond.CodeConflict, "name", err.Error())
	default:
		h.logger.Error("templates request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "invalid request body: "+err.Error())
		return false
	}
	return true
}
