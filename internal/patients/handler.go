package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dentalcrm/internal/http/respond"
	"github.com/wolfman30/dentalcrm/internal/operator"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler serves the patient and callback endpoints.
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

// ListResponse is one page of patients.
type ListResponse struct {
	Items   []*Patient `json:"items"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
	HasMore bool       `json:"hasMore"`
}

// ListPatients handles GET /api/patients
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Phase:  Phase(q.Get("phase")),
		Status: Status(q.Get("status")),
		Query:  q.Get("q"),
		Limit:  defaultPageSize,
	}
	if filter.Phase != "" && !filter.Phase.Valid() {
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, "phase", "unknown phase")
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, "status", "unknown status")
		return
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= maxPageSize {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	var ok bool
	if filter.From, ok = dateParam(w, r, "from"); !ok {
		return
	}
	if filter.To, ok = dateParam(w, r, "to"); !ok {
		return
	}

	items, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, ListResponse{
		Items:   items,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: filter.Offset+len(items) < total,
	})
}

// CreatePatient handles POST /api/patients
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.Create(r.Context(), req, operator.Actor(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, p)
}

// GetPatient handles GET /api/patients/{id}
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

// UpdatePatient handles PUT /api/patients/{id}
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req, operator.Actor(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

// DeletePatient handles DELETE /api/patients/{id}
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id, operator.Actor(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"id": id})
}

type callbackRequest struct {
	Type CallbackType `json:"type"`
	CallbackRecord
}

// AddCallback handles POST /api/patients/{id}/callback
func (h *Handler) AddCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if !decode(w, r, &req) {
		return
	}
	rec := req.CallbackRecord
	h.apply(w, r, Command{Action: ActionAddCallback, CallbackType: req.Type, Callback: &rec})
}

// UpdateStatus handles PUT /api/patients/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	if !decode(w, r, &cmd) {
		return
	}
	if !cmd.Action.IsStatusAction() {
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, "action", "unsupported status action")
		return
	}
	h.apply(w, r, cmd)
}

// UpdateConsultation handles PUT /api/patients/{id}/consultation
func (h *Handler) UpdateConsultation(w http.ResponseWriter, r *http.Request) {
	var upd ConsultationUpdate
	if !decode(w, r, &upd) {
		return
	}
	h.apply(w, r, Command{Action: ActionUpdateConsultation, Consultation: &upd})
}

// ConfirmTeeth handles PUT /api/patients/{id}/teeth
func (h *Handler) ConfirmTeeth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Teeth []int `json:"teeth"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, Command{Action: ActionConfirmTeeth, Teeth: req.Teeth})
}

// UpdatePostVisitStatus handles PUT /api/patients/{id}/post-visit-status
func (h *Handler) UpdatePostVisitStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostVisitStatusInfo
		Note string `json:"note"`
	}
	if !decode(w, r, &req) {
		return
	}
	info := req.PostVisitStatusInfo
	h.apply(w, r, Command{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &info, Note: req.Note})
}

// UpdatePostVisitConsultation handles PUT /api/patients/{id}/post-visit-consultation
func (h *Handler) UpdatePostVisitConsultation(w http.ResponseWriter, r *http.Request) {
	var pvc PostVisitConsultation
	if !decode(w, r, &pvc) {
		return
	}
	h.apply(w, r, Command{Action: ActionUpdatePostVisitConsultation, PostVisitConsultation: &pvc})
}

// DueCallbacks handles GET /api/callbacks/due
func (h *Handler) DueCallbacks(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	due, err := h.svc.DueCallbacks(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, due)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, cmd Command) {
	cmd.Actor = operator.Actor(r.Context())
	p, err := h.svc.Apply(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	var terr *TransitionError
	switch {
	case errors.As(err, &verr):
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, verr.Field, verr.Reason)
	case errors.As(err, &terr):
		respond.Error(w, http.StatusConflict, respond.CodeTransition, terr.Error())
	case errors.Is(err, ErrPatientNotFound):
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, err.Error())
	case errors.Is(err, ErrDuplicatePhone):
		respond.FieldError(w, http.StatusConflict, respond.CodeConflict, "phone", err.Error())
	default:
		h.logger.Error("patients request failed", "error", err)
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

func dateParam(w http.ResponseWriter, r *http.Request, name string) (*Date, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	d, err := ParseDate(raw)
	if err != nil {
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, name, "date must be YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}
