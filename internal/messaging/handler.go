package messaging

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wolfman30/dentalcrm/internal/http/respond"
	"github.com/wolfman30/dentalcrm/internal/operator"
	"github.com/wolfman30/dentalcrm/internal/templates"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

const (
	defaultLogPage = 50
	maxLogPage     = 200
)

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

// LogPage is one page of the send log.
type LogPage struct {
	Items   []*Log `json:"items"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"hasMore"`
}

// Send handles POST /api/messages/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, respond.CodeValidation, "invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.Send(r.Context(), req, operator.Actor(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// ListLogs handles GET /api/messages/logs
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := LogFilter{PatientID: q.Get("patientId"), Limit: defaultLogPage}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, "limit", "limit must be a positive integer")
			return
		}
		if n > maxLogPage {
			n = maxLogPage
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, "offset", "offset must be zero or more")
			return
		}
		f.Offset = n
	}
	items, total, err := h.svc.Logs(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, LogPage{
		Items:   items,
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
		HasMore: f.Offset+len(items) < total,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	var tverr *templates.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, verr.Field, verr.Reason)
	case errors.As(err, &tverr):
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, tverr.Field, tverr.Reason)
	case errors.Is(err, templates.ErrTemplateNotFound), errors.Is(err, templates.ErrUnknownPatient):
		respond.Error(w, http.StatusNotFound, respond.CodeNotFound, err.Error())
	case errors.Is(err, ErrSendFailed):
		respond.Error(w, http.StatusBadGateway, respond.CodeSendFailed, err.Error())
	default:
		h.logger.Error("messaging request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "internal server error")
	}
}
