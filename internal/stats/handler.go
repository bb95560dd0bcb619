package stats

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/dentalcrm/internal/http/respond"
	"github.com/wolfman30/dentalcrm/internal/operator"
	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// Handler provides HTTP endpoints for dashboard statistics.
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

// GetFunnel returns the conversion funnel.
// GET /api/stats/funnel
// Query params:
//   - from: YYYY-MM-DD call-in date lower bound (optional)
//   - to: YYYY-MM-DD call-in date upper bound (optional)
//
// With neither bound the current month is used.
func (h *Handler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	from, ok := dateQuery(w, r, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(w, r, "to")
	if !ok {
		return
	}
	report, err := h.svc.Funnel(r.Context(), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, report)
}

// GetTrend returns the trailing monthly trend.
// GET /api/stats/trend?months=6
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	months, ok := monthsQuery(w, r)
	if !ok {
		return
	}
	trend, err := h.svc.Trend(r.Context(), months)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, trend)
}

// GetCumulative returns all-time totals.
// GET /api/stats/cumulative
func (h *Handler) GetCumulative(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cumulative(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, c)
}

// ExportTrend streams the trend table as an xlsx download.
// GET /api/stats/trend/export?months=6
func (h *Handler) ExportTrend(w http.ResponseWriter, r *http.Request) {
	months, ok := monthsQuery(w, r)
	if !ok {
		return
	}
	exp, err := h.svc.ExportTrend(r.Context(), months, operator.Actor(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Body)))
	if exp.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", exp.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(exp.Body); err != nil {
		h.logger.Warn("failed to write trend export", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidRange) {
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, "from", "from must not be after to")
		return
	}
	h.logger.Error("stats request failed", "error", err)
	respond.Error(w, http.StatusInternalServerError, respond.CodeInternal, "internal server error")
}

func monthsQuery(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("months"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxTrendMonths {
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, "months", "months must be between 1 and "+strconv.Itoa(MaxTrendMonths))
		return 0, false
	}
	return n, true
}

func dateQuery(w http.ResponseWriter, r *http.Request, name string) (*patients.Date, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	d, err := patients.ParseDate(raw)
	if err != nil {
		respond.FieldError(w, http.StatusBadRequest, respond.CodeValidation, name, "date must be YYYY-MM-DD")
		return nil, false
	}
	return &d, true
}
