package periods

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridianbooks/meridian/internal/platform/httpx"
)

// Handler exposes the period lifecycle over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/open", h.openForPosting)
	r.Get("/{id}", h.get)
	r.Post("/{id}/begin-close", h.beginClose)
	r.Post("/{id}/complete-close", h.completeClose)
	r.Post("/{id}/reopen", h.reopen)
}

type periodResponse struct {
	ID         int64   `json:"id"`
	FiscalYear int     `json:"fiscal_year"`
	PeriodNo   int     `json:"period_no"`
	Code       string  `json:"code"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Status     string  `json:"status"`
	LockedBy   *string `json:"locked_by,omitempty"`
	LockReason *string `json:"lock_reason,omitempty"`
}

func toPeriodResponse(p Period) periodResponse {
	return periodResponse{
		ID:         p.ID,
		FiscalYear: p.FiscalYear,
		PeriodNo:   p.PeriodNo,
		Code:       p.Code,
		StartDate:  p.StartDate.Format("2006-01-02"),
		EndDate:    p.EndDate.Format("2006-01-02"),
		Status:     string(p.Status),
		LockedBy:   p.LockedBy,
		LockReason: p.LockReason,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]periodResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	period, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

// openForPosting lets producers pre-check that a posting date lands in
// an open period before they compose the entry.
func (h *Handler) openForPosting(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
		return
	}
	period, err := h.service.EnsureOpenForPosting(r.Context(), date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) beginClose(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	period, err := h.service.BeginClose(r.Context(), id, httpx.Actor(r))
	if err != nil {
		h.logger.Error("begin close", slog.Any("error", err), slog.Int64("period_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) completeClose(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	period, err := h.service.CompleteClose(r.Context(), id, httpx.Actor(r))
	if err != nil {
		h.logger.Error("complete close", slog.Any("error", err), slog.Int64("period_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

type reopenRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reopenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	period, err := h.service.Reopen(r.Context(), id, httpx.Actor(r), req.Reason)
	if err != nil {
		h.logger.Error("reopen period", slog.Any("error", err), slog.Int64("period_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return 0, false
	}
	return id, true
}
