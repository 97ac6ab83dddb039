package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridianbooks/meridian/internal/platform/httpx"
)

// Handler serves the read-only ledger projections.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/aging/{accountID}", h.aging)
	r.Get("/unreconciled/{accountID}", h.unreconciled)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "as_of must be YYYY-MM-DD")
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewTrialBalanceView(tb))
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	asOf, err := asOfQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "as_of must be YYYY-MM-DD")
		return
	}
	aging, err := h.service.Aging(r.Context(), accountID, asOf)
	if err != nil {
		h.logger.Error("aging report", slog.Any("error", err), slog.Int64("account_id", accountID))
		httpx.RespondError(w, err)
		return
	}
	buckets := make([]map[string]string, 0, len(aging.Buckets))
	for _, b := range aging.Buckets {
		buckets = append(buckets, map[string]string{
			"label":  b.Label,
			"amount": FormatAmount(b.Amount),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"account_id": aging.AccountID,
		"as_of":      aging.AsOf.Format("2006-01-02"),
		"buckets":    buckets,
		"total":      FormatAmount(aging.Total),
	})
}

func (h *Handler) unreconciled(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	u, err := h.service.Unreconciled(r.Context(), accountID)
	if err != nil {
		h.logger.Error("unreconciled report", slog.Any("error", err), slog.Int64("account_id", accountID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewUnreconciledView(u))
}

func accountParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return 0, false
	}
	return id, true
}

func asOfQuery(r *http.Request) (time.Time, error) {
	value := r.URL.Query().Get("as_of")
	if value == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", value)
}
