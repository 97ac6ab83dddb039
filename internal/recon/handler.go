package recon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/platform/httpx"
)

// AutoMatchEnqueuer defers an auto-match pass to the background worker.
type AutoMatchEnqueuer interface {
	Enqueue(ctx context.Context, reconID int64, actor string) error
}

// Handler exposes bank reconciliation over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	enqueuer  AutoMatchEnqueuer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// WithEnqueuer enables async auto-matching via the job queue.
func (h *Handler) WithEnqueuer(enqueuer AutoMatchEnqueuer) {
	h.enqueuer = enqueuer
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.start)
	r.Get("/{id}", h.get)
	r.Get("/{id}/lines", h.lines)
	r.Post("/{id}/lines", h.importLines)
	r.Post("/{id}/auto-match", h.autoMatch)
	r.Post("/{id}/match", h.matchManually)
	r.Post("/{id}/exclude", h.excludeLine)
	r.Post("/{id}/adjustments", h.postAdjustment)
	r.Post("/{id}/reconcile", h.markReconciled)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/rollback", h.rollback)
}

// respondError handles the state-machine sentinel before deferring to
// the shared taxonomy.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrState) {
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

type reconResponse struct {
	ID               int64   `json:"id"`
	AccountID        int64   `json:"account_id"`
	StatementStart   string  `json:"statement_start"`
	StatementEnd     string  `json:"statement_end"`
	StatementBalance string  `json:"statement_balance"`
	BookBalance      string  `json:"book_balance"`
	ClearedBalance   string  `json:"cleared_balance"`
	Difference       string  `json:"difference"`
	Status           string  `json:"status"`
	RollbackReason   *string `json:"rollback_reason,omitempty"`
}

func toReconResponse(rec Reconciliation) reconResponse {
	return reconResponse{
		ID:               rec.ID,
		AccountID:        rec.AccountID,
		StatementStart:   rec.StatementStart.Format("2006-01-02"),
		StatementEnd:     rec.StatementEnd.Format("2006-01-02"),
		StatementBalance: rec.StatementBalance.String(),
		BookBalance:      rec.BookBalance.String(),
		ClearedBalance:   rec.ClearedBalance.String(),
		Difference:       rec.Difference.String(),
		Status:           string(rec.Status),
		RollbackReason:   rec.RollbackReason,
	}
}

type startRequest struct {
	AccountID        int64  `json:"account_id" validate:"required,gt=0"`
	StatementStart   string `json:"statement_start" validate:"required"`
	StatementEnd     string `json:"statement_end" validate:"required"`
	StatementBalance string `json:"statement_balance" validate:"required"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	start, err1 := time.Parse("2006-01-02", req.StatementStart)
	end, err2 := time.Parse("2006-01-02", req.StatementEnd)
	balance, err3 := decimal.NewFromString(req.StatementBalance)
	if err1 != nil || err2 != nil || err3 != nil || end.Before(start) {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid statement window or balance")
		return
	}
	rec, err := h.service.Start(r.Context(), CreateInput{
		AccountID:        req.AccountID,
		StatementStart:   start,
		StatementEnd:     end,
		StatementBalance: balance,
		CreatedBy:        httpx.Actor(r),
	})
	if err != nil {
		h.logger.Error("start reconciliation", slog.Any("error", err), slog.Int64("account_id", req.AccountID))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReconResponse(rec))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconResponse(rec))
}

type lineResponse struct {
	ID             int64  `json:"id"`
	LineDate       string `json:"line_date"`
	Amount         string `json:"amount"`
	Description    string `json:"description,omitempty"`
	MatchStatus    string `json:"match_status"`
	MatchedEntryID *int64 `json:"matched_entry_id,omitempty"`
}

func (h *Handler) lines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	lines, err := h.service.Lines(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]lineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, lineResponse{
			ID:             line.ID,
			LineDate:       line.LineDate.Format("2006-01-02"),
			Amount:         line.Amount.String(),
			Description:    line.Description,
			MatchStatus:    string(line.MatchStatus),
			MatchedEntryID: line.MatchedEntryID,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type importLineRequest struct {
	LineDate    string `json:"line_date" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description"`
}

type importLinesRequest struct {
	Lines []importLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) importLines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req importLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for i, in := range req.Lines {
		date, err1 := time.Parse("2006-01-02", in.LineDate)
		amount, err2 := decimal.NewFromString(in.Amount)
		if err1 != nil || err2 != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed",
				"line "+strconv.Itoa(i)+": invalid date or amount")
			return
		}
		lines = append(lines, LineInput{LineDate: date, Amount: amount, Description: in.Description})
	}
	count, err := h.service.ImportLines(r.Context(), id, lines, httpx.Actor(r))
	if err != nil {
		h.logger.Error("import statement lines", slog.Any("error", err), slog.Int64("recon_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int{"imported": count})
}

func (h *Handler) autoMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("async") == "1" && h.enqueuer != nil {
		if err := h.enqueuer.Enqueue(r.Context(), id, httpx.Actor(r)); err != nil {
			h.logger.Error("enqueue auto match", slog.Any("error", err), slog.Int64("recon_id", id))
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	matched, err := h.service.AutoMatch(r.Context(), id, httpx.Actor(r))
	if err != nil {
		h.logger.Error("auto match", slog.Any("error", err), slog.Int64("recon_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"matched": matched})
}

type matchRequest struct {
	LineID  int64 `json:"line_id" validate:"required,gt=0"`
	EntryID int64 `json:"entry_id" validate:"required,gt=0"`
}

func (h *Handler) matchManually(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req matchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	if err := h.service.MatchManually(r.Context(), id, req.LineID, req.EntryID, httpx.Actor(r)); err != nil {
		h.logger.Error("manual match", slog.Any("error", err), slog.Int64("recon_id", id))
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type excludeRequest struct {
	LineID int64 `json:"line_id" validate:"required,gt=0"`
}

func (h *Handler) excludeLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req excludeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ExcludeLine(r.Context(), id, req.LineID, httpx.Actor(r)); err != nil {
		h.logger.Error("exclude line", slog.Any("error", err), slog.Int64("recon_id", id))
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustmentRequest struct {
	Amount          string `json:"amount" validate:"required"`
	DebitAccountID  int64  `json:"debit_account_id" validate:"required,gt=0"`
	CreditAccountID int64  `json:"credit_account_id" validate:"required,gt=0"`
	Memo            string `json:"memo"`
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid amount")
		return
	}
	adjustment, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		ReconciliationID: id,
		Amount:           amount,
		DebitAccountID:   req.DebitAccountID,
		CreditAccountID:  req.CreditAccountID,
		Memo:             req.Memo,
		Actor:            httpx.Actor(r),
	})
	if err != nil {
		h.logger.Error("post adjustment", slog.Any("error", err), slog.Int64("recon_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":           adjustment.ID,
		"entry_number": adjustment.EntryNumber,
		"amount":       adjustment.Amount.String(),
	})
}

func (h *Handler) markReconciled(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark reconciled", h.service.MarkReconciled)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete reconciliation", h.service.Complete)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel reconciliation", h.service.Cancel)
}

type rollbackRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req rollbackRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	rec, err := h.service.Rollback(r.Context(), id, httpx.Actor(r), req.Reason)
	if err != nil {
		h.logger.Error("rollback reconciliation", slog.Any("error", err), slog.Int64("recon_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconResponse(rec))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, label string,
	fn func(ctx context.Context, reconID int64, actor string) (Reconciliation, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := fn(r.Context(), id, httpx.Actor(r))
	if err != nil {
		h.logger.Error(label, slog.Any("error", err), slog.Int64("recon_id", id))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconResponse(rec))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid reconciliation id")
		return 0, false
	}
	return id, true
}
