package posting

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/platform/httpx"
)

// Handler exposes the posting entry points producer subsystems call.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices/{id}/post", h.postDocument("invoice", h.service.PostInvoice))
	r.Post("/payments/{id}/post", h.postDocument("payment", h.service.PostPayment))
	r.Post("/payroll-runs/{id}/post", h.postDocument("payroll run", h.service.PostPayrollRun))
	r.Post("/deposit-releases/{id}/post", h.postDocument("deposit release", h.service.PostDepositRelease))
	r.Post("/invoices/{id}/reverse", h.reverseInvoice)
	r.Post("/entries/{entryNumber}/void", h.voidEntry)
	r.Get("/entries/by-source/{kind}/{id}", h.entriesBySource)
}

type postResponse struct {
	EntryNumber   int64   `json:"entry_number"`
	EntryIDs      []int64 `json:"entry_ids"`
	AlreadyPosted bool    `json:"already_posted"`
}

type voidResponse struct {
	EntryNumber    int64   `json:"entry_number"`
	ReversalNumber int64   `json:"reversal_number"`
	ReversalIDs    []int64 `json:"reversal_ids"`
}

// postDocument adapts one document-posting service method into a handler.
// Replays return 200 with already_posted set; fresh postings return 201.
func (h *Handler) postDocument(label string, post func(ctx context.Context, id uuid.UUID, actor string) (entries.PostResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
			return
		}
		result, err := post(r.Context(), id, httpx.Actor(r))
		if err != nil {
			h.logger.Error("post "+label, slog.Any("error", err), slog.String("id", id.String()))
			httpx.RespondError(w, err)
			return
		}
		status := http.StatusCreated
		if result.AlreadyPosted {
			status = http.StatusOK
		}
		httpx.JSON(w, status, postResponse{
			EntryNumber:   result.EntryNumber,
			EntryIDs:      result.EntryIDs,
			AlreadyPosted: result.AlreadyPosted,
		})
	}
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reverseInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	result, err := h.service.ReverseInvoicePosting(r.Context(), id, httpx.Actor(r), req.Reason)
	if err != nil {
		h.logger.Error("reverse invoice posting", slog.Any("error", err), slog.String("invoice_id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, voidResponse{
		EntryNumber:    result.EntryNumber,
		ReversalNumber: result.ReversalNumber,
		ReversalIDs:    result.ReversalIDs,
	})
}

func (h *Handler) voidEntry(w http.ResponseWriter, r *http.Request) {
	entryNumber, err := strconv.ParseInt(chi.URLParam(r, "entryNumber"), 10, 64)
	if err != nil || entryNumber <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry number")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	result, err := h.service.VoidEntry(r.Context(), entryNumber, httpx.Actor(r), req.Reason)
	if err != nil {
		h.logger.Error("void entry", slog.Any("error", err), slog.Int64("entry_number", entryNumber))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, voidResponse{
		EntryNumber:    result.EntryNumber,
		ReversalNumber: result.ReversalNumber,
		ReversalIDs:    result.ReversalIDs,
	})
}

type entryResponse struct {
	ID               int64  `json:"id"`
	EntryNumber      int64  `json:"entry_number"`
	AccountID        int64  `json:"account_id"`
	Date             string `json:"date"`
	PeriodCode       string `json:"period_code"`
	Debit            string `json:"debit"`
	Credit           string `json:"credit"`
	Memo             string `json:"memo,omitempty"`
	SourceKind       string `json:"source_kind"`
	SourceID         string `json:"source_id"`
	IsVoided         bool   `json:"is_voided"`
	ReversingEntryID *int64 `json:"reversing_entry_id,omitempty"`
	PostedBy         string `json:"posted_by"`
}

func (h *Handler) entriesBySource(w http.ResponseWriter, r *http.Request) {
	kind := entries.SourceKind(chi.URLParam(r, "kind"))
	if !kind.Known() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown source kind")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid source id")
		return
	}
	set, err := h.service.EntriesBySource(r.Context(), entries.SourceRef{Kind: kind, ID: id})
	if err != nil {
		h.logger.Error("entries by source", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(set))
	for _, e := range set {
		out = append(out, entryResponse{
			ID:               e.ID,
			EntryNumber:      e.EntryNumber,
			AccountID:        e.AccountID,
			Date:             e.Date.Format("2006-01-02"),
			PeriodCode:       e.PeriodCode,
			Debit:            e.Debit.String(),
			Credit:           e.Credit.String(),
			Memo:             e.Memo,
			SourceKind:       string(e.Source.Kind),
			SourceID:         e.Source.ID.String(),
			IsVoided:         e.IsVoided,
			ReversingEntryID: e.ReversingEntryID,
			PostedBy:         e.PostedBy,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
