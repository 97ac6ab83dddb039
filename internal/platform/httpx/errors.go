// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrPeriodNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrPeriodLocked):
		Problem(w, http.StatusConflict, "Period Locked", err.Error())
	case errors.Is(err, shared.ErrAlreadyPosted), errors.Is(err, shared.ErrSourceConflict):
		Problem(w, http.StatusConflict, "Already Posted", err.Error())
	case errors.Is(err, shared.ErrAlreadyVoided):
		Problem(w, http.StatusConflict, "Already Voided", err.Error())
	case errors.Is(err, shared.ErrInvalidPeriodTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrTrialBalanceMismatch):
		Problem(w, http.StatusConflict, "Trial Balance Mismatch", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrTooFewLines),
		errors.Is(err, shared.ErrAmountNotPositive),
		errors.Is(err, shared.ErrReasonRequired):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrMappingNotFound):
		Problem(w, http.StatusUnprocessableEntity, "Mapping Missing", err.Error())
	case errors.Is(err, shared.ErrNonLeafAccount), errors.Is(err, shared.ErrAccountInactive):
		Problem(w, http.StatusUnprocessableEntity, "Account Not Postable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
