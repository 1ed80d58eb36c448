package handlers

import (
	"errors"
	"net/http"

	"bank-api/internal/domain"
)

// httpStatusForErr maps a domain/store error to the status table the spec
// fixes: not-found errors are 404, request-shape and business-rule
// violations are 400, a replayed idempotent command is 200 (handled by its
// caller before this function is ever consulted), an in-flight update
// conflict is 409, and anything else - including transient DB failures - is
// 500.
func httpStatusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, domain.ErrInstanceNotFound), errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrPendingUpdateInFlight):
		return http.StatusConflict

	case errors.Is(err, domain.ErrActionNotSupported),
		errors.Is(err, domain.ErrUnbalancedByCurrency),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrCrossInstance),
		errors.Is(err, domain.ErrTooFewEntries),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrNegativeAvailable),
		errors.Is(err, domain.ErrUpdateTargetNotPending),
		errors.Is(err, domain.ErrUpdateTargetMissing):
		return http.StatusBadRequest

	default:
		var validation *domain.ValidationFailed
		if errors.As(err, &validation) {
			return http.StatusBadRequest
		}
		var notFound *domain.AccountNotFoundError
		if errors.As(err, &notFound) {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	}
}

func errorCode(status int, err error) string {
	if status >= 500 {
		return "internal_error"
	}
	return err.Error()
}
