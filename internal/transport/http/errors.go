package httptransport

import (
	"errors"
	"net/http"

	"lepton-rental/internal/codec"
	"lepton-rental/internal/rental"

	"github.com/rs/zerolog/log"
)

// marketErrors maps market failures to HTTP statuses. The error text is
// the response code.
var marketErrors = []struct {
	err    error
	status int
}{
	{rental.ErrUnauthorized, http.StatusForbidden},
	{rental.ErrPaused, http.StatusConflict},
	{rental.ErrInsufficientFunds, http.StatusPaymentRequired},
	{rental.ErrPriceTooLow, http.StatusUnprocessableEntity},
	{rental.ErrOverflow, http.StatusUnprocessableEntity},
	{rental.ErrTotalOverflow, http.StatusUnprocessableEntity},
	{rental.ErrWalletNotConfigured, http.StatusPreconditionFailed},
	{rental.ErrChainMismatch, http.StatusConflict},
	{rental.ErrDuplicate, http.StatusConflict},
	{rental.ErrInvalidTransition, http.StatusConflict},
	{rental.ErrBeneficiaryTaken, http.StatusConflict},
	{rental.ErrUnknownAccount, http.StatusNotFound},
	{rental.ErrUnknownModule, http.StatusNotFound},
	{rental.ErrNoImplementation, http.StatusServiceUnavailable},
	{rental.ErrInvalidRecord, http.StatusBadRequest},
	{rental.ErrInvalidBid, http.StatusBadRequest},
	{rental.ErrInvalidRequest, http.StatusBadRequest},
	{rental.ErrInvalidParams, http.StatusBadRequest},
	{codec.ErrDigestMismatch, http.StatusUnprocessableEntity},
}

func statusFor(err error) (int, string) {
	for _, m := range marketErrors {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeMarketError(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		metricMarketOpsFailed.Add(1)
		log.Error().Err(err).Str("op", op).Msg("market request failed")
	} else {
		metricMarketOpsRejected.Add(1)
	}
	WriteHTTPError(w, status, code)
}
