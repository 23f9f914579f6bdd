package http

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	domainFunding "microfi-backend/internal/domain/funding"
	domainInstallment "microfi-backend/internal/domain/installment"
	domainLoan "microfi-backend/internal/domain/loan"
	"microfi-backend/internal/ledger"
	"microfi-backend/internal/settlement"
	"microfi-backend/pkg/amortize"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// translate maps domain errors to stable API codes. Internal identifiers and
// wrapped causes never leak; unknown errors collapse to INTERNAL.
func translate(err error) (int, apiError) {
	switch {
	case errors.Is(err, amortize.ErrInvalidTerm):
		return http.StatusBadRequest, apiError{"INVALID_TERM", "loan terms are invalid"}
	case errors.Is(err, domainFunding.ErrInvalidAmount):
		return http.StatusBadRequest, apiError{"INVALID_AMOUNT", "contribution amount must be positive"}
	case errors.Is(err, domainFunding.ErrOverfund):
		return http.StatusConflict, apiError{"OVERFUND", "contribution exceeds remaining loan capacity"}
	case errors.Is(err, domainFunding.ErrNotFundable):
		return http.StatusConflict, apiError{"NOT_FUNDABLE", "loan no longer accepts contributions"}
	case errors.Is(err, domainLoan.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, apiError{"NOT_FOUND", "loan not found"}
	case errors.Is(err, domainLoan.ErrTerminalState):
		return http.StatusConflict, apiError{"TERMINAL_STATE", "loan is closed"}
	case errors.Is(err, domainLoan.ErrNotActive):
		return http.StatusConflict, apiError{"NOT_ACTIVE", "loan is not active"}
	case errors.Is(err, domainLoan.ErrInvalidTransition):
		return http.StatusConflict, apiError{"INVALID_TRANSITION", "operation not allowed in current loan state"}
	case errors.Is(err, domainInstallment.ErrNoneOutstanding):
		return http.StatusConflict, apiError{"NONE_OUTSTANDING", "no outstanding installment"}
	case errors.Is(err, settlement.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, apiError{"INSUFFICIENT_BALANCE", "platform account cannot cover the transfer"}
	case errors.Is(err, settlement.ErrTransferFailed):
		return http.StatusBadGateway, apiError{"TRANSFER_FAILED", "ledger rejected the transfer"}
	case errors.Is(err, settlement.ErrConfirmationTimeout):
		// Not a failure: the record stays pending and the sweep resolves it.
		return http.StatusAccepted, apiError{"CONFIRMATION_PENDING", "transfer submitted, confirmation still pending"}
	case errors.Is(err, settlement.ErrClosed):
		return http.StatusServiceUnavailable, apiError{"SHUTTING_DOWN", "service is shutting down"}
	case errors.Is(err, ledger.ErrUnsupportedOnMain):
		return http.StatusBadRequest, apiError{"UNSUPPORTED_ON_MAIN", "test funding is not available on this network"}
	case errors.Is(err, ledger.ErrUnavailable):
		return http.StatusServiceUnavailable, apiError{"LEDGER_UNAVAILABLE", "ledger is temporarily unavailable"}
	default:
		return http.StatusInternalServerError, apiError{"INTERNAL", "internal error"}
	}
}
