package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"microfi-backend/internal/usecase/loan"
)

type LoanHandler struct {
	uc *loan.Usecase
	cv *CustomValidator
}

func NewLoanHandler(uc *loan.Usecase, cv *CustomValidator) *LoanHandler {
	return &LoanHandler{uc: uc, cv: cv}
}

type createLoanReq struct {
	BorrowerAddress string  `json:"borrower_address" validate:"required,address"`
	Principal       float64 `json:"principal" validate:"required,gt=0,dec4"`
	RatePct         float64 `json:"rate_pct" validate:"gte=0,lte=100"`
	DurationMonths  int     `json:"duration_months" validate:"required,gte=1,lte=120"`
	Purpose         string  `json:"purpose" validate:"required,max=64"`
	Description     string  `json:"description" validate:"max=2000"`
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	dto, err := h.uc.Create(c.Request().Context(), loan.CreateLoanInput{
		BorrowerAddress: req.BorrowerAddress,
		Principal:       req.Principal,
		RatePct:         req.RatePct,
		DurationMonths:  req.DurationMonths,
		Purpose:         req.Purpose,
		Description:     req.Description,
	})
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusCreated, map[string]any{"loan_id": dto.LoanID, "status": dto.Status, "risk_score": dto.RiskScore})
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListLoans(c echo.Context) error {
	dtos, err := h.uc.ListOpen(c.Request().Context())
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"loans": dtos})
}

// Disburse re-drives disbursement for a loan sitting in fully_funded or
// disbursing, the operator recovery path after a failed or interrupted
// attempt. The state machine guards it; any other status is rejected with
// INVALID_TRANSITION, so a retry can never double-pay an active loan.
func (h *LoanHandler) Disburse(c echo.Context) error {
	rec, err := h.uc.Disburse(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	status := http.StatusOK
	if rec.Outcome == "pending" {
		status = http.StatusAccepted
	}
	return c.JSON(status, rec)
}

// Repay settles the oldest outstanding installment of an active loan. A
// transfer still pending confirmation comes back 202; the background sweep
// finishes it.
func (h *LoanHandler) Repay(c echo.Context) error {
	rec, err := h.uc.Repay(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	status := http.StatusOK
	if rec.Outcome == "pending" {
		status = http.StatusAccepted
	}
	return c.JSON(status, rec)
}
