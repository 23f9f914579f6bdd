package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"microfi-backend/internal/usecase/funding"
)

type FundingHandler struct {
	uc *funding.Usecase
	cv *CustomValidator
}

func NewFundingHandler(uc *funding.Usecase, cv *CustomValidator) *FundingHandler {
	return &FundingHandler{uc: uc, cv: cv}
}

type contributeReq struct {
	LenderAddress string  `json:"lender_address" validate:"required,address"`
	Amount        float64 `json:"amount" validate:"required,gt=0,dec4"`
}

func (h *FundingHandler) Contribute(c echo.Context) error {
	var req contributeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	dto, err := h.uc.Contribute(c.Request().Context(), funding.ContributeInput{
		LoanID:        c.Param("loan_id"),
		LenderAddress: req.LenderAddress,
		Amount:        req.Amount,
	})
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, map[string]any{"accepted": false, "code": body.Code, "message": body.Message})
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"accepted":        true,
		"contribution_id": dto.ContributionID,
		"funded_amount":   dto.FundedAmount,
		"loan_status":     dto.LoanStatus,
	})
}
