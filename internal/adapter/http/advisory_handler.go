package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"microfi-backend/internal/advisory"
	"microfi-backend/pkg/amortize"
)

// AdvisoryHandler renders advisory commentary alongside the deterministic
// risk classification, never in place of it.
type AdvisoryHandler struct {
	client *advisory.Client
	risk   amortize.RiskEngine
	cv     *CustomValidator
}

func NewAdvisoryHandler(client *advisory.Client, risk amortize.RiskEngine, cv *CustomValidator) *AdvisoryHandler {
	return &AdvisoryHandler{client: client, risk: risk, cv: cv}
}

type assessReq struct {
	Principal      float64 `json:"principal" validate:"required,gt=0"`
	RatePct        float64 `json:"rate_pct" validate:"gte=0,lte=100"`
	DurationMonths int     `json:"duration_months" validate:"required,gte=1,lte=120"`
	Purpose        string  `json:"purpose" validate:"required,max=64"`
	Description    string  `json:"description" validate:"max=2000"`
}

func (h *AdvisoryHandler) Assess(c echo.Context) error {
	var req assessReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}

	risk := h.risk.Assess(req.Principal, req.RatePct, req.DurationMonths, req.Purpose)

	prompt := advisory.LoanPrompt(req.Principal, req.RatePct, req.DurationMonths, req.Purpose, req.Description)
	text, err := h.client.AssessText(c.Request().Context(), prompt)
	if err != nil {
		// The deterministic classification stands on its own; the missing
		// commentary is reported, not faked.
		if errors.Is(err, advisory.ErrNotConfigured) {
			return c.JSON(http.StatusOK, map[string]any{"risk_score": risk, "assessment": ""})
		}
		return c.JSON(http.StatusBadGateway, apiError{"ADVISORY_UNAVAILABLE", "advisory service unavailable"})
	}

	return c.JSON(http.StatusOK, map[string]any{"risk_score": risk, "assessment": text})
}
