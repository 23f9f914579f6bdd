package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"microfi-backend/internal/ledger"
	"microfi-backend/internal/settlement"
)

// SettlementHandler exposes custodial-account and ledger-facing operations:
// live balances, per-address history, faucet funding, platform wallet info.
type SettlementHandler struct {
	engine  *settlement.Engine
	ledger  ledger.Client
	cv      *CustomValidator
	network string
}

func NewSettlementHandler(engine *settlement.Engine, lc ledger.Client, cv *CustomValidator, network string) *SettlementHandler {
	return &SettlementHandler{engine: engine, ledger: lc, cv: cv, network: network}
}

func (h *SettlementHandler) Balance(c echo.Context) error {
	address := c.Param("address")
	if !reAddress.MatchString(address) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address"})
	}
	bal, err := h.ledger.Balance(c.Request().Context(), address)
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"address": address, "balance": bal})
}

func (h *SettlementHandler) History(c echo.Context) error {
	address := c.Param("address")
	if !reAddress.MatchString(address) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid address"})
	}
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be 1-100"})
		}
		limit = n
	}
	entries, err := h.ledger.History(c.Request().Context(), address, limit)
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"address": address, "transactions": entries})
}

type faucetReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0,lte=10"`
}

// Faucet tops up the custodial account on test networks.
func (h *SettlementHandler) Faucet(c echo.Context) error {
	var req faucetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := h.cv.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)})
	}
	rec, err := h.engine.RequestTestFunds(c.Request().Context(), req.Amount)
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"reference": rec.LedgerReference,
		"outcome":   rec.Outcome,
		"amount":    rec.Amount,
	})
}

// PlatformWallet reports the custodial address, network, and live balance.
func (h *SettlementHandler) PlatformWallet(c echo.Context) error {
	bal, err := h.engine.Balance(c.Request().Context())
	if err != nil {
		code, body := translate(err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"address": h.engine.Account().Address(),
		"network": h.network,
		"balance": bal,
	})
}
