package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
	"github.com/cloudbill/backend/internal/interfaces/http/dto"
)

// BalanceHandler serves the project balance endpoints
type BalanceHandler struct {
	BaseHandler
	balances *appbilling.BalanceService
	logger   *zap.Logger
}

// NewBalanceHandler creates a balance handler
func NewBalanceHandler(balances *appbilling.BalanceService, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{balances: balances, logger: logger}
}

// parseMoney converts a request amount and optional currency into Money
func parseMoney(amount, currency string) (valueobject.Money, error) {
	cur := valueobject.DefaultCurrency
	if currency != "" {
		cur = valueobject.Currency(currency)
	}
	return valueobject.NewMoneyFromString(amount, cur)
}

// List returns all project balances
// GET /api/v1/balances
func (h *BalanceHandler) List(c *gin.Context) {
	balances, err := h.balances.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromBalances(balances))
}

// Get returns one project's balance, opening a zero balance on first
// access
// GET /api/v1/projects/:id/balance
func (h *BalanceHandler) Get(c *gin.Context) {
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid project ID")
		return
	}

	balance, err := h.balances.GetOrCreate(c.Request.Context(), projectID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromBalance(balance))
}

// Deposit credits a project's balance
// POST /api/v1/projects/:id/balance/deposit
func (h *BalanceHandler) Deposit(c *gin.Context) {
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid project ID")
		return
	}
	var req dto.BalanceMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	amount, err := parseMoney(req.Amount, req.Currency)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	balance, err := h.balances.Deposit(c.Request.Context(), projectID, amount, req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromBalance(balance))
}

// Withdraw debits a project's balance
// POST /api/v1/projects/:id/balance/withdraw
func (h *BalanceHandler) Withdraw(c *gin.Context) {
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid project ID")
		return
	}
	var req dto.BalanceMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	amount, err := parseMoney(req.Amount, req.Currency)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	balance, err := h.balances.Withdraw(c.Request.Context(), projectID, amount, req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromBalance(balance))
}

// Transactions returns the movement log of a project's balance
// GET /api/v1/projects/:id/balance/transactions
func (h *BalanceHandler) Transactions(c *gin.Context) {
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid project ID")
		return
	}

	txs, err := h.balances.Transactions(c.Request.Context(), projectID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.FromTransactions(txs))
}
