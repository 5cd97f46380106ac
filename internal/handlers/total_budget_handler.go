package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/services"
)

// TotalBudgetHandler handles the yearly departmental ceiling.
type TotalBudgetHandler struct {
	totalBudgetService services.TotalBudgetServicer
	auditService       services.AuditServicer
}

// NewTotalBudgetHandler creates a new TotalBudgetHandler.
func NewTotalBudgetHandler(totalBudgetService services.TotalBudgetServicer, auditService services.AuditServicer) *TotalBudgetHandler {
	return &TotalBudgetHandler{totalBudgetService: totalBudgetService, auditService: auditService}
}

// SetTotalBudgetRequest represents the request payload for setting a ceiling.
type SetTotalBudgetRequest struct {
	Year   int             `json:"year" binding:"required,budget_year"`
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"1000000.00"`
	Notes  string          `json:"notes" binding:"max=1000"`
}

// GetTotalBudget returns the ceiling for a year.
// @Summary     Get total budget
// @Tags        total-budget
// @Produce     json
// @Param       year path int true "Budget year"
// @Success     200 {object} SuccessResponse "Total budget"
// @Failure     404 {object} ErrorResponse "Not set for this year"
// @Router      /total-budget/{year} [get]
func (h *TotalBudgetHandler) GetTotalBudget(c *gin.Context) {
	year, err := parseYear(c.Param("year"), 0)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tb, err := h.totalBudgetService.GetTotalBudget(year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, tb)
}

// SetTotalBudget creates or replaces the ceiling for a year. Admin only.
// @Summary     Set total budget
// @Tags        total-budget
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body SetTotalBudgetRequest true "Total budget"
// @Success     200 {object} SuccessResponse "Total budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Admin only"
// @Router      /total-budget [post]
func (h *TotalBudgetHandler) SetTotalBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetTotalBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	tb, err := h.totalBudgetService.SetTotalBudget(userID, req.Year, req.Amount, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SET_TOTAL_BUDGET", "total_budget", tb.ID, c.ClientIP(),
		map[string]interface{}{"year": req.Year, "amount": req.Amount.StringFixed(2)})

	respondOK(c, http.StatusOK, tb)
}
