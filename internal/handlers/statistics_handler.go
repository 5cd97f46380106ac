package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"budgettracker/internal/services"
)

// StatisticsHandler serves the budget dashboard.
type StatisticsHandler struct {
	statisticsService services.StatisticsServicer
	currentYear       func() int
}

// NewStatisticsHandler creates a new StatisticsHandler. currentYear supplies
// the year used when the request names none.
func NewStatisticsHandler(statisticsService services.StatisticsServicer, currentYear func() int) *StatisticsHandler {
	if currentYear == nil {
		currentYear = func() int { return time.Now().Year() }
	}
	return &StatisticsHandler{statisticsService: statisticsService, currentYear: currentYear}
}

// GetDashboard returns the aggregated figures for a budget year.
// @Summary     Budget dashboard
// @Tags        statistics
// @Produce     json
// @Param       year query int false "Budget year (defaults to the current budget year)"
// @Success     200 {object} SuccessResponse "Dashboard"
// @Failure     400 {object} ErrorResponse "Invalid year"
// @Router      /statistics/dashboard [get]
func (h *StatisticsHandler) GetDashboard(c *gin.Context) {
	year, err := parseYear(c.Query("year"), h.currentYear())
	if err != nil {
		respondWithError(c, err)
		return
	}

	dashboard, err := h.statisticsService.GetDashboard(c.Request.Context(), year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, dashboard)
}
