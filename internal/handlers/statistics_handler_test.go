package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"budgettracker/internal/services"
)

type mockStatisticsService struct {
	gotYear int
}

func (m *mockStatisticsService) GetDashboard(_ context.Context, year int) (*services.Dashboard, error) {
	m.gotYear = year
	return &services.Dashboard{
		Year:        year,
		TotalBudget: decimal.NewFromInt(1000),
		Allocated:   decimal.NewFromInt(350),
		Categories:  []services.CategorySummary{},
	}, nil
}

func TestStatisticsHandler_GetDashboard(t *testing.T) {
	newRouter := func(svc services.StatisticsServicer) *gin.Engine {
		handler := NewStatisticsHandler(svc, func() int { return 2025 })
		r := gin.New()
		r.GET("/statistics/dashboard", handler.GetDashboard)
		return r
	}

	t.Run("defaults to current budget year", func(t *testing.T) {
		svc := &mockStatisticsService{}
		rec := doRequest(newRouter(svc), "GET", "/statistics/dashboard", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.gotYear != 2025 {
			t.Errorf("expected year 2025, got %d", svc.gotYear)
		}
		data := dataObject(t, parseJSON(t, rec))
		if data["total_budget"] != "1000" {
			t.Errorf("expected total 1000, got %v", data["total_budget"])
		}
	})

	t.Run("explicit year", func(t *testing.T) {
		svc := &mockStatisticsService{}
		rec := doRequest(newRouter(svc), "GET", "/statistics/dashboard?year=2023", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotYear != 2023 {
			t.Errorf("expected year 2023, got %d", svc.gotYear)
		}
	})

	t.Run("invalid year returns 400", func(t *testing.T) {
		rec := doRequest(newRouter(&mockStatisticsService{}), "GET", "/statistics/dashboard?year=99", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}
