package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgettracker/internal/models"
	"budgettracker/internal/testutil"
)

func TestGetDashboard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewStatisticsService(db, 0.8)
	year := time.Now().Year()

	owner := testutil.CreateTestUser(t, db)
	pm := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, pm.ID)

	t.Run("empty_year", func(t *testing.T) {
		d, err := svc.GetDashboard(context.Background(), year)
		testutil.AssertNoError(t, err)
		if d.TotalBudgetSet || d.ProjectCount != 0 || !d.Allocated.IsZero() {
			t.Errorf("expected empty dashboard, got %+v", d)
		}
		if d.Categories == nil || d.HighRiskProjects == nil {
			t.Error("expected empty slices, not nil")
		}
	})

	a := testutil.CreateTestProject(t, db, owner.ID, group.ID, 100)
	b := testutil.CreateTestProject(t, db, owner.ID, "", 200)
	c := testutil.CreateTestProject(t, db, owner.ID, group.ID, 50)
	if err := db.Model(c).Update("category", "equipment").Error; err != nil {
		t.Fatalf("failed to set category: %v", err)
	}
	testutil.CreateTestExecution(t, db, a.ID, owner.ID, 90)
	testutil.CreateTestExecution(t, db, b.ID, owner.ID, 20)
	testutil.CreateTestExecution(t, db, b.ID, owner.ID, 30)
	testutil.CreateTestExecution(t, db, c.ID, owner.ID, 48)
	testutil.CreateTestTotalBudget(t, db, year, 1000)

	// Drift the stored total; the dashboard must not trust it.
	if err := db.Model(b).UpdateColumn("budget_executed", decimal.NewFromInt(999)).Error; err != nil {
		t.Fatalf("failed to drift project: %v", err)
	}

	d, err := svc.GetDashboard(context.Background(), year)
	testutil.AssertNoError(t, err)

	t.Run("matches_naive_sums", func(t *testing.T) {
		var projects []models.Project
		if err := db.Where("budget_year = ?", year).Find(&projects).Error; err != nil {
			t.Fatalf("failed to load projects: %v", err)
		}
		allocated := decimal.Zero
		for _, p := range projects {
			allocated = allocated.Add(p.BudgetOccupied)
		}
		var executions []models.BudgetExecution
		if err := db.Find(&executions).Error; err != nil {
			t.Fatalf("failed to load executions: %v", err)
		}
		executed := decimal.Zero
		for _, e := range executions {
			executed = executed.Add(e.Amount)
		}

		if !d.Allocated.Equal(allocated) {
			t.Errorf("expected allocated %s, got %s", allocated, d.Allocated)
		}
		if !d.Executed.Equal(executed) {
			t.Errorf("expected executed %s, got %s", executed, d.Executed)
		}
		if got := d.Remaining.StringFixed(2); got != "162.00" {
			t.Errorf("expected remaining 162.00, got %s", got)
		}
		if got := d.Unallocated.StringFixed(2); got != "650.00" {
			t.Errorf("expected unallocated 650.00, got %s", got)
		}
		if d.ProjectCount != 3 || !d.TotalBudgetSet {
			t.Errorf("unexpected counts %+v", d)
		}
	})

	t.Run("categories", func(t *testing.T) {
		if len(d.Categories) != 2 {
			t.Fatalf("expected 2 categories, got %d", len(d.Categories))
		}
		if d.Categories[0].Category != "equipment" || d.Categories[1].Category != "research" {
			t.Errorf("expected categories sorted by name, got %s, %s", d.Categories[0].Category, d.Categories[1].Category)
		}
		if got := d.Categories[1].Executed.StringFixed(2); got != "140.00" {
			t.Errorf("expected research executed 140.00, got %s", got)
		}
	})

	t.Run("high_risk", func(t *testing.T) {
		if len(d.HighRiskProjects) != 2 {
			t.Fatalf("expected 2 high risk projects, got %d", len(d.HighRiskProjects))
		}
		if d.HighRiskProjects[0].ID != c.ID || d.HighRiskProjects[1].ID != a.ID {
			t.Error("expected high risk projects ordered by execution rate")
		}
	})
}
