package services

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
)

// statisticsService aggregates dashboard figures from the raw tables.
type statisticsService struct {
	db                *gorm.DB
	highRiskThreshold float64
}

// NewStatisticsService creates a new StatisticsServicer. Projects whose
// execution rate exceeds highRiskThreshold are reported as high risk.
func NewStatisticsService(db *gorm.DB, highRiskThreshold float64) StatisticsServicer {
	return &statisticsService{db: db, highRiskThreshold: highRiskThreshold}
}

// GetDashboard recomputes the dashboard for a year. Executed figures come
// from the execution records, not from the stored project totals.
func (s *statisticsService) GetDashboard(ctx context.Context, year int) (*Dashboard, error) {
	var (
		total    models.TotalBudget
		totalSet bool
		projects []models.Project
		executed map[string]decimal.Decimal
		pending  int64
	)

	db := s.db.WithContext(ctx)
	inYear := func() *gorm.DB {
		return db.Where("budget_year = ? AND approval_status = ?", year, models.ProjectStatusApproved)
	}
	yearProjects := inYear().Model(&models.Project{}).Select("id")

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := db.Where("year = ?", year).First(&total).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		totalSet = true
		return nil
	})
	g.Go(func() error {
		return inYear().Order("category ASC, name ASC").Find(&projects).Error
	})
	g.Go(func() error {
		var rows []executionAmount
		if err := db.Model(&models.BudgetExecution{}).
			Select("project_id", "amount").
			Where("project_id IN (?)", yearProjects).
			Find(&rows).Error; err != nil {
			return err
		}
		executed = make(map[string]decimal.Decimal, len(rows))
		for _, r := range rows {
			executed[r.ProjectID] = executed[r.ProjectID].Add(r.Amount)
		}
		return nil
	})
	g.Go(func() error {
		return db.Model(&models.Approval{}).Where("status = ?", models.ApprovalStatusPending).Count(&pending).Error
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	d := &Dashboard{
		Year:             year,
		TotalBudget:      total.Amount,
		TotalBudgetSet:   totalSet,
		Allocated:        decimal.Zero,
		Executed:         decimal.Zero,
		ProjectCount:     len(projects),
		Categories:       []CategorySummary{},
		HighRiskProjects: []RiskProject{},
		PendingApprovals: pending,
	}
	if !totalSet {
		d.TotalBudget = decimal.Zero
	}

	byCategory := map[string]*CategorySummary{}
	for i := range projects {
		p := &projects[i]
		p.BudgetExecuted = executed[p.ID]

		d.Allocated = d.Allocated.Add(p.BudgetOccupied)
		d.Executed = d.Executed.Add(p.BudgetExecuted)

		cat, ok := byCategory[p.Category]
		if !ok {
			cat = &CategorySummary{Category: p.Category, Budget: decimal.Zero, Executed: decimal.Zero, Projects: []ProjectBudget{}}
			byCategory[p.Category] = cat
		}
		cat.Budget = cat.Budget.Add(p.BudgetOccupied)
		cat.Executed = cat.Executed.Add(p.BudgetExecuted)
		cat.Projects = append(cat.Projects, toProjectBudget(p))

		if r := models.ExecutionRate(p); r > s.highRiskThreshold {
			d.HighRiskProjects = append(d.HighRiskProjects, RiskProject{ProjectBudget: toProjectBudget(p), ExecutionRate: r})
		}
	}

	d.Remaining = d.Allocated.Sub(d.Executed)
	d.Unallocated = d.TotalBudget.Sub(d.Allocated)
	d.ExecutionRate = rate(d.Executed, d.Allocated)

	for _, cat := range byCategory {
		cat.ExecutionRate = rate(cat.Executed, cat.Budget)
		d.Categories = append(d.Categories, *cat)
	}
	sort.Slice(d.Categories, func(i, j int) bool { return d.Categories[i].Category < d.Categories[j].Category })
	sort.Slice(d.HighRiskProjects, func(i, j int) bool {
		return d.HighRiskProjects[i].ExecutionRate > d.HighRiskProjects[j].ExecutionRate
	})

	return d, nil
}

func rate(executed, budget decimal.Decimal) float64 {
	if !budget.IsPositive() {
		return 0
	}
	return executed.Div(budget).InexactFloat64()
}
