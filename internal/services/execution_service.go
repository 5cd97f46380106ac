package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// executionService records spend against project budgets.
type executionService struct {
	db     *gorm.DB
	admins adminSet
}

// NewExecutionService creates a new ExecutionServicer.
func NewExecutionService(db *gorm.DB, adminUsernames []string) ExecutionServicer {
	return &executionService{db: db, admins: newAdminSet(adminUsernames)}
}

// CreateExecution records an execution. The project row stays locked from
// the remaining-budget check until the new total is written.
func (s *executionService) CreateExecution(tx *gorm.DB, actorID string, p models.ExecutionCreatePayload) (*models.BudgetExecution, error) {
	if !p.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if p.ProjectID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "project ID is required")
	}

	date := p.ExecutionDate
	if date.IsZero() {
		date = time.Now()
	}

	project, err := lockProject(tx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.ApprovalStatus != models.ProjectStatusApproved {
		return nil, apperrors.ErrProjectNotApproved
	}
	if err := canRecordExecution(tx, s.admins, actorID, project); err != nil {
		return nil, err
	}
	if err := checkRemainingBudget(tx, project, p.Amount, ""); err != nil {
		return nil, err
	}

	execution := &models.BudgetExecution{
		ProjectID:     project.ID,
		UserID:        actorID,
		Amount:        p.Amount,
		Description:   p.Description,
		ExecutionDate: date,
		VoucherURL:    p.VoucherURL,
	}
	if err := tx.Create(execution).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if _, err := refreshExecuted(tx, project.ID); err != nil {
		return nil, err
	}
	return execution, nil
}

func (s *executionService) canModify(tx *gorm.DB, actorID string, execution *models.BudgetExecution, project *models.Project) error {
	if execution.UserID == actorID {
		return nil
	}
	if err := canManageProject(tx, s.admins, actorID, project); err != nil {
		return apperrors.WithMessage(apperrors.ErrForbidden, "not allowed to modify this execution")
	}
	return nil
}

// UpdateExecution amends an execution. The budget check leaves the record
// itself out of the executed sum, so unchanged or reduced amounts pass.
func (s *executionService) UpdateExecution(tx *gorm.DB, actorID string, p models.ExecutionUpdatePayload) (*models.BudgetExecution, error) {
	execution, err := findExecution(tx, p.ExecutionID)
	if err != nil {
		return nil, err
	}
	project, err := lockProject(tx, execution.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.canModify(tx, actorID, execution, project); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if p.Amount != nil {
		if !p.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		if err := checkRemainingBudget(tx, project, *p.Amount, execution.ID); err != nil {
			return nil, err
		}
		updates["amount"] = *p.Amount
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.ExecutionDate != nil && !p.ExecutionDate.IsZero() {
		updates["execution_date"] = *p.ExecutionDate
	}
	if p.VoucherURL != nil {
		updates["voucher_url"] = *p.VoucherURL
	}

	if len(updates) > 0 {
		if err := tx.Model(execution).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if _, err := refreshExecuted(tx, project.ID); err != nil {
			return nil, err
		}
	}
	return findExecution(tx, execution.ID)
}

// DeleteExecution removes an execution and refreshes the project's total.
func (s *executionService) DeleteExecution(actorID, executionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		execution, err := findExecution(tx, executionID)
		if err != nil {
			return err
		}
		project, err := lockProject(tx, execution.ProjectID)
		if err != nil {
			return err
		}
		if err := s.canModify(tx, actorID, execution, project); err != nil {
			return err
		}
		if err := tx.Delete(execution).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		_, err = refreshExecuted(tx, project.ID)
		return err
	})
}

func findExecution(tx *gorm.DB, id string) (*models.BudgetExecution, error) {
	var execution models.BudgetExecution
	if err := tx.First(&execution, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExecutionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &execution, nil
}

// GetExecutionByID retrieves an execution with its project.
func (s *executionService) GetExecutionByID(id string) (*models.BudgetExecution, error) {
	var execution models.BudgetExecution
	if err := s.db.Preload("Project").First(&execution, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExecutionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &execution, nil
}

// GetExecutions retrieves a paginated, filtered list of executions.
func (s *executionService) GetExecutions(filter ExecutionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetExecution], error) {
	page.Defaults()

	base := s.db.Model(&models.BudgetExecution{})
	if filter.ProjectID != "" {
		base = base.Where("project_id = ?", filter.ProjectID)
	}
	if filter.UserID != "" {
		base = base.Where("user_id = ?", filter.UserID)
	}
	if filter.FromDate != nil {
		base = base.Where("execution_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		base = base.Where("execution_date <= ?", *filter.ToDate)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var executions []models.BudgetExecution
	if err := base.Preload("Project").
		Scopes(pagination.Paginate(page)).
		Order("execution_date DESC").
		Find(&executions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(executions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetProjectExecutions lists all executions of a project, newest first.
func (s *executionService) GetProjectExecutions(projectID string) ([]models.BudgetExecution, error) {
	var count int64
	if err := s.db.Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrProjectNotFound
	}

	executions := []models.BudgetExecution{}
	if err := s.db.Where("project_id = ?", projectID).
		Order("execution_date DESC").
		Find(&executions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return executions, nil
}

// SetExecutionPlan creates or replaces the planned spend of a project for
// one month.
func (s *executionService) SetExecutionPlan(actorID, projectID string, year, month int, amount decimal.Decimal) (*models.ExecutionPlan, error) {
	if month < 1 || month > 12 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
	}
	if amount.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "planned amount must not be negative")
	}

	var plan models.ExecutionPlan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		project, err := lockProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := canRecordExecution(tx, s.admins, actorID, project); err != nil {
			return err
		}
		if year == 0 {
			year = project.BudgetYear
		}

		row := &models.ExecutionPlan{ProjectID: projectID, Year: year, Month: month, PlannedAmount: amount}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"planned_amount", "updated_at"}),
		}).Create(row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return tx.Where("project_id = ? AND year = ? AND month = ?", projectID, year, month).
			First(&plan).Error
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &plan, nil
}

// GetExecutionPlans lists the monthly plans of a project. A zero year
// returns every year.
func (s *executionService) GetExecutionPlans(projectID string, year int) ([]models.ExecutionPlan, error) {
	q := s.db.Where("project_id = ?", projectID)
	if year > 0 {
		q = q.Where("year = ?", year)
	}
	plans := []models.ExecutionPlan{}
	if err := q.Order("year ASC, month ASC").Find(&plans).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return plans, nil
}
