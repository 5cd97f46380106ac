package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// projectService handles project-related business logic.
type projectService struct {
	db         *gorm.DB
	admins     adminSet
	budgetYear int
}

// NewProjectService creates a new ProjectServicer. budgetYear is the year
// new projects default to; zero means the current calendar year.
func NewProjectService(db *gorm.DB, adminUsernames []string, budgetYear int) ProjectServicer {
	return &projectService{db: db, admins: newAdminSet(adminUsernames), budgetYear: budgetYear}
}

func (s *projectService) defaultYear() int {
	if s.budgetYear > 0 {
		return s.budgetYear
	}
	return time.Now().Year()
}

// CreateProject creates an approved project owned by ownerID.
func (s *projectService) CreateProject(tx *gorm.DB, ownerID string, p models.ProjectCreatePayload) (*models.Project, error) {
	return s.createProject(tx, ownerID, p, models.ProjectStatusApproved)
}

// ProposeProject records a pending project that waits for its group
// manager. Pending projects take no budget until they are approved.
func (s *projectService) ProposeProject(tx *gorm.DB, ownerID string, p models.ProjectCreatePayload) (*models.Project, error) {
	return s.createProject(tx, ownerID, p, models.ProjectStatusPending)
}

// DecideProject moves a pending project to approved or rejected. Approval
// re-checks the year's total budget.
func (s *projectService) DecideProject(tx *gorm.DB, projectID string, status models.ProjectStatus) (*models.Project, error) {
	if status != models.ProjectStatusApproved && status != models.ProjectStatusRejected {
		return nil, apperrors.WithMessagef(apperrors.ErrInvalidInput, "cannot move a project to %s", status)
	}
	project, err := lockProject(tx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ApprovalStatus != models.ProjectStatusPending {
		return nil, apperrors.WithMessagef(apperrors.ErrInvalidInput, "project is %s, not pending", project.ApprovalStatus)
	}
	if status == models.ProjectStatusApproved {
		if err := checkTotalBudget(tx, project.BudgetYear, project.BudgetOccupied, project.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Model(project).Update("approval_status", status).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	project.ApprovalStatus = status
	return project, nil
}

func (s *projectService) createProject(tx *gorm.DB, ownerID string, p models.ProjectCreatePayload, status models.ProjectStatus) (*models.Project, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" || strings.TrimSpace(p.Category) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name and category are required")
	}
	if p.BudgetOccupied.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget must not be negative")
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not be before start date")
	}

	year := p.BudgetYear
	if year == 0 {
		year = s.defaultYear()
	}

	project := &models.Project{
		Name:           name,
		Code:           p.Code,
		Category:       strings.TrimSpace(p.Category),
		Description:    p.Description,
		BudgetYear:     year,
		BudgetOccupied: p.BudgetOccupied,
		BudgetExecuted: decimal.Zero,
		UserID:         ownerID,
		ApprovalStatus: status,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
	}

	if p.GroupID != "" {
		group, err := findGroup(tx, p.GroupID)
		if err != nil {
			return nil, err
		}
		member, err := isGroupMember(tx, group, ownerID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, apperrors.ErrNotGroupMember
		}
		project.GroupID = &group.ID
	}

	if status == models.ProjectStatusApproved {
		if err := checkTotalBudget(tx, year, p.BudgetOccupied, ""); err != nil {
			return nil, err
		}
	}

	if err := tx.Create(project).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return project, nil
}

// UpdateProject applies the non-nil fields of p. A new ceiling must cover
// what has already been executed and fit the year's total budget.
func (s *projectService) UpdateProject(tx *gorm.DB, actorID string, p models.ProjectUpdatePayload) (*models.Project, error) {
	project, err := lockProject(tx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := canManageProject(tx, s.admins, actorID, project); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name must not be empty")
		}
		updates["name"] = name
	}
	if p.Code != nil {
		updates["code"] = *p.Code
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		if category == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category must not be empty")
		}
		updates["category"] = category
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.StartDate != nil {
		updates["start_date"] = *p.StartDate
	}
	if p.EndDate != nil {
		updates["end_date"] = *p.EndDate
	}
	if p.BudgetOccupied != nil {
		budget := *p.BudgetOccupied
		if budget.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget must not be negative")
		}
		executed, err := executedTotal(tx, project.ID, "")
		if err != nil {
			return nil, err
		}
		if budget.LessThan(executed) {
			return nil, apperrors.WithMessagef(apperrors.ErrBudgetBelowExecuted,
				"budget %s is below executed amount %s", budget.StringFixed(2), executed.StringFixed(2))
		}
		if err := checkTotalBudget(tx, project.BudgetYear, budget, project.ID); err != nil {
			return nil, err
		}
		updates["budget_occupied"] = budget
	}

	if len(updates) > 0 {
		if err := tx.Model(project).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	var updated models.Project
	if err := tx.First(&updated, "id = ?", project.ID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &updated, nil
}

// DeleteProject removes a project that has no recorded executions.
func (s *projectService) DeleteProject(actorID, projectID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		project, err := lockProject(tx, projectID)
		if err != nil {
			return err
		}
		if err := canManageProject(tx, s.admins, actorID, project); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.BudgetExecution{}).Where("project_id = ?", projectID).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.WithMessagef(apperrors.ErrProjectHasExecutions,
				"project has %d recorded executions", count)
		}

		if err := tx.Delete(project).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// GetProjects retrieves a paginated, filtered list of projects with their
// executed totals refreshed from the execution records.
func (s *projectService) GetProjects(filter ProjectFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error) {
	page.Defaults()

	base := applyProjectFilters(s.db.Model(&models.Project{}), filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var projects []models.Project
	if err := base.Preload("Owner").Preload("Group").
		Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.refreshProjects(projects); err != nil {
		return nil, err
	}

	result := pagination.NewPageResponse(projects, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyProjectFilters(q *gorm.DB, f ProjectFilter) *gorm.DB {
	if f.Year != nil {
		q = q.Where("budget_year = ?", *f.Year)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.OwnerID != "" {
		q = q.Where("user_id = ?", f.OwnerID)
	}
	if f.Status != nil {
		q = q.Where("approval_status = ?", *f.Status)
	}
	return q
}

// GetProjectByID retrieves a project with its owner and group.
func (s *projectService) GetProjectByID(id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Owner").Preload("Group").First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	projects := []models.Project{project}
	if err := s.refreshProjects(projects); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

// refreshProjects recomputes budget_executed for the given projects and
// writes back the ones that drifted.
func (s *projectService) refreshProjects(projects []models.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	totals, err := executedByProject(s.db, ids)
	if err != nil {
		return err
	}

	for i := range projects {
		p := &projects[i]
		executed := totals[p.ID]
		if executed.Equal(p.BudgetExecuted) {
			continue
		}
		if err := s.db.Model(&models.Project{}).Where("id = ?", p.ID).
			UpdateColumn("budget_executed", executed).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		logger.Get().Debugw("refreshed executed total",
			"project_id", p.ID,
			"stored", p.BudgetExecuted.StringFixed(2),
			"actual", executed.StringFixed(2),
		)
		p.BudgetExecuted = executed
	}
	return nil
}

type executionAmount struct {
	ProjectID string
	Amount    decimal.Decimal
}

// executedByProject sums execution amounts per project. A nil ids slice
// sums every execution.
func executedByProject(db *gorm.DB, ids []string) (map[string]decimal.Decimal, error) {
	q := db.Model(&models.BudgetExecution{}).Select("project_id", "amount")
	if ids != nil {
		q = q.Where("project_id IN ?", ids)
	}
	var rows []executionAmount
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	totals := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		totals[r.ProjectID] = totals[r.ProjectID].Add(r.Amount)
	}
	return totals, nil
}
