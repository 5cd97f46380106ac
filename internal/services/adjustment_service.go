package services

import (
	"strings"

	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// adjustmentService carves unspent budget out of a project into a new one.
type adjustmentService struct {
	db     *gorm.DB
	admins adminSet
}

// NewAdjustmentService creates a new AdjustmentServicer.
func NewAdjustmentService(db *gorm.DB, adminUsernames []string) AdjustmentServicer {
	return &adjustmentService{db: db, admins: newAdminSet(adminUsernames)}
}

// CreateAdjustment moves p.Amount of the source project's remaining budget
// into a newly created project in the same group and year.
func (s *adjustmentService) CreateAdjustment(tx *gorm.DB, actorID string, p models.BudgetAdjustmentPayload) (*models.BudgetAdjustment, error) {
	if !p.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	name := strings.TrimSpace(p.TargetName)
	category := strings.TrimSpace(p.TargetCategory)
	if name == "" || category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target name and category are required")
	}

	source, err := lockProject(tx, p.SourceProjectID)
	if err != nil {
		return nil, err
	}
	if err := canManageProject(tx, s.admins, actorID, source); err != nil {
		return nil, err
	}
	if err := checkRemainingBudget(tx, source, p.Amount, ""); err != nil {
		return nil, err
	}

	ownerID := p.TargetOwnerID
	if ownerID == "" {
		ownerID = actorID
	}
	if err := userExists(tx, ownerID); err != nil {
		return nil, err
	}

	target := &models.Project{
		Name:           name,
		Category:       category,
		Description:    p.Reason,
		BudgetYear:     source.BudgetYear,
		BudgetOccupied: p.Amount,
		UserID:         ownerID,
		GroupID:        source.GroupID,
		ApprovalStatus: models.ProjectStatusApproved,
	}
	if err := tx.Create(target).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := tx.Model(source).Update("budget_occupied", source.BudgetOccupied.Sub(p.Amount)).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	adjustment := &models.BudgetAdjustment{
		SourceProjectID: source.ID,
		TargetProjectID: target.ID,
		Amount:          p.Amount,
		TargetCategory:  category,
		TargetOwnerID:   ownerID,
		Reason:          p.Reason,
		CreatedBy:       actorID,
	}
	if err := tx.Create(adjustment).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	adjustment.TargetProject = target
	return adjustment, nil
}

// GetAdjustments lists adjustments, optionally those touching one project.
func (s *adjustmentService) GetAdjustments(projectID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetAdjustment], error) {
	page.Defaults()

	base := s.db.Model(&models.BudgetAdjustment{})
	if projectID != "" {
		base = base.Where("source_project_id = ? OR target_project_id = ?", projectID, projectID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var adjustments []models.BudgetAdjustment
	if err := base.Preload("SourceProject").Preload("TargetProject").
		Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&adjustments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(adjustments, page.Page, page.PageSize, totalItems)
	return &result, nil
}
