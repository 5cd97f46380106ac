package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
)

// lockProject loads a project and holds a row lock on it until tx ends.
// SQLite ignores the locking clause; its single writer gives the same result.
func lockProject(tx *gorm.DB, id string) (*models.Project, error) {
	var project models.Project
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &project, nil
}

func sumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// executedTotal sums the executions of a project, leaving out excludeID.
func executedTotal(tx *gorm.DB, projectID, excludeID string) (decimal.Decimal, error) {
	q := tx.Model(&models.BudgetExecution{}).Where("project_id = ?", projectID)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var amounts []decimal.Decimal
	if err := q.Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return sumDecimals(amounts), nil
}

// checkRemainingBudget rejects amount when it is larger than the project's
// ceiling minus its other executions.
func checkRemainingBudget(tx *gorm.DB, project *models.Project, amount decimal.Decimal, excludeID string) error {
	executed, err := executedTotal(tx, project.ID, excludeID)
	if err != nil {
		return err
	}
	remaining := project.BudgetOccupied.Sub(executed)
	if amount.GreaterThan(remaining) {
		return apperrors.WithMessagef(apperrors.ErrBudgetExceeded,
			"amount %s exceeds remaining budget %s", amount.StringFixed(2), remaining.StringFixed(2))
	}
	return nil
}

// refreshExecuted recomputes the denormalised executed total of a project.
func refreshExecuted(tx *gorm.DB, projectID string) (decimal.Decimal, error) {
	total, err := executedTotal(tx, projectID, "")
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Model(&models.Project{}).Where("id = ?", projectID).
		UpdateColumn("budget_executed", total).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return total, nil
}

// checkTotalBudget rejects a project ceiling that would push the year's
// allocated sum over the departmental total. Only approved projects count as
// allocated. Years without a total are unrestricted.
func checkTotalBudget(tx *gorm.DB, year int, occupied decimal.Decimal, excludeProjectID string) error {
	var total models.TotalBudget
	if err := tx.Where("year = ?", year).First(&total).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	q := tx.Model(&models.Project{}).
		Where("budget_year = ? AND approval_status = ?", year, models.ProjectStatusApproved)
	if excludeProjectID != "" {
		q = q.Where("id <> ?", excludeProjectID)
	}
	var ceilings []decimal.Decimal
	if err := q.Pluck("budget_occupied", &ceilings).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	allocated := sumDecimals(ceilings).Add(occupied)
	if allocated.GreaterThan(total.Amount) {
		return apperrors.WithMessagef(apperrors.ErrBudgetExceeded,
			"allocated budget %s exceeds total budget %s for %d",
			allocated.StringFixed(2), total.Amount.StringFixed(2), year)
	}
	return nil
}
