package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
)

// totalBudgetService manages the departmental ceiling per budget year.
type totalBudgetService struct {
	db     *gorm.DB
	admins adminSet
}

// NewTotalBudgetService creates a new TotalBudgetServicer.
func NewTotalBudgetService(db *gorm.DB, adminUsernames []string) TotalBudgetServicer {
	return &totalBudgetService{db: db, admins: newAdminSet(adminUsernames)}
}

// GetTotalBudget returns the ceiling for a year.
func (s *totalBudgetService) GetTotalBudget(year int) (*models.TotalBudget, error) {
	var tb models.TotalBudget
	if err := s.db.Where("year = ?", year).First(&tb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessagef(apperrors.ErrTotalBudgetNotFound, "total budget not set for %d", year)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &tb, nil
}

// SetTotalBudget creates or replaces the ceiling for a year. It cannot be
// lowered below what projects of that year already hold.
func (s *totalBudgetService) SetTotalBudget(actorID string, year int, amount decimal.Decimal, notes string) (*models.TotalBudget, error) {
	if year <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "year is required")
	}
	if amount.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must not be negative")
	}
	if err := s.admins.requireAdmin(s.db, actorID); err != nil {
		return nil, err
	}

	var tb models.TotalBudget
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ceilings []decimal.Decimal
		if err := tx.Model(&models.Project{}).
			Where("budget_year = ? AND approval_status = ?", year, models.ProjectStatusApproved).
			Pluck("budget_occupied", &ceilings).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if allocated := sumDecimals(ceilings); amount.LessThan(allocated) {
			return apperrors.WithMessagef(apperrors.ErrInvalidInput,
				"total budget %s is below the %s already allocated for %d",
				amount.StringFixed(2), allocated.StringFixed(2), year)
		}

		err := tx.Where("year = ?", year).First(&tb).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			tb = models.TotalBudget{Year: year, Amount: amount, Notes: notes, UpdatedBy: actorID}
			return wrapDBError(tx.Create(&tb).Error)
		case err != nil:
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		tb.Amount = amount
		tb.Notes = notes
		tb.UpdatedBy = actorID
		return wrapDBError(tx.Model(&tb).Updates(map[string]any{
			"amount":     amount,
			"notes":      notes,
			"updated_by": actorID,
		}).Error)
	})
	if err != nil {
		return nil, err
	}
	return &tb, nil
}
