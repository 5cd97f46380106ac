package services

import (
	"strings"

	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
)

// budgetFileService keeps the versioned budget documents of each year.
type budgetFileService struct {
	db     *gorm.DB
	admins adminSet
}

// NewBudgetFileService creates a new BudgetFileServicer.
func NewBudgetFileService(db *gorm.DB, adminUsernames []string) BudgetFileServicer {
	return &budgetFileService{db: db, admins: newAdminSet(adminUsernames)}
}

// CreateBudgetFile records an uploaded document as the next version for its year.
func (s *budgetFileService) CreateBudgetFile(actorID string, year int, fileName, fileURL, notes string) (*models.BudgetFile, error) {
	if year <= 0 || strings.TrimSpace(fileName) == "" || fileURL == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "year and file are required")
	}
	if err := s.admins.requireAdmin(s.db, actorID); err != nil {
		return nil, err
	}

	var file *models.BudgetFile
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var latest int
		if err := tx.Model(&models.BudgetFile{}).Unscoped().Where("year = ?", year).
			Select("COALESCE(MAX(version), 0)").Scan(&latest).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		file = &models.BudgetFile{
			Year:       year,
			Version:    latest + 1,
			FileName:   fileName,
			FileURL:    fileURL,
			UploadedBy: actorID,
			Notes:      notes,
		}
		return wrapDBError(tx.Create(file).Error)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// GetBudgetFiles lists budget documents, newest version first. A nil year
// lists every year.
func (s *budgetFileService) GetBudgetFiles(year *int) ([]models.BudgetFile, error) {
	q := s.db.Model(&models.BudgetFile{})
	if year != nil {
		q = q.Where("year = ?", *year)
	}
	files := []models.BudgetFile{}
	if err := q.Order("year DESC, version DESC").Find(&files).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return files, nil
}
