package models

import "github.com/shopspring/decimal"

// TotalBudget is the departmental ceiling for one budget year.
type TotalBudget struct {
	Base
	Year      int             `gorm:"not null;uniqueIndex" json:"year"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Notes     string          `json:"notes,omitempty"`
	UpdatedBy string          `gorm:"type:uuid" json:"updated_by"`
}

// BudgetFile is one uploaded version of the yearly budget document.
type BudgetFile struct {
	Base
	Year       int    `gorm:"not null;uniqueIndex:uq_budget_files_year_version" json:"year"`
	Version    int    `gorm:"not null;uniqueIndex:uq_budget_files_year_version" json:"version"`
	FileName   string `gorm:"not null" json:"file_name"`
	FileURL    string `gorm:"not null" json:"file_url"`
	UploadedBy string `gorm:"type:uuid;not null" json:"uploaded_by"`
	Notes      string `json:"notes,omitempty"`
}
