package models

import "github.com/shopspring/decimal"

// BudgetAdjustment records unspent budget carved out of a source project
// into a newly created target project.
type BudgetAdjustment struct {
	Base
	SourceProjectID string          `gorm:"type:uuid;not null;index" json:"source_project_id"`
	TargetProjectID string          `gorm:"type:uuid;not null" json:"target_project_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	TargetCategory  string          `json:"target_category"`
	TargetOwnerID   string          `gorm:"type:uuid;not null" json:"target_owner_id"`
	Reason          string          `json:"reason"`
	CreatedBy       string          `gorm:"type:uuid;not null" json:"created_by"`

	SourceProject *Project `gorm:"foreignKey:SourceProjectID" json:"source_project,omitempty"`
	TargetProject *Project `gorm:"foreignKey:TargetProjectID" json:"target_project,omitempty"`
}
