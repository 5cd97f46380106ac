package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetExecution is one recorded expenditure against a project.
type BudgetExecution struct {
	Base
	ProjectID     string          `gorm:"type:uuid;not null;index" json:"project_id"`
	UserID        string          `gorm:"type:uuid;not null" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description   string          `json:"description"`
	ExecutionDate time.Time       `gorm:"not null" json:"execution_date"`
	VoucherURL    string          `json:"voucher_url,omitempty"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

// ExecutionPlan is the planned spend of a project for one month.
type ExecutionPlan struct {
	Base
	ProjectID     string          `gorm:"type:uuid;not null;uniqueIndex:uq_execution_plans_project_month" json:"project_id"`
	Year          int             `gorm:"not null;uniqueIndex:uq_execution_plans_project_month" json:"year"`
	Month         int             `gorm:"not null;uniqueIndex:uq_execution_plans_project_month" json:"month"`
	PlannedAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"planned_amount"`
}
