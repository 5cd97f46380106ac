package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStatus is the approval lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusDraft    ProjectStatus = "draft"
	ProjectStatusPending  ProjectStatus = "pending"
	ProjectStatusApproved ProjectStatus = "approved"
	ProjectStatusRejected ProjectStatus = "rejected"
)

// Project is an R&D project with a yearly budget ceiling.
// BudgetExecuted is a denormalised copy of the sum of its executions and is
// refreshed on reads and after every execution write.
type Project struct {
	Base
	Name           string          `gorm:"not null" json:"name"`
	Code           string          `gorm:"index" json:"code,omitempty"`
	Category       string          `gorm:"index" json:"category"`
	Description    string          `json:"description"`
	BudgetYear     int             `gorm:"not null;index" json:"budget_year"`
	BudgetOccupied decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"budget_occupied"`
	BudgetExecuted decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"budget_executed"`
	UserID         string          `gorm:"type:uuid;not null;index" json:"user_id"`
	ExecutorID     *string         `gorm:"type:uuid" json:"executor_id,omitempty"`
	GroupID        *string         `gorm:"type:uuid;index" json:"group_id,omitempty"`
	ApprovalStatus ProjectStatus   `gorm:"not null;default:'draft'" json:"approval_status"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	EndDate        *time.Time      `json:"end_date,omitempty"`

	Owner *User  `gorm:"foreignKey:UserID" json:"owner,omitempty"`
	Group *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// RemainingBudget is the ceiling minus the denormalised executed total.
func RemainingBudget(p *Project) decimal.Decimal {
	return p.BudgetOccupied.Sub(p.BudgetExecuted)
}

// ExecutionRate is executed/budget, or zero for projects without a budget.
func ExecutionRate(p *Project) float64 {
	if !p.BudgetOccupied.IsPositive() {
		return 0
	}
	return p.BudgetExecuted.Div(p.BudgetOccupied).InexactFloat64()
}
