package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferType selects what a project transfer moves.
type TransferType string

const (
	TransferTypeOwnership          TransferType = "ownership"
	TransferTypeBudgetReallocation TransferType = "budget_reallocation"
	TransferTypeExecution          TransferType = "execution_transfer"
)

// TransferStatus is the state of a project transfer.
// pending -> approved -> completed, or pending -> rejected.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusApproved  TransferStatus = "approved"
	TransferStatusRejected  TransferStatus = "rejected"
	TransferStatusCompleted TransferStatus = "completed"
)

// ProjectTransfer is a two-party request to move a project's ownership,
// budget or execution rights to another user and group.
type ProjectTransfer struct {
	Base
	ProjectID       string          `gorm:"type:uuid;not null;index" json:"project_id"`
	TransferType    TransferType    `gorm:"not null" json:"transfer_type"`
	FromUserID      string          `gorm:"type:uuid;not null" json:"from_user_id"`
	ToUserID        string          `gorm:"type:uuid;not null" json:"to_user_id"`
	FromGroupID     *string         `gorm:"type:uuid" json:"from_group_id,omitempty"`
	ToGroupID       string          `gorm:"type:uuid;not null;index" json:"to_group_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"amount"`
	TargetProjectID *string         `gorm:"type:uuid" json:"target_project_id,omitempty"`
	Reason          string          `json:"reason"`
	Status          TransferStatus  `gorm:"not null;default:'pending';index" json:"status"`
	RequestedBy     string          `gorm:"type:uuid;not null" json:"requested_by"`
	ReviewedBy      *string         `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewNotes     string          `json:"review_notes,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ApprovalID      *string         `gorm:"type:uuid" json:"approval_id,omitempty"`

	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	FromUser  *User    `gorm:"foreignKey:FromUserID" json:"from_user,omitempty"`
	ToUser    *User    `gorm:"foreignKey:ToUserID" json:"to_user,omitempty"`
	FromGroup *Group   `gorm:"foreignKey:FromGroupID" json:"from_group,omitempty"`
	ToGroup   *Group   `gorm:"foreignKey:ToGroupID" json:"to_group,omitempty"`
}
