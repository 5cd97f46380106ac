package models

import "time"

// ApprovalStatus is the review state of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Approval gates a mutation behind the group manager's decision.
// RequestData holds the JSON encoding of the payload named by RequestType.
type Approval struct {
	Base
	RequestType RequestType    `gorm:"not null;index" json:"request_type"`
	RequestData string         `gorm:"type:text;not null" json:"request_data"`
	RequesterID string         `gorm:"type:uuid;not null;index" json:"requester_id"`
	ApproverID  string         `gorm:"type:uuid;not null;index" json:"approver_id"`
	GroupID     string         `gorm:"type:uuid;not null;index" json:"group_id"`
	Status      ApprovalStatus `gorm:"not null;default:'pending';index" json:"status"`
	ReviewNotes string         `json:"review_notes,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
	ResultID    string         `json:"result_id,omitempty"`

	Requester *User  `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Group     *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}
