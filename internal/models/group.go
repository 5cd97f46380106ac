package models

// Group is a department unit with exactly one manager (PM) who approves
// requests raised by its members.
type Group struct {
	Base
	Name        string        `gorm:"uniqueIndex;not null" json:"name"`
	Description string        `json:"description"`
	PMID        string        `gorm:"column:pm_id;type:uuid;not null;index" json:"pm_id"`
	PM          *User         `gorm:"foreignKey:PMID" json:"pm,omitempty"`
	Members     []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// GroupMember joins users to groups. AddedBy records who granted membership.
type GroupMember struct {
	Base
	GroupID string `gorm:"type:uuid;not null;uniqueIndex:uq_group_members_group_user" json:"group_id"`
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:uq_group_members_group_user" json:"user_id"`
	AddedBy string `gorm:"type:uuid" json:"added_by"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
