package models

import "time"

// User is a project manager or employee who owns projects and records spend.
type User struct {
	Base
	Username      string     `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName   string     `json:"display_name"`
	Email         string     `json:"email,omitempty"`
	Password      string     `gorm:"not null" json:"-"`
	AccessKeyHash string     `gorm:"size:64;index" json:"-"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}
