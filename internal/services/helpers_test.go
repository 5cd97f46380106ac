package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgettracker/internal/models"
)

var testAdmins = []string{"admin"}

// inTx runs fn in a transaction, the way the approval workflow calls the
// domain services.
func inTx(t *testing.T, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	t.Helper()
	return db.Transaction(fn)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func reloadProject(t *testing.T, db *gorm.DB, id string) *models.Project {
	t.Helper()
	var p models.Project
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	return &p
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}
