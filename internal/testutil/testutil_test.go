package testutil_test

import (
	"testing"

	"budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var count int64
	for _, table := range []string{"users", "groups", "group_members", "projects", "budget_executions", "approvals", "project_transfers", "total_budgets", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDBIsolated(t *testing.T) {
	db1 := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db1)
	db2 := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db2)

	testutil.CreateTestUser(t, db1)

	var count int64
	db2.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("expected second database to be empty, got %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}

	group := testutil.CreateTestGroup(t, db, user.ID)
	testutil.AddTestMember(t, db, group.ID, user.ID)

	project := testutil.CreateTestProject(t, db, user.ID, group.ID, 100)
	if project.GroupID == nil || *project.GroupID != group.ID {
		t.Errorf("expected project in group %s", group.ID)
	}

	testutil.CreateTestExecution(t, db, project.ID, user.ID, 40)

	var reloaded models.Project
	if err := db.First(&reloaded, "id = ?", project.ID).Error; err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	if got := reloaded.BudgetExecuted.StringFixed(2); got != "40.00" {
		t.Errorf("expected executed 40.00, got %s", got)
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrProjectNotFound, "custom message")
	testutil.AssertAppError(t, err, "PROJECT_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
