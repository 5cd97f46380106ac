package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"budgettracker/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an active user with a unique username.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithName(t, db, fmt.Sprintf("user%d", nextID()))
}

// CreateTestUserWithName creates an active user with the given username.
// The display name is the username with a "Display " prefix.
func CreateTestUserWithName(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:    username,
		DisplayName: "Display " + username,
		Email:       username + "@test.com",
		Password:    string(hash),
		IsActive:    true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestGroup creates a group managed by pmID.
func CreateTestGroup(t *testing.T, db *gorm.DB, pmID string) *models.Group {
	t.Helper()

	group := &models.Group{
		Name: fmt.Sprintf("Group %d", nextID()),
		PMID: pmID,
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test group: %v", err)
	}
	return group
}

// AddTestMember adds userID to the group.
func AddTestMember(t *testing.T, db *gorm.DB, groupID, userID string) *models.GroupMember {
	t.Helper()

	member := &models.GroupMember{GroupID: groupID, UserID: userID}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to add test member: %v", err)
	}
	return member
}

// CreateTestProject creates an approved project owned by ownerID with the
// given budget ceiling. groupID may be empty for an ungrouped project.
func CreateTestProject(t *testing.T, db *gorm.DB, ownerID, groupID string, budget int64) *models.Project {
	t.Helper()

	n := nextID()
	project := &models.Project{
		Name:           fmt.Sprintf("Project %d", n),
		Code:           fmt.Sprintf("P-%04d", n),
		Category:       "research",
		BudgetYear:     time.Now().Year(),
		BudgetOccupied: decimal.NewFromInt(budget),
		UserID:         ownerID,
		ApprovalStatus: models.ProjectStatusApproved,
	}
	if groupID != "" {
		project.GroupID = &groupID
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

// CreateTestExecution records an execution without running the budget
// check and refreshes the project's executed total.
func CreateTestExecution(t *testing.T, db *gorm.DB, projectID, userID string, amount int64) *models.BudgetExecution {
	t.Helper()

	exec := &models.BudgetExecution{
		ProjectID:     projectID,
		UserID:        userID,
		Amount:        decimal.NewFromInt(amount),
		Description:   fmt.Sprintf("Execution %d", nextID()),
		ExecutionDate: time.Now(),
	}
	if err := db.Create(exec).Error; err != nil {
		t.Fatalf("failed to create test execution: %v", err)
	}

	var amounts []decimal.Decimal
	if err := db.Model(&models.BudgetExecution{}).Where("project_id = ?", projectID).Pluck("amount", &amounts).Error; err != nil {
		t.Fatalf("failed to sum executions: %v", err)
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	if err := db.Model(&models.Project{}).Where("id = ?", projectID).Update("budget_executed", total).Error; err != nil {
		t.Fatalf("failed to refresh executed total: %v", err)
	}
	return exec
}

// CreateTestTotalBudget sets the departmental ceiling for a year.
func CreateTestTotalBudget(t *testing.T, db *gorm.DB, year int, amount int64) *models.TotalBudget {
	t.Helper()

	tb := &models.TotalBudget{Year: year, Amount: decimal.NewFromInt(amount)}
	if err := db.Create(tb).Error; err != nil {
		t.Fatalf("failed to create test total budget: %v", err)
	}
	return tb
}
