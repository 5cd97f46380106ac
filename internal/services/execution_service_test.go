package services

import (
	"strings"
	"testing"

	"gorm.io/gorm"

	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/testutil"
)

func createExecution(t *testing.T, db *gorm.DB, svc ExecutionServicer, actorID, projectID, amount string) (*models.BudgetExecution, error) {
	t.Helper()
	var out *models.BudgetExecution
	err := inTx(t, db, func(tx *gorm.DB) error {
		var err error
		out, err = svc.CreateExecution(tx, actorID, models.ExecutionCreatePayload{ProjectID: projectID, Amount: dec(amount)})
		return err
	})
	return out, err
}

func TestCreateExecutionRemainingBudget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewExecutionService(db, testAdmins)
	owner := testutil.CreateTestUser(t, db)
	project := testutil.CreateTestProject(t, db, owner.ID, "", 100)
	testutil.CreateTestExecution(t, db, project.ID, owner.ID, 40)

	t.Run("over_remaining", func(t *testing.T) {
		_, err := createExecution(t, db, svc, owner.ID, project.ID, "61")
		testutil.AssertAppError(t, err, "BUDGET_EXCEEDED")
		if !strings.Contains(err.Error(), "61") || !strings.Contains(err.Error(), "60.00") {
			t.Errorf("expected both figures in message, got %q", err.Error())
		}
		if n := countRows(t, db, &models.BudgetExecution{}); n != 1 {
			t.Errorf("expected rejected write to leave 1 execution, got %d", n)
		}
	})

	t.Run("exactly_remaining", func(t *testing.T) {
		_, err := createExecution(t, db, svc, owner.ID, project.ID, "60")
		testutil.AssertNoError(t, err)

		p := reloadProject(t, db, project.ID)
		if got := models.RemainingBudget(p).StringFixed(2); got != "0.00" {
			t.Errorf("expected remaining 0.00, got %s", got)
		}
	})

	t.Run("nothing_left", func(t *testing.T) {
		_, err := createExecution(t, db, svc, owner.ID, project.ID, "0.01")
		testutil.AssertAppError(t, err, "BUDGET_EXCEEDED")
	})
}

func TestCreateExecutionValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewExecutionService(db, testAdmins)
	owner := testutil.CreateTestUser(t, db)
	outsider := testutil.CreateTestUser(t, db)
	project := testutil.CreateTestProject(t, db, owner.ID, "", 100)

	t.Run("zero_amount", func(t *testing.T) {
		_, err := createExecution(t, db, svc, owner.ID, project.ID, "0")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_project", func(t *testing.T) {
		_, err := createExecution(t, db, svc, owner.ID, "0190c6c2-0000-7000-8000-000000000000", "1")
		testutil.AssertAppError(t, err, "PROJECT_NOT_FOUND")
	})

	t.Run("outsider", func(t *testing.T) {
		_, err := createExecution(t, db, svc, outsider.ID, project.ID, "1")
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	t.Run("not_approved", func(t *testing.T) {
		draft := testutil.CreateTestProject(t, db, owner.ID, "", 100)
		db.Model(draft).Update("approval_status", models.ProjectStatusDraft)
		_, err := createExecution(t, db, svc, owner.ID, draft.ID, "1")
		testutil.AssertAppError(t, err, "PROJECT_NOT_APPROVED")
	})

	t.Run("executor_may_record", func(t *testing.T) {
		db.Model(project).Update("executor_id", outsider.ID)
		_, err := createExecution(t, db, svc, outsider.ID, project.ID, "1")
		testutil.AssertNoError(t, err)
	})
}

func TestUpdateExecutionSelfExclusion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewExecutionService(db, testAdmins)
	owner := testutil.CreateTestUser(t, db)
	project := testutil.CreateTestProject(t, db, owner.ID, "", 100)
	testutil.CreateTestExecution(t, db, project.ID, owner.ID, 40)
	exec := testutil.CreateTestExecution(t, db, project.ID, owner.ID, 60)

	update := func(amount string) (*models.BudgetExecution, error) {
		var out *models.BudgetExecution
		err := inTx(t, db, func(tx *gorm.DB) error {
			a := dec(amount)
			var err error
			out, err = svc.UpdateExecution(tx, owner.ID, models.ExecutionUpdatePayload{ExecutionID: exec.ID, Amount: &a})
			return err
		})
		return out, err
	}

	t.Run("same_amount_passes", func(t *testing.T) {
		_, err := update("60")
		testutil.AssertNoError(t, err)
	})

	t.Run("reduced_amount", func(t *testing.T) {
		updated, err := update("35.25")
		testutil.AssertNoError(t, err)
		if got := updated.Amount.StringFixed(2); got != "35.25" {
			t.Errorf("expected 35.25, got %s", got)
		}
		if got := reloadProject(t, db, project.ID).BudgetExecuted.StringFixed(2); got != "75.25" {
			t.Errorf("expected executed 75.25, got %s", got)
		}
	})

	t.Run("over_budget", func(t *testing.T) {
		_, err := update("60.01")
		testutil.AssertAppError(t, err, "BUDGET_EXCEEDED")
		if !strings.Contains(err.Error(), "60.00") {
			t.Errorf("expected remaining 60.00 in message, got %q", err.Error())
		}
	})

	t.Run("missing", func(t *testing.T) {
		err := inTx(t, db, func(tx *gorm.DB) error {
			_, err := svc.UpdateExecution(tx, owner.ID, models.ExecutionUpdatePayload{ExecutionID: "0190c6c2-0000-7000-8000-000000000000"})
			return err
		})
		testutil.AssertAppError(t, err, "EXECUTION_NOT_FOUND")
	})
}

func TestDeleteExecution(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewExecutionService(db, testAdmins)
	owner := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	project := testutil.CreateTestProject(t, db, owner.ID, "", 100)
	exec := testutil.CreateTestExecution(t, db, project.ID, owner.ID, 30)

	testutil.AssertAppError(t, svc.DeleteExecution(other.ID, exec.ID), "FORBIDDEN")
	testutil.AssertNoError(t, svc.DeleteExecution(owner.ID, exec.ID))

	if got := reloadProject(t, db, project.ID).BudgetExecuted.StringFixed(2); got != "0.00" {
		t.Errorf("expected executed 0.00 after delete, got %s", got)
	}
	_, err := svc.GetExecutionByID(exec.ID)
	testutil.AssertAppError(t, err, "EXECUTION_NOT_FOUND")
}

func TestListExecutions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewExecutionService(db, testAdmins)
	owner := testutil.CreateTestUser(t, db)
	p1 := testutil.CreateTestProject(t, db, owner.ID, "", 100)
	p2 := testutil.CreateTestProject(t, db, owner.ID, "", 100)
	testutil.CreateTestExecution(t, db, p1.ID, owner.ID, 1)
	testutil.CreateTestExecution(t, db, p1.ID, owner.ID, 2)
	testutil.CreateTestExecution(t, db, p2.ID, owner.ID, 3)

	result, err := svc.GetExecutions(ExecutionFilter{ProjectID: p1.ID}, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if result.TotalItems != 2 {
		t.Errorf("expected 2 executions for p1, got %d", result.TotalItems)
	}

	list, err := svc.GetProjectExecutions(p2.ID)
	testutil.AssertNoError(t, err)
	if len(list) != 1 {
		t.Errorf("expected 1 execution for p2, got %d", len(list))
	}

	_, err = svc.GetProjectExecutions("0190c6c2-0000-7000-8000-000000000000")
	testutil.AssertAppError(t, err, "PROJECT_NOT_FOUND")
}

func TestExecutionPlans(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewExecutionService(db, testAdmins)
	owner := testutil.CreateTestUser(t, db)
	project := testutil.CreateTestProject(t, db, owner.ID, "", 100)

	_, err := svc.SetExecutionPlan(owner.ID, project.ID, 2025, 13, dec("1"))
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	_, err = svc.SetExecutionPlan(owner.ID, project.ID, 2025, 3, dec("10"))
	testutil.AssertNoError(t, err)
	plan, err := svc.SetExecutionPlan(owner.ID, project.ID, 2025, 3, dec("12.50"))
	testutil.AssertNoError(t, err)
	if got := plan.PlannedAmount.StringFixed(2); got != "12.50" {
		t.Errorf("expected replaced plan 12.50, got %s", got)
	}

	plans, err := svc.GetExecutionPlans(project.ID, 2025)
	testutil.AssertNoError(t, err)
	if len(plans) != 1 {
		t.Errorf("expected a single plan for March, got %d", len(plans))
	}
}
