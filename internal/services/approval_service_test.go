package services

import (
	"strings"
	"testing"

	"gorm.io/gorm"

	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/testutil"
)

type approvalFixture struct {
	db       *gorm.DB
	svc      ApprovalServicer
	pm       *models.User
	member   *models.User
	outsider *models.User
	group    *models.Group
	project  *models.Project
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	f := &approvalFixture{db: db}
	f.svc = NewApprovalService(db, testAdmins,
		NewProjectService(db, testAdmins, 0),
		NewExecutionService(db, testAdmins),
		NewAdjustmentService(db, testAdmins),
		NewTransferService(db, testAdmins),
	)
	f.pm = testutil.CreateTestUser(t, db)
	f.member = testutil.CreateTestUser(t, db)
	f.outsider = testutil.CreateTestUser(t, db)
	f.group = testutil.CreateTestGroup(t, db, f.pm.ID)
	testutil.AddTestMember(t, db, f.group.ID, f.member.ID)
	f.project = testutil.CreateTestProject(t, db, f.member.ID, f.group.ID, 100)
	return f
}

func TestSubmit(t *testing.T) {
	t.Run("group_not_found", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		_, err := f.svc.Submit(f.member.ID, "0190c6c2-0000-7000-8000-000000000000",
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec("1")})
		testutil.AssertAppError(t, err, "GROUP_NOT_FOUND")
	})

	t.Run("manager_bypass_creates_no_approval", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		result, err := f.svc.Submit(f.pm.ID, f.group.ID,
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec("25")})
		testutil.AssertNoError(t, err)

		if !result.Executed || result.Approval != nil {
			t.Fatalf("expected immediate execution, got %+v", result)
		}
		if n := countRows(t, f.db, &models.Approval{}); n != 0 {
			t.Errorf("expected no approval rows, got %d", n)
		}
		if got := reloadProject(t, f.db, f.project.ID).BudgetExecuted.StringFixed(2); got != "25.00" {
			t.Errorf("expected execution visible at once, executed %s", got)
		}
	})

	t.Run("non_member_forbidden", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		_, err := f.svc.Submit(f.outsider.ID, f.group.ID,
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec("1")})
		testutil.AssertAppError(t, err, "NOT_GROUP_MEMBER")
		if n := countRows(t, f.db, &models.Approval{}); n != 0 {
			t.Errorf("expected no approval rows, got %d", n)
		}
	})

	t.Run("member_creates_pending_approval", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		result, err := f.svc.Submit(f.member.ID, f.group.ID,
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec("25")})
		testutil.AssertNoError(t, err)

		if result.Executed || result.Approval == nil {
			t.Fatalf("expected pending approval, got %+v", result)
		}
		if result.Approval.ApproverID != f.pm.ID {
			t.Errorf("expected approver %s, got %s", f.pm.ID, result.Approval.ApproverID)
		}
		if result.Approval.Status != models.ApprovalStatusPending {
			t.Errorf("expected pending, got %s", result.Approval.Status)
		}
		if n := countRows(t, f.db, &models.BudgetExecution{}); n != 0 {
			t.Errorf("expected no execution before review, got %d", n)
		}
	})

	t.Run("member_over_budget_rejected_up_front", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		_, err := f.svc.Submit(f.member.ID, f.group.ID,
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec("101")})
		testutil.AssertAppError(t, err, "BUDGET_EXCEEDED")
		if n := countRows(t, f.db, &models.Approval{}); n != 0 {
			t.Errorf("expected no approval rows, got %d", n)
		}
	})

	t.Run("target_in_other_group", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)
		other := testutil.CreateTestGroup(t, f.db, f.member.ID)

		_, err := f.svc.Submit(f.member.ID, other.ID,
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec("1")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("project_create_takes_group", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		result, err := f.svc.Submit(f.pm.ID, f.group.ID,
			models.ProjectCreatePayload{Name: "New", Category: "c", BudgetOccupied: dec("10")})
		testutil.AssertNoError(t, err)
		project := result.Result.(*models.Project)
		if project.GroupID == nil || *project.GroupID != f.group.ID {
			t.Error("expected created project to be scoped to the group")
		}
	})
}

func TestDispatch(t *testing.T) {
	f := newApprovalFixture(t)
	defer testutil.TeardownTestDB(t, f.db)
	solo := testutil.CreateTestProject(t, f.db, f.outsider.ID, "", 50)

	t.Run("ungrouped_runs_directly", func(t *testing.T) {
		result, err := f.svc.Dispatch(f.outsider.ID, models.ExecutionCreatePayload{ProjectID: solo.ID, Amount: dec("5")})
		testutil.AssertNoError(t, err)
		if !result.Executed || result.ResultID == "" {
			t.Errorf("expected direct execution, got %+v", result)
		}
	})

	t.Run("grouped_goes_to_manager", func(t *testing.T) {
		result, err := f.svc.Dispatch(f.member.ID, models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec("5")})
		testutil.AssertNoError(t, err)
		if result.Executed || result.Approval == nil {
			t.Errorf("expected approval, got %+v", result)
		}
	})

	t.Run("transfer_payload_refused", func(t *testing.T) {
		_, err := f.svc.Dispatch(f.member.ID, models.ProjectTransferPayload{TransferID: "x"})
		testutil.AssertAppError(t, err, "INVALID_REQUEST_TYPE")
	})
}

func TestReview(t *testing.T) {
	submit := func(t *testing.T, f *approvalFixture, amount string) *models.Approval {
		t.Helper()
		result, err := f.svc.Submit(f.member.ID, f.group.ID,
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec(amount)})
		testutil.AssertNoError(t, err)
		return result.Approval
	}

	t.Run("guards", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)
		approval := submit(t, f, "10")

		_, err := f.svc.Review(f.pm.ID, "0190c6c2-0000-7000-8000-000000000000", ReviewApprove, "")
		testutil.AssertAppError(t, err, "APPROVAL_NOT_FOUND")

		_, err = f.svc.Review(f.member.ID, approval.ID, ReviewApprove, "")
		testutil.AssertAppError(t, err, "NOT_APPROVER")

		_, err = f.svc.Review(f.pm.ID, approval.ID, "maybe", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("approve_executes", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)
		approval := submit(t, f, "10")

		reviewed, err := f.svc.Review(f.pm.ID, approval.ID, ReviewApprove, "ok")
		testutil.AssertNoError(t, err)
		if reviewed.Status != models.ApprovalStatusApproved || reviewed.ResultID == "" {
			t.Errorf("expected approved with result, got %s/%q", reviewed.Status, reviewed.ResultID)
		}
		if reviewed.ReviewedAt == nil {
			t.Error("expected reviewed_at to be set")
		}

		var exec models.BudgetExecution
		if err := f.db.First(&exec, "id = ?", reviewed.ResultID).Error; err != nil {
			t.Fatalf("expected execution %s: %v", reviewed.ResultID, err)
		}
		if exec.UserID != f.member.ID {
			t.Errorf("expected execution recorded for requester, got %s", exec.UserID)
		}

		_, err = f.svc.Review(f.pm.ID, approval.ID, ReviewReject, "")
		testutil.AssertAppError(t, err, "APPROVAL_ALREADY_REVIEWED")
	})

	t.Run("reject_discards", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)
		approval := submit(t, f, "10")

		reviewed, err := f.svc.Review(f.pm.ID, approval.ID, ReviewReject, "no")
		testutil.AssertNoError(t, err)
		if reviewed.Status != models.ApprovalStatusRejected {
			t.Errorf("expected rejected, got %s", reviewed.Status)
		}
		if n := countRows(t, f.db, &models.BudgetExecution{}); n != 0 {
			t.Errorf("expected no execution, got %d", n)
		}

		_, err = f.svc.Review(f.pm.ID, approval.ID, ReviewApprove, "")
		testutil.AssertAppError(t, err, "APPROVAL_ALREADY_REVIEWED")
	})

	t.Run("executor_failure_rolls_back_to_pending", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)
		first := submit(t, f, "60")
		second := submit(t, f, "60")

		_, err := f.svc.Review(f.pm.ID, first.ID, ReviewApprove, "")
		testutil.AssertNoError(t, err)

		_, err = f.svc.Review(f.pm.ID, second.ID, ReviewApprove, "")
		testutil.AssertAppError(t, err, "BUDGET_EXCEEDED")

		reloaded, err := f.svc.GetApprovalByID(second.ID)
		testutil.AssertNoError(t, err)
		if reloaded.Status != models.ApprovalStatusPending {
			t.Errorf("expected approval back at pending, got %s", reloaded.Status)
		}
		if !strings.HasPrefix(reloaded.ReviewNotes, "execution failed: ") ||
			!strings.Contains(reloaded.ReviewNotes, "40.00") {
			t.Errorf("expected failure recorded in notes, got %q", reloaded.ReviewNotes)
		}
		if got := reloadProject(t, f.db, f.project.ID).BudgetExecuted.StringFixed(2); got != "60.00" {
			t.Errorf("expected only first execution applied, got %s", got)
		}

		// A pending approval can still be rejected after a failed attempt.
		_, err = f.svc.Review(f.pm.ID, second.ID, ReviewReject, "")
		testutil.AssertNoError(t, err)
	})

	t.Run("project_proposal_lifecycle", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		propose := func(name string) (*models.Approval, string) {
			t.Helper()
			// A client-supplied project reference must not hijack an existing project.
			result, err := f.svc.Submit(f.member.ID, f.group.ID, models.ProjectCreatePayload{
				ProjectID: f.project.ID, Name: name, Category: "c", BudgetOccupied: dec("10"),
			})
			testutil.AssertNoError(t, err)
			payload, err := models.DecodePayload(result.Approval.RequestType, result.Approval.RequestData)
			testutil.AssertNoError(t, err)
			projectID := payload.(models.ProjectCreatePayload).ProjectID
			if projectID == "" || projectID == f.project.ID {
				t.Fatalf("expected a newly proposed project, got %q", projectID)
			}
			return result.Approval, projectID
		}

		approval, projectID := propose("Proposal")
		proposed := reloadProject(t, f.db, projectID)
		if proposed.ApprovalStatus != models.ProjectStatusPending {
			t.Errorf("expected pending project, got %s", proposed.ApprovalStatus)
		}
		if proposed.GroupID == nil || *proposed.GroupID != f.group.ID || proposed.UserID != f.member.ID {
			t.Error("expected proposal owned by the member inside the group")
		}

		_, err := f.svc.Submit(f.pm.ID, f.group.ID,
			models.ExecutionCreatePayload{ProjectID: projectID, Amount: dec("1")})
		testutil.AssertAppError(t, err, "PROJECT_NOT_APPROVED")

		reviewed, err := f.svc.Review(f.pm.ID, approval.ID, ReviewApprove, "")
		testutil.AssertNoError(t, err)
		if reviewed.ResultID != projectID {
			t.Errorf("expected result %s, got %q", projectID, reviewed.ResultID)
		}
		if got := reloadProject(t, f.db, projectID).ApprovalStatus; got != models.ProjectStatusApproved {
			t.Errorf("expected approved project, got %s", got)
		}
		if n := countRows(t, f.db, &models.Project{}); n != 2 {
			t.Errorf("expected approval to reuse the proposed row, got %d projects", n)
		}

		rejectedApproval, rejectedID := propose("Declined")
		_, err = f.svc.Review(f.pm.ID, rejectedApproval.ID, ReviewReject, "no")
		testutil.AssertNoError(t, err)
		if got := reloadProject(t, f.db, rejectedID).ApprovalStatus; got != models.ProjectStatusRejected {
			t.Errorf("expected rejected project, got %s", got)
		}
		if got := reloadProject(t, f.db, f.project.ID).ApprovalStatus; got != models.ProjectStatusApproved {
			t.Errorf("expected existing project untouched, got %s", got)
		}
	})

	t.Run("transfer_failure_rolls_back_to_pending", func(t *testing.T) {
		f := newApprovalFixture(t)
		defer testutil.TeardownTestDB(t, f.db)

		targetPM := testutil.CreateTestUser(t, f.db)
		receiver := testutil.CreateTestUser(t, f.db)
		target := testutil.CreateTestGroup(t, f.db, targetPM.ID)
		testutil.AddTestMember(t, f.db, target.ID, receiver.ID)

		transfer, err := NewTransferService(f.db, testAdmins).InitiateTransfer(f.member.ID, InitiateTransferInput{
			ProjectID:    f.project.ID,
			TransferType: models.TransferTypeOwnership,
			ToUser:       receiver.Username,
			ToGroup:      target.Name,
		})
		testutil.AssertNoError(t, err)
		if transfer.ApprovalID == nil {
			t.Fatal("expected a companion approval")
		}
		companionID := *transfer.ApprovalID

		if err := f.db.Delete(&models.Project{}, "id = ?", f.project.ID).Error; err != nil {
			t.Fatalf("failed to delete project: %v", err)
		}

		_, err = f.svc.Review(targetPM.ID, companionID, ReviewApprove, "")
		testutil.AssertAppError(t, err, "PROJECT_NOT_FOUND")

		reloaded, err := f.svc.GetApprovalByID(companionID)
		testutil.AssertNoError(t, err)
		if reloaded.Status != models.ApprovalStatusPending {
			t.Errorf("expected companion approval back at pending, got %s", reloaded.Status)
		}
		if !strings.HasPrefix(reloaded.ReviewNotes, "execution failed: ") {
			t.Errorf("expected failure recorded in notes, got %q", reloaded.ReviewNotes)
		}
		var stored models.ProjectTransfer
		if err := f.db.First(&stored, "id = ?", transfer.ID).Error; err != nil {
			t.Fatalf("failed to reload transfer: %v", err)
		}
		if stored.Status != models.TransferStatusApproved {
			t.Errorf("expected transfer to stay approved, got %s", stored.Status)
		}

		if err := f.db.Unscoped().Model(&models.Project{}).Where("id = ?", f.project.ID).
			Update("deleted_at", nil).Error; err != nil {
			t.Fatalf("failed to restore project: %v", err)
		}
		reviewed, err := f.svc.Review(targetPM.ID, companionID, ReviewApprove, "retry")
		testutil.AssertNoError(t, err)
		if reviewed.Status != models.ApprovalStatusApproved || reviewed.ResultID != transfer.ID {
			t.Errorf("expected approved companion pointing at transfer, got %s/%q", reviewed.Status, reviewed.ResultID)
		}
		if project := reloadProject(t, f.db, f.project.ID); project.UserID != receiver.ID {
			t.Errorf("expected new owner %s, got %s", receiver.ID, project.UserID)
		}
	})
}

func TestApprovalQueries(t *testing.T) {
	f := newApprovalFixture(t)
	defer testutil.TeardownTestDB(t, f.db)
	admin := testutil.CreateTestUserWithName(t, f.db, "admin")

	for _, amount := range []string{"1", "2", "3"} {
		_, err := f.svc.Submit(f.member.ID, f.group.ID,
			models.ExecutionCreatePayload{ProjectID: f.project.ID, Amount: dec(amount)})
		testutil.AssertNoError(t, err)
	}

	pending, err := f.svc.GetPendingApprovals(f.pm.ID, f.pm.ID)
	testutil.AssertNoError(t, err)
	if len(pending) != 3 {
		t.Errorf("expected 3 pending, got %d", len(pending))
	}

	_, err = f.svc.Review(f.pm.ID, pending[0].ID, ReviewReject, "")
	testutil.AssertNoError(t, err)

	_, err = f.svc.GetPendingApprovals(f.member.ID, f.pm.ID)
	testutil.AssertAppError(t, err, "FORBIDDEN")

	viaAdmin, err := f.svc.GetPendingApprovals(admin.ID, f.pm.ID)
	testutil.AssertNoError(t, err)
	if len(viaAdmin) != 2 {
		t.Errorf("expected 2 pending after one review, got %d", len(viaAdmin))
	}

	rejected := models.ApprovalStatusRejected
	history, err := f.svc.GetApprovalHistory(ApprovalFilter{Status: &rejected, RequesterID: f.member.ID}, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if history.TotalItems != 1 {
		t.Errorf("expected 1 rejected approval, got %d", history.TotalItems)
	}
}
