package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

type mockProjectService struct {
	getProjectsFn    func(filter services.ProjectFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error)
	getProjectByIDFn func(id string) (*models.Project, error)
	deleteProjectFn  func(actorID, projectID string) error
}

var _ services.ProjectServicer = (*mockProjectService)(nil)

func (m *mockProjectService) CreateProject(_ *gorm.DB, ownerID string, p models.ProjectCreatePayload) (*models.Project, error) {
	return &models.Project{Name: p.Name, UserID: ownerID}, nil
}

func (m *mockProjectService) ProposeProject(_ *gorm.DB, ownerID string, p models.ProjectCreatePayload) (*models.Project, error) {
	return &models.Project{Name: p.Name, UserID: ownerID, ApprovalStatus: models.ProjectStatusPending}, nil
}

func (m *mockProjectService) DecideProject(_ *gorm.DB, projectID string, status models.ProjectStatus) (*models.Project, error) {
	return &models.Project{Base: models.Base{ID: projectID}, ApprovalStatus: status}, nil
}

func (m *mockProjectService) UpdateProject(_ *gorm.DB, _ string, p models.ProjectUpdatePayload) (*models.Project, error) {
	return &models.Project{Base: models.Base{ID: p.ProjectID}}, nil
}

func (m *mockProjectService) DeleteProject(actorID, projectID string) error {
	if m.deleteProjectFn != nil {
		return m.deleteProjectFn(actorID, projectID)
	}
	return nil
}

func (m *mockProjectService) GetProjects(filter services.ProjectFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error) {
	if m.getProjectsFn != nil {
		return m.getProjectsFn(filter, page)
	}
	page.Defaults()
	resp := pagination.NewPageResponse([]models.Project{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

func (m *mockProjectService) GetProjectByID(id string) (*models.Project, error) {
	if m.getProjectByIDFn != nil {
		return m.getProjectByIDFn(id)
	}
	return &models.Project{Base: models.Base{ID: id}}, nil
}

const testProjectID = "0190f3a4-7b2c-7d4e-8f10-555555555555"

func setupProjectRouter(handler *ProjectHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/projects", handler.CreateProject)
	auth.GET("/projects", handler.GetProjects)
	auth.GET("/projects/:id", handler.GetProject)
	auth.PUT("/projects/:id", handler.UpdateProject)
	auth.DELETE("/projects/:id", handler.DeleteProject)
	return r
}

func TestProjectHandler_CreateProject(t *testing.T) {
	t.Run("executed returns 201", func(t *testing.T) {
		var got models.ProjectCreatePayload
		approvals := &mockApprovalService{
			dispatchFn: func(_ string, payload models.RequestPayload) (*services.SubmitResult, error) {
				got = payload.(models.ProjectCreatePayload)
				return &services.SubmitResult{Executed: true, ResultID: "p-1"}, nil
			},
		}
		audit := &mockAuditService{}
		handler := NewProjectHandler(&mockProjectService{}, approvals, audit)
		r := setupProjectRouter(handler)

		rec := doRequest(r, "POST", "/projects",
			`{"name":"Lidar","category":"equipment","budget_occupied":"1500.50","start_date":"2025-02-01"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.BudgetOccupied.Equal(decimal.RequireFromString("1500.5")) {
			t.Errorf("expected budget 1500.50, got %s", got.BudgetOccupied)
		}
		if got.StartDate == nil || got.StartDate.Month() != 2 {
			t.Errorf("expected start date in February, got %v", got.StartDate)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "CREATE_PROJECT" {
			t.Errorf("unexpected audit actions %v", audit.actions)
		}
	})

	t.Run("pending returns 202", func(t *testing.T) {
		approvals := &mockApprovalService{
			dispatchFn: func(string, models.RequestPayload) (*services.SubmitResult, error) {
				return &services.SubmitResult{Approval: &models.Approval{Base: models.Base{ID: "ap-1"}}}, nil
			},
		}
		audit := &mockAuditService{}
		handler := NewProjectHandler(&mockProjectService{}, approvals, audit)
		r := setupProjectRouter(handler)

		rec := doRequest(r, "POST", "/projects",
			`{"name":"Lidar","category":"equipment","budget_occupied":"100","group_id":"`+testGroupID+`"}`)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(audit.actions) != 1 || audit.actions[0] != "SUBMIT_CREATE_PROJECT" {
			t.Errorf("unexpected audit actions %v", audit.actions)
		}
	})

	t.Run("returns 400 on bad date", func(t *testing.T) {
		handler := NewProjectHandler(&mockProjectService{}, &mockApprovalService{}, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "POST", "/projects",
			`{"name":"Lidar","category":"equipment","budget_occupied":"100","end_date":"31/12/2025"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on missing category", func(t *testing.T) {
		handler := NewProjectHandler(&mockProjectService{}, &mockApprovalService{}, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "POST", "/projects", `{"name":"Lidar"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestProjectHandler_GetProjects(t *testing.T) {
	var got services.ProjectFilter
	svc := &mockProjectService{
		getProjectsFn: func(filter services.ProjectFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error) {
			got = filter
			resp := pagination.NewPageResponse([]models.Project{{Name: "a"}}, 1, 20, 1)
			return &resp, nil
		},
	}
	handler := NewProjectHandler(svc, &mockApprovalService{}, &mockAuditService{})
	r := setupProjectRouter(handler)

	rec := doRequest(r, "GET", "/projects?year=2025&category=software&status=approved", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Year == nil || *got.Year != 2025 {
		t.Errorf("expected year 2025, got %v", got.Year)
	}
	if got.Category != "software" {
		t.Errorf("expected category software, got %s", got.Category)
	}
	if got.Status == nil || *got.Status != models.ProjectStatusApproved {
		t.Errorf("expected approved status, got %v", got.Status)
	}
}

func TestProjectHandler_GetProject(t *testing.T) {
	t.Run("includes remaining budget", func(t *testing.T) {
		svc := &mockProjectService{
			getProjectByIDFn: func(id string) (*models.Project, error) {
				return &models.Project{
					Base:           models.Base{ID: id},
					BudgetOccupied: decimal.NewFromInt(200),
					BudgetExecuted: decimal.NewFromInt(50),
				}, nil
			},
		}
		handler := NewProjectHandler(svc, &mockApprovalService{}, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "GET", "/projects/"+testProjectID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := dataObject(t, parseJSON(t, rec))
		if data["remaining_budget"] != "150" {
			t.Errorf("expected remaining 150, got %v", data["remaining_budget"])
		}
		if data["execution_rate"] != 0.25 {
			t.Errorf("expected rate 0.25, got %v", data["execution_rate"])
		}
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockProjectService{
			getProjectByIDFn: func(string) (*models.Project, error) { return nil, apperrors.ErrProjectNotFound },
		}
		handler := NewProjectHandler(svc, &mockApprovalService{}, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "GET", "/projects/"+testProjectID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PROJECT_NOT_FOUND")
	})
}

func TestProjectHandler_UpdateProject(t *testing.T) {
	t.Run("passes only provided fields", func(t *testing.T) {
		var got models.ProjectUpdatePayload
		approvals := &mockApprovalService{
			dispatchFn: func(_ string, payload models.RequestPayload) (*services.SubmitResult, error) {
				got = payload.(models.ProjectUpdatePayload)
				return &services.SubmitResult{Executed: true, ResultID: got.ProjectID}, nil
			},
		}
		handler := NewProjectHandler(&mockProjectService{}, approvals, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "PUT", "/projects/"+testProjectID, `{"budget_occupied":"80.00"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.ProjectID != testProjectID {
			t.Errorf("expected project %s, got %s", testProjectID, got.ProjectID)
		}
		if got.Name != nil || got.StartDate != nil {
			t.Error("expected unspecified fields to stay nil")
		}
		if got.BudgetOccupied == nil || got.BudgetOccupied.StringFixed(2) != "80.00" {
			t.Errorf("expected budget 80.00, got %v", got.BudgetOccupied)
		}
	})

	t.Run("budget below executed returns 400", func(t *testing.T) {
		approvals := &mockApprovalService{
			dispatchFn: func(string, models.RequestPayload) (*services.SubmitResult, error) {
				return nil, apperrors.ErrBudgetBelowExecuted
			},
		}
		handler := NewProjectHandler(&mockProjectService{}, approvals, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "PUT", "/projects/"+testProjectID, `{"budget_occupied":"1"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_BELOW_EXECUTED")
	})
}

func TestProjectHandler_DeleteProject(t *testing.T) {
	t.Run("returns 200", func(t *testing.T) {
		handler := NewProjectHandler(&mockProjectService{}, &mockApprovalService{}, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "DELETE", "/projects/"+testProjectID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("project with executions returns 400", func(t *testing.T) {
		svc := &mockProjectService{
			deleteProjectFn: func(_, _ string) error { return apperrors.ErrProjectHasExecutions },
		}
		handler := NewProjectHandler(svc, &mockApprovalService{}, &mockAuditService{})
		r := setupProjectRouter(handler)

		rec := doRequest(r, "DELETE", "/projects/"+testProjectID, "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PROJECT_HAS_EXECUTIONS")
	})
}
