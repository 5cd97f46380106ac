package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

// ProjectHandler handles project requests. Creates and updates go through
// the approval workflow of the project's group.
type ProjectHandler struct {
	projectService  services.ProjectServicer
	approvalService services.ApprovalServicer
	auditService    services.AuditServicer
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(
	projectService services.ProjectServicer,
	approvalService services.ApprovalServicer,
	auditService services.AuditServicer,
) *ProjectHandler {
	return &ProjectHandler{
		projectService:  projectService,
		approvalService: approvalService,
		auditService:    auditService,
	}
}

// CreateProjectRequest represents the request payload for creating a project
type CreateProjectRequest struct {
	Name           string          `json:"name" binding:"required,min=1,max=200"`
	Code           string          `json:"code" binding:"max=50"`
	Category       string          `json:"category" binding:"required,min=1,max=100"`
	Description    string          `json:"description" binding:"max=2000"`
	BudgetYear     int             `json:"budget_year" binding:"omitempty,budget_year"`
	BudgetOccupied decimal.Decimal `json:"budget_occupied" swaggertype:"string" example:"100000.00"`
	GroupID        string          `json:"group_id" binding:"omitempty,uuid"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
}

// UpdateProjectRequest represents the request payload for updating a project
type UpdateProjectRequest struct {
	Name           *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Code           *string          `json:"code" binding:"omitempty,max=50"`
	Category       *string          `json:"category" binding:"omitempty,min=1,max=100"`
	Description    *string          `json:"description" binding:"omitempty,max=2000"`
	BudgetOccupied *decimal.Decimal `json:"budget_occupied" swaggertype:"string"`
	StartDate      *string          `json:"start_date"`
	EndDate        *string          `json:"end_date"`
}

// ProjectListQuery holds the filters accepted by the project list.
type ProjectListQuery struct {
	pagination.PageRequest
	Year     int    `form:"year" binding:"omitempty,budget_year"`
	Category string `form:"category"`
	GroupID  string `form:"group_id" binding:"omitempty,uuid"`
	OwnerID  string `form:"owner_id" binding:"omitempty,uuid"`
	Status   string `form:"status" binding:"omitempty,project_status"`
}

// CreateProject creates a project, or submits it for approval when it is
// scoped to a group the caller does not manage.
// @Summary     Create a project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body CreateProjectRequest true "Project details"
// @Success     201 {object} SuccessResponse "Project created"
// @Success     202 {object} SuccessResponse "Awaiting approval"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not a group member"
// @Router      /projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	endDate, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.approvalService.Dispatch(userID, models.ProjectCreatePayload{
		Name:           req.Name,
		Code:           req.Code,
		Category:       req.Category,
		Description:    req.Description,
		BudgetYear:     req.BudgetYear,
		BudgetOccupied: req.BudgetOccupied,
		GroupID:        req.GroupID,
		StartDate:      startDate,
		EndDate:        endDate,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, submitAction("CREATE_PROJECT", result), "project", resultRef(result), c.ClientIP(),
		map[string]interface{}{"name": req.Name, "budget_occupied": req.BudgetOccupied.StringFixed(2)})

	respondSubmitted(c, result)
}

// GetProjects lists projects.
// @Summary     List projects
// @Tags        projects
// @Produce     json
// @Security    AccessKey
// @Param       year      query int    false "Budget year"
// @Param       category  query string false "Category"
// @Param       group_id  query string false "Group ID"
// @Param       owner_id  query string false "Owner ID"
// @Param       status    query string false "Approval status"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Success     200 {object} PageEnvelope "Projects"
// @Router      /projects [get]
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	var q ProjectListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.ProjectFilter{Category: q.Category, GroupID: q.GroupID, OwnerID: q.OwnerID}
	if q.Year != 0 {
		filter.Year = &q.Year
	}
	if q.Status != "" {
		status := models.ProjectStatus(q.Status)
		filter.Status = &status
	}

	result, err := h.projectService.GetProjects(filter, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, result)
}

// GetProject returns one project with its remaining budget.
// @Summary     Get project by ID
// @Tags        projects
// @Produce     json
// @Security    AccessKey
// @Param       id path string true "Project ID"
// @Success     200 {object} SuccessResponse "Project"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	project, err := h.projectService.GetProjectByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"project":          project,
		"remaining_budget": models.RemainingBudget(project),
		"execution_rate":   models.ExecutionRate(project),
	})
}

// UpdateProject changes a project, or submits the change for approval.
// @Summary     Update project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       id      path string               true "Project ID"
// @Param       request body UpdateProjectRequest true "Fields to change"
// @Success     201 {object} SuccessResponse "Project updated"
// @Success     202 {object} SuccessResponse "Awaiting approval"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not allowed"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	payload := models.ProjectUpdatePayload{
		ProjectID:      id,
		Name:           req.Name,
		Code:           req.Code,
		Category:       req.Category,
		Description:    req.Description,
		BudgetOccupied: req.BudgetOccupied,
	}
	if req.StartDate != nil {
		if payload.StartDate, err = parseDate(*req.StartDate, "start_date"); err != nil {
			respondWithError(c, err)
			return
		}
	}
	if req.EndDate != nil {
		if payload.EndDate, err = parseDate(*req.EndDate, "end_date"); err != nil {
			respondWithError(c, err)
			return
		}
	}

	result, err := h.approvalService.Dispatch(userID, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.BudgetOccupied != nil {
		changes["budget_occupied"] = req.BudgetOccupied.StringFixed(2)
	}
	h.auditService.Log(userID, submitAction("UPDATE_PROJECT", result), "project", id, c.ClientIP(), changes)

	respondSubmitted(c, result)
}

// DeleteProject deletes a project without executions.
// @Summary     Delete project
// @Tags        projects
// @Produce     json
// @Security    AccessKey
// @Param       id path string true "Project ID"
// @Success     200 {object} SuccessResponse "Project deleted"
// @Failure     400 {object} ErrorResponse "Project has executions"
// @Failure     403 {object} ErrorResponse "Not the project owner"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.projectService.DeleteProject(userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_PROJECT", "project", id, c.ClientIP(), nil)

	respondOK(c, http.StatusOK, gin.H{"message": "Project deleted"})
}

// submitAction names the audit action for a mutation that either ran or
// was queued for approval.
func submitAction(action string, result *services.SubmitResult) string {
	if result.Executed {
		return action
	}
	return "SUBMIT_" + action
}

// resultRef returns the ID of what a submitted mutation produced, or of the
// approval it is waiting on.
func resultRef(result *services.SubmitResult) string {
	if result.ResultID != "" {
		return result.ResultID
	}
	if result.Approval != nil {
		return result.Approval.ID
	}
	return ""
}
