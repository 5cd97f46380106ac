package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

// ExecutionHandler handles execution (spend) and execution plan requests.
type ExecutionHandler struct {
	executionService services.ExecutionServicer
	approvalService  services.ApprovalServicer
	auditService     services.AuditServicer
	files            FileStore
}

// NewExecutionHandler creates a new ExecutionHandler. Vouchers are stored
// through files.
func NewExecutionHandler(
	executionService services.ExecutionServicer,
	approvalService services.ApprovalServicer,
	auditService services.AuditServicer,
	files FileStore,
) *ExecutionHandler {
	return &ExecutionHandler{
		executionService: executionService,
		approvalService:  approvalService,
		auditService:     auditService,
		files:            files,
	}
}

// CreateExecutionRequest represents the request payload for recording an
// execution. It is accepted as JSON or as a multipart form with an
// optional "voucher" file.
type CreateExecutionRequest struct {
	ProjectID     string          `json:"project_id" form:"project_id" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" form:"amount" swaggertype:"string" example:"1200.50"`
	Description   string          `json:"description" form:"description" binding:"max=1000"`
	ExecutionDate string          `json:"execution_date" form:"execution_date"`
	VoucherURL    string          `json:"voucher_url" form:"voucher_url" binding:"max=500"`
}

// UpdateExecutionRequest represents the request payload for updating an execution
type UpdateExecutionRequest struct {
	Amount        *decimal.Decimal `json:"amount" swaggertype:"string"`
	Description   *string          `json:"description" binding:"omitempty,max=1000"`
	ExecutionDate *string          `json:"execution_date"`
	VoucherURL    *string          `json:"voucher_url" binding:"omitempty,max=500"`
}

// ExecutionListQuery holds the filters accepted by the execution list.
type ExecutionListQuery struct {
	pagination.PageRequest
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
	UserID    string `form:"user_id" binding:"omitempty,uuid"`
	From      string `form:"from"`
	To        string `form:"to"`
}

// SetPlanRequest represents the request payload for a monthly execution plan
type SetPlanRequest struct {
	ProjectID     string          `json:"project_id" binding:"required,uuid"`
	Year          int             `json:"year" binding:"required,budget_year"`
	Month         int             `json:"month" binding:"required,min=1,max=12"`
	PlannedAmount decimal.Decimal `json:"planned_amount" swaggertype:"string"`
}

// CreateExecution records spend against a project. Members of the
// project's group submit it to the group manager for approval.
// @Summary     Record an execution
// @Tags        executions
// @Accept      json,mpfd
// @Produce     json
// @Security    AccessKey
// @Param       request body     CreateExecutionRequest true  "Execution details"
// @Param       voucher formData file                   false "Voucher file (multipart only)"
// @Success     201 {object} SuccessResponse "Execution recorded"
// @Success     202 {object} SuccessResponse "Awaiting approval"
// @Failure     400 {object} ErrorResponse "Invalid input or budget exceeded"
// @Failure     403 {object} ErrorResponse "Not allowed"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /executions [post]
func (h *ExecutionHandler) CreateExecution(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateExecutionRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	date := time.Now()
	if parsed, err := parseDate(req.ExecutionDate, "execution_date"); err != nil {
		respondWithError(c, err)
		return
	} else if parsed != nil {
		date = *parsed
	}

	voucherURL := req.VoucherURL
	if isMultipart(c) {
		file, err := c.FormFile("voucher")
		switch {
		case err == nil:
			if voucherURL, err = h.files.Save(c, file, "vouchers"); err != nil {
				respondWithError(c, err)
				return
			}
		case !errors.Is(err, http.ErrMissingFile):
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	result, err := h.approvalService.Dispatch(userID, models.ExecutionCreatePayload{
		ProjectID:     req.ProjectID,
		Amount:        req.Amount,
		Description:   req.Description,
		ExecutionDate: date,
		VoucherURL:    voucherURL,
	})
	if err != nil {
		if voucherURL != req.VoucherURL {
			h.files.Remove(voucherURL)
		}
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, submitAction("CREATE_EXECUTION", result), "execution", resultRef(result), c.ClientIP(),
		map[string]interface{}{"project_id": req.ProjectID, "amount": req.Amount.StringFixed(2)})

	respondSubmitted(c, result)
}

// GetExecutions lists executions.
// @Summary     List executions
// @Tags        executions
// @Produce     json
// @Security    AccessKey
// @Param       project_id query string false "Project ID"
// @Param       user_id    query string false "Recorder ID"
// @Param       from       query string false "From date (YYYY-MM-DD)"
// @Param       to         query string false "To date (YYYY-MM-DD)"
// @Param       page       query int    false "Page number"
// @Param       page_size  query int    false "Page size"
// @Success     200 {object} PageEnvelope "Executions"
// @Router      /executions [get]
func (h *ExecutionHandler) GetExecutions(c *gin.Context) {
	var q ExecutionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	from, err := parseDate(q.From, "from")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseDate(q.To, "to")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.executionService.GetExecutions(services.ExecutionFilter{
		ProjectID: q.ProjectID,
		UserID:    q.UserID,
		FromDate:  from,
		ToDate:    to,
	}, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, result)
}

// GetProjectExecutions lists every execution of one project.
// @Summary     List project executions
// @Tags        executions
// @Produce     json
// @Security    AccessKey
// @Param       projectId path string true "Project ID"
// @Success     200 {object} SuccessResponse "Executions"
// @Failure     404 {object} ErrorResponse "Project not found"
// @Router      /executions/project/{projectId} [get]
func (h *ExecutionHandler) GetProjectExecutions(c *gin.Context) {
	projectID, err := parsePathID(c, "projectId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	executions, err := h.executionService.GetProjectExecutions(projectID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, executions)
}

// UpdateExecution changes an execution, or submits the change for approval.
// @Summary     Update execution
// @Tags        executions
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       id      path string                 true "Execution ID"
// @Param       request body UpdateExecutionRequest true "Fields to change"
// @Success     201 {object} SuccessResponse "Execution updated"
// @Success     202 {object} SuccessResponse "Awaiting approval"
// @Failure     400 {object} ErrorResponse "Invalid input or budget exceeded"
// @Failure     404 {object} ErrorResponse "Execution not found"
// @Router      /executions/{id} [put]
func (h *ExecutionHandler) UpdateExecution(c *gin.Context) {
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

	var req UpdateExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	payload := models.ExecutionUpdatePayload{
		ExecutionID: id,
		Amount:      req.Amount,
		Description: req.Description,
		VoucherURL:  req.VoucherURL,
	}
	if req.ExecutionDate != nil {
		if payload.ExecutionDate, err = parseDate(*req.ExecutionDate, "execution_date"); err != nil {
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
	if req.Amount != nil {
		changes["amount"] = req.Amount.StringFixed(2)
	}
	h.auditService.Log(userID, submitAction("UPDATE_EXECUTION", result), "execution", id, c.ClientIP(), changes)

	respondSubmitted(c, result)
}

// DeleteExecution deletes an execution.
// @Summary     Delete execution
// @Tags        executions
// @Produce     json
// @Security    AccessKey
// @Param       id path string true "Execution ID"
// @Success     200 {object} SuccessResponse "Execution deleted"
// @Failure     403 {object} ErrorResponse "Not allowed"
// @Failure     404 {object} ErrorResponse "Execution not found"
// @Router      /executions/{id} [delete]
func (h *ExecutionHandler) DeleteExecution(c *gin.Context) {
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

	if err := h.executionService.DeleteExecution(userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_EXECUTION", "execution", id, c.ClientIP(), nil)

	respondOK(c, http.StatusOK, gin.H{"message": "Execution deleted"})
}

// SetExecutionPlan sets the planned spend of a project for one month.
// @Summary     Set monthly execution plan
// @Tags        executions
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body SetPlanRequest true "Plan"
// @Success     200 {object} SuccessResponse "Plan saved"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not the project owner"
// @Router      /executions/plans [put]
func (h *ExecutionHandler) SetExecutionPlan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	plan, err := h.executionService.SetExecutionPlan(userID, req.ProjectID, req.Year, req.Month, req.PlannedAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SET_EXECUTION_PLAN", "project", req.ProjectID, c.ClientIP(),
		map[string]interface{}{"year": req.Year, "month": req.Month, "planned_amount": req.PlannedAmount.StringFixed(2)})

	respondOK(c, http.StatusOK, plan)
}

// GetExecutionPlans lists the monthly plans of a project.
// @Summary     Get execution plans
// @Tags        executions
// @Produce     json
// @Security    AccessKey
// @Param       projectId path  string true  "Project ID"
// @Param       year      query int    false "Year"
// @Success     200 {object} SuccessResponse "Plans"
// @Router      /executions/plans/{projectId} [get]
func (h *ExecutionHandler) GetExecutionPlans(c *gin.Context) {
	projectID, err := parsePathID(c, "projectId")
	if err != nil {
		respondWithError(c, err)
		return
	}
	year, err := parseYear(c.Query("year"), 0)
	if err != nil {
		respondWithError(c, err)
		return
	}

	plans, err := h.executionService.GetExecutionPlans(projectID, year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, plans)
}

// GetExecution returns one execution.
// @Summary     Get execution by ID
// @Tags        executions
// @Produce     json
// @Security    AccessKey
// @Param       id path string true "Execution ID"
// @Success     200 {object} SuccessResponse "Execution"
// @Failure     404 {object} ErrorResponse "Execution not found"
// @Router      /executions/{id} [get]
func (h *ExecutionHandler) GetExecution(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	execution, err := h.executionService.GetExecutionByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, execution)
}
