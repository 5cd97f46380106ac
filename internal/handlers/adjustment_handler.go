package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

// AdjustmentHandler handles budget adjustment requests.
type AdjustmentHandler struct {
	adjustmentService services.AdjustmentServicer
	approvalService   services.ApprovalServicer
	auditService      services.AuditServicer
}

// NewAdjustmentHandler creates a new AdjustmentHandler.
func NewAdjustmentHandler(
	adjustmentService services.AdjustmentServicer,
	approvalService services.ApprovalServicer,
	auditService services.AuditServicer,
) *AdjustmentHandler {
	return &AdjustmentHandler{
		adjustmentService: adjustmentService,
		approvalService:   approvalService,
		auditService:      auditService,
	}
}

// CreateAdjustmentRequest represents the request payload for carving budget
// out of a project into a new one.
type CreateAdjustmentRequest struct {
	SourceProjectID string          `json:"source_project_id" binding:"required,uuid"`
	Amount          decimal.Decimal `json:"amount" swaggertype:"string" example:"5000.00"`
	TargetName      string          `json:"target_name" binding:"required,min=1,max=200"`
	TargetCategory  string          `json:"target_category" binding:"required,min=1,max=100"`
	TargetOwnerID   string          `json:"target_owner_id" binding:"omitempty,uuid"`
	Reason          string          `json:"reason" binding:"max=1000"`
}

// AdjustmentListQuery holds the filters accepted by the adjustment list.
type AdjustmentListQuery struct {
	pagination.PageRequest
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
}

// CreateAdjustment moves unspent budget into a new project, or submits the
// move for approval.
// @Summary     Create budget adjustment
// @Tags        budget-adjustments
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body CreateAdjustmentRequest true "Adjustment"
// @Success     201 {object} SuccessResponse "Adjustment applied"
// @Success     202 {object} SuccessResponse "Awaiting approval"
// @Failure     400 {object} ErrorResponse "Invalid input or budget exceeded"
// @Failure     403 {object} ErrorResponse "Not allowed"
// @Router      /budget-adjustments [post]
func (h *AdjustmentHandler) CreateAdjustment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.approvalService.Dispatch(userID, models.BudgetAdjustmentPayload{
		SourceProjectID: req.SourceProjectID,
		Amount:          req.Amount,
		TargetName:      req.TargetName,
		TargetCategory:  req.TargetCategory,
		TargetOwnerID:   req.TargetOwnerID,
		Reason:          req.Reason,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, submitAction("CREATE_ADJUSTMENT", result), "budget_adjustment", resultRef(result), c.ClientIP(),
		map[string]interface{}{"source_project_id": req.SourceProjectID, "amount": req.Amount.StringFixed(2)})

	respondSubmitted(c, result)
}

// GetAdjustments lists budget adjustments.
// @Summary     List budget adjustments
// @Tags        budget-adjustments
// @Produce     json
// @Security    AccessKey
// @Param       project_id query string false "Source or target project ID"
// @Param       page       query int    false "Page number"
// @Param       page_size  query int    false "Page size"
// @Success     200 {object} PageEnvelope "Adjustments"
// @Router      /budget-adjustments [get]
func (h *AdjustmentHandler) GetAdjustments(c *gin.Context) {
	var q AdjustmentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.adjustmentService.GetAdjustments(q.ProjectID, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, result)
}
