package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

// ApprovalHandler handles approval workflow requests.
type ApprovalHandler struct {
	approvalService services.ApprovalServicer
	auditService    services.AuditServicer
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(approvalService services.ApprovalServicer, auditService services.AuditServicer) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, auditService: auditService}
}

// SubmitApprovalRequest represents a mutation submitted to a group manager.
// request_data is the payload of the named request type.
type SubmitApprovalRequest struct {
	RequestType string          `json:"request_type" binding:"required,request_type"`
	GroupID     string          `json:"group_id" binding:"required,uuid"`
	RequestData json.RawMessage `json:"request_data" binding:"required" swaggertype:"object"`
}

// ReviewApprovalRequest represents a manager's decision.
type ReviewApprovalRequest struct {
	Action      string `json:"action" binding:"required,review_action"`
	ReviewNotes string `json:"review_notes" binding:"max=1000"`
}

// ApprovalHistoryQuery holds the filters accepted by the approval history.
type ApprovalHistoryQuery struct {
	pagination.PageRequest
	Status      string `form:"status" binding:"omitempty,approval_status"`
	RequestType string `form:"request_type" binding:"omitempty,request_type"`
	RequesterID string `form:"requester_id" binding:"omitempty,uuid"`
	ApproverID  string `form:"approver_id" binding:"omitempty,uuid"`
	GroupID     string `form:"group_id" binding:"omitempty,uuid"`
}

// Submit puts a mutation in front of a group manager. The manager's own
// submissions run at once.
// @Summary     Submit for approval
// @Tags        approvals
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body SubmitApprovalRequest true "Request"
// @Success     201 {object} SuccessResponse "Executed by the group manager"
// @Success     202 {object} SuccessResponse "Pending approval created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not a group member"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /approvals/submit [post]
func (h *ApprovalHandler) Submit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SubmitApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	payload, err := models.DecodePayload(models.RequestType(req.RequestType), string(req.RequestData))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.approvalService.Submit(userID, req.GroupID, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SUBMIT_APPROVAL", "approval", resultRef(result), c.ClientIP(),
		map[string]interface{}{"request_type": req.RequestType, "group_id": req.GroupID, "executed": result.Executed})

	respondSubmitted(c, result)
}

// GetPending lists the pending approvals addressed to a manager.
// @Summary     List pending approvals
// @Tags        approvals
// @Produce     json
// @Security    AccessKey
// @Param       approverId path string true "Approver ID"
// @Success     200 {object} SuccessResponse "Pending approvals"
// @Failure     403 {object} ErrorResponse "Another user's queue"
// @Router      /approvals/pending/{approverId} [get]
func (h *ApprovalHandler) GetPending(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	approverID, err := parsePathID(c, "approverId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	approvals, err := h.approvalService.GetPendingApprovals(userID, approverID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, approvals)
}

// Review approves or rejects a pending approval. Approving runs the stored
// request; when that fails the approval stays pending and the error is
// returned.
// @Summary     Review approval
// @Tags        approvals
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       approvalId path string                true "Approval ID"
// @Param       request    body ReviewApprovalRequest true "Decision"
// @Success     200 {object} SuccessResponse "Approval reviewed"
// @Failure     400 {object} ErrorResponse "Already reviewed or execution failed"
// @Failure     403 {object} ErrorResponse "Not the approver"
// @Failure     404 {object} ErrorResponse "Approval not found"
// @Router      /approvals/review/{approvalId} [post]
func (h *ApprovalHandler) Review(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	approvalID, err := parsePathID(c, "approvalId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ReviewApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	approval, err := h.approvalService.Review(userID, approvalID, services.ReviewAction(req.Action), req.ReviewNotes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REVIEW_APPROVAL", "approval", approval.ID, c.ClientIP(),
		map[string]interface{}{"action": req.Action, "status": approval.Status})

	respondOK(c, http.StatusOK, approval)
}

// GetHistory lists approvals with optional filters.
// @Summary     Approval history
// @Tags        approvals
// @Produce     json
// @Security    AccessKey
// @Param       status       query string false "Status"
// @Param       request_type query string false "Request type"
// @Param       requester_id query string false "Requester ID"
// @Param       approver_id  query string false "Approver ID"
// @Param       group_id     query string false "Group ID"
// @Param       page         query int    false "Page number"
// @Param       page_size    query int    false "Page size"
// @Success     200 {object} PageEnvelope "Approvals"
// @Router      /approvals/history [get]
func (h *ApprovalHandler) GetHistory(c *gin.Context) {
	var q ApprovalHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.ApprovalFilter{
		RequesterID: q.RequesterID,
		ApproverID:  q.ApproverID,
		GroupID:     q.GroupID,
	}
	if q.Status != "" {
		status := models.ApprovalStatus(q.Status)
		filter.Status = &status
	}
	if q.RequestType != "" {
		rt := models.RequestType(q.RequestType)
		filter.RequestType = &rt
	}

	result, err := h.approvalService.GetApprovalHistory(filter, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, result)
}
