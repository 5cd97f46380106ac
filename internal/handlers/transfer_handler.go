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

// TransferHandler handles project transfer requests.
type TransferHandler struct {
	transferService services.TransferServicer
	auditService    services.AuditServicer
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferService services.TransferServicer, auditService services.AuditServicer) *TransferHandler {
	return &TransferHandler{transferService: transferService, auditService: auditService}
}

// InitiateTransferRequest represents the request payload for a project
// transfer. User and group fields accept an ID or a name.
type InitiateTransferRequest struct {
	ProjectID       string          `json:"project_id" binding:"required,uuid"`
	TransferType    string          `json:"transfer_type" binding:"required,transfer_type"`
	FromUser        string          `json:"from_user" binding:"max=200"`
	ToUser          string          `json:"to_user" binding:"max=200"`
	FromGroup       string          `json:"from_group" binding:"required,max=200"`
	ToGroup         string          `json:"to_group" binding:"required,max=200"`
	Amount          decimal.Decimal `json:"amount" swaggertype:"string" example:"2500.00"`
	TargetProjectID string          `json:"target_project_id" binding:"omitempty,uuid"`
	Reason          string          `json:"reason" binding:"max=1000"`
}

// TransferDecisionRequest carries optional notes for approve and reject.
type TransferDecisionRequest struct {
	Notes string `json:"notes" binding:"max=1000"`
}

// TransferListQuery holds the filters accepted by the transfer list.
type TransferListQuery struct {
	pagination.PageRequest
	Status    string `form:"status" binding:"omitempty,transfer_status"`
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
}

// InitiateTransfer creates a pending project transfer.
// @Summary     Initiate project transfer
// @Tags        project-transfers
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body InitiateTransferRequest true "Transfer"
// @Success     201 {object} SuccessResponse "Transfer created"
// @Failure     400 {object} ErrorResponse "Invalid transfer"
// @Failure     403 {object} ErrorResponse "Not the project owner"
// @Failure     404 {object} ErrorResponse "Project, user or group not found"
// @Router      /project-transfers [post]
func (h *TransferHandler) InitiateTransfer(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InitiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	transfer, err := h.transferService.InitiateTransfer(userID, services.InitiateTransferInput{
		ProjectID:       req.ProjectID,
		TransferType:    models.TransferType(req.TransferType),
		FromUser:        req.FromUser,
		ToUser:          req.ToUser,
		FromGroup:       req.FromGroup,
		ToGroup:         req.ToGroup,
		Amount:          req.Amount,
		TargetProjectID: req.TargetProjectID,
		Reason:          req.Reason,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "INITIATE_TRANSFER", "project_transfer", transfer.ID, c.ClientIP(),
		map[string]interface{}{"project_id": req.ProjectID, "transfer_type": req.TransferType})

	respondOK(c, http.StatusCreated, transfer)
}

// GetTransfers lists the transfers visible to the caller.
// @Summary     List project transfers
// @Tags        project-transfers
// @Produce     json
// @Security    AccessKey
// @Param       status     query string false "Status"
// @Param       project_id query string false "Project ID"
// @Param       page       query int    false "Page number"
// @Param       page_size  query int    false "Page size"
// @Success     200 {object} PageEnvelope "Transfers"
// @Router      /project-transfers [get]
func (h *TransferHandler) GetTransfers(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q TransferListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.TransferFilter{ProjectID: q.ProjectID}
	if q.Status != "" {
		status := models.TransferStatus(q.Status)
		filter.Status = &status
	}

	result, err := h.transferService.GetTransfers(userID, filter, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, result)
}

// GetTransfer returns one transfer.
// @Summary     Get project transfer
// @Tags        project-transfers
// @Produce     json
// @Security    AccessKey
// @Param       id path string true "Transfer ID"
// @Success     200 {object} SuccessResponse "Transfer"
// @Failure     404 {object} ErrorResponse "Transfer not found"
// @Router      /project-transfers/{id} [get]
func (h *TransferHandler) GetTransfer(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transfer, err := h.transferService.GetTransferByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, transfer)
}

// ApproveTransfer approves a pending transfer and applies it. Only the
// manager of the receiving group may approve.
// @Summary     Approve project transfer
// @Tags        project-transfers
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       id      path string                  true  "Transfer ID"
// @Param       request body TransferDecisionRequest false "Notes"
// @Success     200 {object} SuccessResponse "Transfer updated"
// @Failure     400 {object} ErrorResponse "Transfer not pending"
// @Failure     403 {object} ErrorResponse "Not the target group manager"
// @Router      /project-transfers/{id}/approve [post]
func (h *TransferHandler) ApproveTransfer(c *gin.Context) {
	h.decide(c, "APPROVE_TRANSFER", h.transferService.ApproveTransfer)
}

// RejectTransfer rejects a pending transfer.
// @Summary     Reject project transfer
// @Tags        project-transfers
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       id      path string                  true  "Transfer ID"
// @Param       request body TransferDecisionRequest false "Notes"
// @Success     200 {object} SuccessResponse "Transfer rejected"
// @Failure     400 {object} ErrorResponse "Transfer not pending"
// @Failure     403 {object} ErrorResponse "Not a group manager"
// @Router      /project-transfers/{id}/reject [post]
func (h *TransferHandler) RejectTransfer(c *gin.Context) {
	h.decide(c, "REJECT_TRANSFER", h.transferService.RejectTransfer)
}

func (h *TransferHandler) decide(c *gin.Context, action string, fn func(actorID, transferID, notes string) (*models.ProjectTransfer, error)) {
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

	// Body is optional.
	var req TransferDecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	transfer, err := fn(userID, id, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, action, "project_transfer", transfer.ID, c.ClientIP(),
		map[string]interface{}{"status": transfer.Status})

	respondOK(c, http.StatusOK, transfer)
}

// GetReallocationOptions lists the projects and groups the caller can move
// budget between.
// @Summary     Reallocation options
// @Tags        project-transfers
// @Produce     json
// @Security    AccessKey
// @Success     200 {object} SuccessResponse "Options"
// @Router      /project-transfers/reallocation-options [get]
func (h *TransferHandler) GetReallocationOptions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	options, err := h.transferService.GetReallocationOptions(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, options)
}
