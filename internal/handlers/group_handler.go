package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

// GroupHandler handles group and membership requests.
type GroupHandler struct {
	groupService services.GroupServicer
	auditService services.AuditServicer
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groupService services.GroupServicer, auditService services.AuditServicer) *GroupHandler {
	return &GroupHandler{groupService: groupService, auditService: auditService}
}

// CreateGroupRequest represents the request payload for creating a group
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
	PMID        string `json:"pm_id" binding:"required,uuid"`
}

// UpdateGroupRequest represents the request payload for updating a group.
// A new pm_id hands the group, and its pending approvals, to another manager.
type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	PMID        *string `json:"pm_id" binding:"omitempty,uuid"`
}

// AddMemberRequest represents the request payload for adding a group member
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// CreateGroup creates a group.
// @Summary     Create a group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body CreateGroupRequest true "Group details"
// @Success     201 {object} SuccessResponse "Group created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Administrator required"
// @Failure     409 {object} ErrorResponse "Duplicate group"
// @Router      /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.groupService.CreateGroup(userID, req.Name, req.Description, req.PMID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_GROUP", "group", group.ID, c.ClientIP(),
		map[string]interface{}{"name": group.Name, "pm_id": group.PMID})

	respondOK(c, http.StatusCreated, group)
}

// GetGroups lists groups.
// @Summary     List groups
// @Tags        groups
// @Produce     json
// @Security    AccessKey
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} PageEnvelope "Groups"
// @Router      /groups [get]
func (h *GroupHandler) GetGroups(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.groupService.GetGroups(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, result)
}

// GetGroup returns a group with its manager and members.
// @Summary     Get group by ID
// @Tags        groups
// @Produce     json
// @Security    AccessKey
// @Param       id path string true "Group ID"
// @Success     200 {object} SuccessResponse "Group"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id} [get]
func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	group, err := h.groupService.GetGroupByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, group)
}

// UpdateGroup updates a group's name, description or manager.
// @Summary     Update group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       id      path string             true "Group ID"
// @Param       request body UpdateGroupRequest true "Fields to change"
// @Success     200 {object} SuccessResponse "Group updated"
// @Failure     403 {object} ErrorResponse "Administrator required"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id} [put]
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
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

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.groupService.UpdateGroup(userID, id, req.Name, req.Description, req.PMID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.PMID != nil {
		changes["pm_id"] = *req.PMID
	}
	h.auditService.Log(userID, "UPDATE_GROUP", "group", group.ID, c.ClientIP(), changes)

	respondOK(c, http.StatusOK, group)
}

// AddMember adds a user to a group.
// @Summary     Add group member
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       id      path string           true "Group ID"
// @Param       request body AddMemberRequest true "Member"
// @Success     201 {object} SuccessResponse "Member added"
// @Failure     403 {object} ErrorResponse "Not the group manager"
// @Failure     409 {object} ErrorResponse "Already a member"
// @Router      /groups/{id}/members [post]
func (h *GroupHandler) AddMember(c *gin.Context) {
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

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	member, err := h.groupService.AddMember(userID, id, req.UserID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ADD_GROUP_MEMBER", "group", id, c.ClientIP(),
		map[string]interface{}{"user_id": req.UserID})

	respondOK(c, http.StatusCreated, member)
}

// RemoveMember removes a user from a group.
// @Summary     Remove group member
// @Tags        groups
// @Produce     json
// @Security    AccessKey
// @Param       id     path string true "Group ID"
// @Param       userId path string true "User ID"
// @Success     200 {object} SuccessResponse "Member removed"
// @Failure     403 {object} ErrorResponse "Not the group manager"
// @Failure     404 {object} ErrorResponse "Member not found"
// @Router      /groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
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
	memberID, err := parsePathID(c, "userId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.groupService.RemoveMember(userID, id, memberID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REMOVE_GROUP_MEMBER", "group", id, c.ClientIP(),
		map[string]interface{}{"user_id": memberID})

	respondOK(c, http.StatusOK, gin.H{"message": "Member removed"})
}
