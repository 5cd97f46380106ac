package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

// UserHandler handles user management requests.
type UserHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, auditService: auditService}
}

// CreateUserRequest represents the request payload for creating a user
type CreateUserRequest struct {
	Username    string `json:"username" binding:"required,min=2,max=100"`
	DisplayName string `json:"display_name" binding:"max=100"`
	Email       string `json:"email" binding:"omitempty,email,max=255"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
}

// CreatedUserResponse carries a new user and the access key shown once.
type CreatedUserResponse struct {
	User      *models.User `json:"user"`
	AccessKey string       `json:"access_key"`
}

// ProfileResponse is the authenticated user's profile.
type ProfileResponse struct {
	User    *models.User `json:"user"`
	IsAdmin bool         `json:"is_admin"`
}

// CreateUser handles user registration by an administrator. The first user
// of an empty system can be created without credentials.
// @Summary     Create a user
// @Description Create a user and return its access key. Administrators only, except for the first user.
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    AccessKey
// @Param       request body CreateUserRequest true "User details"
// @Success     201 {object} CreatedUserResponse "User created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Administrator required"
// @Failure     409 {object} ErrorResponse "Duplicate username"
// @Router      /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	actorID := c.GetString("userID")

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, key, err := h.userService.CreateUser(actorID, services.CreateUserInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if actorID == "" {
		actorID = user.ID
	}
	h.auditService.Log(actorID, "CREATE_USER", "user", user.ID, c.ClientIP(),
		map[string]interface{}{"username": user.Username})

	respondOK(c, http.StatusCreated, CreatedUserResponse{User: user, AccessKey: key})
}

// GetUsers lists users.
// @Summary     List users
// @Tags        users
// @Produce     json
// @Security    AccessKey
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} PageEnvelope "Users"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /users [get]
func (h *UserHandler) GetUsers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.userService.GetUsers(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, result)
}

// GetMe returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile information
// @Tags        users
// @Produce     json
// @Security    AccessKey
// @Success     200 {object} ProfileResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	isAdmin, err := h.userService.IsAdmin(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, ProfileResponse{User: user, IsAdmin: isAdmin})
}

// RegenerateAccessKey replaces the caller's access key.
// @Summary     Regenerate access key
// @Description Issue a new access key for the authenticated user; the old key stops working
// @Tags        users
// @Produce     json
// @Security    AccessKey
// @Success     200 {object} SuccessResponse "New access key"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /users/me/access-key [post]
func (h *UserHandler) RegenerateAccessKey(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	key, err := h.userService.RegenerateAccessKey(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REGENERATE_ACCESS_KEY", "user", userID, c.ClientIP(), nil)

	respondOK(c, http.StatusOK, gin.H{"access_key": key})
}
