// Package errors provides the application error taxonomy for the budget API.
// Service-layer code returns *AppError values so handlers can map every
// failure to a stable code and HTTP status without leaking internal details.
package errors

import (
	"fmt"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches on error code so that customised copies of a sentinel still
// satisfy errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WithMessagef is WithMessage with a format string.
func WithMessagef(sentinel *AppError, format string, args ...any) *AppError {
	return WithMessage(sentinel, fmt.Sprintf(format, args...))
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidAccessKey   = &AppError{Code: "INVALID_ACCESS_KEY", Message: "Invalid or unknown access key", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid username or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAdminRequired      = &AppError{Code: "ADMIN_REQUIRED", Message: "Administrator privileges required", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "A user with this username already exists", StatusCode: http.StatusConflict}
)

// Group errors.
var (
	ErrGroupNotFound   = &AppError{Code: "GROUP_NOT_FOUND", Message: "Group not found", StatusCode: http.StatusNotFound}
	ErrDuplicateGroup  = &AppError{Code: "DUPLICATE_GROUP", Message: "A group with this name already exists", StatusCode: http.StatusConflict}
	ErrDuplicateMember = &AppError{Code: "DUPLICATE_MEMBER", Message: "User is already a member of this group", StatusCode: http.StatusConflict}
	ErrMemberNotFound  = &AppError{Code: "MEMBER_NOT_FOUND", Message: "User is not a member of this group", StatusCode: http.StatusNotFound}
	ErrNotGroupMember  = &AppError{Code: "NOT_GROUP_MEMBER", Message: "Requester is not a member of this group", StatusCode: http.StatusForbidden}
	ErrNotGroupManager = &AppError{Code: "NOT_GROUP_MANAGER", Message: "Only the group manager can perform this action", StatusCode: http.StatusForbidden}
)

// Project errors.
var (
	ErrProjectNotFound       = &AppError{Code: "PROJECT_NOT_FOUND", Message: "Project not found", StatusCode: http.StatusNotFound}
	ErrNotProjectOwner       = &AppError{Code: "NOT_PROJECT_OWNER", Message: "Only the project owner can modify this project", StatusCode: http.StatusForbidden}
	ErrProjectNotApproved    = &AppError{Code: "PROJECT_NOT_APPROVED", Message: "Project is not approved for execution", StatusCode: http.StatusBadRequest}
	ErrProjectHasExecutions  = &AppError{Code: "PROJECT_HAS_EXECUTIONS", Message: "Project has recorded executions", StatusCode: http.StatusBadRequest}
	ErrBudgetExceeded        = &AppError{Code: "BUDGET_EXCEEDED", Message: "Amount exceeds remaining budget", StatusCode: http.StatusBadRequest}
	ErrBudgetBelowExecuted   = &AppError{Code: "BUDGET_BELOW_EXECUTED", Message: "Budget cannot be lower than the executed amount", StatusCode: http.StatusBadRequest}
	ErrTotalBudgetNotFound   = &AppError{Code: "TOTAL_BUDGET_NOT_FOUND", Message: "Total budget not set for this year", StatusCode: http.StatusNotFound}
	ErrBudgetFileNotFound    = &AppError{Code: "BUDGET_FILE_NOT_FOUND", Message: "Budget file not found", StatusCode: http.StatusNotFound}
	ErrExecutionNotFound     = &AppError{Code: "EXECUTION_NOT_FOUND", Message: "Execution not found", StatusCode: http.StatusNotFound}
	ErrAdjustmentSameProject = &AppError{Code: "ADJUSTMENT_SAME_PROJECT", Message: "Cannot reallocate budget to the same project", StatusCode: http.StatusBadRequest}
)

// Approval errors.
var (
	ErrApprovalNotFound        = &AppError{Code: "APPROVAL_NOT_FOUND", Message: "Approval not found", StatusCode: http.StatusNotFound}
	ErrNotApprover             = &AppError{Code: "NOT_APPROVER", Message: "Only the designated approver can review this request", StatusCode: http.StatusForbidden}
	ErrApprovalAlreadyReviewed = &AppError{Code: "APPROVAL_ALREADY_REVIEWED", Message: "Approval has already been reviewed", StatusCode: http.StatusBadRequest}
	ErrInvalidRequestType      = &AppError{Code: "INVALID_REQUEST_TYPE", Message: "Unsupported request type", StatusCode: http.StatusBadRequest}
)

// Transfer errors.
var (
	ErrTransferNotFound   = &AppError{Code: "TRANSFER_NOT_FOUND", Message: "Project transfer not found", StatusCode: http.StatusNotFound}
	ErrTransferNotPending = &AppError{Code: "TRANSFER_NOT_PENDING", Message: "Project transfer is not pending", StatusCode: http.StatusBadRequest}
	ErrInvalidTransfer    = &AppError{Code: "INVALID_TRANSFER", Message: "Invalid project transfer", StatusCode: http.StatusBadRequest}
)
