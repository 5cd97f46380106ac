// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"budgettracker/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("request_type", validateRequestType)
		_ = v.RegisterValidation("transfer_type", validateTransferType)
		_ = v.RegisterValidation("review_action", validateReviewAction)
		_ = v.RegisterValidation("approval_status", validateApprovalStatus)
		_ = v.RegisterValidation("transfer_status", validateTransferStatus)
		_ = v.RegisterValidation("project_status", validateProjectStatus)
		_ = v.RegisterValidation("budget_year", validateBudgetYear)
	}
}

func validateRequestType(fl validator.FieldLevel) bool {
	return models.RequestType(fl.Field().String()).Valid()
}

func validateTransferType(fl validator.FieldLevel) bool {
	switch models.TransferType(fl.Field().String()) {
	case models.TransferTypeOwnership, models.TransferTypeBudgetReallocation, models.TransferTypeExecution:
		return true
	}
	return false
}

func validateReviewAction(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "approve", "reject":
		return true
	}
	return false
}

func validateApprovalStatus(fl validator.FieldLevel) bool {
	switch models.ApprovalStatus(fl.Field().String()) {
	case models.ApprovalStatusPending, models.ApprovalStatusApproved, models.ApprovalStatusRejected:
		return true
	}
	return false
}

func validateTransferStatus(fl validator.FieldLevel) bool {
	switch models.TransferStatus(fl.Field().String()) {
	case models.TransferStatusPending, models.TransferStatusApproved,
		models.TransferStatusRejected, models.TransferStatusCompleted:
		return true
	}
	return false
}

func validateProjectStatus(fl validator.FieldLevel) bool {
	switch models.ProjectStatus(fl.Field().String()) {
	case models.ProjectStatusDraft, models.ProjectStatusPending,
		models.ProjectStatusApproved, models.ProjectStatusRejected:
		return true
	}
	return false
}

func validateBudgetYear(fl validator.FieldLevel) bool {
	y := fl.Field().Int()
	return y >= 2000 && y <= 2100
}
