package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type sample struct {
	RequestType  string `validate:"omitempty,request_type"`
	TransferType string `validate:"omitempty,transfer_type"`
	Action       string `validate:"omitempty,review_action"`
	Status       string `validate:"omitempty,approval_status"`
	Year         int    `validate:"omitempty,budget_year"`
}

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	for tag, fn := range map[string]validator.Func{
		"request_type":    validateRequestType,
		"transfer_type":   validateTransferType,
		"review_action":   validateReviewAction,
		"approval_status": validateApprovalStatus,
		"budget_year":     validateBudgetYear,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			t.Fatalf("register %s: %v", tag, err)
		}
	}
	return v
}

func TestCustomValidators(t *testing.T) {
	v := newValidate(t)

	tests := []struct {
		name    string
		in      sample
		wantErr bool
	}{
		{name: "all_valid", in: sample{RequestType: "execution_create", TransferType: "ownership", Action: "approve", Status: "pending", Year: 2025}},
		{name: "bad_request_type", in: sample{RequestType: "project_delete"}, wantErr: true},
		{name: "bad_transfer_type", in: sample{TransferType: "gift"}, wantErr: true},
		{name: "bad_action", in: sample{Action: "maybe"}, wantErr: true},
		{name: "bad_status", in: sample{Status: "completed"}, wantErr: true},
		{name: "year_out_of_range", in: sample{Year: 1999}, wantErr: true},
		{name: "empty_is_allowed", in: sample{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
