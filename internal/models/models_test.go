package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecodePayload(t *testing.T) {
	t.Run("execution_create", func(t *testing.T) {
		p, err := DecodePayload(RequestTypeExecutionCreate,
			`{"project_id":"p1","amount":"61.50","execution_date":"2025-03-01T00:00:00Z"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		exec, ok := p.(ExecutionCreatePayload)
		if !ok {
			t.Fatalf("expected ExecutionCreatePayload, got %T", p)
		}
		if exec.ProjectID != "p1" {
			t.Errorf("expected project p1, got %s", exec.ProjectID)
		}
		if !exec.Amount.Equal(decimal.RequireFromString("61.5")) {
			t.Errorf("expected amount 61.5, got %s", exec.Amount)
		}
	})

	t.Run("numeric_amount", func(t *testing.T) {
		p, err := DecodePayload(RequestTypeBudgetAdjustment,
			`{"source_project_id":"p1","amount":25,"target_name":"Spin-off","target_category":"hw"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		adj := p.(BudgetAdjustmentPayload)
		if !adj.Amount.Equal(decimal.NewFromInt(25)) {
			t.Errorf("expected amount 25, got %s", adj.Amount)
		}
	})

	t.Run("unknown_type", func(t *testing.T) {
		if _, err := DecodePayload("project_delete", `{}`); err == nil {
			t.Fatal("expected error for unknown request type")
		}
	})

	t.Run("malformed_json", func(t *testing.T) {
		if _, err := DecodePayload(RequestTypeProjectUpdate, `{"project_id":`); err == nil {
			t.Fatal("expected error for malformed payload")
		}
	})
}

func TestEncodePayloadKeepsType(t *testing.T) {
	name := "Renamed"
	in := ProjectUpdatePayload{ProjectID: "p9", Name: &name}

	data, err := EncodePayload(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := DecodePayload(in.RequestType(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upd := out.(ProjectUpdatePayload)
	if upd.ProjectID != "p9" || upd.Name == nil || *upd.Name != "Renamed" {
		t.Errorf("unexpected decoded payload %+v", upd)
	}
	if upd.BudgetOccupied != nil {
		t.Error("expected budget to stay unset")
	}
}

func TestRequestTypeValid(t *testing.T) {
	for _, rt := range []RequestType{
		RequestTypeProjectCreate, RequestTypeProjectUpdate, RequestTypeProjectTransfer,
		RequestTypeExecutionCreate, RequestTypeExecutionUpdate, RequestTypeBudgetAdjustment,
	} {
		if !rt.Valid() {
			t.Errorf("expected %s to be valid", rt)
		}
	}
	if RequestType("bogus").Valid() {
		t.Error("expected bogus to be invalid")
	}
}

func TestRemainingBudgetAndRate(t *testing.T) {
	p := &Project{
		BudgetOccupied: decimal.NewFromInt(100),
		BudgetExecuted: decimal.NewFromInt(85),
	}
	if got := RemainingBudget(p).StringFixed(2); got != "15.00" {
		t.Errorf("expected remaining 15.00, got %s", got)
	}
	if rate := ExecutionRate(p); rate != 0.85 {
		t.Errorf("expected rate 0.85, got %v", rate)
	}

	empty := &Project{}
	if rate := ExecutionRate(empty); rate != 0 {
		t.Errorf("expected zero rate for zero budget, got %v", rate)
	}
}
