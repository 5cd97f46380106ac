package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RequestType tags the mutation carried by an approval request.
type RequestType string

const (
	RequestTypeProjectCreate    RequestType = "project_create"
	RequestTypeProjectUpdate    RequestType = "project_update"
	RequestTypeProjectTransfer  RequestType = "project_transfer"
	RequestTypeExecutionCreate  RequestType = "execution_create"
	RequestTypeExecutionUpdate  RequestType = "execution_update"
	RequestTypeBudgetAdjustment RequestType = "budget_adjustment"
)

// Valid reports whether t is one of the known request types.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeProjectCreate, RequestTypeProjectUpdate, RequestTypeProjectTransfer,
		RequestTypeExecutionCreate, RequestTypeExecutionUpdate, RequestTypeBudgetAdjustment:
		return true
	}
	return false
}

// RequestPayload is implemented by every typed approval payload.
type RequestPayload interface {
	RequestType() RequestType
}

// ProjectCreatePayload describes a new project. ProjectID is set once the
// project has been recorded as pending and awaits review.
type ProjectCreatePayload struct {
	ProjectID      string          `json:"project_id,omitempty"`
	Name           string          `json:"name"`
	Code           string          `json:"code,omitempty"`
	Category       string          `json:"category"`
	Description    string          `json:"description,omitempty"`
	BudgetYear     int             `json:"budget_year,omitempty"`
	BudgetOccupied decimal.Decimal `json:"budget_occupied"`
	GroupID        string          `json:"group_id,omitempty"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
}

// ProjectUpdatePayload carries the fields of a project to change; nil means unchanged.
type ProjectUpdatePayload struct {
	ProjectID      string           `json:"project_id"`
	Name           *string          `json:"name,omitempty"`
	Code           *string          `json:"code,omitempty"`
	Category       *string          `json:"category,omitempty"`
	Description    *string          `json:"description,omitempty"`
	BudgetOccupied *decimal.Decimal `json:"budget_occupied,omitempty"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	EndDate        *time.Time       `json:"end_date,omitempty"`
}

// ProjectTransferPayload references the transfer a companion approval gates.
type ProjectTransferPayload struct {
	TransferID string `json:"transfer_id"`
}

// ExecutionCreatePayload describes a new spend record.
type ExecutionCreatePayload struct {
	ProjectID     string          `json:"project_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	ExecutionDate time.Time       `json:"execution_date"`
	VoucherURL    string          `json:"voucher_url,omitempty"`
}

// ExecutionUpdatePayload carries the fields of an execution to change.
type ExecutionUpdatePayload struct {
	ExecutionID   string           `json:"execution_id"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Description   *string          `json:"description,omitempty"`
	ExecutionDate *time.Time       `json:"execution_date,omitempty"`
	VoucherURL    *string          `json:"voucher_url,omitempty"`
}

// BudgetAdjustmentPayload moves unspent budget from a source project into a
// new project with its own category and owner.
type BudgetAdjustmentPayload struct {
	SourceProjectID string          `json:"source_project_id"`
	Amount          decimal.Decimal `json:"amount"`
	TargetName      string          `json:"target_name"`
	TargetCategory  string          `json:"target_category"`
	TargetOwnerID   string          `json:"target_owner_id,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

func (ProjectCreatePayload) RequestType() RequestType    { return RequestTypeProjectCreate }
func (ProjectUpdatePayload) RequestType() RequestType    { return RequestTypeProjectUpdate }
func (ProjectTransferPayload) RequestType() RequestType  { return RequestTypeProjectTransfer }
func (ExecutionCreatePayload) RequestType() RequestType  { return RequestTypeExecutionCreate }
func (ExecutionUpdatePayload) RequestType() RequestType  { return RequestTypeExecutionUpdate }
func (BudgetAdjustmentPayload) RequestType() RequestType { return RequestTypeBudgetAdjustment }

// EncodePayload serialises a payload for storage in Approval.RequestData.
func EncodePayload(p RequestPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", p.RequestType(), err)
	}
	return string(data), nil
}

// DecodePayload parses stored request data into the payload variant named by t.
func DecodePayload(t RequestType, data string) (RequestPayload, error) {
	var (
		p   RequestPayload
		err error
	)
	switch t {
	case RequestTypeProjectCreate:
		var v ProjectCreatePayload
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case RequestTypeProjectUpdate:
		var v ProjectUpdatePayload
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case RequestTypeProjectTransfer:
		var v ProjectTransferPayload
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case RequestTypeExecutionCreate:
		var v ExecutionCreatePayload
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case RequestTypeExecutionUpdate:
		var v ExecutionUpdatePayload
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case RequestTypeBudgetAdjustment:
		var v BudgetAdjustmentPayload
		err = json.Unmarshal([]byte(data), &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown request type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}
