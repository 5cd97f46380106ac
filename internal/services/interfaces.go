package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// CreateUserInput holds the fields needed to register a user.
type CreateUserInput struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(actorID string, in CreateUserInput) (*models.User, string, error)
	Login(username, password string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetUserByAccessKey(accessKey string) (*models.User, error)
	GetUsers(page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	RegenerateAccessKey(userID string) (string, error)
	FindUser(ref string) (*models.User, error)
	IsAdmin(userID string) (bool, error)
}

// GroupServicer defines the contract for group and membership management.
type GroupServicer interface {
	CreateGroup(actorID, name, description, pmID string) (*models.Group, error)
	GetGroups(page pagination.PageRequest) (*pagination.PageResponse[models.Group], error)
	GetGroupByID(id string) (*models.Group, error)
	UpdateGroup(actorID, groupID string, name, description, pmID *string) (*models.Group, error)
	AddMember(actorID, groupID, userID string) (*models.GroupMember, error)
	RemoveMember(actorID, groupID, userID string) error
	IsMember(groupID, userID string) (bool, error)
}

// ProjectFilter holds optional filter parameters for listing projects.
type ProjectFilter struct {
	Year     *int
	Category string
	GroupID  string
	OwnerID  string
	Status   *models.ProjectStatus
}

// ProjectServicer defines the contract for project-related business logic.
// Methods taking a *gorm.DB run inside the caller's transaction.
type ProjectServicer interface {
	CreateProject(tx *gorm.DB, ownerID string, p models.ProjectCreatePayload) (*models.Project, error)
	ProposeProject(tx *gorm.DB, ownerID string, p models.ProjectCreatePayload) (*models.Project, error)
	DecideProject(tx *gorm.DB, projectID string, status models.ProjectStatus) (*models.Project, error)
	UpdateProject(tx *gorm.DB, actorID string, p models.ProjectUpdatePayload) (*models.Project, error)
	DeleteProject(actorID, projectID string) error
	GetProjects(filter ProjectFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error)
	GetProjectByID(id string) (*models.Project, error)
}

// ExecutionFilter holds optional filter parameters for listing executions.
type ExecutionFilter struct {
	ProjectID string
	UserID    string
	FromDate  *time.Time
	ToDate    *time.Time
}

// ExecutionServicer defines the contract for recording spend against projects.
type ExecutionServicer interface {
	CreateExecution(tx *gorm.DB, actorID string, p models.ExecutionCreatePayload) (*models.BudgetExecution, error)
	UpdateExecution(tx *gorm.DB, actorID string, p models.ExecutionUpdatePayload) (*models.BudgetExecution, error)
	DeleteExecution(actorID, executionID string) error
	GetExecutionByID(id string) (*models.BudgetExecution, error)
	GetExecutions(filter ExecutionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetExecution], error)
	GetProjectExecutions(projectID string) ([]models.BudgetExecution, error)
	SetExecutionPlan(actorID, projectID string, year, month int, amount decimal.Decimal) (*models.ExecutionPlan, error)
	GetExecutionPlans(projectID string, year int) ([]models.ExecutionPlan, error)
}

// AdjustmentServicer defines the contract for carving budget out of a project.
type AdjustmentServicer interface {
	CreateAdjustment(tx *gorm.DB, actorID string, p models.BudgetAdjustmentPayload) (*models.BudgetAdjustment, error)
	GetAdjustments(projectID string, page pagination.PageRequest) (*pagination.PageResponse[models.BudgetAdjustment], error)
}

// SubmitResult reports whether a submitted mutation ran immediately or is
// waiting for review.
type SubmitResult struct {
	Executed bool             `json:"executed"`
	Approval *models.Approval `json:"approval,omitempty"`
	ResultID string           `json:"result_id,omitempty"`
	Result   any              `json:"result,omitempty"`
}

// ReviewAction is the decision taken on a pending approval.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// ApprovalFilter holds optional filter parameters for the approval history.
type ApprovalFilter struct {
	Status      *models.ApprovalStatus
	RequestType *models.RequestType
	RequesterID string
	ApproverID  string
	GroupID     string
}

// ApprovalServicer defines the contract for the approval workflow.
type ApprovalServicer interface {
	Submit(requesterID, groupID string, payload models.RequestPayload) (*SubmitResult, error)
	Dispatch(requesterID string, payload models.RequestPayload) (*SubmitResult, error)
	Review(approverID, approvalID string, action ReviewAction, notes string) (*models.Approval, error)
	GetApprovalByID(id string) (*models.Approval, error)
	GetPendingApprovals(actorID, approverID string) ([]models.Approval, error)
	GetApprovalHistory(filter ApprovalFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Approval], error)
}

// InitiateTransferInput describes a requested transfer. User and group
// references accept an ID, a username/display name or a group name.
type InitiateTransferInput struct {
	ProjectID       string
	TransferType    models.TransferType
	FromUser        string
	ToUser          string
	FromGroup       string
	ToGroup         string
	Amount          decimal.Decimal
	TargetProjectID string
	Reason          string
}

// TransferFilter holds optional filter parameters for listing transfers.
type TransferFilter struct {
	Status    *models.TransferStatus
	ProjectID string
}

// ReallocationOptions lists what a user can move budget from and to.
type ReallocationOptions struct {
	Projects []ProjectBudget `json:"projects"`
	Groups   []models.Group  `json:"groups"`
}

// ProjectBudget is a project with its remaining budget.
type ProjectBudget struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	GroupID         *string         `json:"group_id,omitempty"`
	BudgetOccupied  decimal.Decimal `json:"budget_occupied"`
	BudgetExecuted  decimal.Decimal `json:"budget_executed"`
	RemainingBudget decimal.Decimal `json:"remaining_budget"`
}

// TransferServicer defines the contract for project transfers.
type TransferServicer interface {
	InitiateTransfer(requesterID string, in InitiateTransferInput) (*models.ProjectTransfer, error)
	ApproveTransfer(actorID, transferID, notes string) (*models.ProjectTransfer, error)
	RejectTransfer(actorID, transferID, notes string) (*models.ProjectTransfer, error)
	GetTransferByID(id string) (*models.ProjectTransfer, error)
	GetTransfers(actorID string, filter TransferFilter, page pagination.PageRequest) (*pagination.PageResponse[models.ProjectTransfer], error)
	GetReallocationOptions(actorID string) (*ReallocationOptions, error)
}

// CategorySummary rolls up the projects of one category.
type CategorySummary struct {
	Category      string          `json:"category"`
	Budget        decimal.Decimal `json:"budget"`
	Executed      decimal.Decimal `json:"executed"`
	ExecutionRate float64         `json:"execution_rate"`
	Projects      []ProjectBudget `json:"projects"`
}

// RiskProject is a project whose execution rate exceeds the risk threshold.
type RiskProject struct {
	ProjectBudget
	ExecutionRate float64 `json:"execution_rate"`
}

// Dashboard holds the aggregated figures for one budget year.
type Dashboard struct {
	Year             int               `json:"year"`
	TotalBudget      decimal.Decimal   `json:"total_budget"`
	TotalBudgetSet   bool              `json:"total_budget_set"`
	Allocated        decimal.Decimal   `json:"allocated"`
	Executed         decimal.Decimal   `json:"executed"`
	Remaining        decimal.Decimal   `json:"remaining"`
	Unallocated      decimal.Decimal   `json:"unallocated"`
	ExecutionRate    float64           `json:"execution_rate"`
	ProjectCount     int               `json:"project_count"`
	Categories       []CategorySummary `json:"categories"`
	HighRiskProjects []RiskProject     `json:"high_risk_projects"`
	PendingApprovals int64             `json:"pending_approvals"`
}

// StatisticsServicer defines the contract for dashboard aggregation.
type StatisticsServicer interface {
	GetDashboard(ctx context.Context, year int) (*Dashboard, error)
}

// TotalBudgetServicer defines the contract for yearly departmental ceilings.
type TotalBudgetServicer interface {
	GetTotalBudget(year int) (*models.TotalBudget, error)
	SetTotalBudget(actorID string, year int, amount decimal.Decimal, notes string) (*models.TotalBudget, error)
}

// BudgetFileServicer defines the contract for versioned budget documents.
type BudgetFileServicer interface {
	CreateBudgetFile(actorID string, year int, fileName, fileURL, notes string) (*models.BudgetFile, error)
	GetBudgetFiles(year *int) ([]models.BudgetFile, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
