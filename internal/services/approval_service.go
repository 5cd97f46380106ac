package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// errDryRun rolls back a validation pass of an executor.
var errDryRun = errors.New("dry run")

// approvalService routes mutations through the group manager's approval.
type approvalService struct {
	db                *gorm.DB
	admins            adminSet
	projectService    ProjectServicer
	executionService  ExecutionServicer
	adjustmentService AdjustmentServicer
	transferService   TransferServicer
}

// NewApprovalService creates a new ApprovalServicer. The domain services
// execute approved requests.
func NewApprovalService(
	db *gorm.DB,
	adminUsernames []string,
	projectService ProjectServicer,
	executionService ExecutionServicer,
	adjustmentService AdjustmentServicer,
	transferService TransferServicer,
) ApprovalServicer {
	return &approvalService{
		db:                db,
		admins:            newAdminSet(adminUsernames),
		projectService:    projectService,
		executionService:  executionService,
		adjustmentService: adjustmentService,
		transferService:   transferService,
	}
}

// execute runs the mutation described by payload on behalf of requesterID.
func (s *approvalService) execute(tx *gorm.DB, requesterID string, payload models.RequestPayload) (any, string, error) {
	switch p := payload.(type) {
	case models.ProjectCreatePayload:
		var (
			project *models.Project
			err     error
		)
		if p.ProjectID != "" {
			project, err = s.projectService.DecideProject(tx, p.ProjectID, models.ProjectStatusApproved)
		} else {
			project, err = s.projectService.CreateProject(tx, requesterID, p)
		}
		if err != nil {
			return nil, "", err
		}
		return project, project.ID, nil
	case models.ProjectUpdatePayload:
		project, err := s.projectService.UpdateProject(tx, requesterID, p)
		if err != nil {
			return nil, "", err
		}
		return project, project.ID, nil
	case models.ExecutionCreatePayload:
		execution, err := s.executionService.CreateExecution(tx, requesterID, p)
		if err != nil {
			return nil, "", err
		}
		return execution, execution.ID, nil
	case models.ExecutionUpdatePayload:
		execution, err := s.executionService.UpdateExecution(tx, requesterID, p)
		if err != nil {
			return nil, "", err
		}
		return execution, execution.ID, nil
	case models.BudgetAdjustmentPayload:
		adjustment, err := s.adjustmentService.CreateAdjustment(tx, requesterID, p)
		if err != nil {
			return nil, "", err
		}
		return adjustment, adjustment.ID, nil
	}
	return nil, "", apperrors.WithMessagef(apperrors.ErrInvalidRequestType,
		"request type %q cannot be executed directly", payload.RequestType())
}

// scopeGroup returns the group that governs the target of payload, or ""
// when the target is not scoped to a group.
func (s *approvalService) scopeGroup(payload models.RequestPayload) (string, error) {
	var projectID string
	switch p := payload.(type) {
	case models.ProjectCreatePayload:
		return p.GroupID, nil
	case models.ProjectUpdatePayload:
		projectID = p.ProjectID
	case models.ExecutionCreatePayload:
		projectID = p.ProjectID
	case models.ExecutionUpdatePayload:
		execution, err := findExecution(s.db, p.ExecutionID)
		if err != nil {
			return "", err
		}
		projectID = execution.ProjectID
	case models.BudgetAdjustmentPayload:
		projectID = p.SourceProjectID
	default:
		return "", apperrors.WithMessagef(apperrors.ErrInvalidRequestType,
			"request type %q is not submitted through approvals", payload.RequestType())
	}

	project, err := findProject(s.db, projectID)
	if err != nil {
		return "", err
	}
	if project.GroupID == nil {
		return "", nil
	}
	return *project.GroupID, nil
}

// Dispatch executes payload directly when its target is not scoped to a
// group, and submits it for approval otherwise.
func (s *approvalService) Dispatch(requesterID string, payload models.RequestPayload) (*SubmitResult, error) {
	payload = withoutProposal(payload)
	groupID, err := s.scopeGroup(payload)
	if err != nil {
		return nil, err
	}
	if groupID != "" {
		return s.Submit(requesterID, groupID, payload)
	}
	return s.executeNow(requesterID, payload)
}

// withoutProposal drops a caller-supplied pending project reference; only
// Submit links a create request to the project it proposes.
func withoutProposal(payload models.RequestPayload) models.RequestPayload {
	if create, ok := payload.(models.ProjectCreatePayload); ok {
		create.ProjectID = ""
		return create
	}
	return payload
}

func (s *approvalService) executeNow(requesterID string, payload models.RequestPayload) (*SubmitResult, error) {
	result := &SubmitResult{Executed: true}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result.Result, result.ResultID, err = s.execute(tx, requesterID, payload)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validate runs the executor inside a transaction that is always rolled back.
func (s *approvalService) validate(requesterID string, payload models.RequestPayload) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, _, err := s.execute(tx, requesterID, payload); err != nil {
			return err
		}
		return errDryRun
	})
	if errors.Is(err, errDryRun) {
		return nil
	}
	return err
}

// Submit puts payload in front of the manager of groupID. When the requester
// is that manager the mutation runs at once and no approval is recorded.
func (s *approvalService) Submit(requesterID, groupID string, payload models.RequestPayload) (*SubmitResult, error) {
	if payload == nil || !payload.RequestType().Valid() {
		return nil, apperrors.ErrInvalidRequestType
	}
	if payload.RequestType() == models.RequestTypeProjectTransfer {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidRequestType,
			"project transfers are initiated through the transfer endpoints")
	}
	payload = withoutProposal(payload)

	group, err := findGroup(s.db, groupID)
	if err != nil {
		return nil, err
	}

	scope, err := s.scopeGroup(payload)
	if err != nil {
		return nil, err
	}
	if create, ok := payload.(models.ProjectCreatePayload); ok && scope == "" {
		create.GroupID = group.ID
		payload = create
		scope = group.ID
	}
	if scope != group.ID {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "request target does not belong to this group")
	}

	if group.PMID == requesterID {
		result, err := s.executeNow(requesterID, payload)
		if err != nil {
			return nil, err
		}
		logger.Get().Infow("request executed by group manager",
			"request_type", payload.RequestType(),
			"group_id", group.ID,
			"requester_id", requesterID,
			"result_id", result.ResultID,
		)
		return result, nil
	}

	member, err := isGroupMember(s.db, group, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.ErrNotGroupMember
	}

	if err := s.validate(requesterID, payload); err != nil {
		return nil, err
	}

	approval := &models.Approval{
		RequestType: payload.RequestType(),
		RequesterID: requesterID,
		ApproverID:  group.PMID,
		GroupID:     group.ID,
		Status:      models.ApprovalStatusPending,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// A proposed project is recorded as pending so it is visible while
		// it waits for review.
		if create, ok := payload.(models.ProjectCreatePayload); ok {
			project, err := s.projectService.ProposeProject(tx, requesterID, create)
			if err != nil {
				return err
			}
			create.ProjectID = project.ID
			payload = create
		}
		data, err := models.EncodePayload(payload)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		approval.RequestData = data
		return wrapDBError(tx.Create(approval).Error)
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("approval submitted",
		"approval_id", approval.ID,
		"request_type", approval.RequestType,
		"group_id", group.ID,
		"approver_id", approval.ApproverID,
	)
	return &SubmitResult{Approval: approval}, nil
}

func findApproval(tx *gorm.DB, id string) (*models.Approval, error) {
	var approval models.Approval
	if err := tx.First(&approval, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrApprovalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &approval, nil
}

// Review approves or rejects a pending approval. Approving runs the stored
// request in the same transaction as the status change; if it fails the
// approval stays pending with the failure in its review notes and the
// error is returned.
func (s *approvalService) Review(approverID, approvalID string, action ReviewAction, notes string) (*models.Approval, error) {
	if action != ReviewApprove && action != ReviewReject {
		return nil, apperrors.WithMessagef(apperrors.ErrInvalidInput, "unknown review action %q", action)
	}

	approval, err := findApproval(s.db, approvalID)
	if err != nil {
		return nil, err
	}
	if approval.ApproverID != approverID {
		return nil, apperrors.ErrNotApprover
	}
	if approval.Status != models.ApprovalStatusPending {
		return nil, apperrors.WithMessagef(apperrors.ErrApprovalAlreadyReviewed, "approval is already %s", approval.Status)
	}

	payload, err := models.DecodePayload(approval.RequestType, approval.RequestData)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequestType, err)
	}

	if transfer, ok := payload.(models.ProjectTransferPayload); ok {
		return s.reviewTransfer(approverID, approval, transfer, action, notes)
	}

	if action == ReviewReject {
		if err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := markReviewed(tx, approval.ID, models.ApprovalStatusRejected, notes, ""); err != nil {
				return err
			}
			create, ok := payload.(models.ProjectCreatePayload)
			if !ok || create.ProjectID == "" {
				return nil
			}
			_, err := s.projectService.DecideProject(tx, create.ProjectID, models.ProjectStatusRejected)
			if errors.Is(err, apperrors.ErrProjectNotFound) {
				return nil
			}
			return err
		}); err != nil {
			return nil, err
		}
		logger.Get().Infow("approval rejected", "approval_id", approval.ID, "approver_id", approverID)
		return s.GetApprovalByID(approval.ID)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := markReviewed(tx, approval.ID, models.ApprovalStatusApproved, notes, ""); err != nil {
			return err
		}
		_, resultID, err := s.execute(tx, approval.RequesterID, payload)
		if err != nil {
			return err
		}
		return wrapDBError(tx.Model(&models.Approval{}).Where("id = ?", approval.ID).
			Update("result_id", resultID).Error)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrApprovalAlreadyReviewed) {
			return nil, err
		}
		logger.Get().Warnw("approval execution failed, kept pending",
			"approval_id", approval.ID,
			"request_type", approval.RequestType,
			"error", err.Error(),
		)
		if uerr := s.db.Model(&models.Approval{}).
			Where("id = ? AND status = ?", approval.ID, models.ApprovalStatusPending).
			Update("review_notes", "execution failed: "+err.Error()).Error; uerr != nil {
			logger.Get().Errorw("failed to record approval failure", "approval_id", approval.ID, "error", uerr)
		}
		return nil, err
	}

	logger.Get().Infow("approval approved", "approval_id", approval.ID, "approver_id", approverID)
	return s.GetApprovalByID(approval.ID)
}

// reviewTransfer hands companion approvals of project transfers to the
// transfer workflow, which keeps its own status.
func (s *approvalService) reviewTransfer(approverID string, approval *models.Approval, p models.ProjectTransferPayload, action ReviewAction, notes string) (*models.Approval, error) {
	var err error
	if action == ReviewApprove {
		_, err = s.transferService.ApproveTransfer(approverID, p.TransferID, notes)
	} else {
		_, err = s.transferService.RejectTransfer(approverID, p.TransferID, notes)
	}
	if err != nil {
		return nil, err
	}
	return s.GetApprovalByID(approval.ID)
}

// markReviewed moves a pending approval to status. The status condition
// makes concurrent reviews of the same approval fail.
func markReviewed(tx *gorm.DB, id string, status models.ApprovalStatus, notes, resultID string) error {
	now := time.Now()
	res := tx.Model(&models.Approval{}).
		Where("id = ? AND status = ?", id, models.ApprovalStatusPending).
		Updates(map[string]any{
			"status":       status,
			"review_notes": notes,
			"reviewed_at":  now,
			"result_id":    resultID,
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrApprovalAlreadyReviewed
	}
	return nil
}

// GetApprovalByID retrieves an approval with its requester and group.
func (s *approvalService) GetApprovalByID(id string) (*models.Approval, error) {
	var approval models.Approval
	if err := s.db.Preload("Requester").Preload("Group").First(&approval, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrApprovalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &approval, nil
}

// GetPendingApprovals lists the pending approvals addressed to approverID.
// Users may only read their own queue unless they are administrators.
func (s *approvalService) GetPendingApprovals(actorID, approverID string) ([]models.Approval, error) {
	if actorID != approverID {
		if err := s.admins.requireAdmin(s.db, actorID); err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrForbidden, "cannot read another user's approvals")
		}
	}

	approvals := []models.Approval{}
	if err := s.db.Preload("Requester").Preload("Group").
		Where("approver_id = ? AND status = ?", approverID, models.ApprovalStatusPending).
		Order("created_at ASC").
		Find(&approvals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return approvals, nil
}

// GetApprovalHistory retrieves a paginated, filtered list of approvals.
func (s *approvalService) GetApprovalHistory(filter ApprovalFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Approval], error) {
	page.Defaults()

	base := s.db.Model(&models.Approval{})
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}
	if filter.RequestType != nil {
		base = base.Where("request_type = ?", *filter.RequestType)
	}
	if filter.RequesterID != "" {
		base = base.Where("requester_id = ?", filter.RequesterID)
	}
	if filter.ApproverID != "" {
		base = base.Where("approver_id = ?", filter.ApproverID)
	}
	if filter.GroupID != "" {
		base = base.Where("group_id = ?", filter.GroupID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var approvals []models.Approval
	if err := base.Preload("Requester").Preload("Group").
		Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&approvals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(approvals, page.Page, page.PageSize, totalItems)
	return &result, nil
}
