package services

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// transferService handles two-party project transfers.
type transferService struct {
	db     *gorm.DB
	admins adminSet
}

// NewTransferService creates a new TransferServicer.
func NewTransferService(db *gorm.DB, adminUsernames []string) TransferServicer {
	return &transferService{db: db, admins: newAdminSet(adminUsernames)}
}

func validTransferType(t models.TransferType) bool {
	switch t {
	case models.TransferTypeOwnership, models.TransferTypeBudgetReallocation, models.TransferTypeExecution:
		return true
	}
	return false
}

func findProject(tx *gorm.DB, id string) (*models.Project, error) {
	var project models.Project
	if err := tx.First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &project, nil
}

// InitiateTransfer records a pending transfer and its companion approval,
// addressed to the manager of the target group. Every party is resolved
// before anything is written.
func (s *transferService) InitiateTransfer(requesterID string, in InitiateTransferInput) (*models.ProjectTransfer, error) {
	if !validTransferType(in.TransferType) {
		return nil, apperrors.WithMessagef(apperrors.ErrInvalidTransfer, "unknown transfer type %q", in.TransferType)
	}
	if in.ProjectID == "" || in.ToUser == "" || in.ToGroup == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "project, target user and target group are required")
	}

	project, err := findProject(s.db, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := canManageProject(s.db, s.admins, requesterID, project); err != nil {
		return nil, err
	}

	fromRef := in.FromUser
	if fromRef == "" {
		fromRef = project.UserID
	}
	fromUser, err := findUser(s.db, fromRef)
	if err != nil {
		return nil, err
	}
	toUser, err := findUser(s.db, in.ToUser)
	if err != nil {
		return nil, err
	}

	var fromGroup *models.Group
	if in.FromGroup != "" {
		if fromGroup, err = findGroupRef(s.db, in.FromGroup); err != nil {
			return nil, err
		}
	} else if fromGroup, err = projectGroup(s.db, project); err != nil {
		return nil, err
	}
	toGroup, err := findGroupRef(s.db, in.ToGroup)
	if err != nil {
		return nil, err
	}

	transfer := &models.ProjectTransfer{
		ProjectID:    project.ID,
		TransferType: in.TransferType,
		FromUserID:   fromUser.ID,
		ToUserID:     toUser.ID,
		ToGroupID:    toGroup.ID,
		Amount:       decimal.Zero,
		Reason:       in.Reason,
		Status:       models.TransferStatusPending,
		RequestedBy:  requesterID,
	}
	if fromGroup != nil {
		transfer.FromGroupID = &fromGroup.ID
	}

	switch in.TransferType {
	case models.TransferTypeBudgetReallocation:
		if !in.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		if in.TargetProjectID == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target project is required for budget reallocation")
		}
		if in.TargetProjectID == project.ID {
			return nil, apperrors.ErrAdjustmentSameProject
		}
		target, err := findProject(s.db, in.TargetProjectID)
		if err != nil {
			return nil, err
		}
		if err := checkRemainingBudget(s.db, project, in.Amount, ""); err != nil {
			return nil, err
		}
		transfer.Amount = in.Amount
		transfer.TargetProjectID = &target.ID
	case models.TransferTypeOwnership:
		if project.UserID == toUser.ID && project.GroupID != nil && *project.GroupID == toGroup.ID {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidTransfer, "project already belongs to the target user and group")
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// The project lock serialises initiations on the same project.
		if _, err := lockProject(tx, project.ID); err != nil {
			return err
		}
		var pending int64
		if err := tx.Model(&models.ProjectTransfer{}).
			Where("project_id = ? AND status = ?", project.ID, models.TransferStatusPending).
			Count(&pending).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if pending > 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidTransfer, "project already has a pending transfer")
		}

		if err := tx.Create(transfer).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		data, err := models.EncodePayload(models.ProjectTransferPayload{TransferID: transfer.ID})
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		approval := &models.Approval{
			RequestType: models.RequestTypeProjectTransfer,
			RequestData: data,
			RequesterID: requesterID,
			ApproverID:  toGroup.PMID,
			GroupID:     toGroup.ID,
			Status:      models.ApprovalStatusPending,
		}
		if err := tx.Create(approval).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		transfer.ApprovalID = &approval.ID
		if err := tx.Model(transfer).Update("approval_id", approval.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("transfer initiated",
		"transfer_id", transfer.ID,
		"project_id", project.ID,
		"type", transfer.TransferType,
		"to_group_id", toGroup.ID,
		"approver_id", toGroup.PMID,
	)
	return s.GetTransferByID(transfer.ID)
}

func findTransfer(tx *gorm.DB, id string) (*models.ProjectTransfer, error) {
	var transfer models.ProjectTransfer
	if err := tx.First(&transfer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransferNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transfer, nil
}

func lockTransfer(tx *gorm.DB, id string) (*models.ProjectTransfer, error) {
	var transfer models.ProjectTransfer
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&transfer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransferNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transfer, nil
}

// reviewTransfer moves a pending transfer and its companion approval to the
// given status after checking the actor manages the target group. A transfer
// left approved by a failed execution can be approved again to retry it, or
// rejected to abandon it.
func reviewTransfer(tx *gorm.DB, actorID, transferID, notes string, status models.TransferStatus, now time.Time) error {
	transfer, err := findTransfer(tx, transferID)
	if err != nil {
		return err
	}
	toGroup, err := findGroup(tx, transfer.ToGroupID)
	if err != nil {
		return err
	}
	if toGroup.PMID != actorID {
		return apperrors.WithMessage(apperrors.ErrNotGroupManager, "only the manager of the target group can review this transfer")
	}
	if transfer.Status != models.TransferStatusPending && transfer.Status != models.TransferStatusApproved {
		return apperrors.WithMessagef(apperrors.ErrTransferNotPending, "transfer is %s", transfer.Status)
	}

	res := tx.Model(&models.ProjectTransfer{}).
		Where("id = ? AND status = ?", transferID, transfer.Status).
		Updates(map[string]any{
			"status":       status,
			"reviewed_by":  actorID,
			"review_notes": notes,
			"reviewed_at":  now,
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTransferNotPending
	}

	if transfer.ApprovalID != nil {
		approvalStatus := models.ApprovalStatusApproved
		if status == models.TransferStatusRejected {
			approvalStatus = models.ApprovalStatusRejected
		}
		if err := tx.Model(&models.Approval{}).
			Where("id = ? AND status = ?", *transfer.ApprovalID, models.ApprovalStatusPending).
			Updates(map[string]any{
				"status":       approvalStatus,
				"review_notes": notes,
				"reviewed_at":  now,
				"result_id":    transferID,
			}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// ApproveTransfer commits the approval first and then applies the transfer.
// When applying fails the transfer stays approved with the failure recorded
// in its review notes, and its companion approval goes back to pending so
// the manager can retry.
func (s *transferService) ApproveTransfer(actorID, transferID, notes string) (*models.ProjectTransfer, error) {
	now := time.Now()
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return reviewTransfer(tx, actorID, transferID, notes, models.TransferStatusApproved, now)
	}); err != nil {
		return nil, err
	}
	logger.Get().Infow("transfer approved", "transfer_id", transferID, "reviewer_id", actorID)

	execErr := s.db.Transaction(func(tx *gorm.DB) error {
		transfer, err := lockTransfer(tx, transferID)
		if err != nil {
			return err
		}
		if transfer.Status != models.TransferStatusApproved {
			return apperrors.WithMessagef(apperrors.ErrTransferNotPending, "transfer is %s", transfer.Status)
		}
		if err := executeTransfer(tx, transfer); err != nil {
			return err
		}
		return tx.Model(&models.ProjectTransfer{}).Where("id = ?", transferID).
			Updates(map[string]any{
				"status":       models.TransferStatusCompleted,
				"completed_at": time.Now(),
			}).Error
	})
	if execErr != nil {
		logger.Get().Warnw("transfer left approved after failed execution",
			"transfer_id", transferID,
			"error", execErr.Error(),
		)
		failure := "execution failed: " + execErr.Error()
		if err := s.db.Transaction(func(tx *gorm.DB) error {
			transfer, err := findTransfer(tx, transferID)
			if err != nil {
				return err
			}
			if transfer.Status != models.TransferStatusApproved {
				return nil
			}
			if err := tx.Model(transfer).Update("review_notes", failure).Error; err != nil {
				return err
			}
			if transfer.ApprovalID == nil {
				return nil
			}
			return tx.Model(&models.Approval{}).
				Where("id = ? AND status = ?", *transfer.ApprovalID, models.ApprovalStatusApproved).
				Updates(map[string]any{
					"status":       models.ApprovalStatusPending,
					"review_notes": failure,
					"result_id":    "",
				}).Error
		}); err != nil {
			logger.Get().Errorw("failed to record transfer failure", "transfer_id", transferID, "error", err)
		}
		return nil, execErr
	}

	logger.Get().Infow("transfer completed", "transfer_id", transferID)
	return s.GetTransferByID(transferID)
}

// RejectTransfer rejects a pending transfer, or one whose execution failed,
// without side effects.
func (s *transferService) RejectTransfer(actorID, transferID, notes string) (*models.ProjectTransfer, error) {
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return reviewTransfer(tx, actorID, transferID, notes, models.TransferStatusRejected, time.Now())
	}); err != nil {
		return nil, err
	}
	logger.Get().Infow("transfer rejected", "transfer_id", transferID, "reviewer_id", actorID)
	return s.GetTransferByID(transferID)
}

// lockProjects locks two projects in ID order so that concurrent transfers
// between the same pair cannot deadlock.
func lockProjects(tx *gorm.DB, a, b string) (*models.Project, *models.Project, error) {
	ids := []string{a, b}
	sort.Strings(ids)
	locked := map[string]*models.Project{}
	for _, id := range ids {
		p, err := lockProject(tx, id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = p
	}
	return locked[a], locked[b], nil
}

// executeTransfer applies the side effects of a transfer to its project.
func executeTransfer(tx *gorm.DB, transfer *models.ProjectTransfer) error {
	switch transfer.TransferType {
	case models.TransferTypeOwnership:
		project, err := lockProject(tx, transfer.ProjectID)
		if err != nil {
			return err
		}
		return wrapDBError(tx.Model(project).Updates(map[string]any{
			"user_id":  transfer.ToUserID,
			"group_id": transfer.ToGroupID,
		}).Error)

	case models.TransferTypeExecution:
		project, err := lockProject(tx, transfer.ProjectID)
		if err != nil {
			return err
		}
		return wrapDBError(tx.Model(project).Update("executor_id", transfer.ToUserID).Error)

	case models.TransferTypeBudgetReallocation:
		if transfer.TargetProjectID == nil {
			return apperrors.WithMessage(apperrors.ErrInvalidTransfer, "transfer has no target project")
		}
		source, target, err := lockProjects(tx, transfer.ProjectID, *transfer.TargetProjectID)
		if err != nil {
			return err
		}
		if err := checkRemainingBudget(tx, source, transfer.Amount, ""); err != nil {
			return err
		}
		if err := tx.Model(source).Update("budget_occupied", source.BudgetOccupied.Sub(transfer.Amount)).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return wrapDBError(tx.Model(target).Update("budget_occupied", target.BudgetOccupied.Add(transfer.Amount)).Error)
	}
	return apperrors.WithMessagef(apperrors.ErrInvalidTransfer, "unknown transfer type %q", transfer.TransferType)
}

func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// GetTransferByID retrieves a transfer with its parties.
func (s *transferService) GetTransferByID(id string) (*models.ProjectTransfer, error) {
	var transfer models.ProjectTransfer
	if err := s.db.Preload("Project").Preload("FromUser").Preload("ToUser").
		Preload("FromGroup").Preload("ToGroup").
		First(&transfer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransferNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transfer, nil
}

// GetTransfers lists the transfers the actor takes part in or reviews.
// Administrators see every transfer.
func (s *transferService) GetTransfers(actorID string, filter TransferFilter, page pagination.PageRequest) (*pagination.PageResponse[models.ProjectTransfer], error) {
	page.Defaults()

	base := s.db.Model(&models.ProjectTransfer{})
	admin, err := s.admins.isAdmin(s.db, actorID)
	if err != nil {
		return nil, err
	}
	if !admin {
		managed := s.db.Model(&models.Group{}).Select("id").Where("pm_id = ?", actorID)
		base = base.Where(
			"requested_by = ? OR from_user_id = ? OR to_user_id = ? OR to_group_id IN (?) OR from_group_id IN (?)",
			actorID, actorID, actorID, managed, managed,
		)
	}
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}
	if filter.ProjectID != "" {
		base = base.Where("project_id = ?", filter.ProjectID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transfers []models.ProjectTransfer
	if err := base.Preload("Project").Preload("FromUser").Preload("ToUser").
		Preload("FromGroup").Preload("ToGroup").
		Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&transfers).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transfers, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetReallocationOptions lists the actor's projects that still have budget
// to move, together with every group that can receive it.
func (s *transferService) GetReallocationOptions(actorID string) (*ReallocationOptions, error) {
	managed := s.db.Model(&models.Group{}).Select("id").Where("pm_id = ?", actorID)

	var projects []models.Project
	if err := s.db.Where("(user_id = ? OR group_id IN (?)) AND approval_status = ?", actorID, managed, models.ProjectStatusApproved).
		Order("name ASC").
		Find(&projects).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	totals, err := executedByProject(s.db, ids)
	if err != nil {
		return nil, err
	}

	options := &ReallocationOptions{Projects: []ProjectBudget{}, Groups: []models.Group{}}
	for i := range projects {
		p := &projects[i]
		p.BudgetExecuted = totals[p.ID]
		pb := toProjectBudget(p)
		if pb.RemainingBudget.IsPositive() {
			options.Projects = append(options.Projects, pb)
		}
	}

	if err := s.db.Preload("PM").Order("name ASC").Find(&options.Groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return options, nil
}

func toProjectBudget(p *models.Project) ProjectBudget {
	return ProjectBudget{
		ID:              p.ID,
		Name:            p.Name,
		Category:        p.Category,
		GroupID:         p.GroupID,
		BudgetOccupied:  p.BudgetOccupied,
		BudgetExecuted:  p.BudgetExecuted,
		RemainingBudget: models.RemainingBudget(p),
	}
}
