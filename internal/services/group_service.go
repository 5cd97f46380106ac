package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

// groupService handles groups and their memberships.
type groupService struct {
	db     *gorm.DB
	admins adminSet
}

// NewGroupService creates a new GroupServicer.
func NewGroupService(db *gorm.DB, adminUsernames []string) GroupServicer {
	return &groupService{db: db, admins: newAdminSet(adminUsernames)}
}

// CreateGroup creates a group managed by pmID. Administrators only.
func (s *groupService) CreateGroup(actorID, name, description, pmID string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || pmID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name and pm_id are required")
	}
	if err := s.admins.requireAdmin(s.db, actorID); err != nil {
		return nil, err
	}
	if err := userExists(s.db, pmID); err != nil {
		return nil, err
	}

	var count int64
	s.db.Model(&models.Group{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count)
	if count > 0 {
		return nil, apperrors.ErrDuplicateGroup
	}

	group := &models.Group{Name: name, Description: description, PMID: pmID}
	if err := s.db.Create(group).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return group, nil
}

// GetGroups lists groups with their managers.
func (s *groupService) GetGroups(page pagination.PageRequest) (*pagination.PageResponse[models.Group], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.Group{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var groups []models.Group
	if err := s.db.Preload("PM").Scopes(pagination.Paginate(page)).
		Order("name ASC").Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(groups, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGroupByID retrieves a group with its manager and members.
func (s *groupService) GetGroupByID(id string) (*models.Group, error) {
	var group models.Group
	if err := s.db.Preload("PM").Preload("Members.User").First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &group, nil
}

// UpdateGroup changes a group's name, description or manager. Pending
// approvals addressed to the previous manager move to the new one.
func (s *groupService) UpdateGroup(actorID, groupID string, name, description, pmID *string) (*models.Group, error) {
	if err := s.admins.requireAdmin(s.db, actorID); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		group, err := findGroup(tx, groupID)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if name != nil {
			n := strings.TrimSpace(*name)
			if n == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "name must not be empty")
			}
			var count int64
			tx.Model(&models.Group{}).Where("LOWER(name) = ? AND id <> ?", strings.ToLower(n), groupID).Count(&count)
			if count > 0 {
				return apperrors.ErrDuplicateGroup
			}
			updates["name"] = n
		}
		if description != nil {
			updates["description"] = *description
		}
		if pmID != nil && *pmID != group.PMID {
			if err := userExists(tx, *pmID); err != nil {
				return err
			}
			updates["pm_id"] = *pmID

			res := tx.Model(&models.Approval{}).
				Where("group_id = ? AND approver_id = ? AND status = ?", groupID, group.PMID, models.ApprovalStatusPending).
				Update("approver_id", *pmID)
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			if res.RowsAffected > 0 {
				logger.Get().Infow("reassigned pending approvals",
					"group_id", groupID,
					"from", group.PMID,
					"to", *pmID,
					"count", res.RowsAffected,
				)
			}
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(group).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetGroupByID(groupID)
}

func (s *groupService) requireManager(actorID string, group *models.Group) error {
	if group.PMID == actorID {
		return nil
	}
	admin, err := s.admins.isAdmin(s.db, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return apperrors.ErrNotGroupManager
	}
	return nil
}

// AddMember adds a user to a group. Only the group's manager or an
// administrator may do so.
func (s *groupService) AddMember(actorID, groupID, userID string) (*models.GroupMember, error) {
	group, err := findGroup(s.db, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(actorID, group); err != nil {
		return nil, err
	}
	if err := userExists(s.db, userID); err != nil {
		return nil, err
	}

	var count int64
	s.db.Model(&models.GroupMember{}).Where("group_id = ? AND user_id = ?", groupID, userID).Count(&count)
	if count > 0 {
		return nil, apperrors.ErrDuplicateMember
	}

	member := &models.GroupMember{GroupID: groupID, UserID: userID, AddedBy: actorID}
	if err := s.db.Create(member).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return member, nil
}

// RemoveMember removes a user from a group.
func (s *groupService) RemoveMember(actorID, groupID, userID string) error {
	group, err := findGroup(s.db, groupID)
	if err != nil {
		return err
	}
	if err := s.requireManager(actorID, group); err != nil {
		return err
	}

	// Hard delete so the user can be added again under the unique index.
	res := s.db.Unscoped().Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMember{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrMemberNotFound
	}
	return nil
}

// IsMember reports whether the user manages or belongs to the group.
func (s *groupService) IsMember(groupID, userID string) (bool, error) {
	group, err := findGroup(s.db, groupID)
	if err != nil {
		return false, err
	}
	return isGroupMember(s.db, group, userID)
}

// findGroupRef resolves a group by ID or case-insensitive name.
func findGroupRef(tx *gorm.DB, ref string) (*models.Group, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group reference is required")
	}

	var group models.Group
	if _, err := uuid.Parse(ref); err == nil {
		err := tx.First(&group, "id = ?", ref).Error
		if err == nil {
			return &group, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if err := tx.Where("LOWER(name) = ?", strings.ToLower(ref)).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessagef(apperrors.ErrGroupNotFound, "group %q not found", ref)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &group, nil
}
