package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
)

// adminSet holds the configured administrator usernames, lower-cased.
type adminSet map[string]struct{}

func newAdminSet(usernames []string) adminSet {
	set := make(adminSet, len(usernames))
	for _, u := range usernames {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			set[u] = struct{}{}
		}
	}
	return set
}

func (a adminSet) contains(username string) bool {
	_, ok := a[strings.ToLower(username)]
	return ok
}

func (a adminSet) isAdmin(tx *gorm.DB, userID string) (bool, error) {
	if userID == "" || len(a) == 0 {
		return false, nil
	}
	var user models.User
	if err := tx.Select("id", "username").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return a.contains(user.Username), nil
}

func (a adminSet) requireAdmin(tx *gorm.DB, userID string) error {
	ok, err := a.isAdmin(tx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrAdminRequired
	}
	return nil
}

func findGroup(tx *gorm.DB, id string) (*models.Group, error) {
	var group models.Group
	if err := tx.First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &group, nil
}

func userExists(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// isGroupMember reports whether userID manages the group or holds a
// membership row in it.
func isGroupMember(tx *gorm.DB, group *models.Group, userID string) (bool, error) {
	if group.PMID == userID {
		return true, nil
	}
	var count int64
	if err := tx.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, userID).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// projectGroup returns the project's group, or nil for ungrouped projects.
func projectGroup(tx *gorm.DB, project *models.Project) (*models.Group, error) {
	if project.GroupID == nil || *project.GroupID == "" {
		return nil, nil
	}
	return findGroup(tx, *project.GroupID)
}

// canManageProject allows the owner, the manager of the project's group and
// administrators.
func canManageProject(tx *gorm.DB, admins adminSet, actorID string, project *models.Project) error {
	if project.UserID == actorID {
		return nil
	}
	group, err := projectGroup(tx, project)
	if err != nil && !errors.Is(err, apperrors.ErrGroupNotFound) {
		return err
	}
	if group != nil && group.PMID == actorID {
		return nil
	}
	admin, err := admins.isAdmin(tx, actorID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	return apperrors.ErrNotProjectOwner
}

// canRecordExecution additionally allows the executor and any member of the
// project's group.
func canRecordExecution(tx *gorm.DB, admins adminSet, actorID string, project *models.Project) error {
	if project.UserID == actorID || (project.ExecutorID != nil && *project.ExecutorID == actorID) {
		return nil
	}
	group, err := projectGroup(tx, project)
	if err != nil && !errors.Is(err, apperrors.ErrGroupNotFound) {
		return err
	}
	if group != nil {
		member, err := isGroupMember(tx, group, actorID)
		if err != nil {
			return err
		}
		if member {
			return nil
		}
	}
	admin, err := admins.isAdmin(tx, actorID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	return apperrors.WithMessage(apperrors.ErrForbidden, "not allowed to record executions on this project")
}
