package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
)

const accessKeyBytes = 24

// userService handles user-related business logic.
type userService struct {
	db     *gorm.DB
	admins adminSet
}

// NewUserService creates a new UserServicer. adminUsernames names the users
// allowed to manage accounts, groups and yearly budgets.
func NewUserService(db *gorm.DB, adminUsernames []string) UserServicer {
	return &userService{db: db, admins: newAdminSet(adminUsernames)}
}

// HashAccessKey returns the SHA-256 hex digest stored for an access key.
func HashAccessKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func generateAccessKey() (string, error) {
	buf := make([]byte, accessKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateUser registers a new user and returns its plain access key, which is
// not stored. Only administrators may create users, except for the very first
// account of an empty database.
func (s *userService) CreateUser(actorID string, in CreateUserInput) (*models.User, string, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, "", apperrors.WithMessage(apperrors.ErrInvalidInput, "username and password are required")
	}

	var total int64
	if err := s.db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if total > 0 {
		if actorID == "" {
			return nil, "", apperrors.ErrUnauthorized
		}
		if err := s.admins.requireAdmin(s.db, actorID); err != nil {
			return nil, "", err
		}
	}

	var count int64
	s.db.Model(&models.User{}).Where("LOWER(username) = ?", strings.ToLower(username)).Count(&count)
	if count > 0 {
		return nil, "", apperrors.ErrDuplicateUsername
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	key, err := generateAccessKey()
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user := &models.User{
		Username:      username,
		DisplayName:   displayName,
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Password:      string(hashedPassword),
		AccessKeyHash: HashAccessKey(key),
		IsActive:      true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, key, nil
}

// Login verifies a username and password and records the login time.
func (s *userService) Login(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("LOWER(username) = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(username)), true).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.LastLoginAt = &now

	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByAccessKey resolves the active user owning an access key.
func (s *userService) GetUserByAccessKey(accessKey string) (*models.User, error) {
	if accessKey == "" {
		return nil, apperrors.ErrInvalidAccessKey
	}
	var user models.User
	if err := s.db.Where("access_key_hash = ? AND is_active = ?", HashAccessKey(accessKey), true).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidAccessKey
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUsers lists users ordered by username.
func (s *userService) GetUsers(page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.User{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var users []models.User
	if err := s.db.Scopes(pagination.Paginate(page)).Order("username ASC").Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(users, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// RegenerateAccessKey replaces a user's access key and returns the new one.
func (s *userService) RegenerateAccessKey(userID string) (string, error) {
	if _, err := s.GetUserByID(userID); err != nil {
		return "", err
	}
	key, err := generateAccessKey()
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("access_key_hash", HashAccessKey(key)).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return key, nil
}

// FindUser resolves a reference that is either a user ID or a username or
// display name, compared case-insensitively.
func (s *userService) FindUser(ref string) (*models.User, error) {
	return findUser(s.db, ref)
}

func findUser(tx *gorm.DB, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "user reference is required")
	}

	var user models.User
	if _, err := uuid.Parse(ref); err == nil {
		err := tx.First(&user, "id = ?", ref).Error
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	lowered := strings.ToLower(ref)
	err := tx.Where("LOWER(username) = ? OR LOWER(display_name) = ?", lowered, lowered).
		Order("created_at ASC").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.WithMessagef(apperrors.ErrUserNotFound, "user %q not found", ref)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// IsAdmin reports whether the user is one of the configured administrators.
func (s *userService) IsAdmin(userID string) (bool, error) {
	return s.admins.isAdmin(s.db, userID)
}
