package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"budgettracker/internal/config"
	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/services"
)

// AccessKeyHeader carries a user's long-lived access key.
const AccessKeyHeader = "x-access-key"

// Context keys set by the auth middleware.
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken issues a session token for a user that expires after the
// configured JWT lifetime.
func GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(config.Get().JWTExpirationDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "budgettracker-api",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// ParseToken validates a session token and returns its claims.
func ParseToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTKey(), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// authenticate resolves the caller from the access key header, falling
// back to a bearer token. It returns ErrUnauthorized when neither is present.
func authenticate(c *gin.Context, users services.UserServicer) (*models.User, error) {
	if key := strings.TrimSpace(c.GetHeader(AccessKeyHeader)); key != "" {
		user, err := users.GetUserByAccessKey(key)
		if err != nil {
			return nil, err
		}
		return activeUser(user)
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, apperrors.ErrUnauthorized
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format")
	}

	claims, err := ParseToken(parts[1])
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token")
	}
	user, err := users.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token")
		}
		return nil, err
	}
	return activeUser(user)
}

func activeUser(user *models.User) (*models.User, error) {
	if !user.IsActive {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "Account is disabled")
	}
	return user, nil
}

// AuthMiddleware requires an access key or bearer token and sets the user
// and user ID in the context.
func AuthMiddleware(users services.UserServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authenticate(c, users)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Set(UserKey, user)
		c.Next()
	}
}

// OptionalAuth sets the user when valid credentials are present and lets
// anonymous requests through.
func OptionalAuth(users services.UserServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := authenticate(c, users); err == nil {
			c.Set(UserIDKey, user.ID)
			c.Set(UserKey, user)
		}
		c.Next()
	}
}
