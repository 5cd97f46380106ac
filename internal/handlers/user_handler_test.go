package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/pagination"
	"budgettracker/internal/services"
)

func setupUserRouter(handler *UserHandler, uid string) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(uid))
	auth.POST("/users", handler.CreateUser)
	auth.GET("/users", handler.GetUsers)
	auth.GET("/users/me", handler.GetMe)
	auth.POST("/users/me/access-key", handler.RegenerateAccessKey)
	return r
}

func TestUserHandler_CreateUser(t *testing.T) {
	t.Run("returns 201 with access key", func(t *testing.T) {
		var gotActor string
		userSvc := &mockUserService{
			createUserFn: func(actorID string, in services.CreateUserInput) (*models.User, string, error) {
				gotActor = actorID
				return &models.User{Base: models.Base{ID: "u-2"}, Username: in.Username}, "plain-key", nil
			},
		}
		handler := NewUserHandler(userSvc, &mockAuditService{})
		r := setupUserRouter(handler, testUserID)

		rec := doRequest(r, "POST", "/users", `{"username":"carol","password":"password123"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		data := dataObject(t, parseJSON(t, rec))
		if data["access_key"] != "plain-key" {
			t.Errorf("expected access key in response, got %v", data["access_key"])
		}
		if gotActor != testUserID {
			t.Errorf("expected actor %s, got %s", testUserID, gotActor)
		}
	})

	t.Run("bootstrap without credentials", func(t *testing.T) {
		audit := &mockAuditService{}
		userSvc := &mockUserService{
			createUserFn: func(actorID string, in services.CreateUserInput) (*models.User, string, error) {
				if actorID != "" {
					t.Errorf("expected empty actor, got %q", actorID)
				}
				return &models.User{Base: models.Base{ID: "u-1"}, Username: in.Username}, "k", nil
			},
		}
		handler := NewUserHandler(userSvc, audit)
		r := gin.New()
		r.POST("/users", handler.CreateUser)

		rec := doRequest(r, "POST", "/users", `{"username":"admin","password":"password123"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(audit.actions) != 1 {
			t.Errorf("expected one audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 400 on short password", func(t *testing.T) {
		handler := NewUserHandler(&mockUserService{}, &mockAuditService{})
		r := setupUserRouter(handler, testUserID)

		rec := doRequest(r, "POST", "/users", `{"username":"carol","password":"short"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 403 for non-admin", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(string, services.CreateUserInput) (*models.User, string, error) {
				return nil, "", apperrors.ErrAdminRequired
			},
		}
		handler := NewUserHandler(userSvc, &mockAuditService{})
		r := setupUserRouter(handler, testUserID)

		rec := doRequest(r, "POST", "/users", `{"username":"carol","password":"password123"}`)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ADMIN_REQUIRED")
	})

	t.Run("returns 409 on duplicate username", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(string, services.CreateUserInput) (*models.User, string, error) {
				return nil, "", apperrors.ErrDuplicateUsername
			},
		}
		handler := NewUserHandler(userSvc, &mockAuditService{})
		r := setupUserRouter(handler, testUserID)

		rec := doRequest(r, "POST", "/users", `{"username":"carol","password":"password123"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestUserHandler_GetUsers(t *testing.T) {
	userSvc := &mockUserService{
		getUsersFn: func(page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
			page.Defaults()
			users := []models.User{{Username: "a"}, {Username: "b"}}
			resp := pagination.NewPageResponse(users, page.Page, page.PageSize, 2)
			return &resp, nil
		},
	}
	handler := NewUserHandler(userSvc, &mockAuditService{})
	r := setupUserRouter(handler, testUserID)

	rec := doRequest(r, "GET", "/users?page=1&page_size=10", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	data, ok := result["data"].([]interface{})
	if !ok || len(data) != 2 {
		t.Fatalf("expected 2 users, got %v", result["data"])
	}
	meta := result["pagination"].(map[string]interface{})
	if meta["total_items"] != float64(2) {
		t.Errorf("expected total_items 2, got %v", meta["total_items"])
	}
}

func TestUserHandler_GetMe(t *testing.T) {
	t.Run("returns profile", func(t *testing.T) {
		userSvc := &mockUserService{
			getUserByIDFn: func(id string) (*models.User, error) {
				return &models.User{Base: models.Base{ID: id}, Username: "alice"}, nil
			},
			isAdminFn: func(string) (bool, error) { return true, nil },
		}
		handler := NewUserHandler(userSvc, &mockAuditService{})
		r := setupUserRouter(handler, testUserID)

		rec := doRequest(r, "GET", "/users/me", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		data := dataObject(t, parseJSON(t, rec))
		user := data["user"].(map[string]interface{})
		if user["username"] != "alice" {
			t.Errorf("expected alice, got %v", user["username"])
		}
		if data["is_admin"] != true {
			t.Errorf("expected is_admin true")
		}
	})

	t.Run("returns 401 without auth", func(t *testing.T) {
		handler := NewUserHandler(&mockUserService{}, &mockAuditService{})
		r := gin.New()
		r.GET("/users/me", handler.GetMe)

		rec := doRequest(r, "GET", "/users/me", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestUserHandler_RegenerateAccessKey(t *testing.T) {
	audit := &mockAuditService{}
	handler := NewUserHandler(&mockUserService{}, audit)
	r := setupUserRouter(handler, testUserID)

	rec := doRequest(r, "POST", "/users/me/access-key", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := dataObject(t, parseJSON(t, rec))
	if data["access_key"] != "new-key" {
		t.Errorf("expected new-key, got %v", data["access_key"])
	}
	if len(audit.actions) != 1 || audit.actions[0] != "REGENERATE_ACCESS_KEY" {
		t.Errorf("unexpected audit actions %v", audit.actions)
	}
}
