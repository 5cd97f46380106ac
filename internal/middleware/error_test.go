package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app_error", apperrors.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND"},
		{"wrapped_app_error", apperrors.Wrap(apperrors.ErrInternalServer, errors.New("db down")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"plain_error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/test", func(c *gin.Context) { _ = c.Error(tt.err) })

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			body := parseBody(t, rec)
			if body["success"] != false {
				t.Errorf("expected success=false, got %v", body["success"])
			}
			errObj := body["error"].(map[string]interface{})
			if errObj["code"] != tt.wantCode {
				t.Errorf("expected %s, got %v", tt.wantCode, errObj["code"])
			}
			if tt.name == "plain_error" && errObj["message"] == "boom" {
				t.Error("expected internal details to stay hidden")
			}
		})
	}
}
