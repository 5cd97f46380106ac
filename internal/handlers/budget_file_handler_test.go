package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/models"
	"budgettracker/internal/services"
)

type mockBudgetFileService struct {
	createFn func(actorID string, year int, fileName, fileURL, notes string) (*models.BudgetFile, error)
	gotYear  *int
}

var _ services.BudgetFileServicer = (*mockBudgetFileService)(nil)

func (m *mockBudgetFileService) CreateBudgetFile(actorID string, year int, fileName, fileURL, notes string) (*models.BudgetFile, error) {
	if m.createFn != nil {
		return m.createFn(actorID, year, fileName, fileURL, notes)
	}
	return &models.BudgetFile{Year: year, Version: 1, FileName: fileName, FileURL: fileURL, UploadedBy: actorID, Notes: notes}, nil
}

func (m *mockBudgetFileService) GetBudgetFiles(year *int) ([]models.BudgetFile, error) {
	m.gotYear = year
	return []models.BudgetFile{}, nil
}

func setupBudgetFileRouter(handler *BudgetFileHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budget-files", handler.UploadBudgetFile)
	auth.GET("/budget-files", handler.GetBudgetFiles)
	return r
}

func TestBudgetFileHandler_Upload(t *testing.T) {
	t.Run("stores file and records version", func(t *testing.T) {
		dir := t.TempDir()
		handler := NewBudgetFileHandler(&mockBudgetFileService{}, &mockAuditService{}, FileStore{Dir: dir, MaxBytes: 1 << 20})
		r := setupBudgetFileRouter(handler)

		req := multipartRequest(t, "/budget-files", map[string]string{"year": "2025", "notes": "draft"},
			"file", "budget.xlsx", []byte("sheet"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		data := dataObject(t, parseJSON(t, rec))
		if data["file_name"] != "budget.xlsx" || data["notes"] != "draft" {
			t.Errorf("unexpected budget file %v", data)
		}
		url, _ := data["file_url"].(string)
		if _, err := os.Stat(filepath.Join(dir, "budget-files", filepath.Base(url))); err != nil {
			t.Errorf("expected file on disk: %v", err)
		}
	})

	t.Run("non-admin upload leaves no file", func(t *testing.T) {
		dir := t.TempDir()
		svc := &mockBudgetFileService{
			createFn: func(string, int, string, string, string) (*models.BudgetFile, error) {
				return nil, apperrors.ErrAdminRequired
			},
		}
		handler := NewBudgetFileHandler(svc, &mockAuditService{}, FileStore{Dir: dir, MaxBytes: 1 << 20})
		r := setupBudgetFileRouter(handler)

		req := multipartRequest(t, "/budget-files", map[string]string{"year": "2025"}, "file", "b.pdf", []byte("x"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		entries, _ := os.ReadDir(filepath.Join(dir, "budget-files"))
		if len(entries) != 0 {
			t.Errorf("expected upload to be removed, found %d files", len(entries))
		}
	})

	t.Run("missing file returns 400", func(t *testing.T) {
		handler := NewBudgetFileHandler(&mockBudgetFileService{}, &mockAuditService{}, FileStore{Dir: t.TempDir()})
		r := setupBudgetFileRouter(handler)

		req := multipartRequest(t, "/budget-files", map[string]string{"year": "2025"}, "", "", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid year returns 400", func(t *testing.T) {
		handler := NewBudgetFileHandler(&mockBudgetFileService{}, &mockAuditService{}, FileStore{Dir: t.TempDir()})
		r := setupBudgetFileRouter(handler)

		req := multipartRequest(t, "/budget-files", map[string]string{"year": "soon"}, "file", "b.pdf", []byte("x"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetFileHandler_List(t *testing.T) {
	svc := &mockBudgetFileService{}
	handler := NewBudgetFileHandler(svc, &mockAuditService{}, FileStore{})
	r := setupBudgetFileRouter(handler)

	rec := doRequest(r, "GET", "/budget-files?year=2025", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotYear == nil || *svc.gotYear != 2025 {
		t.Errorf("expected year filter 2025, got %v", svc.gotYear)
	}

	rec = doRequest(r, "GET", "/budget-files", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotYear != nil {
		t.Error("expected no year filter")
	}
}
