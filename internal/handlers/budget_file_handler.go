package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/services"
)

// BudgetFileHandler handles the versioned budget documents.
type BudgetFileHandler struct {
	budgetFileService services.BudgetFileServicer
	auditService      services.AuditServicer
	files             FileStore
}

// NewBudgetFileHandler creates a new BudgetFileHandler.
func NewBudgetFileHandler(budgetFileService services.BudgetFileServicer, auditService services.AuditServicer, files FileStore) *BudgetFileHandler {
	return &BudgetFileHandler{budgetFileService: budgetFileService, auditService: auditService, files: files}
}

// UploadBudgetFile stores a budget document as the next version for its year.
// @Summary     Upload budget file
// @Tags        budget-files
// @Accept      multipart/form-data
// @Produce     json
// @Security    AccessKey
// @Param       year  formData int    true  "Budget year"
// @Param       notes formData string false "Notes"
// @Param       file  formData file   true  "Document"
// @Success     201 {object} SuccessResponse "Budget file"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Admin only"
// @Router      /budget-files [post]
func (h *BudgetFileHandler) UploadBudgetFile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	year, err := strconv.Atoi(c.PostForm("year"))
	if err != nil || year < 2000 || year > 2100 {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid year"))
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file is required"))
		return
	}

	url, err := h.files.Save(c, file, "budget-files")
	if err != nil {
		respondWithError(c, err)
		return
	}

	bf, err := h.budgetFileService.CreateBudgetFile(userID, year, file.Filename, url, c.PostForm("notes"))
	if err != nil {
		h.files.Remove(url)
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPLOAD_BUDGET_FILE", "budget_file", bf.ID, c.ClientIP(),
		map[string]interface{}{"year": year, "version": bf.Version, "file_name": bf.FileName})

	respondOK(c, http.StatusCreated, bf)
}

// GetBudgetFiles lists budget documents, newest version first.
// @Summary     List budget files
// @Tags        budget-files
// @Produce     json
// @Security    AccessKey
// @Param       year query int false "Budget year"
// @Success     200 {object} SuccessResponse "Budget files"
// @Router      /budget-files [get]
func (h *BudgetFileHandler) GetBudgetFiles(c *gin.Context) {
	var year *int
	if v := c.Query("year"); v != "" {
		y, err := parseYear(v, 0)
		if err != nil {
			respondWithError(c, err)
			return
		}
		year = &y
	}

	files, err := h.budgetFileService.GetBudgetFiles(year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, files)
}
