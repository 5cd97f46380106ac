package handlers

import (
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
)

// UploadsURLPrefix is the URL path under which stored files are served.
const UploadsURLPrefix = "/uploads"

// FileStore saves uploaded files on local disk under Dir.
type FileStore struct {
	Dir      string
	MaxBytes int64
}

// Save stores an uploaded file under subdir with a generated name and
// returns the URL path it is served at.
func (s FileStore) Save(c *gin.Context, file *multipart.FileHeader, subdir string) (string, error) {
	if s.MaxBytes > 0 && file.Size > s.MaxBytes {
		return "", apperrors.WithMessagef(apperrors.ErrInvalidInput,
			"file exceeds the %d MB upload limit", s.MaxBytes>>20)
	}

	dir := filepath.Join(s.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("create upload dir: %w", err))
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("save upload: %w", err))
	}
	return path.Join(UploadsURLPrefix, subdir, name), nil
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// Remove deletes a file previously returned by Save. Missing files are ignored.
func (s FileStore) Remove(url string) {
	rel := strings.TrimPrefix(url, UploadsURLPrefix+"/")
	if rel == url || strings.Contains(rel, "..") {
		return
	}
	if err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		logger.Get().Warnw("failed to remove upload", "url", url, "error", err)
	}
}
