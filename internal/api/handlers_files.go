// handlers_files.go - Stored workbook file handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/linkfinder/backend/internal/models"
	"github.com/linkfinder/backend/internal/parser"
	"github.com/linkfinder/backend/internal/storage"
)

// recentFilesLimit caps the recent list shown in the file picker.
const recentFilesLimit = 20

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store  storage.Store
	loader *parser.Loader
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store, loader *parser.Loader) FileHandler {
	return &FileHandlerImpl{
		store:  store,
		loader: loader,
	}
}

// HandleGetRecentFiles returns the most recently uploaded workbooks
func (h *FileHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(50)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	workbooks := h.filterWorkbooks(files)
	if len(workbooks) > recentFilesLimit {
		workbooks = workbooks[:recentFilesLimit]
	}

	return c.JSON(http.StatusOK, workbooks)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleRenameFile updates the display name of a file
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}
	// The display name picks the decoder on reload.
	if err := h.loader.Accepts(req.Name); err != nil {
		return NewUnsupportedFormatError(err)
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a stored workbook. Sessions that already loaded
// it keep their in-memory copy.
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return fromDomainError(err, id, "failed to delete file")
	}

	return c.NoContent(http.StatusNoContent)
}

// Request/Response types

type renameFileRequest struct {
	Name string `json:"name"`
}

// filterWorkbooks drops stored files no decoder accepts
func (h *FileHandlerImpl) filterWorkbooks(files []*models.FileInfo) []*models.FileInfo {
	out := make([]*models.FileInfo, 0, len(files))
	for _, f := range files {
		if h.loader.Accepts(f.Name) == nil {
			out = append(out, f)
		}
	}
	return out
}
