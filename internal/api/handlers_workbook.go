// handlers_workbook.go - Workbook load handlers
package api

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/linkfinder/backend/internal/models"
	"github.com/linkfinder/backend/internal/parser"
	"github.com/linkfinder/backend/internal/session"
	"github.com/linkfinder/backend/internal/storage"
	"go.uber.org/zap"
)

// WorkbookHandlerImpl implements the WorkbookHandler interface
type WorkbookHandlerImpl struct {
	store    storage.Store
	loader   *parser.Loader
	sessions *session.Manager
	events   Broadcaster
	logger   *zap.Logger
}

// NewWorkbookHandler creates a new workbook handler instance
func NewWorkbookHandler(store storage.Store, loader *parser.Loader, sessions *session.Manager, events Broadcaster, logger *zap.Logger) WorkbookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkbookHandlerImpl{
		store:    store,
		loader:   loader,
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

// HandleUploadWorkbook accepts a multipart workbook, stores it and loads it
// into the session
func (h *WorkbookHandlerImpl) HandleUploadWorkbook(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.sessions.Get(id); !ok {
		return NewNotFoundError("session", id)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if err := h.loader.Accepts(file.Filename); err != nil {
		return NewUnsupportedFormatError(err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return h.load(c, id, info)
}

// HandleUploadWorkbookBase64 accepts a workbook as base64 JSON
func (h *WorkbookHandlerImpl) HandleUploadWorkbookBase64(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.sessions.Get(id); !ok {
		return NewNotFoundError("session", id)
	}

	var req uploadWorkbookRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	if err := h.loader.Accepts(req.Name); err != nil {
		return NewUnsupportedFormatError(err)
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return h.load(c, id, info)
}

// HandleLoadStoredWorkbook re-loads a previously uploaded workbook
func (h *WorkbookHandlerImpl) HandleLoadStoredWorkbook(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.sessions.Get(id); !ok {
		return NewNotFoundError("session", id)
	}

	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}

	info, err := h.store.Get(fileID)
	if err != nil {
		return fromDomainError(err, fileID, "failed to read file")
	}

	return h.load(c, id, info)
}

// load decodes a stored file and swaps it into the session. The file's
// status records the outcome so the recent list can flag broken workbooks.
func (h *WorkbookHandlerImpl) load(c echo.Context, sessionID string, info *models.FileInfo) error {
	path, err := h.store.GetFilePath(info.ID)
	if err != nil {
		return fromDomainError(err, info.ID, "failed to locate file")
	}

	wb, err := h.loader.LoadFile(path, info.Name)
	if err != nil {
		h.setStatus(info.ID, storage.StatusError)
		h.logger.Warn("workbook load failed",
			zap.String("file", info.Name),
			zap.String("fileId", info.ID),
			zap.Error(err),
		)
		return fromDomainError(err, info.ID, "failed to load workbook")
	}
	wb.FileID = info.ID

	if err := h.sessions.LoadWorkbook(sessionID, wb); err != nil {
		return fromDomainError(err, sessionID, "failed to load workbook")
	}
	h.setStatus(info.ID, storage.StatusLoaded)

	view, err := h.sessions.View(c.Request().Context(), sessionID)
	if err != nil {
		return fromDomainError(err, sessionID, "failed to render session")
	}

	if h.events != nil {
		h.events.Broadcast(Event{
			Type:      EventWorkbookLoaded,
			SessionID: sessionID,
			Payload:   view.Workbook,
			Timestamp: time.Now().UnixMilli(),
		})
	}

	return c.JSON(http.StatusOK, view)
}

func (h *WorkbookHandlerImpl) setStatus(fileID, status string) {
	if err := h.store.SetStatus(fileID, status); err != nil {
		h.logger.Warn("failed to record file status", zap.String("fileId", fileID), zap.Error(err))
	}
}

// Request/Response types

type uploadWorkbookRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadWorkbookRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}
