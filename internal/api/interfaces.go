// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// SessionHandler handles client state and action dispatch
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleDispatchAction(c echo.Context) error
	HandleGetResults(c echo.Context) error
	HandleGetResultsMsgpack(c echo.Context) error
}

// WorkbookHandler handles loading workbooks into a session
type WorkbookHandler interface {
	HandleUploadWorkbook(c echo.Context) error
	HandleUploadWorkbookBase64(c echo.Context) error
	HandleLoadStoredWorkbook(c echo.Context) error
}

// ConfigHandler handles the persisted local root
type ConfigHandler interface {
	HandleGetLocalRoot(c echo.Context) error
	HandleSetLocalRoot(c echo.Context) error
	HandleClearLocalRoot(c echo.Context) error
}

// FileHandler handles stored workbook files
type FileHandler interface {
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// EventHandler streams server events over WebSocket
type EventHandler interface {
	HandleWebSocket(c echo.Context) error
}

// Broadcaster publishes events to connected clients. Handlers depend on this
// rather than the hub so tests can record events.
type Broadcaster interface {
	Broadcast(evt Event)
}
