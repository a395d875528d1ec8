// handlers_config.go - Local root configuration handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/linkfinder/backend/internal/session"
)

// ConfigHandlerImpl implements the ConfigHandler interface
type ConfigHandlerImpl struct {
	sessions *session.Manager
	events   Broadcaster
}

// NewConfigHandler creates a new config handler instance
func NewConfigHandler(sessions *session.Manager, events Broadcaster) ConfigHandler {
	return &ConfigHandlerImpl{
		sessions: sessions,
		events:   events,
	}
}

// HandleGetLocalRoot returns the persisted local root
func (h *ConfigHandlerImpl) HandleGetLocalRoot(c echo.Context) error {
	root, err := h.sessions.LocalRoot(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to read local root", err)
	}
	return c.JSON(http.StatusOK, localRootResponse{LocalRoot: root})
}

// HandleSetLocalRoot stores a new local root. An empty value clears it.
func (h *ConfigHandlerImpl) HandleSetLocalRoot(c echo.Context) error {
	var req localRootRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	return h.update(c, req.LocalRoot)
}

// HandleClearLocalRoot removes the local root
func (h *ConfigHandlerImpl) HandleClearLocalRoot(c echo.Context) error {
	return h.update(c, "")
}

func (h *ConfigHandlerImpl) update(c echo.Context, root string) error {
	if err := h.sessions.SetLocalRoot(c.Request().Context(), root); err != nil {
		return NewInternalError("failed to store local root", err)
	}

	if h.events != nil {
		h.events.Broadcast(Event{
			Type:      EventConfigUpdated,
			Payload:   map[string]string{"localRoot": root},
			Timestamp: time.Now().UnixMilli(),
		})
	}

	return c.JSON(http.StatusOK, localRootResponse{LocalRoot: root})
}

// Request/Response types

type localRootRequest struct {
	LocalRoot string `json:"localRoot"`
}

type localRootResponse struct {
	LocalRoot string `json:"localRoot"`
}
