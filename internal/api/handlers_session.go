// handlers_session.go - Client state and action dispatch handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/linkfinder/backend/internal/session"
	"github.com/vmihailenco/msgpack/v5"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions *session.Manager
	events   Broadcaster
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessions *session.Manager, events Broadcaster) SessionHandler {
	return &SessionHandlerImpl{
		sessions: sessions,
		events:   events,
	}
}

// HandleCreateSession starts an empty client state and returns its view
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	id := h.sessions.Create()

	view, err := h.sessions.View(c.Request().Context(), id)
	if err != nil {
		return fromDomainError(err, id, "failed to render session")
	}
	return c.JSON(http.StatusCreated, view)
}

// HandleGetSession returns the current view of a client state
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	view, err := h.sessions.View(c.Request().Context(), id)
	if err != nil {
		return fromDomainError(err, id, "failed to render session")
	}
	return c.JSON(http.StatusOK, view)
}

// HandleDeleteSession drops a client state
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if !h.sessions.Delete(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDispatchAction applies one UI action and returns the new view
func (h *SessionHandlerImpl) HandleDispatchAction(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req actionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Action == "" {
		return NewValidationError("action")
	}

	action := session.Action(req.Action)
	view, err := h.sessions.Dispatch(c.Request().Context(), id, action, req.Value)
	if err != nil {
		return fromDomainError(err, id, "failed to apply action")
	}

	if action == session.ActionSetLocalRoot || action == session.ActionClearLocalRoot {
		h.broadcast(Event{
			Type:      EventConfigUpdated,
			SessionID: id,
			Payload:   map[string]string{"localRoot": view.LocalRoot},
		})
	}

	return c.JSON(http.StatusOK, view)
}

// HandleGetResults returns only the rendered result items
func (h *SessionHandlerImpl) HandleGetResults(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	items, err := h.sessions.Results(c.Request().Context(), id)
	if err != nil {
		return fromDomainError(err, id, "failed to render results")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId": id,
		"items":     items,
	})
}

// HandleGetResultsMsgpack returns the rendered result items as MessagePack
func (h *SessionHandlerImpl) HandleGetResultsMsgpack(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	items, err := h.sessions.Results(c.Request().Context(), id)
	if err != nil {
		return fromDomainError(err, id, "failed to render results")
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"sessionId": id,
		"items":     items,
	})
	if err != nil {
		return NewInternalError("failed to encode results", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *SessionHandlerImpl) broadcast(evt Event) {
	if h.events == nil {
		return
	}
	evt.Timestamp = time.Now().UnixMilli()
	h.events.Broadcast(evt)
}

// Request/Response types

type actionRequest struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}
