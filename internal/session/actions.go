package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/linkfinder/backend/internal/models"
	"github.com/linkfinder/backend/internal/prefs"
	"go.uber.org/zap"
)

// Action names a UI event.
type Action string

const (
	ActionSelectStage       Action = "select-stage"
	ActionSelectParticipant Action = "select-participant"
	ActionSelectBuilding    Action = "select-building"
	ActionResetFilters      Action = "reset-filters"
	ActionSetLocalRoot      Action = "set-local-root"
	ActionClearLocalRoot    Action = "clear-local-root"
)

type actionFunc func(ctx context.Context, m *Manager, id, value string) error

func defaultActions() map[Action]actionFunc {
	return map[Action]actionFunc{
		ActionSelectStage: func(_ context.Context, m *Manager, id, value string) error {
			return m.updateFilter(id, func(f *models.Filter) { f.Stage = value })
		},
		ActionSelectParticipant: func(_ context.Context, m *Manager, id, value string) error {
			return m.updateFilter(id, func(f *models.Filter) { f.Participant = value })
		},
		ActionSelectBuilding: func(_ context.Context, m *Manager, id, value string) error {
			return m.updateFilter(id, func(f *models.Filter) { f.Building = value })
		},
		ActionResetFilters: func(_ context.Context, m *Manager, id, _ string) error {
			return m.updateFilter(id, func(f *models.Filter) { *f = models.Filter{} })
		},
		ActionSetLocalRoot: func(ctx context.Context, m *Manager, id, value string) error {
			return m.setLocalRoot(ctx, id, value)
		},
		ActionClearLocalRoot: func(ctx context.Context, m *Manager, id, _ string) error {
			return m.setLocalRoot(ctx, id, "")
		},
	}
}

// Actions lists the dispatchable action names, sorted.
func (m *Manager) Actions() []Action {
	out := make([]Action, 0, len(m.actions))
	for a := range m.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs the handler registered for action and returns the
// re-rendered view.
func (m *Manager) Dispatch(ctx context.Context, id string, action Action, value string) (*models.View, error) {
	fn, ok := m.actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if err := fn(ctx, m, id, value); err != nil {
		return nil, err
	}
	m.logger.Debug("action dispatched",
		zap.String("session", short(id)),
		zap.String("action", string(action)),
		zap.String("value", value),
	)
	return m.View(ctx, id)
}

// SetLocalRoot stores the local root shared by every session.
func (m *Manager) SetLocalRoot(ctx context.Context, root string) error {
	if err := prefs.SetLocalRoot(ctx, m.prefs, root); err != nil {
		return err
	}
	m.logger.Info("local root updated", zap.String("localRoot", root))
	return nil
}

// LocalRoot returns the stored local root.
func (m *Manager) LocalRoot(ctx context.Context) (string, error) {
	return prefs.LocalRoot(ctx, m.prefs)
}

func (m *Manager) setLocalRoot(ctx context.Context, id, root string) error {
	if !m.Touch(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return m.SetLocalRoot(ctx, root)
}
