package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkfinder/backend/internal/lookup"
	"github.com/linkfinder/backend/internal/models"
	"github.com/linkfinder/backend/internal/prefs"
	"go.uber.org/zap"
)

// MaxSessions limits concurrent client states; the least recently used one
// is evicted when a new state would exceed it.
const MaxSessions = 100

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownAction is returned by Dispatch for actions not in the table.
	ErrUnknownAction = errors.New("unknown action")
)

// State is one client's lookup state: the loaded workbook and the current
// selector values.
type State struct {
	ID           string
	Workbook     *models.Workbook
	Filter       models.Filter
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Manager owns all client states.
type Manager struct {
	sessions map[string]*State
	mu       sync.RWMutex
	prefs    prefs.Store
	settings lookup.Settings
	logger   *zap.Logger
	actions  map[Action]actionFunc
	now      func() time.Time
}

// NewManager creates a session manager. The local root is read from and
// written to store.
func NewManager(store prefs.Store, settings lookup.Settings, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sessions: make(map[string]*State),
		prefs:    store,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
	m.actions = defaultActions()
	return m
}

// Settings returns the lookup behaviour the manager renders with.
func (m *Manager) Settings() lookup.Settings {
	return m.settings
}

// Create starts a new empty state and returns its id.
func (m *Manager) Create() string {
	id := uuid.New().String()
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= MaxSessions {
		m.evictOldestLocked()
	}
	m.sessions[id] = &State{ID: id, CreatedAt: now, LastAccessed: now}

	m.logger.Debug("session created", zap.String("session", short(id)))
	return id
}

func (m *Manager) evictOldestLocked() {
	var oldest *State
	for _, st := range m.sessions {
		if oldest == nil || st.LastAccessed.Before(oldest.LastAccessed) {
			oldest = st
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
		m.logger.Info("session evicted", zap.String("session", short(oldest.ID)))
	}
}

// Get returns a copy of the state.
func (m *Manager) Get(id string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.sessions[id]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Touch marks the state as in use.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return false
	}
	st.LastAccessed = m.now()
	return true
}

// Delete drops the state.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Count returns the number of live states.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadWorkbook replaces the state's workbook wholesale and clears the
// filter, since the option lists are rebuilt from the new workbook.
func (m *Manager) LoadWorkbook(id string, wb *models.Workbook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	st.Workbook = wb
	st.Filter = models.Filter{}
	st.LastAccessed = m.now()

	m.logger.Info("workbook swapped in",
		zap.String("session", short(id)),
		zap.String("workbook", wb.Name),
		zap.Int("links", len(wb.Links)),
	)
	return nil
}

// updateFilter applies fn to the state's filter under the lock.
func (m *Manager) updateFilter(id string, fn func(f *models.Filter)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	fn(&st.Filter)
	st.LastAccessed = m.now()
	return nil
}

// View snapshots the state and renders it. The local root is read on every
// call so changes made elsewhere show up on the next render.
func (m *Manager) View(ctx context.Context, id string) (*models.View, error) {
	st, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.Touch(id)

	root, err := prefs.LocalRoot(ctx, m.prefs)
	if err != nil {
		return nil, err
	}

	view := &models.View{
		SessionID: st.ID,
		Options:   lookup.BuildOptions(st.Workbook),
		Filter:    st.Filter,
		LocalRoot: root,
	}
	if st.Workbook != nil {
		view.Workbook = st.Workbook.Summary()
		view.Results = lookup.Render(st.Workbook, st.Filter, root, m.settings)
	}
	return view, nil
}

// Results renders only the result items.
func (m *Manager) Results(ctx context.Context, id string) ([]models.ResultItem, error) {
	view, err := m.View(ctx, id)
	if err != nil {
		return nil, err
	}
	return view.Results, nil
}

// CleanupOldSessions removes states idle for longer than maxAge and returns
// how many were removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, st := range m.sessions {
		if st.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			removed++
			m.logger.Info("session expired",
				zap.String("session", short(id)),
				zap.Duration("idle", m.now().Sub(st.LastAccessed).Round(time.Second)),
			)
		}
	}
	return removed
}

// Run removes idle states every interval until ctx is cancelled. It returns
// immediately when either duration is not positive.
func (m *Manager) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		m.logger.Warn("session cleanup disabled",
			zap.Duration("interval", interval),
			zap.Duration("maxAge", maxAge),
		)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldSessions(maxAge)
		}
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
