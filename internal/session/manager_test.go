package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linkfinder/backend/internal/lookup"
	"github.com/linkfinder/backend/internal/models"
	"github.com/linkfinder/backend/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestManager(t *testing.T, settings lookup.Settings) (*Manager, *prefs.MemoryStore) {
	t.Helper()
	store := prefs.NewMemoryStore()
	return NewManager(store, settings, nil), store
}

func testWorkbook(name string, links ...models.LinkRow) *models.Workbook {
	return &models.Workbook{
		Name:      name,
		LoadedAt:  time.Now(),
		Links:     links,
		Buildings: []string{"B1"},
		Files: []models.FileEntry{
			{Stage: "S1", Participant: "P1", Filename: "a.pdf"},
		},
	}
}

func TestManager_ViewBeforeLoad(t *testing.T) {
	m, _ := newTestManager(t, lookup.DefaultSettings())
	id := m.Create()

	view, err := m.View(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, view.SessionID)
	assert.Nil(t, view.Workbook)
	assert.Nil(t, view.Results)
	assert.Empty(t, view.Options.Stages)
}

func TestManager_LoadAndFilter(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, lookup.DefaultSettings())
	id := m.Create()

	wb := testWorkbook("first.xlsx",
		models.LinkRow{Link: "http://l1/", Stage: "S1", Participant: "P1"},
		models.LinkRow{Link: "http://l2", Stage: "S2", Participant: "P1"},
	)
	require.NoError(t, m.LoadWorkbook(id, wb))

	view, err := m.Dispatch(ctx, id, ActionSelectStage, "S1")
	require.NoError(t, err)

	assert.Equal(t, models.Filter{Stage: "S1"}, view.Filter)
	assert.Equal(t, []string{"S1", "S2"}, view.Options.Stages)
	require.Len(t, view.Results, 1)
	assert.Equal(t, "http://l1/a.pdf", view.Results[0].Target)
	assert.Equal(t, 2, view.Workbook.LinkCount)
}

func TestManager_ReloadReplacesEverything(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, lookup.DefaultSettings())
	id := m.Create()

	require.NoError(t, m.LoadWorkbook(id, testWorkbook("first.xlsx",
		models.LinkRow{Link: "http://old", Stage: "OLD", Participant: "P1"},
	)))
	_, err := m.Dispatch(ctx, id, ActionSelectStage, "OLD")
	require.NoError(t, err)

	second := &models.Workbook{
		Name:      "second.xlsx",
		Links:     []models.LinkRow{{Link: "http://new", Stage: "NEW", Participant: "P9"}},
		Buildings: []string{"B9"},
		Files:     []models.FileEntry{},
	}
	require.NoError(t, m.LoadWorkbook(id, second))

	view, err := m.View(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, models.Filter{}, view.Filter, "filter resets on reload")
	assert.Equal(t, []string{"NEW"}, view.Options.Stages)
	assert.Equal(t, []string{"B9"}, view.Options.Buildings)
	assert.Equal(t, "second.xlsx", view.Workbook.Name)
	require.Len(t, view.Results, 1)
	assert.Equal(t, lookup.NoFilesLabel, view.Results[0].Label)
}

func TestManager_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("building gate", func(t *testing.T) {
		settings := lookup.Settings{BuildingMode: lookup.BuildingGate, RenderMode: lookup.RenderLinks, PathSeparator: `\`}
		m, _ := newTestManager(t, settings)
		id := m.Create()
		require.NoError(t, m.LoadWorkbook(id, testWorkbook("wb.xlsx",
			models.LinkRow{Link: "http://l1/", Stage: "S1", Participant: "P1"},
		)))

		view, err := m.Dispatch(ctx, id, ActionSelectBuilding, "B1")
		require.NoError(t, err)
		require.Len(t, view.Results, 1)
		assert.Equal(t, "http://l1/B1", view.Results[0].Target)

		view, err = m.Dispatch(ctx, id, ActionSelectBuilding, "ZZ")
		require.NoError(t, err)
		require.Len(t, view.Results, 1)
		assert.Equal(t, lookup.NoResultsLabel, view.Results[0].Label)

		view, err = m.Dispatch(ctx, id, ActionResetFilters, "")
		require.NoError(t, err)
		assert.Equal(t, models.Filter{}, view.Filter)
	})

	t.Run("local root is shared and read on every render", func(t *testing.T) {
		m, store := newTestManager(t, lookup.DefaultSettings())
		a, b := m.Create(), m.Create()
		wb := testWorkbook("wb.xlsx", models.LinkRow{Link: "http://l1", Stage: "S1", Participant: "P1"})
		require.NoError(t, m.LoadWorkbook(a, wb))
		require.NoError(t, m.LoadWorkbook(b, wb))

		view, err := m.Dispatch(ctx, a, ActionSetLocalRoot, `R\`)
		require.NoError(t, err)
		assert.Equal(t, `R\`, view.LocalRoot)
		assert.Equal(t, models.ActionCopyPath, view.Results[0].Action)
		assert.Equal(t, `R\a.pdf`, view.Results[0].Target)

		other, err := m.View(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, `R\a.pdf`, other.Results[0].Target)

		stored, err := prefs.LocalRoot(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, `R\`, stored)

		view, err = m.Dispatch(ctx, a, ActionClearLocalRoot, "")
		require.NoError(t, err)
		assert.Empty(t, view.LocalRoot)
		assert.Equal(t, models.ActionOpenURL, view.Results[0].Action)
	})

	t.Run("unknown action", func(t *testing.T) {
		m, _ := newTestManager(t, lookup.DefaultSettings())
		id := m.Create()

		_, err := m.Dispatch(ctx, id, Action("explode"), "")
		assert.True(t, errors.Is(err, ErrUnknownAction))
	})

	t.Run("unknown session", func(t *testing.T) {
		m, _ := newTestManager(t, lookup.DefaultSettings())

		_, err := m.Dispatch(ctx, "missing", ActionSelectStage, "S1")
		assert.True(t, errors.Is(err, ErrSessionNotFound))
		_, err = m.Dispatch(ctx, "missing", ActionSetLocalRoot, "R")
		assert.True(t, errors.Is(err, ErrSessionNotFound))
		assert.True(t, errors.Is(m.LoadWorkbook("missing", &models.Workbook{}), ErrSessionNotFound))
	})

	t.Run("actions table", func(t *testing.T) {
		m, _ := newTestManager(t, lookup.DefaultSettings())
		assert.Equal(t, []Action{
			ActionClearLocalRoot,
			ActionResetFilters,
			ActionSelectBuilding,
			ActionSelectParticipant,
			ActionSelectStage,
			ActionSetLocalRoot,
		}, m.Actions())
	})
}

func TestManager_Cleanup(t *testing.T) {
	m, _ := newTestManager(t, lookup.DefaultSettings())

	now := time.Now()
	m.now = func() time.Time { return now }
	stale := m.Create()
	now = now.Add(2 * time.Hour)
	fresh := m.Create()

	removed := m.CleanupOldSessions(time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := m.Get(stale)
	assert.False(t, ok)
	_, ok = m.Get(fresh)
	assert.True(t, ok)
	assert.True(t, m.Delete(fresh))
	assert.False(t, m.Delete(fresh))
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m, _ := newTestManager(t, lookup.DefaultSettings())

	now := time.Now()
	m.now = func() time.Time { now = now.Add(time.Second); return now }

	first := m.Create()
	for i := 1; i < MaxSessions; i++ {
		m.Create()
	}
	m.Touch(first)

	m.Create()
	assert.Equal(t, MaxSessions, m.Count())
	_, ok := m.Get(first)
	assert.True(t, ok, "recently touched session survives eviction")
}

func TestManager_ConcurrentLoadsAreAtomic(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, lookup.DefaultSettings())
	id := m.Create()

	a := testWorkbook("a.xlsx", models.LinkRow{Link: "A", Stage: "SA", Participant: "PA"})
	b := testWorkbook("b.xlsx", models.LinkRow{Link: "B", Stage: "SB", Participant: "PB"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			wb := a
			if i%2 == 1 {
				wb = b
			}
			assert.NoError(t, m.LoadWorkbook(id, wb))
		}(i)
		go func() {
			defer wg.Done()
			view, err := m.View(ctx, id)
			if !assert.NoError(t, err) || view.Workbook == nil {
				return
			}
			// Options always come from exactly one workbook.
			switch view.Workbook.Name {
			case "a.xlsx":
				assert.Equal(t, []string{"SA"}, view.Options.Stages)
			case "b.xlsx":
				assert.Equal(t, []string{"SB"}, view.Options.Stages)
			}
		}()
	}
	wg.Wait()
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, _ := newTestManager(t, lookup.DefaultSettings())
	now := time.Now()
	var mu sync.Mutex
	m.now = func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	m.Create()

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestManager_RunRejectsNonPositiveDurations(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, _ := newTestManager(t, lookup.DefaultSettings())
	id := m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tests := []struct {
		name             string
		interval, maxAge time.Duration
	}{
		{"zero interval", 0, time.Hour},
		{"negative interval", -time.Minute, time.Hour},
		{"zero max age", time.Millisecond, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			go func() {
				m.Run(ctx, tt.interval, tt.maxAge)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Run did not return")
			}
			_, ok := m.Get(id)
			assert.True(t, ok)
		})
	}
}
