package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/linkfinder/backend/internal/lookup"
	"github.com/linkfinder/backend/internal/models"
	"github.com/linkfinder/backend/internal/parser"
	"github.com/linkfinder/backend/internal/prefs"
	"github.com/linkfinder/backend/internal/session"
	"github.com/linkfinder/backend/internal/storage"
	"github.com/linkfinder/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// recorder captures broadcast events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Broadcast(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type testServer struct {
	e        *echo.Echo
	store    *storage.LocalStore
	sessions *session.Manager
	events   *recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	sessions := session.NewManager(prefs.NewMemoryStore(), lookup.DefaultSettings(), nil)
	loader := parser.NewLoader(nil, nil, nil)
	events := &recorder{}

	e := echo.New()
	SetupMiddleware(e, MiddlewareConfig{ShowDetails: true}, nil)
	h := &Handlers{
		Health:   NewHealthHandler("test", sessions),
		Session:  NewSessionHandler(sessions, events),
		Workbook: NewWorkbookHandler(store, loader, sessions, events, nil),
		Config:   NewConfigHandler(sessions, events),
		Files:    NewFileHandler(store, loader),
		Events:   NewEventHub(nil),
	}
	RegisterRoutes(e, h)

	return &testServer{e: e, store: store, sessions: sessions, events: events}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, sessionID, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/workbook", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeView(t, rec).SessionID
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.View {
	t.Helper()
	var view models.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func sampleWorkbook(t *testing.T) []byte {
	return testutil.BuildXLSX(t, testutil.StandardSheets(
		[][]string{
			{"http://host/s1/", "S1", "P1"},
			{"http://host/s2", "S2", "P2"},
		},
		[]string{"B1", "B2"},
		[][]string{
			{"S1", "P1", "Plan A.pdf"},
			{"S1", "P1", "notes.txt"},
		},
	)...)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	s.sessions.Create()

	rec := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(1), body["sessions"])
	assert.Equal(t, "path", body["buildingMode"])
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	rec := s.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	assert.Nil(t, view.Workbook)
	assert.Empty(t, view.Results)

	rec = s.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkbookUploadAndLookup(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	rec := s.upload(t, id, "links.xlsx", sampleWorkbook(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decodeView(t, rec)
	require.NotNil(t, view.Workbook)
	assert.Equal(t, "links.xlsx", view.Workbook.Name)
	assert.Equal(t, 2, view.Workbook.LinkCount)
	assert.Equal(t, []string{"S1", "S2"}, view.Options.Stages)
	assert.Equal(t, []string{"P1", "P2"}, view.Options.Participants)
	assert.Equal(t, []string{"B1", "B2"}, view.Options.Buildings)
	assert.Equal(t, []string{EventWorkbookLoaded}, s.events.types())

	info, err := s.store.Get(view.Workbook.FileID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusLoaded, info.Status)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", actionRequest{Action: "select-stage", Value: "S1"})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	require.Len(t, view.Results, 2)
	assert.Equal(t, "S1 - P1", view.Results[0].Label)
	assert.Equal(t, models.ActionOpenURL, view.Results[0].Action)
	assert.Equal(t, "http://host/s1/Plan%20A.pdf", view.Results[0].Target)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", actionRequest{Action: "select-participant", Value: "P9"})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	require.Len(t, view.Results, 1)
	assert.Equal(t, lookup.NoResultsLabel, view.Results[0].Label)
	assert.True(t, view.Results[0].Placeholder)
}

func TestWorkbookUploadErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	t.Run("unknown session", func(t *testing.T) {
		rec := s.upload(t, "missing", "links.xlsx", sampleWorkbook(t))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no file", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/workbook", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)
	})

	t.Run("unsupported extension is rejected before storing", func(t *testing.T) {
		rec := s.upload(t, id, "links.csv", []byte("a,b,c"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, "UNSUPPORTED_FORMAT", decodeError(t, rec).Code)

		files, err := s.store.List(0)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing required sheet marks file as error", func(t *testing.T) {
		data := testutil.BuildXLSX(t, testutil.Sheet{Name: "Links", Rows: [][]string{{"Link", "Stage", "Participant"}}})
		rec := s.upload(t, id, "broken.xlsx", data)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Details, "Buildings")

		files, err := s.store.List(0)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, storage.StatusError, files[0].Status)
	})
}

func TestWorkbookBase64AndReload(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/workbook/base64", uploadWorkbookRequest{
		Name: "links.xlsx",
		Data: base64.StdEncoding.EncodeToString(sampleWorkbook(t)),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fileID := decodeView(t, rec).Workbook.FileID
	require.NotEmpty(t, fileID)

	other := s.createSession(t)
	rec = s.do(t, http.MethodPost, "/api/sessions/"+other+"/workbook/files/"+fileID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "links.xlsx", decodeView(t, rec).Workbook.Name)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+other+"/workbook/files/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tests := []struct {
		name    string
		request uploadWorkbookRequest
		code    string
	}{
		{"empty name", uploadWorkbookRequest{Data: "AAAA"}, "VALIDATION_ERROR"},
		{"empty data", uploadWorkbookRequest{Name: "a.xlsx"}, "VALIDATION_ERROR"},
		{"invalid base64", uploadWorkbookRequest{Name: "a.xlsx", Data: "not-valid-base64!!!"}, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/workbook/base64", tt.request)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestReloadReplacesPreviousWorkbook(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	require.Equal(t, http.StatusOK, s.upload(t, id, "first.xlsx", sampleWorkbook(t)).Code)

	second := testutil.BuildXLSX(t, testutil.StandardSheets(
		[][]string{{"http://other", "S9", "P9"}}, []string{"B9"}, [][]string{},
	)...)
	rec := s.upload(t, id, "second.xlsx", second)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec)
	assert.Equal(t, []string{"S9"}, view.Options.Stages)
	assert.Equal(t, []string{"P9"}, view.Options.Participants)
	assert.Equal(t, []string{"B9"}, view.Options.Buildings)
	require.Len(t, view.Results, 1)
	assert.Equal(t, lookup.NoFilesLabel, view.Results[0].Label)
}

func TestDispatchErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", actionRequest{Action: "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", actionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/sessions/missing/actions", actionRequest{Action: "select-stage"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocalRoot(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)
	require.Equal(t, http.StatusOK, s.upload(t, id, "links.xlsx", sampleWorkbook(t)).Code)

	rec := s.do(t, http.MethodPut, "/api/config/local-root", localRootRequest{LocalRoot: `D:\Docs\`})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/config/local-root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"localRoot":"D:\\Docs\\"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", actionRequest{Action: "select-stage", Value: "S1"})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Len(t, view.Results, 2)
	assert.Equal(t, models.ActionCopyPath, view.Results[0].Action)
	assert.Equal(t, `D:\Docs\Plan A.pdf`, view.Results[0].Target)

	rec = s.do(t, http.MethodDelete, "/api/config/local-root", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	view = decodeView(t, rec)
	assert.Empty(t, view.LocalRoot)
	assert.Equal(t, models.ActionOpenURL, view.Results[0].Action)

	assert.Equal(t, []string{EventWorkbookLoaded, EventConfigUpdated, EventConfigUpdated}, s.events.types())
}

func TestLocalRoot_StoreFailure(t *testing.T) {
	sessions := session.NewManager(&testutil.FailingPrefs{Err: assert.AnError}, lookup.DefaultSettings(), nil)
	h := NewConfigHandler(sessions, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/config/local-root", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.HandleGetLocalRoot(c)
	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected APIError, got %T", err)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "INTERNAL_ERROR", apiErr.Code)
}

func TestResults(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)
	require.Equal(t, http.StatusOK, s.upload(t, id, "links.xlsx", sampleWorkbook(t)).Code)

	rec := s.do(t, http.MethodGet, "/api/sessions/"+id+"/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SessionID string              `json:"sessionId"`
		Items     []models.ResultItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id, body.SessionID)
	// S1/P1 has two files, S2/P2 has none.
	require.Len(t, body.Items, 3)
	assert.Equal(t, lookup.NoFilesLabel, body.Items[2].Label)

	rec = s.do(t, http.MethodGet, "/api/sessions/"+id+"/results/msgpack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var packed struct {
		SessionID string              `msgpack:"sessionId"`
		Items     []models.ResultItem `msgpack:"items"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, body.Items, packed.Items)

	rec = s.do(t, http.MethodGet, "/api/sessions/missing/results/msgpack", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileHandlers(t *testing.T) {
	store := testutil.NewMockStorage()
	h := NewFileHandler(store, parser.NewLoader(nil, nil, nil))
	e := echo.New()

	book := store.AddFile("f1", "links.xlsx", []byte("x"))
	store.AddFile("f2", "notes.txt", []byte("y"))
	legacy := store.AddFile("f3", "old.xls", []byte("z"))

	t.Run("recent lists workbooks newest first", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/files/recent", nil), rec)
		require.NoError(t, h.HandleGetRecentFiles(c))

		var files []models.FileInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
		require.Len(t, files, 2)
		assert.Equal(t, legacy.ID, files[0].ID)
		assert.Equal(t, book.ID, files[1].ID)
	})

	t.Run("rename", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/files/f1", strings.NewReader(`{"name":"renamed.xlsx"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("f1")
		require.NoError(t, h.HandleRenameFile(c))
		assert.Contains(t, rec.Body.String(), `"name":"renamed.xlsx"`)

		req = httptest.NewRequest(http.MethodPut, "/api/files/f1", strings.NewReader(`{"name":"renamed.txt"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c = e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("f1")
		err := h.HandleRenameFile(c)
		apiErr, ok := err.(*APIError)
		require.True(t, ok)
		assert.Equal(t, "UNSUPPORTED_FORMAT", apiErr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/api/files/f1", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues("f1")
		require.NoError(t, h.HandleDeleteFile(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 2, store.GetFileCount())

		c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/api/files/f1", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("f1")
		err := h.HandleDeleteFile(c)
		apiErr, ok := err.(*APIError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name        string
		err         error
		showDetails bool
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{"api error", NewNotFoundError("session", "x"), false, http.StatusNotFound, "NOT_FOUND", ""},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), false, http.StatusMethodNotAllowed, "HTTP_ERROR", ""},
		{"unknown hidden", assert.AnError, false, http.StatusInternalServerError, "UNKNOWN_ERROR", ""},
		{"unknown shown", assert.AnError, true, http.StatusInternalServerError, "UNKNOWN_ERROR", assert.AnError.Error()},
		{"internal hidden", NewInternalError("boom", assert.AnError), false, http.StatusInternalServerError, "INTERNAL_ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(nil, tt.showDetails)(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantDetails, apiErr.Details)
		})
	}
}
