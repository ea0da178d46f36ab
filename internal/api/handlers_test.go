package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/parser"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

type fakeStore struct {
	pingErr  error
	imports  map[string]store.Import
	rows     map[string]store.Row
	rowOrder []string
	tasks    map[string]store.Task
	taskRows map[string][]string
	inserted []store.Row
	updated  []store.Row
	counts   map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		imports:  make(map[string]store.Import),
		rows:     make(map[string]store.Row),
		tasks:    make(map[string]store.Task),
		taskRows: make(map[string][]string),
		counts:   map[string]int{},
	}
}

func (f *fakeStore) addImport(importID string) {
	f.imports[importID] = store.Import{ImportID: importID, Filename: importID + ".csv", CreatedAt: time.Now().UTC()}
}

func (f *fakeStore) addRow(r store.Row) {
	f.rows[r.RowID] = r
	f.rowOrder = append(f.rowOrder, r.RowID)
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) CreateImport(ctx context.Context, filename string) (store.Import, error) {
	imp := store.Import{ImportID: fmt.Sprintf("imp-%d", len(f.imports)+1), Filename: filename, CreatedAt: time.Now().UTC()}
	f.imports[imp.ImportID] = imp
	return imp, nil
}

func (f *fakeStore) GetImport(ctx context.Context, importID string) (store.Import, error) {
	imp, ok := f.imports[importID]
	if !ok {
		return store.Import{}, store.ErrNotFound
	}
	return imp, nil
}

func (f *fakeStore) InsertRows(ctx context.Context, rows []store.Row) error {
	for _, r := range rows {
		f.addRow(r)
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeStore) ListRows(ctx context.Context, importID, status, q string, limit int) ([]store.Row, error) {
	var out []store.Row
	needle := strings.ToLower(q)
	for _, id := range f.rowOrder {
		r := f.rows[id]
		if r.ImportID != importID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Brand), needle) &&
			!strings.Contains(strings.ToLower(r.ProductName), needle) {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetRow(ctx context.Context, rowID string) (store.Row, error) {
	r, ok := f.rows[rowID]
	if !ok {
		return store.Row{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) UpdateRow(ctx context.Context, r store.Row) error {
	f.rows[r.RowID] = r
	f.updated = append(f.updated, r)
	return nil
}

func (f *fakeStore) RowsByIDs(ctx context.Context, rowIDs []string) ([]store.Row, error) {
	var out []store.Row
	for _, id := range rowIDs {
		if r, ok := f.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) RowsByStatuses(ctx context.Context, importID string, statuses []string) ([]store.Row, error) {
	want := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []store.Row
	for _, id := range f.rowOrder {
		r := f.rows[id]
		if r.ImportID == importID && want[r.Status] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) RowsForExport(ctx context.Context, importID string) ([]store.Row, error) {
	var out []store.Row
	for _, id := range f.rowOrder {
		if r := f.rows[id]; r.ImportID == importID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTask(ctx context.Context, importID string, force bool) (store.Task, error) {
	task := store.Task{
		TaskID:    fmt.Sprintf("task-%d", len(f.tasks)+1),
		ImportID:  importID,
		Status:    store.TaskStatusRunning,
		Force:     force,
		CreatedAt: time.Now().UTC(),
	}
	f.tasks[task.TaskID] = task
	return task, nil
}

func (f *fakeStore) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return store.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (f *fakeStore) InsertTaskRows(ctx context.Context, taskID string, rowIDs []string) error {
	f.taskRows[taskID] = append(f.taskRows[taskID], rowIDs...)
	return nil
}

func (f *fakeStore) TaskCounts(ctx context.Context, taskID string) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeStore) MaybeFinishTask(ctx context.Context, taskID string) (bool, error) {
	return false, nil
}

type fakeRunner struct {
	acceptEnqueue bool
	enqueued      []string
	processed     []string
}

func (f *fakeRunner) Enqueue(taskID, rowID string, force bool) bool {
	if !f.acceptEnqueue {
		return false
	}
	f.enqueued = append(f.enqueued, rowID)
	return true
}

func (f *fakeRunner) Process(ctx context.Context, taskID, rowID string, force bool) {
	f.processed = append(f.processed, fmt.Sprintf("%s/%s/force=%t", taskID, rowID, force))
}

func (f *fakeRunner) Workers() int { return 4 }

func newTestServer(st *fakeStore, runner *fakeRunner) *Server {
	return NewServer(st, runner, parser.NewEngine(), Config{SearchReady: true})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	rec := doJSON(t, s, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["db"])
	assert.Equal(t, true, body["search"])
	assert.Equal(t, float64(4), body["workers"])
	assert.Contains(t, body, "stats")
	assert.NotEmpty(t, rec.Header().Get("x-harvester-request-id"))
}

func TestRequestIDEchoesInboundHeader(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-abc-123")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "req-abc-123", rec.Header().Get("x-harvester-request-id"))
}

func TestCreateImport(t *testing.T) {
	st := newFakeStore()
	s := newTestServer(st, &fakeRunner{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("brand,product_name,ingredients\nAcme,Serum,\nAcme,Toner,\"Aqua, Glycerin\"\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "products.csv", body["filename"])
	assert.Equal(t, float64(2), body["rows"])
	assert.Equal(t, float64(1), body["skipped_existing"])
	assert.Len(t, st.inserted, 2)
	assert.Equal(t, body["import_id"], st.inserted[0].ImportID)
}

func TestCreateImportRejectsNonCSV(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a csv"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRowsFilters(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	st.addRow(store.Row{RowID: "r1", ImportID: "imp-1", Brand: "CeraVe", ProductName: "Cleanser", Status: store.RowStatusEmpty})
	st.addRow(store.Row{RowID: "r2", ImportID: "imp-1", Brand: "Acme", ProductName: "Serum", Status: store.RowStatusTrusted})
	st.addRow(store.Row{RowID: "r3", ImportID: "imp-2", Brand: "Other", ProductName: "Import", Status: store.RowStatusEmpty})
	s := newTestServer(st, &fakeRunner{})

	rec := doJSON(t, s, http.MethodGet, "/v1/imports/imp-1/rows?status=TRUSTED", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "r2", items[0].(map[string]interface{})["row_id"])
}

func TestCreateTaskEnqueuesRows(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	st.addRow(store.Row{RowID: "r1", ImportID: "imp-1", Brand: "A", ProductName: "One", Status: store.RowStatusEmpty})
	st.addRow(store.Row{RowID: "r2", ImportID: "imp-1", Brand: "B", ProductName: "Two", Status: store.RowStatusEmpty})
	runner := &fakeRunner{acceptEnqueue: true}
	s := newTestServer(st, runner)

	rec := doJSON(t, s, http.MethodPost, "/v1/tasks", map[string]interface{}{"import_id": "imp-1"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["queued"])
	assert.Equal(t, "RUNNING", body["status"])
	assert.ElementsMatch(t, []string{"r1", "r2"}, runner.enqueued)
	assert.Empty(t, runner.processed)
	taskID := body["task_id"].(string)
	assert.ElementsMatch(t, []string{"r1", "r2"}, st.taskRows[taskID])
}

func TestCreateTaskFallsBackToInline(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	st.addRow(store.Row{RowID: "r1", ImportID: "imp-1", Brand: "A", ProductName: "One"})
	runner := &fakeRunner{acceptEnqueue: false}
	s := newTestServer(st, runner)

	rec := doJSON(t, s, http.MethodPost, "/v1/tasks", map[string]interface{}{"import_id": "imp-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.processed, 1)
	assert.Contains(t, runner.processed[0], "r1")
}

func TestCreateTaskSelectsByRowIDs(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	st.addRow(store.Row{RowID: "r1", ImportID: "imp-1", Brand: "A", ProductName: "One"})
	st.addRow(store.Row{RowID: "r2", ImportID: "imp-1", Brand: "B", ProductName: "Two"})
	st.addRow(store.Row{RowID: "other", ImportID: "imp-9", Brand: "X", ProductName: "Foreign"})
	runner := &fakeRunner{acceptEnqueue: true}
	s := newTestServer(st, runner)

	rec := doJSON(t, s, http.MethodPost, "/v1/tasks", map[string]interface{}{
		"import_id": "imp-1",
		"row_ids":   []string{"r2", "other"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	// Rows from a different import must not ride along.
	assert.ElementsMatch(t, []string{"r2"}, runner.enqueued)
}

func TestCreateTaskUnknownImport(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	rec := doJSON(t, s, http.MethodPost, "/v1/tasks", map[string]interface{}{"import_id": "ghost"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTaskNoRowsSelected(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	s := newTestServer(st, &fakeRunner{})

	rec := doJSON(t, s, http.MethodPost, "/v1/tasks", map[string]interface{}{"import_id": "imp-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTask(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	task, err := st.CreateTask(context.Background(), "imp-1", false)
	require.NoError(t, err)
	st.counts = map[string]int{"TRUSTED": 2, "QUEUED": 1}
	s := newTestServer(st, &fakeRunner{})

	rec := doJSON(t, s, http.MethodGet, "/v1/tasks/"+task.TaskID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, task.TaskID, body["task_id"])
	counts := body["counts"].(map[string]interface{})
	assert.Equal(t, float64(2), counts["TRUSTED"])
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	rec := doJSON(t, s, http.MethodGet, "/v1/tasks/ghost", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRowReparsesChangedText(t *testing.T) {
	st := newFakeStore()
	st.addRow(store.Row{RowID: "r1", ImportID: "imp-1", Brand: "Acme", ProductName: "Serum"})
	s := newTestServer(st, &fakeRunner{})

	rec := doJSON(t, s, http.MethodPatch, "/v1/rows/r1", map[string]interface{}{
		"raw_ingredient_text": "Ingredients: Water, Glycerin",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	parseResult, ok := body["parse_result"].(map[string]interface{})
	require.True(t, ok, "parse_result missing: %v", body)
	assert.Equal(t, "OK", parseResult["parse_status"])
	assert.Equal(t, "Aqua; Glycerin", parseResult["inci_list"])

	saved := st.rows["r1"]
	assert.Equal(t, "Ingredients: Water, Glycerin", saved.RawIngredientText)
}

func TestUpdateRowWithoutTextChangeSkipsParse(t *testing.T) {
	st := newFakeStore()
	st.addRow(store.Row{RowID: "r1", ImportID: "imp-1", Brand: "Acme", ProductName: "Serum"})
	s := newTestServer(st, &fakeRunner{})

	rec := doJSON(t, s, http.MethodPatch, "/v1/rows/r1", map[string]interface{}{
		"brand": "Acme Labs",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Nil(t, body["parse_result"])
	assert.Equal(t, "Acme Labs", st.rows["r1"].Brand)
}

func TestRerunRowRunsInline(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	st.addRow(store.Row{RowID: "r1", ImportID: "imp-1", Brand: "Acme", ProductName: "Serum"})
	runner := &fakeRunner{acceptEnqueue: true}
	s := newTestServer(st, runner)

	rec := doJSON(t, s, http.MethodPost, "/v1/rows/r1/rerun?force=true", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["queued"])
	require.Len(t, runner.processed, 1)
	assert.Contains(t, runner.processed[0], "r1")
	assert.Contains(t, runner.processed[0], "force=true")
	assert.Empty(t, runner.enqueued)
}

func TestExportStreamsCSV(t *testing.T) {
	st := newFakeStore()
	st.addImport("imp-1")
	st.addRow(store.Row{
		RowID:             "r1",
		ImportID:          "imp-1",
		RowIndex:          0,
		Brand:             "Acme",
		ProductName:       "Serum",
		Market:            "US",
		Status:            store.RowStatusTrusted,
		Confidence:        0.9,
		RawIngredientText: "Water, Glycerin",
	})
	s := newTestServer(st, &fakeRunner{})

	rec := doJSON(t, s, http.MethodGet, "/v1/exports/imp-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ingredient_harvest_imp-1.csv")
	body := rec.Body.String()
	assert.Contains(t, body, "row_index,brand,product_name")
	assert.Contains(t, body, "Aqua; Glycerin")
}

func TestExportUnknownImport(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	rec := doJSON(t, s, http.MethodGet, "/v1/exports/ghost", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReparse(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	rec := doJSON(t, s, http.MethodPost, "/v1/parser/re-parse", map[string]interface{}{
		"raw_text": "Ingredients: Water, Glycerin, #ad",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Water, Glycerin", body["cleaned_text"])
	result := body["result"].(map[string]interface{})
	assert.Equal(t, "OK", result["parse_status"])
	assert.Equal(t, "Aqua; Glycerin", result["inci_list"])
}

func TestReparseBatch(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeRunner{})

	rec := doJSON(t, s, http.MethodPost, "/v1/parser/re-parse-batch", map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": "r1", "raw_text": "Water, Glycerin"},
			{"id": "r2", "raw_text": "see packaging"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	items := body["items"].([]interface{})
	require.Len(t, items, 2)

	first := items[0].(map[string]interface{})
	assert.Equal(t, "r1", first["id"])
	assert.Equal(t, "Aqua; Glycerin", first["result"].(map[string]interface{})["inci_list"])

	second := items[1].(map[string]interface{})
	assert.Equal(t, "NEEDS_SOURCE", second["result"].(map[string]interface{})["parse_status"])
}
