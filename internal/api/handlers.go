package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/importer"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/observability"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/parser"
	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.store.Ping(r.Context()) == nil
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"db":      dbOK,
		"search":  s.searchReady,
		"workers": s.runner.Workers(),
		"stats":   observability.Snapshot(),
	})
}

func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing file upload: "+err.Error())
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		respondError(w, http.StatusBadRequest, "Please upload a .csv file.")
		return
	}

	imp, err := s.store.CreateImport(r.Context(), header.Filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create import: "+err.Error())
		return
	}

	rows, summary, err := importer.ParseCSV(file, imp.ImportID)
	if err != nil {
		if errors.Is(err, importer.ErrMissingColumns) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "Failed to parse csv: "+err.Error())
		return
	}

	if err := s.store.InsertRows(r.Context(), rows); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save rows: "+err.Error())
		return
	}
	observability.AddRowsImported(summary.Rows)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"import_id":        imp.ImportID,
		"filename":         imp.Filename,
		"created_at":       imp.CreatedAt,
		"rows":             summary.Rows,
		"skipped_existing": summary.SkippedExisting,
	})
}

func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")
	q := r.URL.Query()

	rows, err := s.store.ListRows(r.Context(), importID, q.Get("status"), q.Get("q"), parseLimit(r, 200))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch rows: "+err.Error())
		return
	}
	if rows == nil {
		rows = []store.Row{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"import_id": importID,
		"count":     len(rows),
		"items":     rows,
	})
}

type createTaskRequest struct {
	ImportID string   `json:"import_id"`
	RowIDs   []string `json:"row_ids,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
	Force    bool     `json:"force,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ImportID == "" {
		respondError(w, http.StatusBadRequest, "import_id is required")
		return
	}

	if _, err := s.store.GetImport(r.Context(), req.ImportID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Import not found.")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load import: "+err.Error())
		return
	}

	rows, err := s.selectTaskRows(r, req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to select rows: "+err.Error())
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusBadRequest, "No rows selected.")
		return
	}

	task, err := s.store.CreateTask(r.Context(), req.ImportID, req.Force)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create task: "+err.Error())
		return
	}

	rowIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		rowIDs = append(rowIDs, row.RowID)
	}
	if err := s.store.InsertTaskRows(r.Context(), task.TaskID, rowIDs); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to queue task rows: "+err.Error())
		return
	}
	observability.IncTaskDispatched()

	queued := 0
	for _, rowID := range rowIDs {
		if !s.runner.Enqueue(task.TaskID, rowID, req.Force) {
			// Full or stopped queue degrades to running the row inside
			// this request.
			s.runner.Process(r.Context(), task.TaskID, rowID, req.Force)
		}
		queued++
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":   task.TaskID,
		"import_id": task.ImportID,
		"status":    task.Status,
		"queued":    queued,
	})
}

func (s *Server) selectTaskRows(r *http.Request, req createTaskRequest) ([]store.Row, error) {
	if len(req.RowIDs) > 0 {
		rows, err := s.store.RowsByIDs(r.Context(), req.RowIDs)
		if err != nil {
			return nil, err
		}
		selected := rows[:0]
		for _, row := range rows {
			if row.ImportID == req.ImportID {
				selected = append(selected, row)
			}
		}
		return selected, nil
	}
	if len(req.Statuses) > 0 {
		return s.store.RowsByStatuses(r.Context(), req.ImportID, req.Statuses)
	}
	return s.store.RowsForExport(r.Context(), req.ImportID)
}

type taskResponse struct {
	store.Task
	Counts map[string]int `json:"counts"`
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	// Refresh terminal status first so pollers see COMPLETED as soon as the
	// last row lands.
	if _, err := s.store.MaybeFinishTask(r.Context(), taskID); err != nil {
		s.logger.Warn("failed to refresh task status", "task_id", taskID, "error", err)
	}

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Task not found.")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load task: "+err.Error())
		return
	}

	counts, err := s.store.TaskCounts(r.Context(), taskID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load task counts: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, taskResponse{Task: task, Counts: counts})
}

type updateRowRequest struct {
	Brand             *string  `json:"brand"`
	ProductName       *string  `json:"product_name"`
	Market            *string  `json:"market"`
	Status            *string  `json:"status"`
	Confidence        *float64 `json:"confidence"`
	SourceRef         *string  `json:"source_ref"`
	SourceType        *string  `json:"source_type"`
	RawIngredientText *string  `json:"raw_ingredient_text"`
	Error             *string  `json:"error"`
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	var req updateRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	row, err := s.store.GetRow(r.Context(), rowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Row not found.")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load row: "+err.Error())
		return
	}

	var parseResult *parser.Result
	if req.Brand != nil {
		row.Brand = *req.Brand
	}
	if req.ProductName != nil {
		row.ProductName = *req.ProductName
	}
	if req.Market != nil {
		row.Market = *req.Market
	}
	if req.Status != nil {
		row.Status = *req.Status
	}
	if req.Confidence != nil {
		row.Confidence = *req.Confidence
	}
	if req.SourceRef != nil {
		row.SourceRef = *req.SourceRef
	}
	if req.SourceType != nil {
		row.SourceType = *req.SourceType
	}
	if req.Error != nil {
		row.Error = *req.Error
	}
	if req.RawIngredientText != nil && *req.RawIngredientText != row.RawIngredientText {
		row.RawIngredientText = *req.RawIngredientText
		if strings.TrimSpace(row.RawIngredientText) != "" {
			result := s.engine.Parse(row.RawIngredientText)
			observability.IncParseStatus(string(result.Status))
			parseResult = &result
		}
	}

	if err := s.store.UpdateRow(r.Context(), row); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update row: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"row":          row,
		"parse_result": parseResult,
	})
}

func (s *Server) handleRerunRow(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	row, err := s.store.GetRow(r.Context(), rowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Row not found.")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load row: "+err.Error())
		return
	}

	task, err := s.store.CreateTask(r.Context(), row.ImportID, force)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create task: "+err.Error())
		return
	}
	if err := s.store.InsertTaskRows(r.Context(), task.TaskID, []string{rowID}); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to queue task row: "+err.Error())
		return
	}
	observability.IncTaskDispatched()

	// Single-row reruns are interactive, so run inline rather than queue
	// behind a batch.
	s.runner.Process(r.Context(), task.TaskID, rowID, force)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":   task.TaskID,
		"import_id": task.ImportID,
		"status":    task.Status,
		"queued":    1,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if _, err := s.store.GetImport(r.Context(), importID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Import not found.")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load import: "+err.Error())
		return
	}

	rows, err := s.store.RowsForExport(r.Context(), importID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch rows: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", importer.ExportFilename(importID)))
	if err := importer.WriteCSV(w, rows, s.engine); err != nil {
		// Headers are already on the wire; all we can do is log.
		s.logger.Error("failed to stream export", "import_id", importID, "error", err)
	}
}

type reparseRequest struct {
	RawText string `json:"raw_text"`
}

type reparseResponse struct {
	ID          string        `json:"id,omitempty"`
	CleanedText string        `json:"cleaned_text"`
	Result      parser.Result `json:"result"`
}

func (s *Server) handleReparse(w http.ResponseWriter, r *http.Request) {
	var req reparseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := s.engine.Parse(req.RawText)
	observability.IncParseStatus(string(result.Status))

	respondJSON(w, http.StatusOK, reparseResponse{
		CleanedText: parser.CleanedText(req.RawText),
		Result:      result,
	})
}

type reparseBatchRequest struct {
	Items []struct {
		ID      string `json:"id,omitempty"`
		RawText string `json:"raw_text"`
	} `json:"items"`
}

func (s *Server) handleReparseBatch(w http.ResponseWriter, r *http.Request) {
	var req reparseBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	items := make([]reparseResponse, 0, len(req.Items))
	for _, item := range req.Items {
		result := s.engine.Parse(item.RawText)
		observability.IncParseStatus(string(result.Status))
		items = append(items, reparseResponse{
			ID:          item.ID,
			CleanedText: parser.CleanedText(item.RawText),
			Result:      result,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultLimit
}
