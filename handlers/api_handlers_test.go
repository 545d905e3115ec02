package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"attendance-sheet-go/db"
	"attendance-sheet-go/models"
	"attendance-sheet-go/sheet"
	"attendance-sheet-go/templates"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Fakes
// ═══════════════════════════════════════════════════════════

// memoryStore is an in-memory StudentStore. err, when set, fails every call.
type memoryStore struct {
	students []models.Student
	err      error
}

func (m *memoryStore) List(context.Context) ([]models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Student, len(m.students))
	copy(out, m.students)
	return out, nil
}

func (m *memoryStore) Count(ctx context.Context) (int, error) {
	s, err := m.List(ctx)
	return len(s), err
}

func (m *memoryStore) Add(_ context.Context, s models.Student) (models.Student, error) {
	if m.err != nil {
		return models.Student{}, m.err
	}
	if s.ID == "" || s.Name == "" || s.ClassName == "" {
		return models.Student{}, db.ErrMissingField
	}
	for _, e := range m.students {
		if e.ID == s.ID {
			return models.Student{}, db.ErrDuplicateID
		}
	}
	m.students = append(m.students, s)
	return s, nil
}

func (m *memoryStore) Update(_ context.Context, id, name, className string) (models.Student, error) {
	if m.err != nil {
		return models.Student{}, m.err
	}
	for i := range m.students {
		if m.students[i].ID == id {
			m.students[i].Name = name
			m.students[i].ClassName = className
			return m.students[i], nil
		}
	}
	return models.Student{}, db.ErrNotFound
}

func (m *memoryStore) Remove(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	for i := range m.students {
		if m.students[i].ID == id {
			m.students = append(m.students[:i], m.students[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

type fakeRenderer struct {
	html string
	err  error
}

func (r *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	r.html = html
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7\n%fake\n"), nil
}
func (r *fakeRenderer) Close() error { return nil }
func (r *fakeRenderer) Name() string { return "fake" }

type testServer struct {
	router   *gin.Engine
	store    *memoryStore
	renderer *fakeRenderer
}

func newTestServer(t *testing.T, students ...models.Student) *testServer {
	t.Helper()
	store := &memoryStore{students: students}
	renderer := &fakeRenderer{}
	comp, err := sheet.NewCompositor(templates.Attendance, "")
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop()
	gen := sheet.NewGenerator(store, comp, renderer, false, logger)
	h := NewAPIHandler(store, gen, logger)
	return &testServer{router: SetupRouter(h, logger, ""), store: store, renderer: renderer}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return body
}

var (
	ayu  = models.Student{ID: "1001", Name: "Ayu", ClassName: "7A"}
	budi = models.Student{ID: "1002", Name: "Budi", ClassName: "7B"}
)

// ═══════════════════════════════════════════════════════════
// Students
// ═══════════════════════════════════════════════════════════

func TestGetStudents(t *testing.T) {
	s := newTestServer(t, ayu, budi)

	w := s.do(http.MethodGet, "/students", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var students []models.Student
	json.Unmarshal(w.Body.Bytes(), &students)
	if len(students) != 2 || students[0] != ayu {
		t.Errorf("unexpected students: %+v", students)
	}
}

func TestGetStudents_EmptyIsArray(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/students", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", w.Body.String())
	}
}

func TestGetStudents_StorageError(t *testing.T) {
	s := newTestServer(t)
	s.store.err = fmt.Errorf("%w: disk on fire at /var/lib/roster.json", db.ErrStorage)

	w := s.do(http.MethodGet, "/students", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "/var/lib") {
		t.Error("internal path leaked to client")
	}
}

func TestAddStudent(t *testing.T) {
	s := newTestServer(t, ayu)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"created", map[string]string{"id": "1002", "name": "Budi", "className": "7B"}, http.StatusCreated},
		{"duplicate", map[string]string{"id": "1001", "name": "Other", "className": "7C"}, http.StatusBadRequest},
		{"missing class", map[string]string{"id": "1003", "name": "Citra"}, http.StatusBadRequest},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/students", tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			if tt.status == http.StatusCreated {
				if body["success"] != true || body["message"] == "" {
					t.Errorf("unexpected body %v", body)
				}
			} else if body["error"] == nil {
				t.Errorf("expected error field, got %v", body)
			}
		})
	}

	if len(s.store.students) != 2 {
		t.Errorf("expected 2 students, got %+v", s.store.students)
	}
}

func TestUpdateStudent(t *testing.T) {
	s := newTestServer(t, ayu)

	w := s.do(http.MethodPut, "/students/1001", map[string]string{"name": "Ayu L", "className": "8A"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := s.store.students[0]; got.ID != "1001" || got.Name != "Ayu L" || got.ClassName != "8A" {
		t.Errorf("unexpected student %+v", got)
	}

	w = s.do(http.MethodPut, "/students/9999", map[string]string{"name": "X", "className": "Y"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = s.do(http.MethodPut, "/students/1001", map[string]string{"name": "X"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing class, got %d", w.Code)
	}
}

func TestDeleteStudent(t *testing.T) {
	s := newTestServer(t, ayu, budi)

	if w := s.do(http.MethodDelete, "/students/1001", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(s.store.students) != 1 || s.store.students[0] != budi {
		t.Errorf("unexpected roster %+v", s.store.students)
	}
	if w := s.do(http.MethodDelete, "/students/1001", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// Classes, import, export
// ═══════════════════════════════════════════════════════════

func TestClasses(t *testing.T) {
	s := newTestServer(t, ayu, budi, models.Student{ID: "1003", Name: "Citra", ClassName: "7A"})

	w := s.do(http.MethodGet, "/classes", nil)
	var classes []string
	json.Unmarshal(w.Body.Bytes(), &classes)
	if len(classes) != 2 || classes[0] != "7A" || classes[1] != "7B" {
		t.Errorf("unexpected classes %v", classes)
	}

	w = s.do(http.MethodGet, "/classes/7A/students", nil)
	var students []models.Student
	json.Unmarshal(w.Body.Bytes(), &students)
	if w.Code != http.StatusOK || len(students) != 2 {
		t.Errorf("unexpected class students %d %+v", w.Code, students)
	}

	if w := s.do(http.MethodGet, "/classes/9Z/students", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown class, got %d", w.Code)
	}
}

func TestImportStudents(t *testing.T) {
	s := newTestServer(t, ayu)

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"ID", "Name", "Class"},
		{"1002", "Budi", "7B"},
		{"1001", "Dup", "7A"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		f.SetSheetRow("Sheet1", cell, &r)
	}
	xlsx, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "roster.xlsx")
	part.Write(xlsx.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/students/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["imported"] != float64(1) || resp["skipped"] != float64(1) {
		t.Errorf("unexpected import result %v", resp)
	}
}

func TestImportStudents_MissingFile(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/students/import", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestExportStudents(t *testing.T) {
	s := newTestServer(t, ayu, budi)

	w := s.do(http.MethodGet, "/students/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "roster.xlsx") {
		t.Errorf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("export is not a workbook: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("Roster")
	if len(rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows))
	}
}

// ═══════════════════════════════════════════════════════════
// Attendance sheets
// ═══════════════════════════════════════════════════════════

func TestGenerateAttendancePDF_Manual(t *testing.T) {
	s := newTestServer(t, ayu)

	w := s.do(http.MethodPost, "/attendance/pdf", map[string]interface{}{
		"trainer": "A",
		"year":    "2024",
		"dates":   []string{"2024-08-17"},
		"source":  "manual",
		"manualRecords": []map[string]interface{}{
			{"id": "1", "name": "X", "className": "7A", "checks": []bool{true}},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("body is not a PDF: %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=attendance.pdf" {
		t.Errorf("unexpected disposition %q", cd)
	}
	if strings.Contains(s.renderer.html, "Ayu") || !strings.Contains(s.renderer.html, "✔") {
		t.Error("manual records not rendered")
	}
}

func TestGenerateAttendancePDF_Roster(t *testing.T) {
	s := newTestServer(t, ayu, budi)

	w := s.do(http.MethodPost, "/attendance/pdf", map[string]interface{}{
		"trainer": "A",
		"year":    "2024",
		"dates":   []string{"2024-08-17", "2024-08-24"},
		"source":  "roster",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(s.renderer.html, "Ayu") || !strings.Contains(s.renderer.html, "Budi") {
		t.Error("roster rows not rendered")
	}
}

func TestGenerateManualAttendancePDF(t *testing.T) {
	s := newTestServer(t, ayu)

	w := s.do(http.MethodPost, "/attendance/pdf-from-manual", map[string]interface{}{
		"trainer": "A",
		"year":    "2024",
		"dates":   []string{"2024-08-17"},
		"manualRecords": []map[string]interface{}{
			{"id": "7", "name": "Manual Only", "className": "9A", "checks": []bool{false}},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(s.renderer.html, "Ayu") || !strings.Contains(s.renderer.html, "Manual Only") {
		t.Error("expected records from the request body only")
	}
}

func TestGenerateAttendancePDF_Validation(t *testing.T) {
	s := newTestServer(t, ayu)

	bodies := []map[string]interface{}{
		{"trainer": "A", "year": "2024"},
		{"trainer": "A", "dates": []string{}},
		{"dates": []string{"2024-08-17"}, "source": "fax"},
	}
	for _, b := range bodies {
		w := s.do(http.MethodPost, "/attendance/pdf", b)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %v: expected 400, got %d", b, w.Code)
		}
	}
}

func TestGenerateAttendancePDF_LooseRecords(t *testing.T) {
	tests := []struct {
		name    string
		record  map[string]interface{}
		year    interface{}
		checked int
	}{
		{"numeric checks", map[string]interface{}{"id": "1", "name": "X", "className": "7A", "checks": []int{1, 0}}, "2024", 1},
		{"string checks", map[string]interface{}{"id": "1", "name": "X", "className": "7A", "checks": "yes"}, "2024", 0},
		{"numeric year", map[string]interface{}{"id": "1", "name": "X", "className": "7A", "checks": []bool{true, true}}, 2024, 2},
		{"numeric id", map[string]interface{}{"id": 1, "name": "X", "className": "7A", "checks": []bool{false, true}}, "2024", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, ayu)
			w := s.do(http.MethodPost, "/attendance/pdf", map[string]interface{}{
				"trainer":       "A",
				"year":          tt.year,
				"dates":         []string{"2024-08-17", "2024-08-24"},
				"source":        "manual",
				"manualRecords": []map[string]interface{}{tt.record},
			})
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if got := strings.Count(s.renderer.html, "✔"); got != tt.checked {
				t.Errorf("expected %d checkmarks, got %d", tt.checked, got)
			}
			if !strings.Contains(s.renderer.html, "2024") {
				t.Error("year missing from sheet")
			}
		})
	}
}

func TestGenerateAttendancePDF_BindErrors(t *testing.T) {
	s := newTestServer(t, ayu)

	req := httptest.NewRequest(http.MethodPost, "/attendance/pdf", strings.NewReader(`{"dates": `))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "Invalid request body" {
		t.Errorf("truncated body: got %d %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/attendance/pdf", map[string]interface{}{"trainer": "A"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing dates: expected 400, got %d", w.Code)
	}
	if msg, _ := decodeBody(t, w)["error"].(string); !strings.Contains(msg, "date") {
		t.Errorf("missing dates reported as %q", msg)
	}
}

func TestGenerateAttendancePDF_RenderFailure(t *testing.T) {
	s := newTestServer(t, ayu)
	s.renderer.err = errors.New("chromium exited at /usr/lib/chromium")

	w := s.do(http.MethodPost, "/attendance/pdf", map[string]interface{}{"dates": []string{"2024-08-17"}})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected plain text error, got %q", w.Header().Get("Content-Type"))
	}
	if strings.Contains(w.Body.String(), "chromium") {
		t.Error("render details leaked to client")
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("unexpected health response %d %q", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/health", nil)

	w := s.do(http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Errorf("metrics not exposed: %d", w.Code)
	}
}
