package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"attendance-sheet-go/db"
	"attendance-sheet-go/metrics"
	"attendance-sheet-go/models"
	"attendance-sheet-go/sheet"
)

const (
	pdfFilename    = "attendance.pdf"
	rosterFilename = "roster.xlsx"
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Store     db.StudentStore
	Generator *sheet.Generator
	logger    *zap.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(store db.StudentStore, generator *sheet.Generator, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		Store:     store,
		Generator: generator,
		logger:    logger,
	}
}

type addStudentRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassName string `json:"className"`
}

type updateStudentRequest struct {
	Name      string `json:"name" binding:"required"`
	ClassName string `json:"className" binding:"required"`
}

// --- Student Handlers ---

// GetStudents handles GET /students
func (h *APIHandler) GetStudents(c *gin.Context) {
	students, err := h.Store.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "failed to list students", err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// AddStudent handles POST /students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	_, err := h.Store.Add(c.Request.Context(), models.Student{
		ID:        req.ID,
		Name:      req.Name,
		ClassName: req.ClassName,
	})
	recordMutation("add", err)
	if err != nil {
		h.handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Student added"})
}

// UpdateStudent handles PUT /students/:id
func (h *APIHandler) UpdateStudent(c *gin.Context) {
	id := c.Param("id")

	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and class are required"})
		return
	}

	_, err := h.Store.Update(c.Request.Context(), id, req.Name, req.ClassName)
	recordMutation("update", err)
	if err != nil {
		h.handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Student updated"})
}

// DeleteStudent handles DELETE /students/:id
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	err := h.Store.Remove(c.Request.Context(), c.Param("id"))
	recordMutation("remove", err)
	if err != nil {
		h.handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Student removed"})
}

// --- Class Handlers ---

// GetAllClasses handles GET /classes
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	classes, err := db.ListClasses(c.Request.Context(), h.Store)
	if err != nil {
		h.internalError(c, "failed to list classes", err)
		return
	}
	c.JSON(http.StatusOK, classes)
}

// GetStudentsByClass handles GET /classes/:className/students
func (h *APIHandler) GetStudentsByClass(c *gin.Context) {
	className := c.Param("className")

	students, err := db.StudentsByClass(c.Request.Context(), h.Store, className)
	if err != nil {
		h.internalError(c, "failed to list class students", err)
		return
	}
	if len(students) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return
	}
	c.JSON(http.StatusOK, students)
}

// --- Import / Export Handlers ---

// ImportStudents handles POST /students/import
func (h *APIHandler) ImportStudents(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing spreadsheet in form field 'file'"})
		return
	}
	defer file.Close()

	h.logger.Info("roster import received", zap.String("filename", header.Filename), zap.Int64("size", header.Size))

	result, err := db.ImportStudentsFromExcel(c.Request.Context(), h.Store, file, h.logger)
	metrics.RosterMutations.WithLabelValues("import", "imported").Add(float64(result.Imported))
	metrics.RosterMutations.WithLabelValues("import", "skipped").Add(float64(result.Skipped))
	if err != nil {
		if errors.Is(err, db.ErrStorage) {
			h.internalError(c, "roster import failed", err)
			return
		}
		h.logger.Warn("rejected roster spreadsheet", zap.String("filename", header.Filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read spreadsheet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Import finished",
		"imported": result.Imported,
		"skipped":  result.Skipped,
	})
}

// ExportStudents handles GET /students/export
func (h *APIHandler) ExportStudents(c *gin.Context) {
	students, err := h.Store.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "failed to list students for export", err)
		return
	}
	buf, err := db.ExportStudentsToExcel(students)
	if err != nil {
		h.internalError(c, "failed to build roster workbook", err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+rosterFilename)
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

// --- Attendance Sheet Handlers ---

// GenerateAttendancePDF handles POST /attendance/pdf
func (h *APIHandler) GenerateAttendancePDF(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err, "At least one date is required and source must be roster or manual")
		return
	}
	pdf, err := h.Generator.Generate(c.Request.Context(), &req)
	h.writePDF(c, pdf, err)
}

// GenerateManualAttendancePDF handles POST /attendance/pdf-from-manual
func (h *APIHandler) GenerateManualAttendancePDF(c *gin.Context) {
	var req models.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err, "At least one date is required")
		return
	}
	pdf, err := h.Generator.GenerateManual(c.Request.Context(), &req)
	h.writePDF(c, pdf, err)
}

func (h *APIHandler) writePDF(c *gin.Context, pdf []byte, err error) {
	if err != nil {
		if errors.Is(err, sheet.ErrInvalidSession) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// details were logged by the generator or the store
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Failed to generate PDF")
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+pdfFilename)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// --- Health Handler ---

// HealthHandler handles GET /health
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "Attendance sheet server is running")
}

// handleStoreError maps roster errors to responses
func (h *APIHandler) handleStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Student ID, name, and class are required"})
	case errors.Is(err, db.ErrDuplicateID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Student ID is already registered"})
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
	default:
		h.internalError(c, "roster operation failed", err)
	}
}

// bindError answers 400 with invalidMsg for failed binding rules and a generic
// message when the body could not be decoded at all
func (h *APIHandler) bindError(c *gin.Context, err error, invalidMsg string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidMsg})
		return
	}
	h.logger.Debug("undecodable request body", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

func (h *APIHandler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func recordMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RosterMutations.WithLabelValues(op, result).Inc()
}
