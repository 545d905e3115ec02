package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"attendance-sheet-go/middleware"
)

// SetupRouter registers every route on a new gin engine.
// staticDir is served under /app when not empty.
func SetupRouter(h *APIHandler, logger *zap.Logger, staticDir string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger))

	// Student routes
	router.GET("/students", h.GetStudents)
	router.POST("/students", h.AddStudent)
	router.PUT("/students/:id", h.UpdateStudent)
	router.DELETE("/students/:id", h.DeleteStudent)
	router.POST("/students/import", h.ImportStudents)
	router.GET("/students/export", h.ExportStudents)

	// Class views over the roster
	router.GET("/classes", h.GetAllClasses)
	router.GET("/classes/:className/students", h.GetStudentsByClass)

	// Attendance sheets
	attendance := router.Group("/attendance")
	{
		attendance.POST("/pdf", h.GenerateAttendancePDF)
		attendance.POST("/pdf-from-manual", h.GenerateManualAttendancePDF)
	}

	router.GET("/health", HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if staticDir != "" {
		router.Static("/app", staticDir)
	}
	return router
}
