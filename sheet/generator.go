package sheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"attendance-sheet-go/db"
	applogger "attendance-sheet-go/logger"
	"attendance-sheet-go/metrics"
	"attendance-sheet-go/models"
	"attendance-sheet-go/render"
)

var (
	ErrInvalidSession = errors.New("invalid attendance session")
	ErrRender         = errors.New("failed to generate PDF")
)

// Generator runs the sheet pipeline: rows -> matrix -> template -> PDF
type Generator struct {
	store      db.StudentStore
	compositor *Compositor
	renderer   render.Renderer
	strict     bool
	logger     *zap.Logger
}

// NewGenerator wires the pipeline. With strict set, manual rows whose checks do not
// line up with the dates are rejected instead of padded.
func NewGenerator(store db.StudentStore, compositor *Compositor, renderer render.Renderer, strict bool, logger *zap.Logger) *Generator {
	return &Generator{
		store:      store,
		compositor: compositor,
		renderer:   renderer,
		strict:     strict,
		logger:     logger,
	}
}

// Generate renders a sheet from the roster or, for the manual source with at
// least one record, from the submitted records.
func (g *Generator) Generate(ctx context.Context, req *models.SessionRequest) ([]byte, error) {
	if err := validateSession(req); err != nil {
		return nil, err
	}

	if req.Source == models.SourceManual && len(req.ManualRecords) > 0 {
		return g.generate(ctx, req, req.ManualRecords)
	}

	rows, err := g.rosterRows(ctx, req.ClassName)
	if err != nil {
		return nil, err
	}
	return g.generate(ctx, req, rows)
}

// GenerateManual always renders the records carried by the request
func (g *Generator) GenerateManual(ctx context.Context, req *models.SessionRequest) ([]byte, error) {
	if err := validateSession(req); err != nil {
		return nil, err
	}
	return g.generate(ctx, req, req.ManualRecords)
}

// HTML composes the sheet without rendering it
func (g *Generator) HTML(req *models.SessionRequest, rows []models.AttendanceRow) string {
	matrix := BuildMatrix(req.Dates, rows)
	return g.compositor.Compose(Session{
		Trainer:   req.Trainer,
		Year:      req.Year,
		DateCount: len(req.Dates),
	}, matrix)
}

func (g *Generator) generate(ctx context.Context, req *models.SessionRequest, rows []models.AttendanceRow) ([]byte, error) {
	if g.strict {
		for _, row := range rows {
			if row.MalformedChecks {
				return nil, fmt.Errorf("%w: student %q has checks that are not true or false",
					ErrInvalidSession, row.ID)
			}
			if len(row.Checks) != len(req.Dates) {
				return nil, fmt.Errorf("%w: student %q has %d checks for %d dates",
					ErrInvalidSession, row.ID, len(row.Checks), len(req.Dates))
			}
		}
	}

	page := g.HTML(req, rows)
	log := applogger.FromContext(ctx, g.logger)

	start := time.Now()
	pdf, err := g.renderer.Render(ctx, page)
	metrics.RenderDuration.WithLabelValues(g.renderer.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RenderErrors.WithLabelValues(renderStage(err)).Inc()
		log.Error("attendance sheet render failed",
			zap.String("renderer", g.renderer.Name()),
			zap.Int("rows", len(rows)),
			zap.Int("dates", len(req.Dates)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	log.Info("attendance sheet generated",
		zap.Int("rows", len(rows)),
		zap.Int("dates", len(req.Dates)),
		zap.Int("bytes", len(pdf)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return pdf, nil
}

// renderStage names the pipeline step a render error came from
func renderStage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, render.ErrLaunch):
		return "launch"
	default:
		return "print"
	}
}

func (g *Generator) rosterRows(ctx context.Context, className string) ([]models.AttendanceRow, error) {
	var (
		students []models.Student
		err      error
	)
	if className != "" {
		students, err = db.StudentsByClass(ctx, g.store, className)
	} else {
		students, err = g.store.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	rows := make([]models.AttendanceRow, 0, len(students))
	for _, s := range students {
		rows = append(rows, models.RowFromStudent(s))
	}
	return rows, nil
}

func validateSession(req *models.SessionRequest) error {
	if len(req.Dates) == 0 {
		return fmt.Errorf("%w: at least one date is required", ErrInvalidSession)
	}
	switch req.Source {
	case "", models.SourceRoster, models.SourceManual:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidSession, req.Source)
	}
	return nil
}
