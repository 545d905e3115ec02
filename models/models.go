package models

// Student represents a roster entry
type Student struct {
	ID        string `json:"id"`        // Unique student ID (e.g., national student number)
	Name      string `json:"name"`      // Student name
	ClassName string `json:"className"` // Class the student belongs to
}

// AttendanceRow is one line of an attendance sheet.
// Checks is aligned positionally with the session dates.
type AttendanceRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassName string `json:"className"`
	Checks    []bool `json:"checks"`

	// MalformedChecks is set when the decoded checks were not a list of booleans
	MalformedChecks bool `json:"-"`
}

// Attendance sources accepted by SessionRequest.Source
const (
	SourceRoster = "roster"
	SourceManual = "manual"
)

// SessionRequest carries the metadata and rows of one attendance sheet
type SessionRequest struct {
	Trainer       string          `json:"trainer"`
	Year          string          `json:"year"`
	Dates         []string        `json:"dates" binding:"required,min=1"`
	Source        string          `json:"source" binding:"omitempty,oneof=roster manual"`
	ManualRecords []AttendanceRow `json:"manualRecords"`
	ClassName     string          `json:"className"` // Optional roster filter
}

// ImportResult summarises a roster spreadsheet import
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// RowFromStudent converts a roster entry into an unchecked attendance row
func RowFromStudent(s Student) AttendanceRow {
	return AttendanceRow{ID: s.ID, Name: s.Name, ClassName: s.ClassName}
}
