package sheet

import (
	"html"
	"strconv"
	"strings"

	"attendance-sheet-go/models"
)

const checkMark = "✔"

// Matrix is the rendered date header and student rows of a sheet
type Matrix struct {
	HeaderHTML string
	BodyHTML   string
}

// FormatDate turns an ISO "YYYY-MM-DD" date into "DD/MM/YYYY".
// The parts are only reordered; malformed input yields a malformed label.
func FormatDate(iso string) string {
	if iso == "" {
		return ""
	}
	parts := strings.SplitN(iso, "-", 3)
	if len(parts) < 3 {
		return iso
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

// BuildMatrix renders one header cell per date and one row per student.
// Rows keep their input order. A check missing from a row renders unchecked.
func BuildMatrix(dates []string, rows []models.AttendanceRow) Matrix {
	var header strings.Builder
	for _, d := range dates {
		header.WriteString("<th>")
		header.WriteString(html.EscapeString(FormatDate(d)))
		header.WriteString("</th>")
	}

	var body strings.Builder
	for i, row := range rows {
		body.WriteString("\n<tr>")
		body.WriteString("<td>" + strconv.Itoa(i+1) + "</td>")
		body.WriteString("<td>" + html.EscapeString(row.ID) + "</td>")
		body.WriteString(`<td class="td-nama">` + html.EscapeString(row.Name) + "</td>")
		body.WriteString("<td>" + html.EscapeString(row.ClassName) + "</td>")
		for k := range dates {
			mark := ""
			if k < len(row.Checks) && row.Checks[k] {
				mark = checkMark
			}
			body.WriteString(`<td><span class="checkbox">` + mark + "</span></td>")
		}
		body.WriteString("</tr>")
	}

	return Matrix{HeaderHTML: header.String(), BodyHTML: body.String()}
}
