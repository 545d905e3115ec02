package sheet

import (
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"attendance-sheet-go/templates"
)

// Template placeholders. Every occurrence of each is replaced.
const (
	PlaceholderLogo       = "{{logo}}"
	PlaceholderYear       = "{{tahun}}"
	PlaceholderTrainer    = "{{pelatih}}"
	PlaceholderDateCount  = "{{jumlahTanggal}}"
	PlaceholderDateHeader = "{{headerTanggal}}"
	PlaceholderRows       = "{{barisSiswa}}"
)

// Placeholders lists the tokens a sheet template must contain
func Placeholders() []string {
	return []string{
		PlaceholderLogo,
		PlaceholderYear,
		PlaceholderTrainer,
		PlaceholderDateCount,
		PlaceholderDateHeader,
		PlaceholderRows,
	}
}

// Session holds the scalar fields injected into the template
type Session struct {
	Trainer   string
	Year      string
	DateCount int
}

// Compositor fills the cached sheet template
type Compositor struct {
	template string
	logo     string
}

// NewCompositor checks that tmpl contains every placeholder.
// logoDataURI may be empty.
func NewCompositor(tmpl, logoDataURI string) (*Compositor, error) {
	var missing []string
	for _, p := range Placeholders() {
		if !strings.Contains(tmpl, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("sheet template is missing placeholders %s", strings.Join(missing, ", "))
	}
	return &Compositor{template: tmpl, logo: logoDataURI}, nil
}

// LoadCompositor reads the template at templatePath, or the embedded default when
// the path is empty, and the logo at logoPath. A missing logo is logged and skipped.
func LoadCompositor(templatePath, logoPath string, logger *zap.Logger) (*Compositor, error) {
	tmpl := templates.Attendance
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet template: %w", err)
		}
		tmpl = string(data)
	}

	logo, err := LoadLogo(logoPath)
	if err != nil {
		logger.Warn("sheet logo unavailable, rendering without it", zap.String("path", logoPath), zap.Error(err))
		logo = ""
	}
	return NewCompositor(tmpl, logo)
}

// LoadLogo encodes an image file as a data URI
func LoadLogo(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := mimetype.Detect(data)
	return "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Compose substitutes every placeholder in a single pass, so text injected
// by one placeholder is never scanned for another.
func (c *Compositor) Compose(s Session, m Matrix) string {
	r := strings.NewReplacer(
		PlaceholderLogo, c.logo,
		PlaceholderYear, html.EscapeString(s.Year),
		PlaceholderTrainer, html.EscapeString(s.Trainer),
		PlaceholderDateCount, strconv.Itoa(s.DateCount),
		PlaceholderDateHeader, m.HeaderHTML,
		PlaceholderRows, m.BodyHTML,
	)
	return r.Replace(c.template)
}
