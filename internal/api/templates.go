package api

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

//go:embed views/*.html
var viewsFS embed.FS

const layoutFile = "views/layout.html"

// TemplateRenderer renders dashboard pages. Each page is parsed
// together with the shared layout into its own set so that every page
// can define the same "content" block.
type TemplateRenderer struct {
	pages   map[string]*template.Template
	metrics *metrics.HTTPMetrics
}

// NewTemplateRenderer parses the embedded views.
func NewTemplateRenderer(m *metrics.HTTPMetrics) (*TemplateRenderer, error) {
	files, err := fs.Glob(viewsFS, "views/*.html")
	if err != nil {
		return nil, err
	}

	base, err := template.New("layout").Funcs(templateFuncs()).ParseFS(viewsFS, layoutFile)
	if err != nil {
		return nil, templateError(err, layoutFile)
	}

	r := &TemplateRenderer{pages: make(map[string]*template.Template), metrics: m}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		set, err := base.Clone()
		if err != nil {
			return nil, templateError(err, file)
		}
		if _, err := set.ParseFS(viewsFS, file); err != nil {
			return nil, templateError(err, file)
		}
		r.pages[strings.TrimSuffix(path.Base(file), ".html")] = set
	}
	return r, nil
}

func templateError(err error, file string) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategorySystem).
		Context("template", file).
		Build()
}

// Render renders the page name inside the layout. Output is buffered so
// that a failing template never writes a partial page.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	start := time.Now()

	set, ok := t.pages[name]
	if !ok {
		err := errors.Newf("unknown template %q", name).
			Component("api").
			Category(errors.CategoryNotFound).
			Build()
		t.metrics.RecordTemplateRender(name, 0, err)
		return err
	}

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, "layout", data); err != nil {
		t.metrics.RecordTemplateRender(name, 0, err)
		GetLogger().Error("template execution failed", logger.String("template", name), logger.Error(err))
		return err
	}
	t.metrics.RecordTemplateRender(name, time.Since(start), nil)

	_, err := buf.WriteTo(w)
	return err
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"label": func(l detection.Label, tag language.Tag) string {
			return l.DisplayName(tag)
		},
		"pct": func(v float64) string {
			return formatPercent(v)
		},
		"date": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
		"title": func(s string) string {
			return cases.Title(language.English).String(s)
		},
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(roundConfidence(v), 'f', 2, 64) + "%"
}
