package reporting

import (
	"bytes"
	"context"
	"embed"
	"reflect"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/turtacn/LegalLens/pkg/errors"
)

//go:embed templates/*.md.tmpl
var builtinTemplates embed.FS

// Built-in template names.
const (
	CaseTemplate     = "case_report.md.tmpl"
	AdvisoryTemplate = "advisory_report.md.tmpl"
)

// TemplateRenderTimeout bounds a single Render call.
const TemplateRenderTimeout = 30 * time.Second

// TemplateEngine binds report data to Markdown templates.
type TemplateEngine interface {
	Render(ctx context.Context, name string, data interface{}) ([]byte, error)
	Templates() []string
}

type templateEngineImpl struct {
	fs    embed.FS
	funcs template.FuncMap
	// parsed templates keyed by name
	astCache sync.Map
}

// NewTemplateEngine returns an engine over the built-in report templates.
func NewTemplateEngine() TemplateEngine {
	return &templateEngineImpl{fs: builtinTemplates, funcs: registerTemplateFuncs()}
}

func (e *templateEngineImpl) Render(ctx context.Context, name string, data interface{}) ([]byte, error) {
	if name == "" || data == nil {
		return nil, errors.New(errors.ErrCodeValidation, "template name and data are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpl, err := e.load(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportFailed, "template execution failed").WithDetail(name)
	}
	return buf.Bytes(), nil
}

func (e *templateEngineImpl) load(name string) (*template.Template, error) {
	if cached, ok := e.astCache.Load(name); ok {
		return cached.(*template.Template), nil
	}
	raw, err := e.fs.ReadFile("templates/" + name)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "report template %q not found", name)
	}
	t, err := template.New(name).Funcs(e.funcs).Parse(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportFailed, "template parse failed").WithDetail(name)
	}
	actual, _ := e.astCache.LoadOrStore(name, t)
	return actual.(*template.Template), nil
}

func (e *templateEngineImpl) Templates() []string {
	entries, err := e.fs.ReadDir("templates")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, ent := range entries {
		out = append(out, ent.Name())
	}
	return out
}

func registerTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("January 02, 2006 at 03:04 PM")
		},
		"join": strings.Join,
		"inc":  func(i int) int { return i + 1 },
		"yesNo": func(b *bool) string {
			if b != nil && *b {
				return "Yes"
			}
			return "No"
		},
		"first": first,
	}
}

// first returns at most n leading elements of a slice.
func first(n int, v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Len() <= n {
		return v
	}
	return rv.Slice(0, n).Interface()
}
