// Package templates locates template packages and expands them into raw
// scene data for template scenes.
//
// A template package is a directory holding a template.yaml file. The file is
// a Go text/template rendered with the scene's `with` parameters (plus the
// spec's font) and then parsed as YAML. Paths inside the expanded scenes are
// relative to the package directory.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/sceneweaver/pkg/errors"
)

// DefinitionFile is the file every template package must contain.
const DefinitionFile = "template.yaml"

// Resolver finds template packages by name in an ordered list of directories.
type Resolver struct {
	Paths []string
}

// NewResolver searches specDir/templates, then extra, then the user data dir.
func NewResolver(specDir string, extra ...string) *Resolver {
	var paths []string
	if specDir != "" {
		paths = append(paths, filepath.Join(specDir, "templates"))
	}
	paths = append(paths, extra...)
	if d := DataDir(); d != "" {
		paths = append(paths, d)
	}
	return &Resolver{Paths: paths}
}

// DataDir returns $XDG_DATA_HOME/sceneweaver/templates, falling back to
// ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "sceneweaver", "templates")
}

// Resolve returns the directory of the named package. It fails with
// TEMPLATE_NOT_FOUND when no search path holds a definition file for name.
func (r *Resolver) Resolve(name string) (string, error) {
	if err := errors.ValidateTemplateName(name); err != nil {
		return "", err
	}
	for _, p := range r.Paths {
		dir := filepath.Join(p, name)
		if info, err := os.Stat(filepath.Join(dir, DefinitionFile)); err == nil && !info.IsDir() {
			return dir, nil
		}
	}
	return "", errors.New(errors.ErrCodeTemplateNotFound,
		"template %q not found in %s", name, strings.Join(r.Paths, ", "))
}

// Engine renders template definitions. It implements spec.Expander.
type Engine struct {
	Resolver *Resolver
	Logger   *log.Logger
}

// NewEngine returns an Engine resolving packages with r.
func NewEngine(r *Resolver) *Engine {
	return &Engine{Resolver: r, Logger: log.Default()}
}

// Expand resolves name, renders its definition with params and parses the
// result as YAML.
func (e *Engine) Expand(name string, params map[string]any) (any, string, error) {
	dir, err := e.Resolver.Resolve(name)
	if err != nil {
		return nil, "", err
	}
	src, err := os.ReadFile(filepath.Join(dir, DefinitionFile))
	if err != nil {
		return nil, "", fmt.Errorf("read template %s: %w", name, err)
	}
	out, err := Render(name, string(src), params)
	if err != nil {
		return nil, "", err
	}
	var raw any
	if err := yaml.Unmarshal(out, &raw); err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeValidation, err, "template %q produced invalid YAML", name)
	}
	if e.Logger != nil {
		e.Logger.Debug("expanded template", "name", name, "dir", dir)
	}
	return raw, dir, nil
}

// Render executes src as a text/template with params as its data. Missing
// keys render as empty values so optional parameters can use `default`.
func Render(name, src string, params map[string]any) ([]byte, error) {
	tmpl, err := Parse(name, src)
	if err != nil {
		return nil, err
	}
	return Execute(tmpl, params)
}

// Parse compiles src with [Funcs] for repeated execution.
func Parse(name, src string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(Funcs()).Parse(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeValidation, err, "parse template %q", name)
	}
	return tmpl, nil
}

// Execute runs a template compiled by [Parse].
func Execute(tmpl *template.Template, params map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return nil, errors.Wrap(errors.ErrCodeValidation, err, "render template %q", tmpl.Name())
	}
	return buf.Bytes(), nil
}

// Funcs are the helpers available inside template definitions.
func Funcs() template.FuncMap {
	return template.FuncMap{
		// default returns def when v is missing or empty: {{ default "Title" .title }}
		"default": func(def, v any) any {
			if empty(v) {
				return def
			}
			return v
		},
		// quote emits a YAML-safe double-quoted string.
		"quote": func(v any) string {
			if v == nil {
				return `""`
			}
			return fmt.Sprintf("%q", fmt.Sprint(v))
		},
		"upper": func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
		"lower": func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
	}
}

func empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
