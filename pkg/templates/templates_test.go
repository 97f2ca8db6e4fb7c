package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/sceneweaver/pkg/errors"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

const lowerThird = `- type: color
  id: bar
  color: {{ default "navy" .color }}
  duration: {{ default 3 .duration }}
- type: title_card
  id: caption
  title: {{ quote .title }}
  font: {{ .font }}
  duration: 2
`

func writePackage(t *testing.T, root, name, def string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefinitionFile), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestResolverSearchOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writePackage(t, second, "card", "[]")
	want := writePackage(t, first, "card", "[]")
	writePackage(t, second, "only_second", "[]")

	r := &Resolver{Paths: []string{first, second}}
	got, err := r.Resolve("card")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Resolve(card) = %q, want %q", got, want)
	}
	if _, err := r.Resolve("only_second"); err != nil {
		t.Errorf("Resolve(only_second) error = %v", err)
	}
}

func TestResolverNotFound(t *testing.T) {
	root := t.TempDir()
	// a directory without a definition file is not a package
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := &Resolver{Paths: []string{root}}
	for _, name := range []string{"empty", "absent"} {
		if _, err := r.Resolve(name); !errors.Is(err, errors.ErrCodeTemplateNotFound) {
			t.Errorf("Resolve(%q) error = %v, want TEMPLATE_NOT_FOUND", name, err)
		}
	}
	if _, err := r.Resolve("../escape"); !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("Resolve(../escape) should be rejected")
	}
}

func TestEngineExpand(t *testing.T) {
	root := t.TempDir()
	dir := writePackage(t, root, "lower_third", lowerThird)
	e := NewEngine(&Resolver{Paths: []string{root}})

	raw, gotDir, err := e.Expand("lower_third", map[string]any{"title": "Hello: world", "font": "Inter"})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if gotDir != dir {
		t.Errorf("dir = %q, want %q", gotDir, dir)
	}
	list, ok := raw.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("raw = %#v, want two scenes", raw)
	}
	bar := list[0].(map[string]any)
	if bar["color"] != "navy" || bar["duration"] != 3 {
		t.Errorf("defaults not applied: %v", bar)
	}
	caption := list[1].(map[string]any)
	if caption["title"] != "Hello: world" || caption["font"] != "Inter" {
		t.Errorf("params not substituted: %v", caption)
	}
}

func TestEngineAsExpander(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, "lower_third", lowerThird)
	var exp spec.Expander = NewEngine(&Resolver{Paths: []string{root}})

	raw := map[string]any{
		"settings": map[string]any{"width": 640, "height": 360, "fps": 24, "output_file": "o.mp4", "font": "Mono"},
		"scenes": []any{
			map[string]any{"type": "template", "id": "lt", "name": "lower_third", "with": map[string]any{"title": "Hi", "color": "teal"}},
		},
	}
	v, err := spec.FromMap(raw, t.TempDir(), exp)
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	children, err := v.Scenes[0].(*spec.TemplateScene).Children()
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}
	if tc := children[1].(*spec.TitleCardScene); tc.Font != "Mono" || tc.Title != "Hi" {
		t.Errorf("title card = %+v", tc)
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := Render("bad", "{{ .x ", nil); !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("Render(parse error) = %v, want VALIDATION", err)
	}
}

func TestReferences(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"params only", `<svg width="{{.width}}">{{.label}}</svg>`, false},
		{"field", `<svg x="{{.progress}}"/>`, true},
		{"condition", `{{if and (gt .progress 0.2) (lt .progress 0.8)}}<circle/>{{end}}`, true},
		{"else branch", `{{if .label}}a{{else}}{{.t}}{{end}}`, true},
		{"root variable", `{{range .items}}{{$.frame}}{{end}}`, true},
		{"index by name", `{{index . "t"}}`, true},
		{"whole data", `{{printf "%v" .}}`, true},
		{"defined template", `{{define "dot"}}{{.frame}}{{end}}<svg/>`, true},
		{"similar name", `{{.title}} {{.frames_total}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Parse("t.svg", tt.src)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := References(tmpl, "progress", "t", "frame"); got != tt.want {
				t.Errorf("References() = %v, want %v", got, tt.want)
			}
		})
	}
}
