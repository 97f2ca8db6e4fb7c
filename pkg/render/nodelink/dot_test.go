package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

func scenes(t *testing.T) []spec.Scene {
	t.Helper()
	v, err := spec.FromMap(map[string]any{
		"settings": map[string]any{"width": 320, "height": 180, "fps": 30, "output_file": "out.mp4"},
		"scenes": []any{
			map[string]any{"type": "color", "id": "intro", "color": "red", "duration": 2,
				"transition": map[string]any{"type": "fade", "duration": 0.5}},
			map[string]any{"type": "composite", "id": "stack", "scenes": []any{
				map[string]any{"type": "color", "id": "bg", "color": "blue", "duration": 3,
					"effects": []any{map[string]any{"type": "fade-in", "duration": 1}}},
				map[string]any{"type": "color", "id": "hole", "color": "white", "composite_mode": "exclude"},
			}},
		},
	}, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := timeline.NewResolver(nil).ResolveSpec(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	return v.Scenes
}

func TestToDOT(t *testing.T) {
	dot, err := ToDOT(scenes(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`label="intro\ncolor · 2s"`,
		`label="stack\ncomposite · 3s"`,
		`n1 -> n2 [style=bold, label="fade 0.5s"]`,
		`n2 -> n3 [color=grey]`,
		`style="rounded,filled,dotted"`,
		`{ rank=same; n1; n2 }`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %s\n%s", want, dot)
		}
	}
	// layered children are not chained
	if strings.Contains(dot, "n3 -> n4") {
		t.Error("layered siblings should not be linked in sequence")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot, err := ToDOT(scenes(t), Options{Detailed: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot, `effects: fade-in`) {
		t.Errorf("detailed labels should list effects:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(normalizeViewBox(in))
	if !strings.Contains(got, `viewBox="0 0 100.00 50.00" width="100" height="50"`) {
		t.Errorf("normalizeViewBox() = %s", got)
	}
	if plain := []byte("<svg/>"); string(normalizeViewBox(plain)) != "<svg/>" {
		t.Error("svg without viewBox should be unchanged")
	}
}
