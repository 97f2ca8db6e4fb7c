package io

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

func resolvedSpec(t *testing.T) *spec.VideoSpec {
	t.Helper()
	v, err := spec.FromMap(map[string]any{
		"settings": map[string]any{"width": 320, "height": 180, "fps": 30, "output_file": "out.mp4"},
		"scenes": []any{
			map[string]any{"type": "color", "id": "a", "color": "red", "duration": 4,
				"transition": map[string]any{"type": "fade", "duration": 1}},
			map[string]any{"type": "color", "id": "b", "color": "blue", "duration": 6},
		},
	}, t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := timeline.NewResolver(nil).ResolveSpec(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestRoundTrip(t *testing.T) {
	v := resolvedSpec(t)
	doc, err := NewDocument(v, v.Scenes)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Total != 9 {
		t.Errorf("Total = %v, want 9", doc.Total)
	}

	path := filepath.Join(t.TempDir(), "timeline.json")
	if err := ExportJSON(doc, path); err != nil {
		t.Fatal(err)
	}
	got, err := ImportJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Scenes) != 2 || got.Scenes[1].Start != 3 || got.Scenes[0].Transition != 1 {
		t.Errorf("ImportJSON() scenes = %+v", got.Scenes)
	}
	if got.Settings != doc.Settings {
		t.Errorf("Settings = %+v, want %+v", got.Settings, doc.Settings)
	}
}

func TestWriteJSONFields(t *testing.T) {
	v := resolvedSpec(t)
	doc, err := NewDocument(v, v.Scenes[1:])
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteJSON(doc, &buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"composite_mode": "layer"`, `"kind": "color"`, `"total": 6`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("WriteJSON() missing %s:\n%s", want, buf.String())
		}
	}
}

func TestReadJSONInvalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{`},
		{"zero width", `{"settings": {"width": 0, "height": 1, "fps": 1}}`},
		{"missing id", `{"settings": {"width": 1, "height": 1, "fps": 1}, "scenes": [{"duration": 1}]}`},
		{"negative start", `{"settings": {"width": 1, "height": 1, "fps": 1}, "scenes": [{"id": "a", "start": -1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadJSON(strings.NewReader(tt.json)); err == nil {
				t.Error("ReadJSON() should fail")
			}
		})
	}
}
