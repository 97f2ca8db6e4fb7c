package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/sceneweaver/pkg/spec"
	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

// Document is a resolved timeline.
type Document struct {
	Spec     string           `json:"spec,omitempty"`
	Settings Settings         `json:"settings"`
	Total    float64          `json:"total"`
	Scenes   []timeline.Entry `json:"scenes"`
}

// Settings are the video-wide parameters of a Document.
type Settings struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FPS        int    `json:"fps"`
	OutputFile string `json:"output_file,omitempty"`
}

// NewDocument lays out scenes, which must belong to v and be resolved.
func NewDocument(v *spec.VideoSpec, scenes []spec.Scene) (*Document, error) {
	entries, err := timeline.Layout(scenes)
	if err != nil {
		return nil, err
	}
	total, err := timeline.Total(scenes)
	if err != nil {
		return nil, err
	}
	return &Document{
		Spec: v.Path,
		Settings: Settings{
			Width:      v.Settings.Width,
			Height:     v.Settings.Height,
			FPS:        v.Settings.FPS,
			OutputFile: v.Settings.OutputFile,
		},
		Total:  total,
		Scenes: entries,
	}, nil
}

// WriteJSON encodes doc as indented JSON and writes it to w.
// The output can be re-imported with [ReadJSON].
func WriteJSON(doc *Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes doc to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(doc *Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(doc, f)
}
