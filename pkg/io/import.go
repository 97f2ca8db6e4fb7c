package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadJSON decodes a timeline document from r.
//
// ReadJSON returns an error if the JSON is malformed, if width, height or fps
// is not positive, or if a scene has no id or a negative start or duration.
// ReadJSON does not close r.
func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	s := doc.Settings
	if s.Width <= 0 || s.Height <= 0 || s.FPS <= 0 {
		return nil, fmt.Errorf("settings: width, height and fps must be positive, got %dx%d@%d", s.Width, s.Height, s.FPS)
	}
	for i, e := range doc.Scenes {
		switch {
		case e.ID == "":
			return nil, fmt.Errorf("scenes[%d]: missing id", i)
		case e.Start < 0 || e.Duration < 0:
			return nil, fmt.Errorf("scene %s: negative start or duration", e.ID)
		}
	}
	return &doc, nil
}

// ImportJSON reads the timeline document at path.
func ImportJSON(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
