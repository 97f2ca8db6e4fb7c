// Package fonts resolves font names to faces for text drawn into frames.
//
// The Go font family from golang.org/x/image is embedded in the binary, so
// title cards and captions render the same on every machine. Any other name
// is read as a path to a TrueType or OpenType file.
package fonts

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Default is the font used when a spec names none.
const Default = "go"

var embedded = map[string][]byte{
	"go":      goregular.TTF,
	"go-bold": gobold.TTF,
	"go-mono": gomono.TTF,
}

// Names lists the embedded font names.
func Names() []string {
	return []string{"go", "go-bold", "go-mono"}
}

// Parsed fonts are shared; faces are not, since a face is not safe for
// concurrent use.
var (
	mu     sync.Mutex
	parsed = map[string]*opentype.Font{}
)

// Load parses the named font, or the font file at name.
func Load(name string) (*opentype.Font, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		key = Default
	}
	mu.Lock()
	defer mu.Unlock()
	if f, ok := parsed[key]; ok {
		return f, nil
	}

	data, ok := embedded[strings.ToLower(key)]
	if !ok {
		var err error
		if data, err = os.ReadFile(key); err != nil {
			return nil, fmt.Errorf("font %q: not embedded (%s) and not readable: %w",
				key, strings.Join(Names(), ", "), err)
		}
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("font %q: %w", key, err)
	}
	parsed[key] = f
	return f, nil
}

// Face returns a new face of the named font at size pixels. Callers must
// close it.
func Face(name string, size float64) (font.Face, error) {
	f, err := Load(name)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// Bold returns the bold variant for embedded fonts and name otherwise.
func Bold(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "go", "go-bold":
		return "go-bold"
	}
	return name
}
