// Package assets turns file references from spec files into verified absolute
// paths and hashes their contents for cache fingerprints.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/matzehuels/sceneweaver/pkg/errors"
)

// Resolver resolves references relative to a base directory.
type Resolver struct {
	// Home replaces a leading "~". Defaults to the user's home directory.
	Home string
}

// Resolve returns the absolute path of ref, tried against each dir in order
// when ref is relative. It fails with NOT_FOUND if no candidate is a file.
func (r Resolver) Resolve(ref string, dirs ...string) (string, error) {
	if ref == "" {
		return "", errors.New(errors.ErrCodeValidation, "empty file reference")
	}
	expanded := r.expand(ref)
	var candidates []string
	if filepath.IsAbs(expanded) {
		candidates = []string{expanded}
	} else {
		for _, d := range dirs {
			candidates = append(candidates, filepath.Join(d, expanded))
		}
		if len(dirs) == 0 {
			candidates = []string{expanded}
		}
	}
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return abs, nil
		}
	}
	return "", errors.New(errors.ErrCodeNotFound, "file %q not found (tried %s)", ref, strings.Join(candidates, ", "))
}

// Glob returns the files matching pattern under dir, in natural order so
// frame_2.png sorts before frame_10.png.
func (r Resolver) Glob(pattern, dir string) ([]string, error) {
	expanded := r.expand(pattern)
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(dir, expanded)
	}
	matches, err := filepath.Glob(expanded)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeValidation, err, "invalid pattern %q", pattern)
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return NaturalLess(filepath.Base(files[i]), filepath.Base(files[j]))
	})
	return files, nil
}

func (r Resolver) expand(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home := r.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		home = h
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// NaturalLess compares strings treating digit runs as numbers, case-insensitively.
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			na, ra := leadingDigits(a)
			nb, rb := leadingDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			a, b = ra, rb
			continue
		}
		la, lb := unicode.ToLower(ca), unicode.ToLower(cb)
		if la != lb {
			return la < lb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}

// HashFile returns the hex SHA-256 of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFiles hashes every path, keyed by path.
func HashFiles(paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		if _, ok := out[p]; ok {
			continue
		}
		h, err := HashFile(p)
		if err != nil {
			return nil, err
		}
		out[p] = h
	}
	return out, nil
}
