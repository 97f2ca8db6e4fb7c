package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateSceneID validates a scene id for use in cache keys, file names and
// the `spec.yaml:scene_id` targeting syntax.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters
//   - No path separators or colons
//   - Maximum length of 128 characters
func ValidateSceneID(id string) error {
	if id == "" {
		return New(ErrCodeValidation, "scene id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeValidation, "scene id %q too long (max 128 characters)", id)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeValidation, "scene id %q contains control characters", id)
		}
	}

	if strings.ContainsAny(id, `/\:`) {
		return New(ErrCodeValidation, "scene id %q cannot contain '/', '\\' or ':'", id)
	}

	return nil
}

// templateNameRegex matches template package names: one directory component.
var templateNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateTemplateName validates a template package name.
// It must be a plain directory name so it cannot escape the search paths.
func ValidateTemplateName(name string) error {
	if name == "" {
		return New(ErrCodeValidation, "template name cannot be empty")
	}
	if strings.Contains(name, "..") || !templateNameRegex.MatchString(name) {
		return New(ErrCodeValidation, "invalid template name: %q", name)
	}
	return nil
}

// ValidateOutputPath validates the output file of a spec.
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//   - Must carry a file extension so the encoder can pick a container
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "output path cannot be empty")
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output path contains invalid characters")
		}
	}

	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if !strings.Contains(strings.TrimPrefix(base, "."), ".") {
		return New(ErrCodeInvalidPath, "output path %q has no file extension", path)
	}

	return nil
}
