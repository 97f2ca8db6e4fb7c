package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeValidation, "scene %q: missing %s", "intro", "image")

	if err.Code != ErrCodeValidation {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeValidation)
	}

	if err.Message != `scene "intro": missing image` {
		t.Errorf("Message = %v, want %v", err.Message, `scene "intro": missing image`)
	}

	expected := `VALIDATION: scene "intro": missing image`
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("no such file or directory")
	err := Wrap(ErrCodeNotFound, cause, "image missing")

	if err.Code != ErrCodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNotFound)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeValidation, "test"),
			code:     ErrCodeValidation,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeValidation, "test"),
			code:     ErrCodeResolution,
			expected: false,
		},
		{
			name:     "wrapped error reports outer code",
			err:      Wrap(ErrCodeRender, New(ErrCodeNotFound, "inner"), "outer"),
			code:     ErrCodeRender,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeValidation,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeValidation,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeTemplateNotFound, "test"), ErrCodeTemplateNotFound},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Error type", New(ErrCodeValidation, "friendly message"), "friendly message"},
		{"plain error", errors.New("plain error"), "plain error"},
		{"wrapped chain", Wrap(ErrCodeRender, New(ErrCodeNotFound, "image.png"), "scene intro"), "scene intro: image.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsUserError(t *testing.T) {
	if !IsUserError(New(ErrCodeDuplicateID, "dup")) {
		t.Error("duplicate id should be a user error")
	}
	if !IsUserError(Wrap(ErrCodeResolution, nil, "no duration")) {
		t.Error("resolution failure should be a user error")
	}
	if IsUserError(New(ErrCodeInternal, "boom")) {
		t.Error("internal error should not be a user error")
	}
	if IsUserError(errors.New("plain")) {
		t.Error("plain error should not be a user error")
	}
}
