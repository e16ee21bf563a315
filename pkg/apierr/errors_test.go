package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message and cause",
			err:      New(TagConnection, "post findItemsAdvanced", errors.New("connection refused")),
			expected: "ConnectionError: post findItemsAdvanced: connection refused",
		},
		{
			name:     "message only",
			err:      New(TagAPI, "Invalid application id", nil),
			expected: "APIError: Invalid application id",
		},
		{
			name:     "cause only",
			err:      New(TagInput, "", errors.New("record is string")),
			expected: "InputError: record is string",
		},
		{
			name:     "bare tag",
			err:      ErrNoResults,
			expected: "NoResultsError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("page 3: %w", New(TagAPI, "rejected", nil))

	if !errors.Is(err, ErrAPI) {
		t.Error("wrapped APIError should match ErrAPI")
	}
	if errors.Is(err, ErrConnection) {
		t.Error("APIError should not match ErrConnection")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := New(TagConnection, "", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestTagOf(t *testing.T) {
	if got := TagOf(fmt.Errorf("wrap: %w", ErrNoResults)); got != TagNoResults {
		t.Errorf("TagOf() = %q, want %q", got, TagNoResults)
	}
	if got := TagOf(errors.New("plain")); got != "" {
		t.Errorf("TagOf(plain) = %q, want empty", got)
	}
	if got := TagOf(nil); got != "" {
		t.Errorf("TagOf(nil) = %q, want empty", got)
	}
}
