package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")

	err := New(ManifestNotFound, "no manifest in /tmp/x", cause)

	if err.Code != ManifestNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ManifestNotFound)
	}
	if err.Message != "no manifest in /tmp/x" {
		t.Errorf("Message = %q, want %q", err.Message, "no manifest in /tmp/x")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
}

func TestWhyError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      ProjectUnreadable,
			message:   "cannot read project root",
			cause:     errors.New("permission denied"),
			wantParts: []string{"PROJECT_UNREADABLE", "cannot read project root", "permission denied"},
		},
		{
			name:      "without cause",
			code:      UnknownDependency,
			message:   "dependency 'foo' is not declared",
			cause:     nil,
			wantParts: []string{"UNKNOWN_DEPENDENCY", "dependency 'foo' is not declared"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()

			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestWhyError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(InternalError, "something went wrong", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	if Newf(InternalError, "x %d", 1).Unwrap() != nil {
		t.Error("Unwrap() on error without cause should return nil")
	}
}

func TestCodeOf(t *testing.T) {
	base := New(ManifestInvalid, "bad toml", nil)
	wrapped := fmt.Errorf("analyze: %w", base)

	if got := CodeOf(wrapped); got != ManifestInvalid {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, ManifestInvalid)
	}
	if !IsCode(wrapped, ManifestInvalid) {
		t.Error("IsCode should match through wrapping")
	}
	if IsCode(errors.New("plain"), ManifestInvalid) {
		t.Error("IsCode should not match a plain error")
	}
	if CodeOf(nil) != "" {
		t.Error("CodeOf(nil) should be empty")
	}
}

func TestWithDetails(t *testing.T) {
	err := Newf(UnknownDependency, "dependency %q is not declared", "tokio").
		WithDetails(map[string]string{"name": "tokio"})

	details, ok := err.Details.(map[string]string)
	if !ok || details["name"] != "tokio" {
		t.Errorf("Details = %v, want name=tokio", err.Details)
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	for _, code := range []ErrorCode{ManifestNotFound, ManifestInvalid, ConfigInvalid, CacheUnavailable} {
		if len(GetSuggestedFixes(code)) == 0 {
			t.Errorf("expected suggested fixes for %s", code)
		}
	}
	if GetSuggestedFixes(InternalError) != nil {
		t.Error("InternalError should carry no suggested fixes")
	}
}
