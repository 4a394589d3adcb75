package errors

import (
	"fmt"
	"testing"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.severity.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("document", "notes")

	want := "document 'notes' not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}

	var nf *NotFoundError
	if !As(err, &nf) {
		t.Error("As should match *NotFoundError")
	}
}

func TestNotFoundErrorWithCause(t *testing.T) {
	cause := New("disk gone")
	err := NewNotFoundError("document", "notes").WithCause(cause)

	if !Is(err, cause) {
		t.Error("Is should match the wrapped cause")
	}
	want := "document 'notes' not found: disk gone"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("document", "notes")

	want := "document 'notes' already exists"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var ae *AlreadyExistsError
	if !As(err, &ae) {
		t.Error("As should match *AlreadyExistsError")
	}
	if ae.ResourceID != "notes" {
		t.Errorf("ResourceID = %q, want %q", ae.ResourceID, "notes")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("name cannot be empty"),
			want: "validation error: name cannot be empty",
		},
		{
			name: "with field",
			err:  NewValidationError("cannot be empty").WithField("name"),
			want: "validation error [field=name]: cannot be empty",
		},
		{
			name: "with field and value",
			err:  NewValidationError("out of range").WithField("startLine").WithValue(-1),
			want: "validation error [field=startLine, value=-1]: out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := New("boom")
	wrapped := Wrap(base, "saving document")
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base via Is")
	}
	if wrapped.Error() != "saving document: boom" {
		t.Errorf("Error() = %q", wrapped.Error())
	}

	formatted := Wrapf(base, "saving document %q", "notes")
	if formatted.Error() != fmt.Sprintf("saving document %q: boom", "notes") {
		t.Errorf("Wrapf Error() = %q", formatted.Error())
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"persistence", ErrPersistence, false},
		{"wrapped persistence", Wrap(ErrPersistence, "saving"), false},
		{"capacity", ErrCapacityExceeded, true},
		{"duplicate", ErrDocumentExists, true},
		{"lock conflict", ErrLockConflict, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
