package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/coedit/coedit/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	content := "first line\nsecond line\n"
	if err := s.Save("notes", content); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load("notes")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != content {
		t.Errorf("Load() = %q, want %q", got, content)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("doc", "old"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save("doc", "new"); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := s.Load("doc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "new" {
		t.Errorf("Load() = %q, want %q", got, "new")
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load("nothing")
	var notFound *errors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Load() error = %v, want NotFoundError", err)
	}
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("gone", "x"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete("gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if s.Exists("gone") {
		t.Error("Exists() = true after Delete")
	}

	// Deleting again is a no-op, not an error.
	if err := s.Delete("gone"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestStoreList(t *testing.T) {
	s := newTestStore(t)

	if names, err := s.List(); err != nil || len(names) != 0 {
		t.Fatalf("List() on empty store = %v, %v", names, err)
	}

	for _, name := range []string{"zebra", "alpha", "middle"} {
		if err := s.Save(name, "content"); err != nil {
			t.Fatalf("Save(%q) error = %v", name, err)
		}
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"alpha", "middle", "zebra"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}
}

func TestStoreListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Save("real", "x"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.log"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"real"}) {
		t.Errorf("List() = %v, want [real]", names)
	}
}

func TestValidName(t *testing.T) {
	valid := []string{
		"notes",
		"Meeting Notes 2026",
		"draft-v2_final.old",
		"a",
	}
	for _, name := range valid {
		if err := ValidName(name); err != nil {
			t.Errorf("ValidName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"../escape",
		"nested/path",
		"null\x00byte",
		"tab\tname",
		"back\\slash",
	}
	for _, name := range invalid {
		if err := ValidName(name); err == nil {
			t.Errorf("ValidName(%q) = nil, want error", name)
		}
	}
}

func TestStoreRejectsInvalidNames(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("../outside", "x"); err == nil {
		t.Error("Save() with traversal name succeeded")
	}
	if _, err := s.Load("a/b"); err == nil {
		t.Error("Load() with path separator succeeded")
	}
	if s.Exists("../outside") {
		t.Error("Exists() with traversal name = true")
	}
}
