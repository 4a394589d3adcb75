package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coedit/coedit/internal/errors"
	"github.com/coedit/coedit/internal/logging"
)

// docExtension is appended to the document name to form its file name.
const docExtension = ".txt"

// Store is a file-backed document store. One document, one file.
type Store struct {
	root   string
	logger *logging.Logger
}

// New creates a Store rooted at dir. The directory is created if it does
// not exist.
func New(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "creating document directory: "+err.Error())
	}
	return &Store{root: dir, logger: logger.WithComponent("store")}, nil
}

// ValidName reports whether name is acceptable as a document name.
// Names are limited to letters, digits, and a few separators so a name can
// never address a file outside the store root.
func ValidName(name string) error {
	if name == "" {
		return errors.NewValidationError("document name is empty").WithField("name")
	}
	if len(name) > 128 {
		return errors.NewValidationError("document name too long").
			WithField("name").WithValue(len(name))
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ' ':
		default:
			return errors.NewValidationError("document name contains invalid character").
				WithField("name").WithValue(string(r))
		}
	}
	if strings.Contains(name, "..") {
		return errors.NewValidationError("document name contains invalid sequence").
			WithField("name").WithValue(name)
	}
	return nil
}

// Save writes the document's full content to disk atomically.
func (s *Store) Save(name, content string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if err := atomicWriteFile(s.path(name), []byte(content), 0o644); err != nil {
		s.logger.Error("save failed", "doc", name, "error", err.Error())
		return errors.Wrapf(errors.ErrPersistence, "saving %s: %v", name, err)
	}
	s.logger.Debug("document saved", "doc", name, "bytes", len(content))
	return nil
}

// Load reads the document's content from disk.
func (s *Store) Load(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("document", name).WithCause(err)
		}
		return "", errors.Wrapf(errors.ErrPersistence, "loading %s: %v", name, err)
	}
	return string(data), nil
}

// Delete removes the document's file. Deleting a document that was never
// saved is not an error.
func (s *Store) Delete(name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrPersistence, "deleting %s: %v", name, err)
	}
	s.logger.Debug("document deleted", "doc", name)
	return nil
}

// Exists reports whether the document has a file on disk.
func (s *Store) Exists(name string) bool {
	if ValidName(name) != nil {
		return false
	}
	_, err := os.Stat(s.path(name))
	return err == nil
}

// List returns the names of all stored documents, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrPersistence, "listing documents: "+err.Error())
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), docExtension) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), docExtension))
	}
	sort.Strings(names)
	return names, nil
}

// path maps a document name to its file path. Callers validate the name
// first.
func (s *Store) path(name string) string {
	return filepath.Join(s.root, name+docExtension)
}

// atomicWriteFile writes data via a temp file in the same directory and
// renames it into place, so the target is never half-written.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	success = true
	return nil
}
