// Package recordstore keeps one JSON document per key in a directory and
// upgrades older documents through an ordered list of migrations on load.
package recordstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by Load when no document exists for the key.
	ErrNotFound = errors.New("record not found")
	// ErrInvalid wraps every decode, migration and validation failure.
	ErrInvalid = errors.New("invalid record")
	// ErrInvalidKey is returned for keys that cannot be used as file names.
	ErrInvalidKey = errors.New("invalid record key")
)

// VersionField is the JSON key holding a document's schema version.
// Documents without it are treated as version 0.
const VersionField = "schema_version"

const fileExt = ".json"

// Validator is implemented by record types that check their own invariants
// after decoding.
type Validator interface {
	Validate() error
}

// Versioned is implemented by record types that carry their schema version.
// Save stamps the current version through it before writing.
type Versioned interface {
	SetSchemaVersion(v int)
}

// Migration upgrades a raw document from version From to From+1. Apply
// fills defaults for the keys introduced by that version and must leave
// keys that are already present alone.
type Migration struct {
	From  int
	Name  string
	Apply func(doc map[string]json.RawMessage) error
}

// Store persists values of type T under dir, one file per key.
type Store[T any] struct {
	dir        string
	migrations []Migration
}

// New creates the directory if needed and returns a store. Migrations must
// be given in order with From values 0, 1, 2, ...
func New[T any](dir string, migrations ...Migration) (*Store[T], error) {
	for i, m := range migrations {
		if m.From != i {
			return nil, fmt.Errorf("migration %q starts at version %d, want %d", m.Name, m.From, i)
		}
		if m.Apply == nil {
			return nil, fmt.Errorf("migration %q has no Apply func", m.Name)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating record directory: %w", err)
	}
	return &Store[T]{dir: dir, migrations: migrations}, nil
}

// Version is the schema version written by Save.
func (s *Store[T]) Version() int {
	return len(s.migrations)
}

// Dir returns the backing directory.
func (s *Store[T]) Dir() string {
	return s.dir
}

// Path returns the file path for key.
func (s *Store[T]) Path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key+fileExt), nil
}

// Exists reports whether a document file exists for key. It does not
// validate the contents.
func (s *Store[T]) Exists(key string) bool {
	p, err := s.Path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load reads, migrates, strictly decodes and validates the document for key.
// The file is never modified, even when it fails to decode.
func (s *Store[T]) Load(key string) (T, error) {
	var zero T

	p, err := s.Path(key)
	if err != nil {
		return zero, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("reading %s: %w", p, err)
	}

	v, err := s.Decode(data)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", p, err)
	}
	return v, nil
}

// Decode runs the migration chain over data and decodes the result.
func (s *Store[T]) Decode(data []byte) (T, error) {
	var zero T

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if raw == nil {
		return zero, fmt.Errorf("%w: document is null", ErrInvalid)
	}

	version := 0
	if rv, ok := raw[VersionField]; ok {
		if err := json.Unmarshal(rv, &version); err != nil {
			return zero, fmt.Errorf("%w: %s: %v", ErrInvalid, VersionField, err)
		}
	}
	if version < 0 || version > s.Version() {
		return zero, fmt.Errorf("%w: unsupported schema version %d (current %d)", ErrInvalid, version, s.Version())
	}

	for _, m := range s.migrations[version:] {
		if err := m.Apply(raw); err != nil {
			return zero, fmt.Errorf("%w: migration %q: %v", ErrInvalid, m.Name, err)
		}
	}
	raw[VersionField] = json.RawMessage(fmt.Sprintf("%d", s.Version()))

	upgraded, err := json.Marshal(raw)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var v T
	dec := json.NewDecoder(bytes.NewReader(upgraded))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return v, nil
}

// Save validates v and fully rewrites the document for key. The write goes
// through a temp file and a rename so readers never see a partial document.
func (s *Store[T]) Save(key string, v T) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}

	if ver, ok := any(&v).(Versioned); ok {
		ver.SetSchemaVersion(s.Version())
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", p, err)
	}
	return nil
}

// Keys lists the keys of all documents in the directory, sorted.
func (s *Store[T]) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// SetDefault stores value under key when the key is absent from doc.
// Migrations use it to fill newly introduced fields.
func SetDefault(doc map[string]json.RawMessage, key string, value any) error {
	if _, ok := doc[key]; ok {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding default for %s: %w", key, err)
	}
	doc[key] = b
	return nil
}
