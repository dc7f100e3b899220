package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrExists is returned when an artifact is created twice in a pass.
var ErrExists = errors.New("artifact already exists")

// ErrNotFound is returned when an artifact is not in the store.
var ErrNotFound = errors.New("artifact not found")

// Store is the directory-backed sink generated artifacts are written
// to. The compilation service owns it for the duration of a pass;
// afterwards it is read-only and stays valid until Close.
type Store struct {
	dir   string
	index map[ID]string
	order []ID
}

// NewStore creates a store in a fresh temporary directory.
func NewStore() (*Store, error) {
	dir, err := os.MkdirTemp("", "gencheck-out-*")
	if err != nil {
		return nil, fmt.Errorf("creating artifact store: %w", err)
	}
	return &Store{dir: dir, index: make(map[ID]string)}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(id ID) string {
	return filepath.Join(s.dir, string(id.Location), filepath.FromSlash(id.Package), filepath.FromSlash(id.Name))
}

// Create opens a new artifact for writing. Creating the same artifact
// twice fails with ErrExists.
func (s *Store) Create(id ID) (io.WriteCloser, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if _, ok := s.index[id]; ok {
		return nil, fmt.Errorf("%s: %w", id, ErrExists)
	}
	p := s.path(id)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", id, err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s: %w", id, ErrExists)
		}
		return nil, fmt.Errorf("creating %s: %w", id, err)
	}
	s.index[id] = p
	s.order = append(s.order, id)
	return f, nil
}

// Exists reports whether id was produced during the pass.
func (s *Store) Exists(id ID) bool {
	_, ok := s.index[id]
	return ok
}

// Get returns a readable handle to id.
func (s *Store) Get(id ID) (Artifact, bool) {
	p, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return fileArtifact{id: id, path: p}, true
}

// Open opens the content of id.
func (s *Store) Open(id ID) (io.ReadCloser, error) {
	a, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return a.Open()
}

// Path returns the file path backing id.
func (s *Store) Path(id ID) (string, bool) {
	p, ok := s.index[id]
	return p, ok
}

// List returns every artifact produced during the pass, sorted by
// location and qualified name.
func (s *Store) List() []ID {
	ids := make([]ID, len(s.order))
	copy(ids, s.order)
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Location != ids[j].Location {
			return ids[i].Location < ids[j].Location
		}
		return ids[i].Qualified() < ids[j].Qualified()
	})
	return ids
}

// Created returns the artifacts in creation order.
func (s *Store) Created() []ID {
	ids := make([]ID, len(s.order))
	copy(ids, s.order)
	return ids
}

// Close removes the store directory.
func (s *Store) Close() error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}

type fileArtifact struct {
	id   ID
	path string
}

func (f fileArtifact) ID() ID { return f.id }

func (f fileArtifact) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}
