// Package artifact models the sources a compilation pass consumes and
// the generated sources and resources it produces, and provides the
// directory-backed store generated artifacts are written to.
package artifact

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// Location is an output location of a compilation pass.
type Location string

// Output locations.
const (
	// SourceOutput holds generated Go files. They take part in the
	// following processing rounds.
	SourceOutput Location = "SOURCE_OUTPUT"

	// ResourceOutput holds generated non-Go files.
	ResourceOutput Location = "RESOURCE_OUTPUT"
)

// Kind distinguishes Go sources from other files.
type Kind string

// Artifact kinds.
const (
	KindSource   Kind = "source"
	KindResource Kind = "resource"
)

// ID addresses one artifact in a store.
type ID struct {
	Location Location `json:"location"`

	// Package is the import path of the package the artifact belongs
	// to. Empty means the module root.
	Package string `json:"package"`

	// Name is the file name relative to the package directory. It
	// may contain slashes for resources.
	Name string `json:"name"`

	Kind Kind `json:"kind"`
}

// SourceID identifies a generated Go file.
func SourceID(pkg, file string) ID {
	return ID{Location: SourceOutput, Package: pkg, Name: file, Kind: KindSource}
}

// ResourceID identifies a generated resource.
func ResourceID(pkg, relName string) ID {
	return ID{Location: ResourceOutput, Package: pkg, Name: relName, Kind: KindResource}
}

// ParseQualified splits a fully-qualified artifact name such as
// "example.com/foo/foo_string.go" into package and file name.
func ParseQualified(loc Location, qualified string, kind Kind) (ID, error) {
	qualified = strings.Trim(qualified, "/")
	if qualified == "" {
		return ID{}, fmt.Errorf("empty artifact name")
	}
	pkg, name := path.Split(qualified)
	return ID{
		Location: loc,
		Package:  strings.TrimSuffix(pkg, "/"),
		Name:     name,
		Kind:     kind,
	}, nil
}

// Qualified returns the package-qualified name of the artifact.
func (id ID) Qualified() string {
	if id.Package == "" {
		return id.Name
	}
	return id.Package + "/" + id.Name
}

func (id ID) String() string {
	return fmt.Sprintf("%s %s", id.Location, id.Qualified())
}

// Validate checks that the name stays inside its package directory.
func (id ID) Validate() error {
	if id.Name == "" {
		return fmt.Errorf("artifact %s: empty name", id)
	}
	clean := path.Clean(id.Name)
	if clean != id.Name || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("artifact %s: name must be a clean relative path", id)
	}
	if id.Kind == KindSource && (strings.Contains(id.Name, "/") || !strings.HasSuffix(id.Name, ".go")) {
		return fmt.Errorf("artifact %s: source names must be plain .go file names", id)
	}
	return nil
}

// Source is an input file of a compilation pass, addressed by its
// module-relative path.
type Source struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// IsGo reports whether the source is a Go file.
func (s Source) IsGo() bool {
	return strings.HasSuffix(s.Name, ".go")
}

// Artifact is readable artifact content.
type Artifact interface {
	ID() ID
	Open() (io.ReadCloser, error)
}

// Bytes reads the whole content of a.
func Bytes(a Artifact) ([]byte, error) {
	rc, err := a.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", a.ID(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.ID(), err)
	}
	return data, nil
}

type static struct {
	id   ID
	data []byte
}

// Static returns an in-memory artifact.
func Static(id ID, data []byte) Artifact {
	return static{id: id, data: data}
}

func (s static) ID() ID { return s.id }

func (s static) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}
