// Package modules resolves module names declared by a compilation
// test to the module directories or archives they come from.
package modules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/module"

	"github.com/unbound-force/gencheck/internal/failure"
)

// SearchPathEnv lists the module search path used by Detect, in
// os.PathListSeparator-separated form.
const SearchPathEnv = "GENCHECK_MODULEPATH"

// Module is one resolved module.
type Module struct {
	Name string `json:"name"`

	// Origin is the directory or archive the module was found in.
	Origin string `json:"origin"`

	// Dir is a module directory with a go.mod, usable as a replace
	// target. It equals Origin for module directories.
	Dir string `json:"dir"`

	// AutoNamed is set when the name was derived from the origin
	// path because it carries no go.mod.
	AutoNamed bool `json:"auto_named,omitempty"`
}

// Support maps module names to their origins.
type Support interface {
	Resolve(names []string) (*Resolution, error)
}

// Resolution is the outcome of one Resolve call. It may own
// extracted module directories and must be closed.
type Resolution struct {
	Modules []Module

	tmp string
}

// Dirs maps module names to their directories.
func (r *Resolution) Dirs() map[string]string {
	out := make(map[string]string, len(r.Modules))
	for _, m := range r.Modules {
		out[m.Name] = m.Dir
	}
	return out
}

// Origins maps module names to their origins.
func (r *Resolution) Origins() map[string]string {
	out := make(map[string]string, len(r.Modules))
	for _, m := range r.Modules {
		out[m.Name] = m.Origin
	}
	return out
}

// Close removes extracted module directories.
func (r *Resolution) Close() error {
	if r == nil || r.tmp == "" {
		return nil
	}
	err := os.RemoveAll(r.tmp)
	r.tmp = ""
	return err
}

func (r *Resolution) scratch() (string, error) {
	if r.tmp == "" {
		dir, err := os.MkdirTemp("", "gencheck-mod-*")
		if err != nil {
			return "", err
		}
		r.tmp = dir
	}
	return r.tmp, nil
}

var (
	detectOnce sync.Once
	detected   Support
)

// Detect negotiates module support once per process. It returns nil
// when Go modules are disabled with GO111MODULE=off; callers treat
// that as a no-op.
func Detect() Support {
	detectOnce.Do(func() {
		detected = detect(os.Getenv)
	})
	return detected
}

func detect(getenv func(string) string) Support {
	if getenv("GO111MODULE") == "off" {
		return nil
	}
	return NewResolver(filepath.SplitList(getenv(SearchPathEnv))...)
}

// Resolver resolves names against a search path. Each entry is a
// module directory, a module zip archive, or a directory holding
// such entries.
type Resolver struct {
	path []string
}

// NewResolver returns a Resolver over searchPath.
func NewResolver(searchPath ...string) *Resolver {
	var path []string
	for _, p := range searchPath {
		if p != "" {
			path = append(path, p)
		}
	}
	return &Resolver{path: path}
}

// SearchPath returns the entries the resolver scans.
func (r *Resolver) SearchPath() []string {
	return append([]string(nil), r.path...)
}

// Resolve finds every name on the search path. Invalid or unknown
// names are configuration errors; unreadable candidates are
// technical errors.
func (r *Resolver) Resolve(names []string) (*Resolution, error) {
	for _, name := range names {
		if err := module.CheckImportPath(name); err != nil {
			return nil, &failure.ConfigError{Message: fmt.Sprintf("module name %q", name), Cause: err}
		}
	}

	found, err := r.scan()
	if err != nil {
		return nil, err
	}

	res := &Resolution{}
	for _, name := range dedupe(names) {
		c, ok := found[name]
		if !ok {
			res.Close()
			return nil, failure.Configf("module %s not found on search path %s",
				name, strings.Join(r.path, string(os.PathListSeparator)))
		}
		m, err := c.materialize(res)
		if err != nil {
			res.Close()
			return nil, failure.Technical("resolving module "+name, err)
		}
		res.Modules = append(res.Modules, m)
	}
	return res, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// scan indexes the candidates of the search path by name. The first
// candidate of a name wins.
func (r *Resolver) scan() (map[string]candidate, error) {
	found := make(map[string]candidate)
	add := func(c candidate) {
		if _, dup := found[c.name]; !dup {
			found[c.name] = c
		}
	}

	for _, entry := range r.path {
		info, err := os.Stat(entry)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, failure.Technical("scanning "+entry, err)
		}

		c, ok, err := inspect(entry, info, false)
		if err != nil {
			return nil, failure.Technical("reading "+entry, err)
		}
		if ok {
			add(c)
			continue
		}
		if !info.IsDir() {
			continue
		}

		children, err := os.ReadDir(entry)
		if err != nil {
			return nil, failure.Technical("scanning "+entry, err)
		}
		for _, child := range children {
			p := filepath.Join(entry, child.Name())
			ci, err := child.Info()
			if err != nil {
				return nil, failure.Technical("scanning "+p, err)
			}
			c, ok, err := inspect(p, ci, true)
			if err != nil {
				return nil, failure.Technical("reading "+p, err)
			}
			if ok {
				add(c)
			}
		}
	}
	return found, nil
}

// inspect classifies one path. Directories without a go.mod are only
// candidates when nested, and are then auto-named.
func inspect(p string, info os.FileInfo, nested bool) (candidate, bool, error) {
	switch {
	case info.IsDir():
		name, ok, err := modDirName(p)
		if err != nil || ok {
			return candidate{name: name, origin: p, kind: kindDir}, ok, err
		}
		if !nested {
			return candidate{}, false, nil
		}
		name = AutoName(p)
		if module.CheckImportPath(name) != nil {
			return candidate{}, false, nil
		}
		return candidate{name: name, origin: p, kind: kindAutoDir}, true, nil

	case strings.HasSuffix(info.Name(), ".zip"):
		name, version, err := zipModule(p)
		if err != nil {
			return candidate{}, false, err
		}
		return candidate{name: name, version: version, origin: p, kind: kindZip}, true, nil
	}
	return candidate{}, false, nil
}

// AutoName derives a module name for a directory without a go.mod:
// the slash path below the innermost "src" element, as in a GOPATH
// workspace, or else the base name. Two such directories yielding
// the same name cannot be told apart; the first on the search path
// wins.
func AutoName(dir string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(dir)), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "src" {
			return strings.Join(parts[i+1:], "/")
		}
	}
	return parts[len(parts)-1]
}
