package modules

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	modzip "golang.org/x/mod/zip"
)

type candidateKind int

const (
	kindDir candidateKind = iota
	kindAutoDir
	kindZip
)

type candidate struct {
	name    string
	origin  string
	kind    candidateKind
	version string
}

func (c candidate) materialize(res *Resolution) (Module, error) {
	m := Module{Name: c.name, Origin: c.origin, Dir: c.origin}
	switch c.kind {
	case kindDir:
		return m, nil

	case kindAutoDir:
		dst, err := res.target(c.name, "")
		if err != nil {
			return Module{}, err
		}
		if err := os.CopyFS(dst, os.DirFS(c.origin)); err != nil {
			return Module{}, fmt.Errorf("copying %s: %w", c.origin, err)
		}
		if err := writeGoMod(dst, c.name); err != nil {
			return Module{}, err
		}
		m.Dir = dst
		m.AutoNamed = true
		return m, nil

	default:
		dst, err := res.target(c.name, c.version)
		if err != nil {
			return Module{}, err
		}
		mv := module.Version{Path: c.name, Version: c.version}
		if err := modzip.Unzip(dst, mv, c.origin); err != nil {
			return Module{}, fmt.Errorf("extracting %s: %w", c.origin, err)
		}
		if _, err := os.Stat(filepath.Join(dst, "go.mod")); errors.Is(err, os.ErrNotExist) {
			if err := writeGoMod(dst, c.name); err != nil {
				return Module{}, err
			}
			m.AutoNamed = true
		}
		m.Dir = dst
		return m, nil
	}
}

// target returns an unused directory for name below the scratch dir.
func (r *Resolution) target(name, version string) (string, error) {
	base, err := r.scratch()
	if err != nil {
		return "", err
	}
	escaped, err := module.EscapePath(name)
	if err != nil {
		return "", err
	}
	if version != "" {
		escaped += "@" + version
	}
	return filepath.Join(base, filepath.FromSlash(escaped)), nil
}

func writeGoMod(dir, name string) error {
	f := new(modfile.File)
	if err := f.AddModuleStmt(name); err != nil {
		return err
	}
	data, err := f.Format()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "go.mod"), data, 0o644)
}

// modDirName returns the module path declared by dir/go.mod.
func modDirName(dir string) (string, bool, error) {
	p := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	name, err := parseModulePath(p, data)
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func parseModulePath(file string, data []byte) (string, error) {
	f, err := modfile.ParseLax(file, data, nil)
	if err != nil {
		return "", err
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", fmt.Errorf("%s: no module directive", file)
	}
	return f.Module.Mod.Path, nil
}

// zipModule reads the module path and version of a module zip. Files
// in a module zip live below "path@version/"; the name comes from
// the archived go.mod when present and from the layout otherwise.
func zipModule(p string) (name, version string, err error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return "", "", err
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return "", "", fmt.Errorf("%s: empty archive", p)
	}
	first := zr.File[0].Name
	at := strings.IndexByte(first, '@')
	if at <= 0 {
		return "", "", fmt.Errorf("%s: not a module zip", p)
	}
	prefixPath := first[:at]
	version, _, ok := strings.Cut(first[at+1:], "/")
	if !ok || version == "" {
		return "", "", fmt.Errorf("%s: not a module zip", p)
	}

	gomod := prefixPath + "@" + version + "/go.mod"
	for _, f := range zr.File {
		if f.Name != gomod {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", "", err
		}
		name, err := parseModulePath(p+"!"+gomod, data)
		if err != nil {
			return "", "", err
		}
		if name != prefixPath {
			return "", "", fmt.Errorf("%s: go.mod declares %s, archive holds %s", p, name, prefixPath)
		}
		return name, version, nil
	}
	return prefixPath, version, nil
}
