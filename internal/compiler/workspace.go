package compiler

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"

	"github.com/unbound-force/gencheck/internal/artifact"
)

// writeWorkspace writes go.mod and the task sources below dir.
func writeWorkspace(dir string, opts Options, sources []artifact.Source, mods map[string]string) error {
	data, err := goMod(opts, mods)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), data, 0o644); err != nil {
		return fmt.Errorf("writing go.mod: %w", err)
	}

	for _, src := range sources {
		name := path.Clean(src.Name)
		if name != src.Name || path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return fmt.Errorf("source %q: name must be a clean relative path", src.Name)
		}
		if name == "go.mod" || name == "go.work" {
			return fmt.Errorf("source %q: reserved file name", src.Name)
		}
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("writing source %s: %w", src.Name, err)
		}
		if err := os.WriteFile(p, src.Content, 0o644); err != nil {
			return fmt.Errorf("writing source %s: %w", src.Name, err)
		}
	}
	return nil
}

// goMod renders the go.mod of the module under compilation. Every
// resolved module is required at its zero pseudo-version and
// replaced with its origin.
func goMod(opts Options, mods map[string]string) ([]byte, error) {
	f := new(modfile.File)
	if err := f.AddModuleStmt(opts.ModulePath); err != nil {
		return nil, fmt.Errorf("module %q: %w", opts.ModulePath, err)
	}
	if err := f.AddGoStmt(opts.GoVersion); err != nil {
		return nil, fmt.Errorf("go version %q: %w", opts.GoVersion, err)
	}

	names := make([]string, 0, len(mods))
	for name := range mods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_, pathMajor, ok := module.SplitPathVersion(name)
		if !ok {
			return nil, fmt.Errorf("module %q: invalid path", name)
		}
		version := module.ZeroPseudoVersion(module.PathMajorPrefix(pathMajor))
		if err := f.AddRequire(name, version); err != nil {
			return nil, fmt.Errorf("requiring %s: %w", name, err)
		}
		if err := f.AddReplace(name, "", mods[name], ""); err != nil {
			return nil, fmt.Errorf("replacing %s: %w", name, err)
		}
	}
	f.Cleanup()

	data, err := f.Format()
	if err != nil {
		return nil, fmt.Errorf("formatting go.mod: %w", err)
	}
	return data, nil
}
