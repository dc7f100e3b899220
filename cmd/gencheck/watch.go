package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unbound-force/gencheck/internal/scenario"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 300 * time.Millisecond

// runWatch runs the scenarios once and again after every change to a
// scenario archive below p.paths, until ctx is canceled. Failing runs
// are reported but do not end the loop.
func runWatch(ctx context.Context, p runParams) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	dirs, err := watchDirs(p.paths)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}
	logger.Info("watching for changes", "dirs", len(dirs))

	rerun := func() {
		if err := runRun(ctx, p); err != nil && ctx.Err() == nil {
			fmt.Fprintln(p.stderr, err)
		}
	}
	rerun()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.Add(ev.Name); err != nil {
						logger.Warn("cannot watch new directory", "dir", ev.Name, "err", err)
					}
				}
			}
			logger.Debug("change detected", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		case <-timer.C:
			rerun()
		}
	}
}

// relevant reports whether ev may change the outcome of a run.
// Chmod-only events and files other than scenario archives are
// ignored; directory creation is kept so new directories get watched.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasSuffix(ev.Name, scenario.Ext) {
		return true
	}
	return ev.Has(fsnotify.Create) && filepath.Ext(ev.Name) == ""
}

// watchDirs returns the directories to watch for paths: the parent of
// each file and every directory below each directory argument.
func watchDirs(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var dirs []string
	add := func(d string) {
		d = filepath.Clean(d)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
		if !info.IsDir() {
			add(filepath.Dir(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
	}
	return dirs, nil
}
