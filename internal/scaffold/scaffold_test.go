package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unbound-force/gencheck/internal/config"
	"github.com/unbound-force/gencheck/internal/scenario"
)

var expectedFiles = []string{
	".gencheck.yaml",
	"testdata/scenarios/purity.txtar",
	"testdata/scenarios/register.txtar",
	"testdata/scenarios/stringer.txtar",
}

func withGoMod(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module test\n"), 0o644); err != nil {
		t.Fatalf("creating go.mod: %v", err)
	}
	return dir
}

func TestRun_CreatesFiles(t *testing.T) {
	dir := withGoMod(t)

	var buf bytes.Buffer
	result, err := Run(Options{
		TargetDir: dir,
		Version:   "1.2.3",
		Stdout:    &buf,
	})
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(result.Created) != len(expectedFiles) {
		t.Errorf("expected %d created files, got %d: %v", len(expectedFiles), len(result.Created), result.Created)
	}
	if len(result.Skipped) != 0 || len(result.Overwritten) != 0 {
		t.Errorf("expected nothing skipped or overwritten, got %v / %v", result.Skipped, result.Overwritten)
	}

	for _, rel := range expectedFiles {
		if _, err := os.Stat(filepath.Join(dir, rel)); os.IsNotExist(err) {
			t.Errorf("expected file %s to exist", rel)
		}
	}

	output := buf.String()
	if !strings.Contains(output, "created:") {
		t.Errorf("summary should mention 'created:', got:\n%s", output)
	}
	if !strings.Contains(output, "Run gencheck run") {
		t.Errorf("summary should contain hint, got:\n%s", output)
	}
}

func TestRun_SkipsExisting(t *testing.T) {
	dir := withGoMod(t)
	cfgPath := filepath.Join(dir, ".gencheck.yaml")
	if err := os.WriteFile(cfgPath, []byte("jobs: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	result, err := Run(Options{TargetDir: dir, Stdout: &buf})
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != ".gencheck.yaml" {
		t.Errorf("expected .gencheck.yaml skipped, got %v", result.Skipped)
	}
	got, _ := os.ReadFile(cfgPath)
	if string(got) != "jobs: 1\n" {
		t.Errorf("existing file was modified: %q", got)
	}
	if !strings.Contains(buf.String(), "1 file(s) skipped") {
		t.Errorf("summary should report skipped files, got:\n%s", buf.String())
	}
}

func TestRun_ForceOverwrites(t *testing.T) {
	dir := withGoMod(t)
	if _, err := Run(Options{TargetDir: dir, Stdout: &bytes.Buffer{}}); err != nil {
		t.Fatal(err)
	}

	result, err := Run(Options{TargetDir: dir, Force: true, Stdout: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(result.Overwritten) != len(expectedFiles) {
		t.Errorf("expected %d overwritten files, got %v", len(expectedFiles), result.Overwritten)
	}
}

func TestRun_VersionMarker(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"1.2.3", "# scaffolded by gencheck 1.2.3"},
		{"", "# scaffolded by gencheck dev"},
	}
	for _, tt := range tests {
		dir := withGoMod(t)
		if _, err := Run(Options{TargetDir: dir, Version: tt.version, Stdout: &bytes.Buffer{}}); err != nil {
			t.Fatal(err)
		}
		for _, rel := range expectedFiles {
			data, err := os.ReadFile(filepath.Join(dir, rel))
			if err != nil {
				t.Fatal(err)
			}
			firstLine, _, _ := strings.Cut(string(data), "\n")
			if firstLine != tt.want {
				t.Errorf("%s: expected first line %q, got %q", rel, tt.want, firstLine)
			}
		}
	}
}

func TestRun_NoGoMod_PrintsWarning(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	result, err := Run(Options{TargetDir: dir, Version: "1.0.0", Stdout: &buf})
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if len(result.Created) != len(expectedFiles) {
		t.Errorf("expected %d created files, got %d", len(expectedFiles), len(result.Created))
	}
	if !strings.Contains(buf.String(), "Warning: no go.mod found") {
		t.Errorf("expected go.mod warning, got:\n%s", buf.String())
	}
}

// The scaffolded files must stay loadable: the marker line is a
// YAML comment and is skipped in scenario descriptions.
func TestRun_OutputLoads(t *testing.T) {
	dir := withGoMod(t)
	if _, err := Run(Options{TargetDir: dir, Version: "1.2.3", Stdout: &bytes.Buffer{}}); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(filepath.Join(dir, ".gencheck.yaml"))
	if err != nil {
		t.Fatalf("scaffolded config does not load: %v", err)
	}
	if len(cfg.Scenarios) != 1 || cfg.Scenarios[0] != ScenarioDir {
		t.Errorf("scenarios = %v, want [%s]", cfg.Scenarios, ScenarioDir)
	}

	paths, err := scenario.Discover(filepath.Join(dir, ScenarioDir))
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range paths {
		sc, err := scenario.Load(p)
		if err != nil {
			t.Errorf("scaffolded scenario %s does not load: %v", p, err)
			continue
		}
		if strings.Contains(sc.Description, "scaffolded") {
			t.Errorf("%s: marker leaked into description %q", p, sc.Description)
		}
	}
}

// TestEmbeddedScenariosMatchSource guards against drift between the
// embedded examples and the repository's own scenario suite.
func TestEmbeddedScenariosMatchSource(t *testing.T) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("finding project root: %v", err)
	}

	paths, err := AssetPaths()
	if err != nil {
		t.Fatalf("AssetPaths() returned error: %v", err)
	}

	for _, relPath := range paths {
		if !strings.HasPrefix(relPath, "scenarios/") {
			continue
		}
		embedded, err := AssetContent(relPath)
		if err != nil {
			t.Fatalf("reading embedded asset %s: %v", relPath, err)
		}

		sourcePath := filepath.Join(projectRoot, target(relPath))
		source, err := os.ReadFile(sourcePath)
		if err != nil {
			t.Fatalf("reading source file %s: %v", sourcePath, err)
		}

		if !bytes.Equal(embedded, source) {
			t.Errorf("drift detected: internal/scaffold/assets/%s differs from %s\n"+
				"Run: cp %s internal/scaffold/assets/%s",
				relPath, target(relPath), target(relPath), relPath)
		}
	}
}

func TestAssetPaths(t *testing.T) {
	paths, err := AssetPaths()
	if err != nil {
		t.Fatalf("AssetPaths() returned error: %v", err)
	}

	expected := map[string]bool{
		"gencheck.yaml":            true,
		"scenarios/purity.txtar":   true,
		"scenarios/register.txtar": true,
		"scenarios/stringer.txtar": true,
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d assets, got %d: %v", len(expected), len(paths), paths)
	}
	for _, p := range paths {
		if !expected[p] {
			t.Errorf("unexpected asset path: %s", p)
		}
	}
}

// findProjectRoot walks up the directory tree from the current
// working directory to find the project root (directory containing
// go.mod).
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
