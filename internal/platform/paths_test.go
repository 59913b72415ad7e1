package platform

import (
	"os"
	"path/filepath"
	"testing"
)

// TestPathsForLinuxWithXDG verifies behavior for the covered scenario.
func TestPathsForLinuxWithXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}, "/fallback/config", "/fallback/data", "kanfile", "/work/repo")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/xdg/config", "kanfile", "config.toml")
	wantData := filepath.Join("/xdg/data", "kanfile")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if p.DataDir != wantData {
		t.Fatalf("unexpected data dir %q", p.DataDir)
	}
	if p.StoreRoot != filepath.Join("/work/repo", ".kanfile") {
		t.Fatalf("unexpected store root %q", p.StoreRoot)
	}
}

// TestPathsForWindowsUsesAppData verifies behavior for the covered scenario.
func TestPathsForWindowsUsesAppData(t *testing.T) {
	p, err := PathsFor("windows", map[string]string{
		"APPDATA":      `C:\Users\me\AppData\Roaming`,
		"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
	}, `C:\fallback\config`, `C:\fallback\data`, "kanfile", `C:\src\repo`)
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join(`C:\Users\me\AppData\Roaming`, "kanfile", "config.toml")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
}

// TestPathsForEmptyInputsFail verifies behavior for the covered scenario.
func TestPathsForEmptyInputsFail(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "kanfile", "/repo"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("darwin", nil, "/cfg", "/data", " ", "/repo"); err == nil {
		t.Fatal("expected error for empty app name")
	}
	if _, err := PathsFor("darwin", nil, "/cfg", "/data", "kanfile", ""); err == nil {
		t.Fatal("expected error for empty repository root")
	}
}

// TestPathsForDarwinFallback verifies behavior for the covered scenario.
func TestPathsForDarwinFallback(t *testing.T) {
	p, err := PathsFor("darwin", map[string]string{
		"XDG_CONFIG_HOME": "/ignored",
	}, "/Users/me/Library/Application Support", "/Users/me/Library/Application Support", "kanfile", "/repo")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	wantConfig := filepath.Join("/Users/me/Library/Application Support", "kanfile", "config.toml")
	if p.ConfigPath != wantConfig {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
}

// TestRepoRootFromFindsMarker verifies behavior for the covered scenario.
func TestRepoRootFromFindsMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("Mkdir(.git) error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := RepoRootFrom(nested); got != root {
		t.Fatalf("RepoRootFrom() = %q, want %q", got, root)
	}
}

// TestDefaultPathsWithOptionsDevMode verifies behavior for the covered scenario.
func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	work := t.TempDir()
	if err := os.WriteFile(filepath.Join(work, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(go.mod) error = %v", err)
	}
	p, err := DefaultPathsWithOptions(Options{AppName: "kanfile", DevMode: true, WorkDir: work})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "kanfile-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if p.RepoRoot != work || p.StoreRoot != filepath.Join(work, StoreDirName) {
		t.Fatalf("unexpected repo paths %#v", p)
	}
}
