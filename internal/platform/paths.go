package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// StoreDirName is the store directory created at the repository root.
const StoreDirName = ".kanfile"

// Paths represents paths data used by this package.
type Paths struct {
	ConfigPath string
	DataDir    string
	RepoRoot   string
	StoreRoot  string
}

// Options defines optional settings for configuration.
type Options struct {
	AppName string
	DevMode bool
	// WorkDir is where repository discovery starts. Empty means the process working directory.
	WorkDir string
}

// DefaultPaths returns default paths.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: "kanfile"})
}

// DefaultPathsWithOptions returns default paths with options.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = "kanfile"
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	if runtime.GOOS == "windows" {
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	workDir := strings.TrimSpace(opts.WorkDir)
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return Paths{}, fmt.Errorf("resolve working dir: %w", err)
		}
	}

	env := map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"XDG_DATA_HOME":   os.Getenv("XDG_DATA_HOME"),
		"APPDATA":         os.Getenv("APPDATA"),
		"LOCALAPPDATA":    os.Getenv("LOCALAPPDATA"),
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName, RepoRootFrom(workDir))
}

// PathsFor handles paths for.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName, repoRoot string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}
	repoRoot = strings.TrimSpace(repoRoot)
	if repoRoot == "" {
		return Paths{}, fmt.Errorf("empty repository root")
	}

	configBase := userConfigDir
	dataBase := userDataDir

	switch goos {
	case "linux":
		if v := env["XDG_CONFIG_HOME"]; v != "" {
			configBase = v
		}
		if v := env["XDG_DATA_HOME"]; v != "" {
			dataBase = v
		}
	case "windows":
		if v := env["APPDATA"]; v != "" {
			configBase = v
		}
		if v := env["LOCALAPPDATA"]; v != "" {
			dataBase = v
		}
	case "darwin":
		// Keep os.UserConfigDir/UserCacheDir defaults for macOS.
	default:
		// Fallback for other platforms.
	}

	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    filepath.Join(dataBase, appName),
		RepoRoot:   filepath.Clean(repoRoot),
		StoreRoot:  filepath.Join(filepath.Clean(repoRoot), StoreDirName),
	}, nil
}

// RepoRootFrom resolves the nearest ancestor carrying a repository marker.
// Without one, start itself is the root.
func RepoRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	if abs, err := filepath.Abs(start); err == nil {
		start = abs
	}
	dir := start
	for {
		if hasRepoMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// hasRepoMarker reports whether a directory looks like a repository root.
func hasRepoMarker(dir string) bool {
	for _, marker := range []string{".git", "go.mod", StoreDirName} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
