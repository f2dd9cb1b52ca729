package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultDirName is the fallback output directory, relative to the process
// working directory, used when no configuration source provides one.
const DefaultDirName = "qr_codes"

// Normalize expands a leading home-directory marker and resolves the path to
// an absolute, cleaned form. It never touches the filesystem beyond the home
// lookup.
func Normalize(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot expand home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else {
			p = filepath.Join(home, p[2:])
		}
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// Canonicalize resolves symlinks when the target exists, falling back to the
// lexical form otherwise. Both whitelist entries and candidates go through
// this so a symlink cannot alias an allowed root onto a protected directory.
func Canonicalize(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// Within reports whether path equals root or is nested under it. Both
// arguments must already be normalized.
func Within(path, root string) bool {
	if root == "" {
		return false
	}
	path = Canonicalize(path)
	root = Canonicalize(root)
	if caseInsensitiveHost() {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// Default returns the absolute default output directory.
func Default() string {
	wd, err := os.Getwd()
	if err != nil {
		return string(filepath.Separator) + DefaultDirName
	}
	return filepath.Join(wd, DefaultDirName)
}

func caseInsensitiveHost() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
