package security

import (
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/andeslabs/cryptoqr/backend/internal/shared/paths"
)

// maxPathLength bounds the raw input before any scanning. Anything longer is
// hostile; no real output directory needs more.
const maxPathLength = 4096

// criticalDirectories are OS-sensitive locations an output directory may
// never equal, live inside, or contain.
var criticalDirectories = []string{
	"/etc",
	"/bin",
	"/sbin",
	"/boot",
	"/root",
	"/proc",
	"/sys",
	"/dev",
	"/usr/bin",
	"/usr/sbin",
	"/var/log",
	"/var/lib/mysql",
	"/var/lib/postgresql",
	"/var/lib/docker",
	"/var/www",
	"/System",
	"/Library",
	"/private/etc",
	`C:\Windows`,
	`C:\Program Files`,
	`C:\Program Files (x86)`,
}

// lookalikeRunes are Unicode characters visually close to '.', '/', or '\'
// used to smuggle traversal sequences past naive scanners.
var lookalikeRunes = map[rune]rune{
	'\u2024': '.',  // one dot leader
	'\uFF0E': '.',  // fullwidth full stop
	'\u2215': '/',  // division slash
	'\u2044': '/',  // fraction slash
	'\uFF0F': '/',  // fullwidth solidus
	'\uFF3C': '\\', // fullwidth reverse solidus
}

// scanDangerousCharacters inspects the raw string for null bytes, control
// characters, and shell/markup metacharacters. It returns the machine signal
// for the first class found, or "".
func scanDangerousCharacters(raw string) string {
	for i, r := range raw {
		if r == 0 {
			return "Null byte injection detected"
		}
		if r == '\n' || r == '\r' || unicode.IsControl(r) {
			return "Dangerous characters detected"
		}
		switch r {
		case '<', '>', '"', '|', '?', '*', ';', '&', '$', '`':
			return "Dangerous characters detected"
		case ':':
			// Allow only a Windows drive designator ("C:\" or "C:/").
			if i == 1 && isDriveDesignator(raw) {
				continue
			}
			return "Dangerous characters detected"
		}
	}
	return ""
}

func isDriveDesignator(raw string) bool {
	if len(raw) < 3 {
		return false
	}
	c := raw[0]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && raw[1] == ':' && (raw[2] == '\\' || raw[2] == '/')
}

// scanTraversal inspects the raw, pre-normalization string for traversal
// sequences, percent-encoded variants, and Unicode look-alikes. Running this
// before normalization means an attack that normalization would "fix" is
// still caught.
func scanTraversal(raw string) string {
	for _, r := range raw {
		if _, ok := lookalikeRunes[r]; ok {
			return "Path traversal detected"
		}
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%2e/") ||
		strings.Contains(lower, "%2f") || strings.Contains(lower, "%5c") {
		return "Path traversal detected"
	}

	// Any ".." segment, with either separator, including obfuscated runs
	// like "....//" which still collapse to a parent reference.
	for _, seg := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if seg == ".." || strings.Contains(seg, "..") && strings.Trim(seg, ".") == "" {
			return "Path traversal detected"
		}
	}
	if strings.Contains(raw, "../") || strings.Contains(raw, `..\`) {
		return "Path traversal detected"
	}

	return ""
}

// isCriticalPath reports whether the candidate equals, sits inside, or
// contains one of the critical system directories. Both the normalized form
// and the raw input are checked so Windows-style paths are caught on any
// host.
func isCriticalPath(raw, normalized string) bool {
	candidates := []string{
		toSlashLower(normalized, hostFolds()),
		toSlashLower(strings.TrimSpace(raw), true),
	}

	for _, crit := range criticalDirectories {
		windowsStyle := strings.Contains(crit, `:\`)
		c := toSlashLower(crit, windowsStyle || hostFolds())
		for i, cand := range candidates {
			// Raw input is only matched against Windows-style entries;
			// Unix entries are judged on the normalized path.
			if i == 1 && !windowsStyle {
				continue
			}
			if cand == c || strings.HasPrefix(cand, c+"/") || strings.HasPrefix(c, cand+"/") {
				return true
			}
		}
	}
	return false
}

// matchesBlockedPattern checks operator-configured glob patterns against the
// normalized path.
func matchesBlockedPattern(normalized string, patterns []string) bool {
	slashed := filepath.ToSlash(normalized)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
	}
	return false
}

// inWhitelist reports whether the normalized path is one of the allowed
// roots or nested under one.
func inWhitelist(normalized string, allowedRoots []string) bool {
	for _, root := range allowedRoots {
		if paths.Within(normalized, root) {
			return true
		}
	}
	return false
}

func toSlashLower(p string, fold bool) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimRight(p, "/")
	if fold {
		p = strings.ToLower(p)
	}
	return p
}

func hostFolds() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
