// Package security guards the files the CLI writes on a user's behalf.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned for an output path that resolves outside
// every allowed directory.
var ErrOutsideAllowed = errors.New("output path outside allowed directories")

// canonical resolves symlinks in the longest existing prefix of an absolute
// path, so a not-yet-created file below a symlinked directory resolves to
// where it would actually be written.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	existing, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateOutputPath checks that path resolves inside one of dirs.
func ValidateOutputPath(path string, dirs ...string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("%w: none configured", ErrOutsideAllowed)
	}
	target, err := canonical(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	for _, d := range dirs {
		base, err := canonical(d)
		if err != nil {
			continue
		}
		if within(target, base) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOutsideAllowed, path)
}

// ValidateExportPath allows the working directory and the temp directory.
func ValidateExportPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	return ValidateOutputPath(path, cwd, os.TempDir())
}

const maxFilenameLen = 96

// SanitizeFilename reduces an identifier to [A-Za-z0-9._-], collapsing runs
// of anything else into one underscore.
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
		if b.Len() >= maxFilenameLen {
			break
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
