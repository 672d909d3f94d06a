package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrSubjectUnavailable is returned when the subject executable is missing
// or cannot be executed. It aborts a run before any scenario starts.
var ErrSubjectUnavailable = errors.New("subject executable unavailable")

// ResolveSubject turns a bare command name into a path via PATH lookup.
// Paths containing a separator are returned cleaned and unchanged otherwise.
func ResolveSubject(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty path", ErrSubjectUnavailable)
	}
	if strings.ContainsRune(name, os.PathSeparator) || strings.Contains(name, "/") {
		return filepath.Clean(name), nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubjectUnavailable, err)
	}
	return path, nil
}

// CheckSubject verifies that path names an existing, executable regular file.
func CheckSubject(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrSubjectUnavailable)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubjectUnavailable, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrSubjectUnavailable, path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrSubjectUnavailable, path)
	}
	return nil
}
