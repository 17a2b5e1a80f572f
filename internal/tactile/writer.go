package tactile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentrunner/internal/config"
	"agentrunner/internal/logging"
)

// PathGuard writes files only beneath a fixed set of root directories.
// Roots may start with "~/" and are expanded against the home directory
// given at construction.
type PathGuard struct {
	home  string
	roots []string
	audit *logging.AuditLogger
}

// NewPathGuard resolves roots against home. The roots never change after
// construction.
func NewPathGuard(home string, roots []string) *PathGuard {
	resolved := make([]string, 0, len(roots))
	for _, r := range roots {
		resolved = append(resolved, filepath.Clean(config.ExpandHome(r, home)))
	}
	return &PathGuard{home: home, roots: resolved, audit: logging.Audit()}
}

// WithAudit scopes write audit records to a session.
func (g *PathGuard) WithAudit(l *logging.AuditLogger) *PathGuard {
	g.audit = l
	return g
}

// Roots returns the resolved allowed roots.
func (g *PathGuard) Roots() []string {
	return append([]string(nil), g.roots...)
}

// Resolve expands "~/" and returns the cleaned path if it lies strictly
// beneath an allowed root. Relative paths and ".." escapes are rejected, as
// are paths whose existing part leads outside the root through a symlink.
func (g *PathGuard) Resolve(path string) (string, error) {
	expanded := config.ExpandHome(path, g.home)
	resolved := filepath.Clean(expanded)

	if !filepath.IsAbs(resolved) {
		return "", &ViolationError{Kind: ViolationPath, Subject: expanded}
	}
	target, err := realPath(resolved)
	if err != nil {
		logging.TactileDebug("Cannot resolve %s: %v", resolved, err)
		return "", &ViolationError{Kind: ViolationPath, Subject: expanded}
	}
	for _, root := range g.roots {
		if !beneath(root, resolved) {
			continue
		}
		realRoot, err := realPath(root)
		if err != nil || !beneath(realRoot, target) {
			logging.TactileWarn("Path %s leaves %s through a symlink", resolved, root)
			continue
		}
		return resolved, nil
	}
	return "", &ViolationError{Kind: ViolationPath, Subject: expanded}
}

// beneath reports whether path is strictly inside dir. Both must be clean.
func beneath(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// realPath resolves symlinks in the longest existing prefix of path and
// appends the remaining components unchanged. A dangling symlink is an
// error, since writing through it would create its target.
func realPath(path string) (string, error) {
	existing := path
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			resolved, err := filepath.EvalSymlinks(existing)
			if err != nil {
				return "", err
			}
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// WriteFile writes content to path after containment checks, creating parent
// directories. It returns the resolved path.
func (g *PathGuard) WriteFile(path, content string) (string, error) {
	resolved, err := g.Resolve(path)
	if err != nil {
		g.audit.SafetyCheck("write "+path, false, err.Error())
		logging.TactileWarn("Blocked write: %s", path)
		return "", err
	}
	g.audit.SafetyCheck("write "+resolved, true, "under allowed root")

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	g.audit.FileWrite(resolved, len(content))
	logging.Tactile("Wrote %d bytes to %s", len(content), resolved)
	return resolved, nil
}
