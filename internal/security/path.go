// Package security confines folder and template paths received from MCP
// clients to the directory the server was started with.
package security

import (
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/a3tai/proposal-builder/internal/errors"
)

// RootGuard resolves client supplied paths inside a root directory
type RootGuard struct {
	root     string
	realRoot string
}

// NewRootGuard creates a guard for root, which must be an existing directory
func NewRootGuard(root string) (*RootGuard, error) {
	if root == "" {
		return nil, perrors.New(perrors.KindInputInvalid, "root directory cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindInputInvalid, err, "failed to resolve root directory")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindInputInvalid, err, "root directory is not accessible")
	}
	if !info.IsDir() {
		return nil, perrors.New(perrors.KindInputInvalid, "root is not a directory: %s", root)
	}
	evaluated, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindInputInvalid, err, "failed to resolve root directory")
	}
	return &RootGuard{root: filepath.Clean(abs), realRoot: evaluated}, nil
}

// Root returns the absolute root directory
func (g *RootGuard) Root() string {
	return g.root
}

// Resolve returns the absolute form of path. Relative paths are taken
// from the root. The result, after following symlinks, must stay inside
// the root.
func (g *RootGuard) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", perrors.New(perrors.KindInputInvalid, "path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.root, path)
	}
	clean := filepath.Clean(path)

	if !within(g.root, clean) && !within(g.realRoot, clean) {
		return "", perrors.New(perrors.KindInputInvalid, "path is outside the served directory: %s", path)
	}

	// missing paths are only ever read, so they fail later on open
	target, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return clean, nil
		}
		return "", perrors.Wrap(perrors.KindInputInvalid, err, "failed to resolve path")
	}
	if !within(g.realRoot, target) {
		return "", perrors.New(perrors.KindInputInvalid, "path is outside the served directory: %s", path)
	}
	return clean, nil
}

// ResolveDir is Resolve for a path that must be an existing directory
func (g *RootGuard) ResolveDir(path string) (string, error) {
	resolved, err := g.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", perrors.Wrap(perrors.KindInputInvalid, err, "directory is not accessible")
	}
	if !info.IsDir() {
		return "", perrors.New(perrors.KindInputInvalid, "not a directory: %s", path)
	}
	return resolved, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
