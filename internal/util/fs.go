package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins only the base name of name onto root, so an uploaded
// filename cannot escape root.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}

// ResolveUnder joins rel onto root and rejects results outside root. An
// absolute rel is accepted only when it already lies under root.
func ResolveUnder(root, rel string) (string, error) {
	p := filepath.Join(root, rel)
	if filepath.IsAbs(rel) {
		p = filepath.Clean(rel)
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	r, err := filepath.Rel(root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, root)
	}
	return p, nil
}
