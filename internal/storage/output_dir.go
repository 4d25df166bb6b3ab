package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// unsafeName matches characters not allowed in file names on common
// desktop filesystems
var unsafeName = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// OutputDir is an operator-chosen directory receiving several reports
type OutputDir struct {
	root   string
	logger *zap.Logger
}

// NewOutputDir creates an OutputDir for root
func NewOutputDir(root string, logger *zap.Logger) *OutputDir {
	return &OutputDir{
		root:   root,
		logger: logger,
	}
}

// Ensure creates the directory if needed
func (d *OutputDir) Ensure() error {
	if d.root == "" {
		return fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(d.root, 0755); err != nil {
		d.logger.Error("Failed to create output directory",
			zap.String("path", d.root),
			zap.Error(err))
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Join returns the path of name inside the directory. The name is
// sanitized first so it cannot leave the directory.
func (d *OutputDir) Join(name string) (string, error) {
	safe := SanitizeFileName(name)
	if safe == "" {
		return "", fmt.Errorf("empty file name")
	}
	full := filepath.Join(d.root, safe)
	if err := Within(d.root, full); err != nil {
		return "", err
	}
	return full, nil
}

// SanitizeFileName strips path separators, parent references and reserved
// characters. Unicode letters such as Hangul are kept.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = unsafeName.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// Within checks that path resolves inside base
func Within(base, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("%w: %s", ErrPathEscapes, path)
	}
	return nil
}
