package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArtifactStore owns the intermediate workbooks of a run. Every artifact it
// hands out is either relocated to its final path or discarded.
type ArtifactStore struct {
	workDir string
	logger  *zap.Logger
}

// NewArtifactStore creates a store rooted at workDir; an empty workDir uses
// the system temp directory
func NewArtifactStore(workDir string, logger *zap.Logger) *ArtifactStore {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &ArtifactStore{
		workDir: workDir,
		logger:  logger,
	}
}

// WorkDir returns the directory intermediates are created in
func (s *ArtifactStore) WorkDir() string {
	return s.workDir
}

// NewPath reserves a unique intermediate path with the given extension
func (s *ArtifactStore) NewPath(ext string) (string, error) {
	if err := os.MkdirAll(s.workDir, 0755); err != nil {
		s.logger.Error("Failed to create work directory",
			zap.String("path", s.workDir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.workDir, "billing-"+uuid.NewString()+ext), nil
}

// Relocate moves a finished artifact to dst, creating parent directories.
// A rename that fails (e.g. across devices) falls back to copy and remove.
func (s *ArtifactStore) Relocate(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrRelocateFailed, filepath.Dir(dst), err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		s.logger.Debug("Artifact relocated", zap.String("from", src), zap.String("to", dst))
		return nil
	}
	s.logger.Debug("Rename failed, copying instead",
		zap.String("from", src),
		zap.String("to", dst),
		zap.Error(err))

	if err := copyFile(src, dst); err != nil {
		s.logger.Error("Failed to relocate artifact",
			zap.String("from", src),
			zap.String("to", dst),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRelocateFailed, err)
	}
	if err := os.Remove(src); err != nil {
		s.logger.Warn("Relocated artifact left a copy behind",
			zap.String("path", src),
			zap.Error(err))
	}
	return nil
}

// Discard removes an intermediate; a missing file is not an error
func (s *ArtifactStore) Discard(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove intermediate artifact",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	s.logger.Debug("Intermediate artifact removed", zap.String("path", path))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
