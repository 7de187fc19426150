package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gpubridge/internal/logging"
)

const (
	// DefaultStateDir is the default location for gpubridge state files
	DefaultStateDir = "/var/lib/gpubridge"
	// DefaultStatePermissions is the default permission for state directories
	DefaultStatePermissions = 0o750
	// DefaultFilePermissions is the default permission for state files
	DefaultFilePermissions = 0o600
)

// GetStateDir returns the state directory from environment or uses the provided default.
// It returns an absolute path when possible.
func GetStateDir(defaultDir string) string {
	if env := os.Getenv("GPUBRIDGE_STATE_DIR"); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
		return env
	}
	return defaultDir
}

// EnsureStateDirectory creates the state directory if it doesn't exist.
// It uses DefaultStatePermissions (0o750) for the directory.
func EnsureStateDirectory(path string) error {
	if err := os.MkdirAll(path, DefaultStatePermissions); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// AtomicWriteFile writes data to a file atomically by first writing to a temp file
// and then renaming it to the target path. This ensures the file is never partially written.
func AtomicWriteFile(path string, data []byte, perm os.FileMode, logger *logging.Logger) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			if logger != nil {
				logger.Warn("fsutil.cleanup_failed", "Failed to remove temp file", map[string]interface{}{
					"path":  tmpPath,
					"error": removeErr.Error(),
				})
			}
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// CopyFile copies src to dst, creating or truncating dst with the given permissions.
func CopyFile(src, dst string, perm os.FileMode, logger *logging.Logger) error {
	in, err := os.Open(filepath.Clean(src)) // #nosec G304 -- paths are constructed from trusted sources
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer CloseWithError(in.Close, logger, "source file")

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}

	return nil
}

// BackupTimestampFormat is the timestamp layout used for backup file names.
const BackupTimestampFormat = "20060102-150405"

// BackupFile copies path into backupDir under "<label>.<timestamp>" and
// returns the backup path. Backups are never pruned automatically.
func BackupFile(path, backupDir, label string, logger *logging.Logger) (string, error) {
	if err := EnsureStateDirectory(backupDir); err != nil {
		return "", err
	}

	stamp := time.Now().Format(BackupTimestampFormat)
	backupPath := filepath.Join(backupDir, fmt.Sprintf("%s.%s", label, stamp))

	if err := CopyFile(path, backupPath, DefaultFilePermissions, logger); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}

	return backupPath, nil
}

// CloseWithError closes a resource and logs any error if a logger is provided.
// This is useful for defer statements where close errors should be handled.
func CloseWithError(closer func() error, logger *logging.Logger, resource string) {
	if err := closer(); err != nil {
		if logger != nil {
			logger.Warn("fsutil.close_failed", fmt.Sprintf("Failed to close %s", resource), map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
