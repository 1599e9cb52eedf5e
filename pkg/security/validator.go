package security

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zahlii/photobooth/pkg/errors"
)

// ErrOutsideRoot is returned for names that would resolve outside the validator's root.
var ErrOutsideRoot = errors.New("security: path outside root")

// Validator confines client-supplied file names to one directory
type Validator struct {
	root        string
	maxFileSize int64
}

// NewValidator creates a validator for root. maxFileSize <= 0 disables the size check.
func NewValidator(root string, maxFileSize int64) (*Validator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve root")
	}
	slog.Info("security_validator_init", "root", abs, "max_file_size_mb", maxFileSize/1024/1024)
	return &Validator{root: abs, maxFileSize: maxFileSize}, nil
}

// Root returns the absolute root directory.
func (v *Validator) Root() string {
	return v.root
}

// ValidatePath checks that name is a relative path that stays below the root
func (v *Validator) ValidatePath(name string) error {
	if name == "" {
		return fmt.Errorf("security: empty path")
	}
	// Reject absolute paths
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		slog.Error("security_path_validation_failed", "path", name, "reason", "absolute_path")
		return errors.Wrap(ErrOutsideRoot, name)
	}

	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		slog.Error("security_path_validation_failed", "path", name, "reason", "path_traversal")
		return errors.Wrap(ErrOutsideRoot, name)
	}
	return nil
}

// Resolve validates name and returns its absolute path. Existing symlinks must
// point inside the root as well.
func (v *Validator) Resolve(name string) (string, error) {
	if err := v.ValidatePath(name); err != nil {
		return "", err
	}
	full := filepath.Join(v.root, filepath.Clean(filepath.FromSlash(name)))

	if target, err := filepath.EvalSymlinks(full); err == nil {
		if err := v.ValidateSymlink(full, target); err != nil {
			return "", err
		}
	}
	return full, nil
}

// ValidateSymlink checks that a resolved symlink target stays inside the root.
func (v *Validator) ValidateSymlink(symlinkPath, targetPath string) error {
	if !filepath.IsAbs(targetPath) {
		targetPath = filepath.Join(filepath.Dir(symlinkPath), targetPath)
	}
	root, err := filepath.EvalSymlinks(v.root)
	if err != nil {
		root = v.root
	}

	rel, err := filepath.Rel(root, filepath.Clean(targetPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		slog.Error("security_symlink_validation_failed", "symlink", symlinkPath, "target", targetPath)
		return errors.Wrap(ErrOutsideRoot, symlinkPath)
	}
	return nil
}

// ValidateFileSize checks if a file exceeds max file size
func (v *Validator) ValidateFileSize(size int64) error {
	if v.maxFileSize > 0 && size > v.maxFileSize {
		slog.Error("security_file_size_exceeded",
			"file_size_mb", size/1024/1024,
			"max_file_size_mb", v.maxFileSize/1024/1024)
		return fmt.Errorf("security: file size %d exceeds max %d", size, v.maxFileSize)
	}
	return nil
}

// ValidateFile resolves name and checks the file exists and is within the size limit.
func (v *Validator) ValidateFile(name string) (string, error) {
	full, err := v.Resolve(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", errors.Wrapf(err, "image %s", name)
	}
	if info.IsDir() {
		return "", fmt.Errorf("security: %s is a directory", name)
	}
	if err := v.ValidateFileSize(info.Size()); err != nil {
		return "", err
	}
	return full, nil
}
