package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrFileTooLarge         = errors.New("file exceeds maximum size")
	ErrEmptyFile            = errors.New("file is empty")
)

// DefaultMaxFileSize bounds a single input file
const DefaultMaxFileSize int64 = 50 << 20

// DefaultExtensions are the input formats the table readers understand
var DefaultExtensions = []string{".csv", ".txt", ".xlsx", ".xlsm", ".json"}

// FileValidator checks input files before they are parsed into tables. It is
// shared by the upload handler and the CLI.
type FileValidator struct {
	logger     *slog.Logger
	maxSize    int64
	extensions map[string]struct{}
}

// NewFileValidator creates a file validator. A maxSize of zero or less uses
// DefaultMaxFileSize; no extensions means DefaultExtensions.
func NewFileValidator(logger *slog.Logger, maxSize int64, extensions ...string) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &FileValidator{
		logger:     logger.With(slog.String("component", "file_validator")),
		maxSize:    maxSize,
		extensions: exts,
	}
}

// MaxSize returns the per-file size limit in bytes
func (v *FileValidator) MaxSize() int64 {
	return v.maxSize
}

// ValidateUpload checks the name and declared size of an uploaded file
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	if err := v.checkExtension(name); err != nil {
		return err
	}
	if size == 0 {
		v.logger.Warn("Empty upload rejected", slog.String("file", name))
		return fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if size > v.maxSize {
		v.logger.Warn("Oversized upload rejected",
			slog.String("file", name),
			slog.Int64("size", size),
			slog.Int64("max_size", v.maxSize))
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, name, size, v.maxSize)
	}
	return nil
}

// ValidateFile checks that a local file exists, is readable and is an
// accepted input format
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if err := v.ValidateUpload(filepath.Base(path), info.Size()); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputPath ensures the directory of an output file exists
func (v *FileValidator) ValidateOutputPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}

func (v *FileValidator) checkExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := v.extensions[ext]; !ok {
		v.logger.Warn("Unsupported file extension",
			slog.String("file", name),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, name)
	}
	return nil
}
