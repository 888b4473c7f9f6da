package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	apierrors "github.com/QUANTMATRIXAI/trinity-dev/internal/errors"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

// FileChecker vets a local path before it is opened
type FileChecker interface {
	ValidateFile(path string) error
}

// FileSource reads a CSV, Excel or JSON file from disk
type FileSource struct {
	Path    string
	Checker FileChecker
}

// Load implements Source
func (s FileSource) Load(ctx context.Context) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Checker != nil {
		if err := s.Checker.ValidateFile(s.Path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	t, err := table.ReadFile(filepath.Base(s.Path), f)
	if err != nil {
		return nil, apierrors.NewParsingError(fmt.Sprintf("read %s", s.Path), err)
	}
	return t, nil
}
