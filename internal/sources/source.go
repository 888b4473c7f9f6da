// Package sources loads validation input tables from files and databases.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported sql driver")
	ErrMissingQuery      = errors.New("query is required")
	ErrMissingCollection = errors.New("collection is required")
)

// Source produces one input table
type Source interface {
	Load(ctx context.Context) (*table.Table, error)
}

// LoadAll loads every source concurrently and returns the tables keyed like
// the input map. The first error cancels the remaining loads.
func LoadAll(ctx context.Context, srcs map[string]Source, logger *slog.Logger) (map[string]*table.Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "sources"))

	keys := make([]string, 0, len(srcs))
	for key := range srcs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tables := make([]*table.Table, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, key := range keys {
		g.Go(func() error {
			t, err := srcs[key].Load(gctx)
			if err != nil {
				return fmt.Errorf("load %s: %w", key, err)
			}
			logger.DebugContext(gctx, "source loaded",
				slog.String("input", key),
				slog.Int("rows", t.Len()),
				slog.Int("columns", t.Width()),
			)
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*table.Table, len(keys))
	for i, key := range keys {
		out[key] = tables[i]
	}
	return out, nil
}
