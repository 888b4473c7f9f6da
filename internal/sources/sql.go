package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	apierrors "github.com/QUANTMATRIXAI/trinity-dev/internal/errors"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
)

const defaultQueryTimeout = 60 * time.Second

var driverAliases = map[string]string{
	"sqlite":     "sqlite",
	"sqlite3":    "sqlite",
	"postgres":   "postgres",
	"postgresql": "postgres",
	"pg":         "postgres",
	"mysql":      "mysql",
	"mariadb":    "mysql",
	"sqlserver":  "sqlserver",
	"mssql":      "sqlserver",
}

// DriverName resolves a user supplied driver name to a registered
// database/sql driver
func DriverName(name string) (string, error) {
	driver, ok := driverAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, name)
	}
	return driver, nil
}

// SQLSource runs a read query and turns the result set into a table
type SQLSource struct {
	Driver  string
	DSN     string
	Query   string
	Timeout time.Duration

	// DB, when set, is used instead of opening Driver/DSN
	DB *sql.DB
}

// Load implements Source
func (s SQLSource) Load(ctx context.Context) (*table.Table, error) {
	if strings.TrimSpace(s.Query) == "" {
		return nil, ErrMissingQuery
	}

	db := s.DB
	if db == nil {
		driver, err := DriverName(s.Driver)
		if err != nil {
			return nil, err
		}
		db, err = sql.Open(driver, s.DSN)
		if err != nil {
			return nil, apierrors.NewSourceError("open database", err).WithContext("driver", driver)
		}
		defer db.Close()
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, apierrors.NewSourceError("query failed", err)
	}
	defer rows.Close()

	return scanTable(rows)
}

func scanTable(rows *sql.Rows) (*table.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var grid [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		grid = append(grid, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// Some drivers return every value as raw bytes; those columns are typed
	// from their text the same way file uploads are.
	for j := range columns {
		textual := false
		for _, row := range grid {
			if _, ok := row[j].([]byte); ok {
				textual = true
				break
			}
		}
		if !textual {
			continue
		}
		cells := make([]string, len(grid))
		for i, row := range grid {
			switch v := row[j].(type) {
			case nil:
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		for i, v := range table.InferColumn(cells) {
			grid[i][j] = v
		}
	}

	return table.FromRows(columns, grid)
}
