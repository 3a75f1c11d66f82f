package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteConfig names the table and columns a SQLite loader serves.
type SQLiteConfig struct {
	Path   string
	Table  string
	Column string   // text column returned as the item
	Search []string // columns matched against the query, defaults to Column
}

func (c *SQLiteConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Table == "" {
		return fmt.Errorf("table name is required")
	}
	if c.Column == "" {
		return fmt.Errorf("column name is required")
	}
	return nil
}

// SQLite pages one table through LIKE matches over the configured search
// columns, with LIMIT/OFFSET pagination pushed down to the database.
type SQLite struct {
	db     *sql.DB
	table  string
	column string
	search []string
}

// OpenSQLite opens the database and verifies the connection.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	search := cfg.Search
	if len(search) == 0 {
		search = []string{cfg.Column}
	}
	log.Debugf("Opened sqlite source %s table %s", cfg.Path, cfg.Table)

	return &SQLite{
		db:     db,
		table:  cfg.Table,
		column: cfg.Column,
		search: search,
	}, nil
}

// Load implements the listing loader contract.
func (s *SQLite) Load(ctx context.Context, query string, page, pageSize int) ([]string, error) {
	if page < 0 || pageSize <= 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(s.search)+2)
	fmt.Fprintf(&sb, "SELECT %s FROM %s", s.column, s.table)
	if query != "" {
		pattern := "%" + query + "%"
		for i, col := range s.search {
			if i == 0 {
				sb.WriteString(" WHERE ")
			} else {
				sb.WriteString(" OR ")
			}
			fmt.Fprintf(&sb, "%s LIKE ?", col)
			args = append(args, pattern)
		}
	}
	fmt.Fprintf(&sb, " ORDER BY %s LIMIT ? OFFSET ?", s.column)
	args = append(args, pageSize, page*pageSize)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Warnf("Failed to close rows: %v", err)
		}
	}()

	var items []string
	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			log.Warnf("Failed to scan row: %v", err)
			continue
		}
		items = append(items, value.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return items, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
