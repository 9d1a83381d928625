package bench

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb" // register the duckdb driver
)

// DuckDBBaseline stores rows in a single DuckDB table, the relational
// layout this project's earlier system-metric persistence used.
// Average and ContainsName run as single SQL queries; this baseline
// exists to compare the column store's hand-rolled two-pass scan
// against pushing the same reduction into a general-purpose embedded
// columnar SQL engine.
type DuckDBBaseline struct {
	db *sql.DB
}

// OpenDuckDBBaseline opens (creating if necessary) a DuckDB file under
// dir and ensures the rows table exists.
func OpenDuckDBBaseline(dir string) (*DuckDBBaseline, error) {
	db, err := sql.Open("duckdb", filepath.Join(dir, "rows.duckdb"))
	if err != nil {
		return nil, fmt.Errorf("bench: open duckdb: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS rows (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		start_ns BIGINT NOT NULL,
		delta_ns BIGINT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("bench: create table: %w", err)
	}
	return &DuckDBBaseline{db: db}, nil
}

// Append inserts one row, assigning id as the table's current count.
func (s *DuckDBBaseline) Append(name string, startNs, deltaNs int64) (uint64, error) {
	row := s.db.QueryRow(`SELECT count(*) FROM rows`)
	var id uint64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("bench: count rows: %w", err)
	}
	_, err := s.db.Exec(`INSERT INTO rows (id, name, start_ns, delta_ns) VALUES (?, ?, ?, ?)`,
		id, name, startNs, deltaNs)
	if err != nil {
		return 0, fmt.Errorf("bench: insert row: %w", err)
	}
	return id, nil
}

// Average delegates the reduction entirely to DuckDB's query engine.
func (s *DuckDBBaseline) Average(name string) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRow(`SELECT avg(delta_ns) FROM rows WHERE name = ?`, name).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("bench: average query: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// ContainsName delegates existence-check to a single EXISTS query.
func (s *DuckDBBaseline) ContainsName(name string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM rows WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("bench: exists query: %w", err)
	}
	return exists, nil
}

// Close releases the underlying DuckDB connection.
func (s *DuckDBBaseline) Close() error { return s.db.Close() }
