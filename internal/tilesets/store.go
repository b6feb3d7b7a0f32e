// Package tilesets reads the higlass-server tileset database.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite
//   - -tags cgo_sqlite (CGO_ENABLED=1): mattn/go-sqlite3
package tilesets

import (
	"context"
	"database/sql"
	"fmt"
)

// Tileset is one registered tileset row.
type Tileset struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	FileType    string `json:"filetype"`
	DataType    string `json:"datatype"`
	CoordSystem string `json:"coordSystem"`
}

// Store is a read-only handle on the tileset database.
type Store struct {
	db   *sql.DB
	path string
}

// DriverType reports which SQLite implementation was compiled in.
func DriverType() string {
	return driverType
}

// Open opens the database at path read-only. The file is not touched until
// the first query.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open tileset database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping confirms the file is a readable SQLite database.
func (s *Store) Ping(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		return fmt.Errorf("%s is not a readable database: %w", s.path, err)
	}
	return nil
}

// List returns registered tilesets ordered by uuid.
func (s *Store) List(ctx context.Context) ([]Tileset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, name, filetype, datatype, coordSystem FROM tilesets_tileset ORDER BY uuid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tilesets: %w", err)
	}
	defer rows.Close()

	var out []Tileset
	for rows.Next() {
		var t Tileset
		var name, fileType, dataType, coord sql.NullString
		if err := rows.Scan(&t.UUID, &name, &fileType, &dataType, &coord); err != nil {
			return nil, fmt.Errorf("failed to scan tileset: %w", err)
		}
		t.Name = name.String
		t.FileType = fileType.String
		t.DataType = dataType.String
		t.CoordSystem = coord.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// Count returns the number of registered tilesets.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM tilesets_tileset").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tilesets: %w", err)
	}
	return n, nil
}
