package tilesets

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE tilesets_tileset (
		id INTEGER PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		name TEXT,
		filetype TEXT,
		datatype TEXT,
		coordSystem TEXT,
		datafile TEXT
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO tilesets_tileset (uuid, name, filetype, datatype, coordSystem, datafile) VALUES
		('hg19', 'hg19', 'chromsizes-tsv', 'chromsizes', 'hg19', 'genomes/hg19.chrom.sizes'),
		('1_contacts', '1_contacts', 'cooler', 'matrix', 'hg19', 'media/1_contacts'),
		('3_signal', NULL, 'bigwig', 'vector', 'hg19', 'media/3_signal')`)
	require.NoError(t, err)
	return path
}

func TestStore_List(t *testing.T) {
	store, err := Open(createDB(t))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, Tileset{
		UUID:        "1_contacts",
		Name:        "1_contacts",
		FileType:    "cooler",
		DataType:    "matrix",
		CoordSystem: "hg19",
	}, list[0])
	assert.Equal(t, "", list[1].Name)
	assert.Equal(t, "hg19", list[2].UUID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_ReadOnly(t *testing.T) {
	store, err := Open(createDB(t))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`DELETE FROM tilesets_tileset`)
	assert.Error(t, err)
}

func TestStore_PingRejectsNonDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite3")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database, just some text padding it out"), 0644))

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestStore_MissingFile(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "missing.sqlite3"))
	require.NoError(t, err)
	defer store.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestStore_MissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite3")
	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE other (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))
	_, err = store.List(context.Background())
	assert.Error(t, err)
}

func TestDriverType(t *testing.T) {
	assert.Contains(t, []string{"purego", "cgo"}, DriverType())
}
