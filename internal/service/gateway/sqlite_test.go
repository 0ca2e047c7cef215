package gateway

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T) (*source, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT, year INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO books (title, year) VALUES ('Dune', 1965), ('Neuromancer', 1984), ('Hyperion', 1989)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := openSource(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.close() })
	return src, path
}

func TestSchemaListsUserTables(t *testing.T) {
	src, _ := newTestSource(t)

	tables, ddl, err := src.schema(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"books"}, tables)
	require.Contains(t, ddl, "CREATE TABLE books")
}

func TestQueryRendersRows(t *testing.T) {
	src, _ := newTestSource(t)

	result, err := src.query(context.Background(), "SELECT title, year FROM books ORDER BY year", 10)
	require.NoError(t, err)
	require.Contains(t, result, "title | year")
	require.Contains(t, result, "Dune | 1965")
	require.Contains(t, result, "Hyperion | 1989")
}

func TestQueryHonorsRowLimit(t *testing.T) {
	src, _ := newTestSource(t)

	result, err := src.query(context.Background(), "SELECT title FROM books ORDER BY year", 1)
	require.NoError(t, err)
	require.Contains(t, result, "Dune")
	require.NotContains(t, result, "Neuromancer")
}

func TestQueryEmptyResult(t *testing.T) {
	src, _ := newTestSource(t)

	result, err := src.query(context.Background(), "SELECT title FROM books WHERE year > 3000", 10)
	require.NoError(t, err)
	require.Contains(t, result, "(no rows)")
}

func TestReadOnlyConnectionRefusesWrites(t *testing.T) {
	src, _ := newTestSource(t)

	_, err := src.db.Exec(`INSERT INTO books (title, year) VALUES ('Contraband', 2024)`)
	require.Error(t, err)
}

func TestValidateStatement(t *testing.T) {
	valid := []string{
		"SELECT * FROM books",
		"select title from books where year > 1980;",
		"WITH recent AS (SELECT * FROM books WHERE year > 1980) SELECT count(*) FROM recent",
	}
	for _, statement := range valid {
		require.NoError(t, validateStatement(statement), statement)
	}

	invalid := []string{
		"",
		"DROP TABLE books",
		"INSERT INTO books (title) VALUES ('x')",
		"SELECT * FROM books; DELETE FROM books",
		"UPDATE books SET year = 0",
		"PRAGMA writable_schema = ON",
	}
	for _, statement := range invalid {
		require.Error(t, validateStatement(statement), statement)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"  ```sql\nSELECT *\nFROM books\n```  ", "SELECT *\nFROM books"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, stripFences(tc.input))
	}
}

func TestIsRefusal(t *testing.T) {
	require.True(t, isRefusal("I don't know"))
	require.True(t, isRefusal("i don't know."))
	require.False(t, isRefusal("SELECT * FROM books"))
}
