package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// source wraps a read-only handle on one SQLite file.
type source struct {
	db *sql.DB
}

// openSource opens the file in read-only mode. Even if a statement slipped
// past the guard, the connection itself cannot mutate the database.
func openSource(path string) (*source, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	return &source{db: db}, nil
}

func (s *source) close() error {
	return s.db.Close()
}

// schema returns the CREATE TABLE statements of every user table, which is
// what the model sees when writing queries.
func (s *source) schema(ctx context.Context) (tables []string, ddl string, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var builder strings.Builder
	for rows.Next() {
		var name string
		var create sql.NullString
		if err := rows.Scan(&name, &create); err != nil {
			return nil, "", err
		}
		tables = append(tables, name)
		if create.Valid {
			builder.WriteString(create.String)
			builder.WriteString(";\n")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	if len(tables) == 0 {
		return nil, "", fmt.Errorf("no tables found")
	}
	return tables, builder.String(), nil
}

// query executes the statement and renders the result as a compact
// pipe-separated table capped at limit rows.
func (s *source) query(ctx context.Context, statement string, limit int) (string, error) {
	rows, err := s.db.QueryContext(ctx, statement)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(strings.Join(columns, " | "))
	builder.WriteString("\n")

	count := 0
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	for rows.Next() && count < limit {
		if err := rows.Scan(pointers...); err != nil {
			return "", err
		}
		cells := make([]string, len(columns))
		for i, value := range values {
			cells[i] = renderValue(value)
		}
		builder.WriteString(strings.Join(cells, " | "))
		builder.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if count == 0 {
		builder.WriteString("(no rows)\n")
	}
	return builder.String(), nil
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

var forbiddenSQL = regexp.MustCompile(
	`(?i)\b(insert|update|delete|drop|alter|create|replace|truncate|attach|detach|pragma|vacuum|reindex)\b`)

// validateStatement enforces the read-only contract on model output: exactly
// one statement, starting with SELECT or WITH, with no mutating keywords.
func validateStatement(statement string) error {
	trimmed := strings.TrimSpace(statement)
	trimmed = strings.TrimSuffix(trimmed, ";")
	if trimmed == "" {
		return fmt.Errorf("empty statement")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	if match := forbiddenSQL.FindString(trimmed); match != "" {
		return fmt.Errorf("forbidden keyword %q", strings.ToUpper(match))
	}
	return nil
}

// stripFences removes the markdown code fences models tend to wrap SQL in.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 && !strings.ContainsAny(trimmed[:idx], " \t") {
		// Drop a language tag such as "sql" on the opening fence.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
