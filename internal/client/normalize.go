package client

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"

	mcpdb "github.com/aqaranewbiz/mysql-server/pkg"
)

// rowKeywords are leading verbs sent through QueryContext. Maintenance
// statements (CHECK, ANALYZE, ...) and CALL can return result sets that
// ExecContext would discard.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"VALUES":   true,
	"TABLE":    true,
	"HELP":     true,
	"CALL":     true,
	"CHECK":    true,
	"ANALYZE":  true,
	"OPTIMIZE": true,
	"REPAIR":   true,
	"CHECKSUM": true,
}

// cteVerbs are the statements a WITH clause can introduce.
var cteVerbs = map[string]bool{
	"SELECT":  true,
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"REPLACE": true,
	"MERGE":   true,
	"VALUES":  true,
	"TABLE":   true,
}

var (
	leadingComments = regexp.MustCompile(`^(\s+|--[^\n]*(\n|$)|#[^\n]*(\n|$)|/\*(?s:.*?)\*/|\()+`)
	returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)
)

// returnsRows reports whether a statement is expected to produce a row set.
// A WITH statement is routed by the verb that follows its CTE list.
func returnsRows(statement string) bool {
	s := leadingComments.ReplaceAllString(statement, "")
	verb := leadingWord(s)
	if verb == "WITH" {
		verb = cteMainVerb(s[len(verb):])
	}
	if rowKeywords[verb] {
		return true
	}
	return returningClause.MatchString(s)
}

func leadingWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !isLetter(r) })
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// cteMainVerb returns the first statement verb outside parentheses and
// quotes. It falls back to SELECT when none is found.
func cteMainVerb(s string) string {
	depth := 0
	var quote rune
	word := strings.Builder{}

	flush := func() string {
		w := strings.ToUpper(word.String())
		word.Reset()
		if depth == 0 && cteVerbs[w] {
			return w
		}
		return ""
	}

	for _, r := range s {
		if quote != 0 {
			if r == quote {
				quote = 0
			}
			continue
		}
		if isLetter(r) || r == '_' || r >= '0' && r <= '9' {
			word.WriteRune(r)
			continue
		}
		if v := flush(); v != "" {
			return v
		}
		switch r {
		case '\'', '"', '`':
			quote = r
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	if v := flush(); v != "" {
		return v
	}
	return "SELECT"
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// runStatement executes one statement inside its own transaction and
// normalizes the outcome. The transaction is always committed on success so
// that writes carrying RETURNING are kept.
//
// A non-empty row set becomes a RowSet. An empty row set, a row set with no
// columns (a CALL that only writes), or no row set at all becomes a
// MutationSummary. A SELECT that matches nothing is therefore reported as
// {affectedRows: 0}, not as an empty RowSet; clients rely on that shape.
func runStatement(ctx context.Context, conn *sql.Conn, statement string) (mcpdb.Result, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return mcpdb.Result{}, mcpdb.DatabaseError(err)
	}
	defer tx.Rollback() // no-op after Commit

	if !returnsRows(statement) {
		res, err := tx.ExecContext(ctx, statement)
		if err != nil {
			return mcpdb.Result{}, mcpdb.DatabaseError(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		if err := tx.Commit(); err != nil {
			return mcpdb.Result{}, mcpdb.DatabaseError(err)
		}
		return mcpdb.MutationSummary(affected), nil
	}

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return mcpdb.Result{}, mcpdb.DatabaseError(err)
	}
	records, err := scanRows(rows)
	if err != nil {
		return mcpdb.Result{}, mcpdb.DatabaseError(err)
	}
	if err := tx.Commit(); err != nil {
		return mcpdb.Result{}, mcpdb.DatabaseError(err)
	}

	if len(records) > 0 {
		return mcpdb.RowSet(records), nil
	}
	return mcpdb.MutationSummary(0), nil
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalizeValue makes a driver value JSON friendly. Timestamps are
// rendered as ISO-8601.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return val
	}
}
