// Package sqlbundle exposes the embedded schema DDL to the persistence adapters.
package sqlbundle

import (
	"bufio"
	"strings"

	sqldocs "ecodcluster/docs/schema/sql"
)

// SQLite returns the SQLite DDL for the cluster review schema.
func SQLite() string {
	return sqldocs.SQLite
}

// Postgres returns the Postgres DDL for the cluster review schema.
func Postgres() string {
	return sqldocs.Postgres
}

// SplitStatements splits a semicolon-terminated script into statements,
// dropping blank lines and whole-line "--" comments.
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				stmts = append(stmts, stmt)
			}
			current.Reset()
		}
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}
	return stmts
}

// Tables returns the table names created by ddl, in order.
func Tables(ddl string) []string {
	var tables []string
	for _, stmt := range SplitStatements(ddl) {
		fields := strings.Fields(stmt)
		if len(fields) < 3 || !strings.EqualFold(fields[0], "CREATE") || !strings.EqualFold(fields[1], "TABLE") {
			continue
		}
		name := fields[2]
		if strings.EqualFold(name, "IF") && len(fields) >= 6 {
			name = fields[5]
		}
		tables = append(tables, strings.TrimSuffix(name, "("))
	}
	return tables
}
