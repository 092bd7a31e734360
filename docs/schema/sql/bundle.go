// Package sqldocs embeds the cluster review schema DDL from the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the SQLite DDL for the cluster review schema.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the Postgres DDL for the cluster review schema.
//
//go:embed postgres.sql
var Postgres string
