// Package testutil provides a canned-result stub database for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Result is a canned query response.
type Result struct {
	Columns []string
	Rows    [][]driver.Value
	Err     error
}

type response struct {
	match  string
	result Result
}

// StubConn answers queries with canned results and records what it was asked.
type StubConn struct {
	mu        sync.Mutex
	responses []response

	Queries  []string
	Args     [][]any
	Execs    []string
	FailPing bool
	RowsErr  error
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Respond registers res for every query containing match. Earlier
// registrations win.
func (c *StubConn) Respond(match string, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response{match: match, result: res})
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn. The source is read-only.
func (c *StubConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("read-only stub") }

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, query)
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.Args = append(c.Args, vals)
	for _, r := range c.responses {
		if !strings.Contains(query, r.match) {
			continue
		}
		if r.result.Err != nil {
			return nil, r.result.Err
		}
		return &stubRows{cols: r.result.Columns, rows: r.result.Rows, err: c.RowsErr}, nil
	}
	return nil, fmt.Errorf("no canned result for query: %s", query)
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
