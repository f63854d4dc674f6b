// Package store implements Argus's Persistent Store (component A):
// durable tables for articles, queues, entities, and clusters, built as a
// set of repositories over database/sql, Postgres only — the queue CLAIM
// protocol needs SELECT ... FOR UPDATE SKIP LOCKED-grade row locking under
// concurrent access that SQLite cannot provide.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// queryer is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run unchanged whether or not they're inside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DB is a connection to Argus's Postgres-backed Persistent Store.
type DB struct {
	conn *sql.DB
}

// Open connects to dsn, applies the given connection pool limits, and
// verifies connectivity.
func Open(dsn string, maxConns, idleConns int) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store connection: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 25
	}
	if idleConns <= 0 {
		idleConns = 5
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(idleConns)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Conn exposes the underlying pool for sibling packages (vectorstore,
// alias) that need to share it rather than open a second pool.
func (d *DB) Conn() *sql.DB { return d.conn }

func (d *DB) Close() error { return d.conn.Close() }

func (d *DB) Ping(ctx context.Context) error { return d.conn.PingContext(ctx) }

// Tx is an open transaction; repository constructors accept either a *DB's
// connection or a Tx's so callers can compose multi-step writes atomically
// (e.g. the CLAIM protocol, or a cluster merge).
type Tx struct {
	tx *sql.Tx
}

// BeginTx starts a transaction.
func (d *DB) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }
