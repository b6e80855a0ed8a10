package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"db-shuttle/internal/dialect"
)

// ErrConnection marks failures to reach or authenticate against a server.
var ErrConnection = errors.New("connection failure")

// Session is one pinned connection to a database endpoint. Every operation
// against the endpoint runs on the same connection, so session-level settings
// (FK checks, identity insert) stay in effect for the whole run.
type Session struct {
	Dialect    dialect.Dialect
	Descriptor Descriptor

	db   *sql.DB
	conn *sql.Conn
}

// Open connects to the descriptor's database.
func Open(ctx context.Context, desc Descriptor) (*Session, error) {
	dsn, err := desc.DSN()
	if err != nil {
		return nil, err
	}
	return open(ctx, desc, dsn)
}

// OpenServer connects to the server without selecting the descriptor's database.
func OpenServer(ctx context.Context, desc Descriptor) (*Session, error) {
	dsn, err := desc.ServerDSN()
	if err != nil {
		return nil, err
	}
	return open(ctx, desc, dsn)
}

func open(ctx context.Context, desc Descriptor, dsn string) (*Session, error) {
	desc = desc.WithDefaults()
	d, err := desc.Dialect()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrConnection, desc, err)
	}

	s, err := NewSession(ctx, db, d, desc)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSession pins a connection from db. The session owns db and closes it.
func NewSession(ctx context.Context, db *sql.DB, d dialect.Dialect, desc Descriptor) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", ErrConnection, desc, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", ErrConnection, desc, err)
	}
	return &Session{Dialect: d, Descriptor: desc, db: db, conn: conn}, nil
}

// Conn returns the pinned connection.
func (s *Session) Conn() *sql.Conn {
	return s.conn
}

// Close releases the pinned connection and the pool behind it.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
		s.conn = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
