// Package storage implements the Postgres repositories for products
// and orders.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
)

// Validation errors for connection string construction.
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
)

// contextKey type for context keys.
type contextKey string

const txKey contextKey = "transaction"

// Storage is the pgx-backed repository for the product catalog and
// orders.
type Storage struct {
	pool *pgxpool.Pool
}

// New connects a pool and returns the repository.
func New(ctx context.Context, connectionString string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Storage{pool: pool}, nil
}

// NewWithPool wraps an existing pool after verifying connectivity.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool) (*Storage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Storage{pool: pool}, nil
}

// Ping verifies the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor returns the transaction bound to the context, or the
// pool when none is active.
func (s *Storage) getExecutor(ctx context.Context) executor {
	if tx := s.getTx(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *Storage) getTx(ctx context.Context) pgx.Tx {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	if !ok {
		return nil
	}
	return tx
}

// BeginTx starts a transaction and binds it to the returned context.
func (s *Storage) BeginTx(ctx context.Context) (context.Context, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ctx, persistenceErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	return context.WithValue(ctx, txKey, tx), nil
}

// CommitTx commits the transaction bound to the context.
func (s *Storage) CommitTx(ctx context.Context) error {
	tx := s.getTx(ctx)
	if tx == nil {
		return errors.New("no transaction in context")
	}
	if err := tx.Commit(ctx); err != nil {
		return persistenceErr(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// RollbackTx rolls back the transaction bound to the context.
func (s *Storage) RollbackTx(ctx context.Context) error {
	tx := s.getTx(ctx)
	if tx == nil {
		return errors.New("no transaction in context")
	}
	return tx.Rollback(ctx)
}

// persistenceErr classifies a store failure. Server-reported errors
// (constraint violations and friends) are fatal; lost connections and
// timeouts are transient and worth retrying.
func persistenceErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.NewPersistenceError(err, false)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return errs.NewPersistenceError(err, true)
	}
	return errs.NewPersistenceError(err, true)
}

// ConnectionString builds a pgx DSN from discrete settings.
func ConnectionString(host, user, password, dbName, sslMode string, port, poolSize int, timeout time.Duration) (string, error) {
	if host == "" {
		return "", ErrStorageEmptyHostName
	}
	if port <= 0 || port > 65535 {
		return "", ErrStorageInvalidPortNumber
	}
	if user == "" {
		return "", ErrStorageEmptyUsername
	}
	if password == "" {
		return "", ErrStorageEmptyPassword
	}
	if dbName == "" {
		return "", ErrStorageInvalidDatabaseName
	}
	if sslMode == "" {
		sslMode = "disable"
	}

	var b strings.Builder
	b.WriteString("host=" + host)
	b.WriteString(" port=" + strconv.Itoa(port))
	b.WriteString(" user=" + user)
	b.WriteString(" password=" + password)
	b.WriteString(" dbname=" + dbName)
	b.WriteString(" sslmode=" + sslMode)
	if poolSize > 0 {
		b.WriteString(" pool_max_conns=" + strconv.Itoa(poolSize))
	}
	if timeout > 0 {
		b.WriteString(" connect_timeout=" + strconv.Itoa(int(timeout.Seconds())))
	}
	return b.String(), nil
}
