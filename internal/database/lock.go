package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PipelineLockKey is the advisory lock every writing stage holds. One key
// for all stages keeps the store single-writer.
const PipelineLockKey int64 = 0x6b616b616b75

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another pipeline stage is running")

// Lock is a held session-level advisory lock.
type Lock struct {
	conn *pgxpool.Conn
	key  int64
}

// TryLock takes the advisory lock for key without waiting. The lock is tied
// to a dedicated pool connection, so it is released by Unlock or when the
// process dies.
func (db *Database) TryLock(ctx context.Context, key int64) (*Lock, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrLocked
	}
	return &Lock{conn: conn, key: key}, nil
}

// Unlock releases the lock and returns its connection to the pool.
func (l *Lock) Unlock(ctx context.Context) error {
	defer l.conn.Release()
	if _, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	return nil
}
