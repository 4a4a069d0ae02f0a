package advisorylock

import (
	"context"
	"database/sql"
	"fmt"
)

// Postgres takes session advisory locks. A session lock belongs to the connection that took it, so
// every lease pins one pooled connection until it is released.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func lockFunctions(mode Mode) (lock, try, unlock string) {
	if mode == Shared {
		return "pg_advisory_lock_shared", "pg_try_advisory_lock_shared", "pg_advisory_unlock_shared"
	}
	return "pg_advisory_lock", "pg_try_advisory_lock", "pg_advisory_unlock"
}

func (p *Postgres) Acquire(ctx context.Context, key int64, mode Mode) (Lease, error) {
	lock, _, unlock := lockFunctions(mode)
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT "+lock+"($1)", key); err != nil {
		conn.Close()
		return nil, err
	}
	return &pgLease{conn: conn, key: key, unlock: unlock}, nil
}

func (p *Postgres) TryAcquire(ctx context.Context, key int64, mode Mode) (Lease, bool, error) {
	_, try, unlock := lockFunctions(mode)
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT "+try+"($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, err
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}
	return &pgLease{conn: conn, key: key, unlock: unlock}, true, nil
}

type pgLease struct {
	conn   *sql.Conn
	key    int64
	unlock string
}

func (l *pgLease) Release(ctx context.Context) error {
	defer l.conn.Close()
	var released bool
	if err := l.conn.QueryRowContext(ctx, "SELECT "+l.unlock+"($1)", l.key).Scan(&released); err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("advisory lock %d was not held by this session", l.key)
	}
	return nil
}
