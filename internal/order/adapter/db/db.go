package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/xpkg/config"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/retry"
)

type DB struct {
	ctx   context.Context
	cfg   *config.Postgres
	mylog logger.Logger
	pool  *pgxpool.Pool
}

// Start opens a connection pool, retrying while the database comes up.
func Start(ctx context.Context, dbCfg *config.Postgres, mylog logger.Logger) (*DB, error) {
	d := &DB{
		ctx:   ctx,
		cfg:   dbCfg,
		mylog: mylog,
	}

	log := mylog.Action("db_connecting")
	policy := retry.Policy{Retries: 5, Initial: time.Second, MaxInterval: 5 * time.Second}
	pool, err := retry.Do(ctx, policy, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := d.connect(ctx)
		if err != nil {
			log.Warn("Database not reachable yet", "error", err.Error())
		}
		return pool, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDBConn, err)
	}
	d.pool = pool
	return d, nil
}

func (d *DB) connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(d.cfg.DSN())
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("parse dsn: %w", err))
	}
	if d.cfg.MaxConns > 0 {
		poolCfg.MaxConns = d.cfg.MaxConns
	}
	if d.cfg.LockTimeout > 0 {
		// a blocked row lock fails with 55P03 and the whole transaction is retried
		poolCfg.ConnConfig.RuntimeParams["lock_timeout"] = strconv.FormatInt(d.cfg.LockTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies Schema.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// IsAlive pings the pool to verify it's responsive
func (d *DB) IsAlive() error {
	if d.pool == nil {
		return errors.New("DB is not initialized")
	}
	if err := d.pool.Ping(d.ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// transient SQLSTATE codes: the same transaction may succeed when re-run.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled
}

const stockConstraint = "menu_items_stock_nonnegative"

// classify maps driver errors onto the core error classes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case transientCodes[pgErr.Code]:
			return fmt.Errorf("%w: %w", core.ErrTransient, err)
		case pgErr.Code == "23514" && pgErr.ConstraintName == stockConstraint:
			return core.ErrInsufficientStock
		}
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", core.ErrTransient, err)
	}
	// connection refused or reset before the server answered
	var connErr *pgconn.ConnectError
	var opErr *net.OpError
	if errors.As(err, &connErr) || errors.As(err, &opErr) {
		return fmt.Errorf("%w: %w", core.ErrTransient, err)
	}
	return err
}
