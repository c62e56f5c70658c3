// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/smartscreen-ai/gateway/internal/config"
)

var (
	ErrPoolTimeout = errors.New("timed out waiting for a database connection")
	ErrPoolClosed  = errors.New("database pool is closed")
)

type DBTX interface {
	sqlx.ExtContext
	sqlx.ExecerContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(
		ctx context.Context,
		dest any,
		query string,
		args ...any,
	) error
}

// Acquirer runs fn inside one pooled transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type Acquirer interface {
	Acquire(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error
}

type PoolStatus struct {
	Max                int     `json:"max"`
	Min                int     `json:"min"`
	Available          int     `json:"available"`
	InUse              int     `json:"in_use"`
	Waiting            int     `json:"waiting"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// Pool bounds concurrent database work with a counting semaphore sized to
// the configured maximum. Status reads only atomics.
type Pool struct {
	db             *sqlx.DB
	pgx            *pgxpool.Pool
	sem            *semaphore.Weighted
	minConns       int
	maxConns       int
	acquireTimeout time.Duration

	inUse     atomic.Int64
	waiting   atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	//nolint:gosec // G115: bounds validated by config
	pgCfg.MaxConns = int32(cfg.MaxConns)
	//nolint:gosec // G115: bounds validated by config
	pgCfg.MinConns = int32(cfg.MinConns)
	pgCfg.MaxConnLifetime = jitteredDuration(cfg.ConnMaxLifetime)
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	if cfg.HealthCheckPeriod > 0 {
		pgCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	pgCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	var pg *pgxpool.Pool
	backoff := retry.WithMaxDuration(
		cfg.ConnectTimeout,
		retry.NewExponential(200*time.Millisecond),
	)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := pgxpool.NewWithConfig(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := candidate.Ping(pingCtx); err != nil {
			candidate.Close()
			return retry.RetryableError(fmt.Errorf("ping database: %w", err))
		}

		pg = candidate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pg), "pgx")
	db.SetMaxOpenConns(cfg.MaxConns)

	p := NewPoolFromDB(db, cfg)
	p.pgx = pg

	return p, nil
}

// NewPoolFromDB wraps an already opened handle with the acquisition bound
// described by cfg.
func NewPoolFromDB(db *sqlx.DB, cfg config.DatabaseConfig) *Pool {
	maxConns := cfg.MaxConns
	if maxConns < 1 {
		maxConns = 1
	}

	return &Pool{
		db:             db,
		sem:            semaphore.NewWeighted(int64(maxConns)),
		minConns:       cfg.MinConns,
		maxConns:       maxConns,
		acquireTimeout: cfg.AcquireTimeout,
	}
}

func (p *Pool) Acquire(
	ctx context.Context,
	fn func(ctx context.Context, q DBTX) error,
) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	if err := p.wait(ctx); err != nil {
		return err
	}

	p.inUse.Add(1)
	defer func() {
		p.inUse.Add(-1)
		p.sem.Release(1)
	}()

	if p.closed.Load() {
		return ErrPoolClosed
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback() //nolint:errcheck // best-effort rollback on panic
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (p *Pool) wait(ctx context.Context) error {
	waitCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	p.waiting.Add(1)
	err := p.sem.Acquire(waitCtx, 1)
	p.waiting.Add(-1)

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("acquire connection: %w", ctxErr)
	}
	return ErrPoolTimeout
}

func (p *Pool) Status() PoolStatus {
	inUse := int(p.inUse.Load())
	available := p.maxConns - inUse
	if available < 0 {
		available = 0
	}

	utilization := float64(inUse) / float64(p.maxConns) * 100
	utilization = math.Round(utilization*10) / 10

	return PoolStatus{
		Max:                p.maxConns,
		Min:                p.minConns,
		Available:          available,
		InUse:              inUse,
		Waiting:            int(p.waiting.Load()),
		UtilizationPercent: utilization,
	}
}

func (p *Pool) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// DB exposes the raw handle for tooling that manages its own
// transactions, such as migrations.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}

// Shutdown closes every pooled connection. Calls after the first are no-ops.
func (p *Pool) Shutdown() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.closeErr = p.db.Close()
		if p.pgx != nil {
			p.pgx.Close()
		}
	})
	return p.closeErr
}

func jitteredDuration(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	//nolint:gosec // G404: non-security-sensitive jitter for connection pool
	jitter := time.Duration(rand.Int64N(int64(base/7) + 1))
	return base + jitter
}
