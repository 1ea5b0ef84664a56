// Package postgres constructs the pgx connection pool used by the diagnosis
// store, with OpenTelemetry query tracing and a pluggable per-query observer
// for Prometheus instrumentation.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var queryObserver atomic.Pointer[queryObserverHolder]

type queryObserverHolder struct{ QueryObserver }

// QueryObserver receives per-query metrics (wired by main for Prometheus).
type QueryObserver interface {
	ObserveQuery(ctx context.Context, operation, outcome string, dur time.Duration)
}

// QueryObserverFunc adapts a plain function to QueryObserver.
type QueryObserverFunc func(ctx context.Context, operation, outcome string, dur time.Duration)

// ObserveQuery implements QueryObserver.
func (f QueryObserverFunc) ObserveQuery(ctx context.Context, operation, outcome string, dur time.Duration) {
	f(ctx, operation, outcome, dur)
}

// SetQueryObserver sets the global query observer.
func SetQueryObserver(o QueryObserver) {
	if o == nil {
		queryObserver.Store(nil)
		return
	}
	queryObserver.Store(&queryObserverHolder{QueryObserver: o})
}

// NewPool creates a pgx pool with otel tracing and the observer tracer
// attached, and verifies connectivity with a bounded ping.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.ConnConfig.Tracer = &observingTracer{inner: otelpgx.NewTracer()}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

type ctxKey string

const (
	ctxKeyStart ctxKey = "pgx.start"
	ctxKeyOp    ctxKey = "pgx.operation"
)

// observingTracer wraps another pgx.QueryTracer (otelpgx) and feeds the
// global query observer with per-query duration and outcome.
type observingTracer struct {
	inner pgx.QueryTracer
}

func (t *observingTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	// Let the inner tracer create its span first.
	ctx = t.inner.TraceQueryStart(ctx, conn, data)
	ctx = context.WithValue(ctx, ctxKeyStart, time.Now())
	return context.WithValue(ctx, ctxKeyOp, sqlOperation(data.SQL))
}

func (t *observingTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	t.inner.TraceQueryEnd(ctx, conn, data)

	h := queryObserver.Load()
	if h == nil {
		return
	}
	start, ok := ctx.Value(ctxKeyStart).(time.Time)
	if !ok {
		return
	}
	op, _ := ctx.Value(ctxKeyOp).(string)
	outcome := "success"
	if data.Err != nil {
		outcome = "error"
	}
	h.ObserveQuery(ctx, op, outcome, time.Since(start))
}

// sqlOperation extracts the leading SQL verb for metric labelling.
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToUpper(fields[0])
}
