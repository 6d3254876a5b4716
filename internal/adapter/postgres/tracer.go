package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// QueryObserver receives the duration and outcome of each query.
type QueryObserver interface {
	ObserveQuery(query string, seconds float64, err error)
}

// MetricsTracer implements pgx.QueryTracer and reports every query to an observer.
type MetricsTracer struct {
	observer QueryObserver
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(observer QueryObserver) *MetricsTracer {
	return &MetricsTracer{observer: observer}
}

type queryContextKey struct{}

type queryContext struct {
	startTime time.Time
	queryName string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{
		startTime: time.Now(),
		queryName: extractQueryName(data.SQL),
	})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}
	t.observer.ObserveQuery(qctx.queryName, time.Since(qctx.startTime).Seconds(), data.Err)
}

// extractQueryName returns the leading SQL verb so metric labels stay low-cardinality.
func extractQueryName(sql string) string {
	for i, c := range sql {
		if c == ' ' || c == '\n' || c == '\t' {
			if i > 0 {
				return sql[:i]
			}
			return extractQueryName(sql[i+1:])
		}
	}
	if sql == "" {
		return "unknown"
	}
	if len(sql) > 20 {
		return sql[:20]
	}
	return sql
}
