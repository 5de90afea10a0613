package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/shroomify/server/observability"

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartDBSpan starts a span for remote store operations
func StartDBSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("DB %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// TraceDB wraps sql.DB with tracing for the remote store drivers.
type TraceDB struct {
	db *sql.DB
}

// NewTraceDB creates a traced database wrapper
func NewTraceDB(db *sql.DB) *TraceDB {
	return &TraceDB{db: db}
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := StartSpan(ctx, "DB Query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", truncateQuery(query))),
	)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", time.Since(start).Milliseconds()))

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := StartSpan(ctx, "DB Exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", truncateQuery(query))),
	)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", time.Since(start).Milliseconds()))

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := StartSpan(ctx, "DB QueryRow",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.statement", truncateQuery(query))),
	)

	row := t.db.QueryRowContext(ctx, query, args...)
	span.End()
	return row
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// ScanMetrics holds custom scan pipeline metrics
type ScanMetrics struct {
	classifications metric.Int64Counter
	syncConfirmed   metric.Int64Counter
	syncFailed      metric.Int64Counter
	batchEnqueued   metric.Int64Counter
	pendingRecords  metric.Int64UpDownCounter
	authAttempts    metric.Int64Counter
}

// NewScanMetrics creates scan pipeline metric instruments
func NewScanMetrics() (*ScanMetrics, error) {
	meter := otel.Meter(instrumentationName)

	classifications, err := meter.Int64Counter(
		"shroomify.scan.classifications",
		metric.WithDescription("Total number of inference classifications"),
		metric.WithUnit("{scans}"),
	)
	if err != nil {
		return nil, err
	}

	syncConfirmed, err := meter.Int64Counter(
		"shroomify.sync.confirmed",
		metric.WithDescription("Scan records confirmed by the remote store"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	syncFailed, err := meter.Int64Counter(
		"shroomify.sync.failed",
		metric.WithDescription("Scan record sync attempts that failed"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	batchEnqueued, err := meter.Int64Counter(
		"shroomify.batch.enqueued",
		metric.WithDescription("Batch items enqueued"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return nil, err
	}

	pendingRecords, err := meter.Int64UpDownCounter(
		"shroomify.queue.pending",
		metric.WithDescription("Scan records awaiting remote confirmation"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	authAttempts, err := meter.Int64Counter(
		"shroomify.auth.attempts",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	return &ScanMetrics{
		classifications: classifications,
		syncConfirmed:   syncConfirmed,
		syncFailed:      syncFailed,
		batchEnqueued:   batchEnqueued,
		pendingRecords:  pendingRecords,
		authAttempts:    authAttempts,
	}, nil
}

// RecordClassification records one inference outcome
func (m *ScanMetrics) RecordClassification(ctx context.Context, classification int, sentinel bool) {
	m.classifications.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("classification", classification),
		attribute.Bool("sentinel", sentinel),
	))
}

// RecordSyncOutcome records one reconciler insert attempt
func (m *ScanMetrics) RecordSyncOutcome(ctx context.Context, confirmed bool) {
	if confirmed {
		m.syncConfirmed.Add(ctx, 1)
		m.pendingRecords.Add(ctx, -1)
	} else {
		m.syncFailed.Add(ctx, 1)
	}
}

// RecordBatchEnqueue records a batch item entering the queue
func (m *ScanMetrics) RecordBatchEnqueue(ctx context.Context) {
	m.batchEnqueued.Add(ctx, 1)
}

// RecordPendingAppend records a new pending record in the local queue
func (m *ScanMetrics) RecordPendingAppend(ctx context.Context) {
	m.pendingRecords.Add(ctx, 1)
}

// RecordAuthAttempt records a credential or OAuth sign-in attempt
func (m *ScanMetrics) RecordAuthAttempt(ctx context.Context, method string, success bool) {
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	))
}
