package obs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

type pgxSpanKey struct{}

// PGXTracer implements pgx.QueryTracer. Each statement becomes a client span
// named after its SQL verb. pgx.ErrNoRows is a lookup miss that the stores
// turn into a not-found error, so it is not recorded as a span error.
type PGXTracer struct {
	// Provider defaults to the global tracer provider.
	Provider trace.TracerProvider
}

func (t PGXTracer) tracer() trace.Tracer {
	if t.Provider != nil {
		return t.Provider.Tracer("db.pgx")
	}
	return otel.Tracer("db.pgx")
}

// TraceQueryStart starts the statement span.
func (t PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, span := t.tracer().Start(ctx, "pg "+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	return context.WithValue(ctx, pgxSpanKey{}, span)
}

// TraceQueryEnd records the outcome and ends the span.
func (t PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(pgxSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, "query failed")
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
}

func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "QUERY"
	}
	op := strings.ToUpper(fields[0])
	if op == "WITH" {
		// the last verb of a CTE statement names it
		for _, f := range fields[1:] {
			switch up := strings.ToUpper(f); up {
			case "SELECT", "INSERT", "UPDATE", "DELETE":
				op = up
			}
		}
	}
	return op
}

func truncateSQL(sql string) string {
	trimmed := strings.Join(strings.Fields(sql), " ")
	if len(trimmed) > maxStatementLen {
		return trimmed[:maxStatementLen] + "..."
	}
	return trimmed
}
