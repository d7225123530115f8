package postgres

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("safetypulse.postgres")

// queryTracer implements pgx.QueryTracer. It opens a span per statement so
// repository calls show up under the report pipeline's commit span.
type queryTracer struct {
	logger *slog.Logger
	slow   time.Duration
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

func newQueryTracer(logger *slog.Logger, slow time.Duration) *queryTracer {
	return &queryTracer{logger: logger, slow: slow}
}

type queryStartKey struct{}

type queryStart struct {
	sql string
	at  time.Time
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, _ = tracer.Start(ctx, "db."+statementVerb(data.SQL),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", data.SQL),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, at: time.Now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}

	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok || t.slow <= 0 {
		return
	}
	if elapsed := time.Since(start.at); elapsed >= t.slow {
		t.logger.WarnContext(ctx, "slow query",
			slog.Duration("elapsed", elapsed),
			slog.String("sql", compactSQL(start.sql)),
		)
	}
}

// statementVerb returns the lower-cased leading keyword, e.g. "select".
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToLower(fields[0])
}

func compactSQL(sql string) string {
	const limit = 200
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
