// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package envelope

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AccelByte/extend-server-matchmaker/pkg/utils"
)

const (
	traceIDLogField = "traceID"
	tracerName      = "server-matchmaker"

	TicketIDTag     = "mm.ticket_id"
	PlayerIDTag     = "mm.player_id"
	PoolKeyTag      = "mm.pool_key"
	ServerIDTag     = "mm.server_id"
	ConnectionIDTag = "mm.connection_id"
)

// ChildScopeFromRemoteScope starts a scope from an incoming request context, keeping the remote trace when present.
func ChildScopeFromRemoteScope(ctx context.Context, name string) *Scope {
	tracer := otel.Tracer(tracerName)
	tracerCtx, span := tracer.Start(ctx, name)
	traceID := span.SpanContext().TraceID().String()
	if !span.SpanContext().HasTraceID() || len(traceID) != 32 {
		traceID = utils.GenerateUUID()
	}

	return &Scope{
		Ctx:     tracerCtx,
		TraceID: traceID,
		span:    span,
		Log:     logrus.WithField(traceIDLogField, traceID),
	}
}

func NewRootScope(rootCtx context.Context, name string, traceID string) *Scope {
	tracer := otel.Tracer(name)
	ctx, span := tracer.Start(rootCtx, name)

	if traceID == "" || len(traceID) != 32 {
		traceID = utils.GenerateUUID()
	}

	return &Scope{
		Ctx:     ctx,
		TraceID: traceID,
		span:    span,
		Log:     logrus.WithField(traceIDLogField, traceID),
	}
}

// Scope used as the envelope to combine and transport request-related information by the chain of function calls
type Scope struct {
	Ctx     context.Context
	TraceID string
	span    oteltrace.Span
	Log     *logrus.Entry
}

// SetLogger allows for setting a different logger than the default std logger. This is mostly useful for testing.
func (s *Scope) SetLogger(logger *logrus.Logger) {
	s.Log = logger.WithField(traceIDLogField, s.TraceID)
}

// Finish finishes current scope
func (s *Scope) Finish() {
	s.span.End()
}

// NewChildScope creates new child Scope.
func (s *Scope) NewChildScope(name string) *Scope {
	tracer := s.span.TracerProvider().Tracer(tracerName)
	ctx, span := tracer.Start(s.Ctx, name)

	return &Scope{
		Ctx:     ctx,
		TraceID: s.TraceID,
		span:    span,
		Log:     s.Log,
	}
}

// Detached starts a scope for background work spawned by this scope. It keeps the trace id and logger
// but is bound to ctx instead of the caller's context, so it outlives the request that created it.
func (s *Scope) Detached(ctx context.Context, name string) *Scope {
	tracer := s.span.TracerProvider().Tracer(tracerName)
	linked := oteltrace.WithLinks(oteltrace.Link{SpanContext: s.span.SpanContext()})
	childCtx, span := tracer.Start(ctx, name, linked)

	return &Scope{
		Ctx:     childCtx,
		TraceID: s.TraceID,
		span:    span,
		Log:     s.Log,
	}
}

// WithField returns a shallow copy of the scope whose logger carries the field; the span attribute is set too.
func (s *Scope) WithField(key string, value interface{}) *Scope {
	s.SetAttributes(key, value)

	return &Scope{
		Ctx:     s.Ctx,
		TraceID: s.TraceID,
		span:    s.span,
		Log:     s.Log.WithField(key, value),
	}
}

// SetAttributes adds attributes onto a span based on the value object type
func (s *Scope) SetAttributes(key string, value interface{}) {
	switch v := value.(type) {
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case []string:
		s.span.SetAttributes(attribute.StringSlice(key, v))
	case []int:
		s.span.SetAttributes(attribute.IntSlice(key, v))
	case time.Duration:
		s.span.SetAttributes(attribute.Int64(key, v.Milliseconds()))
	case time.Time:
		s.span.SetAttributes(attribute.String(key, v.Format(time.RFC3339Nano)))
	case fmt.Stringer:
		s.span.SetAttributes(attribute.String(key, v.String()))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}
