package log

import (
	"context"
	"runtime"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	trlog "github.com/opentracing/opentracing-go/log"
	jaeger "github.com/uber/jaeger-client-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Wrap Span so we can override Finish()
type Span struct {
	*jaeger.Span
	noTracing bool // special span that only logs to disk
	tags      map[string]interface{}
}

func StartSpan(lvl uint64, operationName string, opts ...opentracing.StartSpanOption) opentracing.Span {
	if tracer == nil {
		// before InitTracer spans only log to disk
		span := NoTracingSpan()
		span.SetTag("operation", operationName)
		return span
	}
	ospan := tracer.StartSpan(operationName, opts...)
	if DebugLevelInfo&lvl != 0 || debugLevel&lvl != 0 {
		// always log (note DebugLevelInfo is always logged)
		ext.SamplingPriority.Set(ospan, 1)
	} else {
		ext.SamplingPriority.Set(ospan, 0)
	}

	jspan, ok := ospan.(*jaeger.Span)
	if !ok {
		panic("non-jaeger span not supported")
	}
	span := &Span{Span: jspan}
	lineno := GetLineno(1)
	span.SetTag("lineno", lineno)

	if jspan.SpanContext().IsSampled() {
		spanlogger.Info(getSpanMsg(span, lineno, "start "+operationName))
	}
	return span
}

// This span only logs to disk, and does not actually do any tracing.
// It is primarily for use during init for logging to disk before Jaeger
// is initialized, or for unit tests.
func NoTracingSpan() opentracing.Span {
	return &Span{
		noTracing: true,
		tags:      make(map[string]interface{}),
	}
}

// ChildSpan starts a span under the span in ctx. The returned context
// is not tied to the parent context's cancellation.
func ChildSpan(ctx context.Context, lvl uint64, operationName string) (opentracing.Span, context.Context) {
	var span opentracing.Span
	parent, ok := SpanFromContext(ctx).(*Span)
	if tracer == nil || !ok || parent.noTracing {
		span = NoTracingSpan()
	} else {
		span = StartSpan(lvl, operationName, opentracing.ChildOf(parent.Context()))
	}
	return span, ContextWithSpan(context.Background(), span)
}

func ContextWithSpan(ctx context.Context, span opentracing.Span) context.Context {
	return opentracing.ContextWithSpan(ctx, span)
}

func SpanFromContext(ctx context.Context) opentracing.Span {
	return opentracing.SpanFromContext(ctx)
}

func SetTags(span opentracing.Span, tags map[string]string) {
	for k, v := range tags {
		span.SetTag(k, v)
	}
}

func SetContextTags(ctx context.Context, tags map[string]string) {
	if span := SpanFromContext(ctx); span != nil {
		SetTags(span, tags)
	}
}

func SpanLog(ctx context.Context, lvl uint64, msg string, keysAndValues ...interface{}) {
	if debugLevel&lvl == 0 && lvl != DebugLevelInfo {
		return
	}
	lineno := GetLineno(1)
	ospan := opentracing.SpanFromContext(ctx)
	if ospan == nil {
		if tracer != nil && !noPanicOrphanedSpans {
			panic("no span in context")
		}
		spanlogger.Info(getSpanMsg(nil, lineno, msg), getFields(keysAndValues)...)
		return
	}
	span, ok := ospan.(*Span)
	if !ok {
		panic("non-saas Span not supported")
	}
	if span.noTracing {
		// just log to disk
		zfields := getFields(keysAndValues)
		for k, v := range span.tags {
			zfields = append(zfields, zap.Any(k, v))
		}
		spanlogger.Info(getSpanMsg(nil, lineno, msg), zfields...)
		return
	}
	if !span.SpanContext().IsSampled() {
		return
	}
	fields := []trlog.Field{
		trlog.String("msg", msg),
		trlog.String("lineno", lineno),
	}
	kvfields, err := trlog.InterleavedKVToFields(keysAndValues...)
	if err != nil {
		FatalLog("SpanLog invalid args", "err", err)
	}
	fields = append(fields, kvfields...)
	span.LogFields(fields...)

	// zap and opentracing don't share a Field type, so convert.
	spanlogger.Info(getSpanMsg(span, lineno, msg), getFields(keysAndValues)...)
}

func getFields(args []interface{}) []zap.Field {
	fields := []zap.Field{}
	for i := 0; i+1 < len(args); i += 2 {
		if keystr, ok := args[i].(string); ok {
			fields = append(fields, zap.Any(keystr, args[i+1]))
		}
	}
	return fields
}

// Convenience function for test routines. Does not require InitTracer().
func StartTestSpan(ctx context.Context) context.Context {
	return opentracing.ContextWithSpan(ctx, NoTracingSpan())
}

func (s *Span) SetTag(key string, value interface{}) opentracing.Span {
	if s.noTracing {
		s.tags[key] = value
		return s
	}
	s.Span.SetTag(key, value)
	return s
}

func (s *Span) Finish() {
	if s.noTracing {
		return
	}
	s.Span.Finish()

	jspan := s.Span
	if !jspan.SpanContext().IsSampled() {
		return
	}
	fields := []zap.Field{}
	for k, v := range jspan.Tags() {
		if IgnoreSpanTag(k) {
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}
	msg := getSpanMsg(s, GetLineno(1), "finish "+s.OperationName())
	spanlogger.Info(msg, fields...)
}

func getSpanMsg(s *Span, lineno, msg string) string {
	traceid := "notrace"
	if s != nil && !s.noTracing {
		traceid = s.Span.SpanContext().TraceID().String()
	}
	return traceid + "\t" + lineno + "\t" + msg
}

func GetLineno(skip int) string {
	ec := zapcore.NewEntryCaller(runtime.Caller(skip + 1))
	return ec.TrimmedPath()
}

func IgnoreSpanTag(tag string) bool {
	if tag == "internal.span.format" ||
		tag == "sampler.param" ||
		tag == "sampler.type" ||
		tag == "sampling.priority" ||
		tag == "span.kind" {
		return true
	}
	return false
}
