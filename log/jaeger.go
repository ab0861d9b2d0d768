package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	jaeger "github.com/uber/jaeger-client-go"
	config "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-client-go/log/zap"
)

var tracer opentracing.Tracer
var tracerCloser io.Closer
var noPanicOrphanedSpans bool
var SpanServiceName string

// Use JAEGER_AGENT_HOST and JAEGER_AGENT_PORT to send UDP traces
// to different host:port (otherwise uses localhost:6831).
func InitTracer() {
	SpanServiceName = filepath.Base(os.Args[0])
	cfg, err := config.FromEnv()
	if err != nil {
		panic(fmt.Sprintf("ERROR: bad Jaeger env config: %v\n", err))
	}
	cfg.Sampler = &config.SamplerConfig{
		Type:  jaeger.SamplerTypeProbabilistic,
		Param: 0.001,
	}
	if cfg.Reporter == nil {
		cfg.Reporter = &config.ReporterConfig{}
	}
	t, closer, err := cfg.New(SpanServiceName, config.Logger(zap.NewLogger(slogger.Desugar())))
	if err != nil {
		panic(fmt.Sprintf("ERROR: cannot init Jaeger: %v\n", err))
	}
	tracer = t
	tracerCloser = closer
	opentracing.SetGlobalTracer(t)

	if _, found := os.LookupEnv("NO_PANIC_ORPHANED_SPANS"); found {
		noPanicOrphanedSpans = true
	}
}

func FinishTracer() {
	if tracerCloser != nil {
		tracerCloser.Close()
	}
	tracer = nil
	tracerCloser = nil
}

// TraceData is used to transport trace/span across boundaries,
// such as via redis events.
type TraceData map[string]string

func (t TraceData) Set(key, val string) {
	t[key] = val
}

func (t TraceData) ForeachKey(handler func(key, val string) error) error {
	for k, v := range t {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

func SpanToString(ctx context.Context) string {
	span, ok := SpanFromContext(ctx).(*Span)
	if !ok || span.noTracing || tracer == nil {
		return ""
	}
	t := TraceData{}
	tracer.Inject(span.Context(), opentracing.TextMap, t)
	val, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return string(val)
}

func NewSpanFromString(lvl uint64, val, spanName string) opentracing.Span {
	if tracer == nil {
		return NoTracingSpan()
	}
	if val != "" {
		t := TraceData{}
		err := json.Unmarshal([]byte(val), &t)
		if err == nil {
			spanCtx, err := tracer.Extract(opentracing.TextMap, t)
			if err == nil {
				return StartSpan(lvl, spanName, ext.RPCServerOption(spanCtx))
			}
		}
	}
	return StartSpan(lvl, spanName)
}
