package weft

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/telemetry"
)

// DefaultFrameInterval is the task queue flush interval used by Run when
// Config.FrameInterval is zero.
const DefaultFrameInterval = 16 * time.Millisecond

// Config configures a Runtime. The zero value is usable.
type Config struct {
	// Logger is the structured logger for the runtime.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics records queue, binding and lifecycle activity.
	// If nil, nothing is recorded.
	Metrics *telemetry.Metrics

	// Tracer creates controller lifecycle spans.
	// If nil, the global OpenTelemetry provider is used.
	Tracer trace.Tracer

	// Locator resolves accessors and observers.
	// If nil, a new Locator is created.
	Locator *observe.Locator

	// BatchQueue coalesces notifications of Objects created by the runtime.
	// If nil, a new queue is created.
	BatchQueue *observe.BatchQueue

	// FrameInterval is how often Run flushes the task queue.
	// Default: 16ms.
	FrameInterval time.Duration

	// Behaviors adds binding behaviors ("& name") on top of the built-in
	// mode behaviors.
	Behaviors map[string]func(expr.Expression) *expr.Behavior
}
