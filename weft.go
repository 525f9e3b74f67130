// Package weft wires the observation, binding, scheduling and lifecycle
// packages into a Runtime.
//
// A Runtime owns one task queue. Bindings and controllers created from it
// must be driven from the goroutine that runs the queue (Run or Flush);
// other goroutines hand work to that goroutine with Post. Controllers
// created from a Runtime resume through Post after a pending lifecycle
// hook, so a hook that waits never holds the loop.
//
//	rt := weft.New(weft.Config{Logger: logger})
//	vm := rt.Object(map[string]any{"name": "World"})
//	text := dom.NewText("")
//	b, _ := rt.Interpolate("Hello, ${name}!", text, "textContent", binding.ToView)
//	_ = b.Bind(scope.New(vm), nil)
package weft

import (
	"context"
	"log/slog"
	"maps"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/weft/pkg/binding"
	"github.com/vango-dev/weft/pkg/controller"
	"github.com/vango-dev/weft/pkg/dom"
	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scheduler"
	"github.com/vango-dev/weft/pkg/scope"
	"github.com/vango-dev/weft/pkg/telemetry"
)

// Runtime is the entry point of a weft application.
type Runtime struct {
	Locator    *observe.Locator
	BatchQueue *observe.BatchQueue
	Queue      *scheduler.TaskQueue
	Parser     *expr.Parser

	config  Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	env     *binding.Env
}

// New creates a Runtime with the given configuration.
func New(cfg Config) *Runtime {
	// Apply defaults
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("")
	}
	loc := cfg.Locator
	if loc == nil {
		loc = observe.NewLocator()
	}
	batch := cfg.BatchQueue
	if batch == nil {
		batch = observe.NewBatchQueue()
	}
	if cfg.Metrics != nil && batch.OnPass == nil {
		batch.OnPass = cfg.Metrics.BatchPass
	}

	behaviors := binding.Behaviors()
	maps.Copy(behaviors, cfg.Behaviors)

	rt := &Runtime{
		Locator:    loc,
		BatchQueue: batch,
		Queue: scheduler.New(
			scheduler.WithLogger(logger),
			scheduler.WithMetrics(cfg.Metrics),
		),
		Parser:  &expr.Parser{Behaviors: behaviors},
		config:  cfg,
		logger:  logger,
		metrics: cfg.Metrics,
		tracer:  tracer,
	}
	rt.env = &binding.Env{
		Locator: loc,
		Queue:   rt.Queue,
		Logger:  logger,
		Metrics: cfg.Metrics,
	}
	return rt
}

// Config returns the runtime configuration with defaults applied.
func (r *Runtime) Config() Config {
	return r.config
}

// Logger returns the runtime logger.
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// Env returns the environment bindings created by the runtime share.
func (r *Runtime) Env() *binding.Env {
	return r.env
}

// Object creates an observable object whose notifications go through the
// runtime's batch queue.
func (r *Runtime) Object(values map[string]any) *observe.Object {
	return observe.NewObject(values, observe.WithBatchQueue(r.BatchQueue))
}

// Batch runs fn with notifications deferred until fn returns.
func (r *Runtime) Batch(fn func()) error {
	return r.BatchQueue.Inline(fn)
}

// Interpolate parses a ${...} template and binds it to target.property.
func (r *Runtime) Interpolate(text string, target any, property string, mode binding.Mode) (*binding.InterpolationBinding, error) {
	in, err := r.Parser.Interpolation(text)
	if err != nil {
		return nil, err
	}
	return binding.NewInterpolation(r.env, in, target, property, mode), nil
}

// Text parses src and renders its value in front of anchor.
func (r *Runtime) Text(src string, anchor *dom.Node, mode binding.Mode) (*binding.TextBinding, error) {
	e, err := r.Parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return binding.NewText(r.env, e, anchor, mode), nil
}

// Property parses src and binds it to target.property.
func (r *Runtime) Property(src string, target any, property string, mode binding.Mode) (*binding.PropertyBinding, error) {
	e, err := r.Parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return binding.NewProperty(r.env, e, target, property, mode), nil
}

func (r *Runtime) controllerConfig(cfg controller.Config) controller.Config {
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}
	if cfg.Tracer == nil {
		cfg.Tracer = r.tracer
	}
	if cfg.Post == nil {
		cfg.Post = r.Post
	}
	if cfg.Metrics == nil {
		cfg.Metrics = r.metrics
	}
	return cfg
}

// CustomElement creates a custom element controller using the runtime's
// logger, tracer and metrics unless cfg sets its own.
func (r *Runtime) CustomElement(cfg controller.Config) *controller.Controller {
	return controller.NewCustomElement(r.controllerConfig(cfg))
}

// Synthetic creates a synthetic view controller.
func (r *Runtime) Synthetic(cfg controller.Config) *controller.Controller {
	return controller.NewSynthetic(r.controllerConfig(cfg))
}

// ViewFactory creates a view factory whose views use the runtime's
// logger, tracer and metrics.
func (r *Runtime) ViewFactory(name string, cacheSize int, build func() controller.Config) *controller.ViewFactory {
	return controller.NewViewFactory(name, cacheSize, func() controller.Config {
		return r.controllerConfig(build())
	})
}

// Render evaluates a template once against data and returns the result.
// Nothing stays subscribed afterwards.
func (r *Runtime) Render(text string, data map[string]any) (string, error) {
	in, err := r.Parser.Interpolation(text)
	if err != nil {
		return "", err
	}
	node := dom.NewText("")
	b := binding.NewInterpolation(r.env, in, node, "textContent", binding.OneTime)
	if err := b.Bind(scope.New(r.Object(data)), nil); err != nil {
		return "", err
	}
	defer b.Unbind()
	return node.TextContent(), nil
}

// Post hands fn to the goroutine running the task queue. It is safe to
// call from any goroutine.
func (r *Runtime) Post(fn func()) error {
	_, err := r.Queue.QueueTask(fn, scheduler.TaskOptions{})
	return err
}

// Flush runs the queued tasks on the calling goroutine.
func (r *Runtime) Flush() int {
	return r.Queue.Flush()
}

// Run flushes the task queue every frame until ctx is done or the runtime
// is disposed.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Debug("runtime started", "frame_interval", r.config.FrameInterval)
	return r.Queue.Run(ctx, r.config.FrameInterval)
}

// Dispose stops the task queue. Pending tasks are canceled.
func (r *Runtime) Dispose() {
	r.Queue.Dispose()
}
