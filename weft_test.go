package weft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/weft/pkg/binding"
	"github.com/vango-dev/weft/pkg/controller"
	"github.com/vango-dev/weft/pkg/dom"
	"github.com/vango-dev/weft/pkg/expr"
	"github.com/vango-dev/weft/pkg/scheduler"
	"github.com/vango-dev/weft/pkg/scope"
	"github.com/vango-dev/weft/pkg/telemetry"
)

// gathered sums every sample of the named metric.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.Counter != nil:
				total += m.GetCounter().GetValue()
			case m.Gauge != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func TestNewAppliesDefaults(t *testing.T) {
	rt := New(Config{})
	defer rt.Dispose()

	if rt.Config().FrameInterval != DefaultFrameInterval {
		t.Errorf("FrameInterval = %v, want %v", rt.Config().FrameInterval, DefaultFrameInterval)
	}
	if rt.Locator == nil || rt.BatchQueue == nil || rt.Queue == nil || rt.Logger() == nil {
		t.Fatal("New left a service unset")
	}
	if rt.Env().Queue != rt.Queue {
		t.Error("bindings must share the runtime task queue")
	}
}

func TestInterpolateDefersLayoutWrites(t *testing.T) {
	rt := New(Config{})
	defer rt.Dispose()

	vm := rt.Object(map[string]any{"a": "X", "b": "Y"})
	text := dom.NewText("")
	b, err := rt.Interpolate("${a} and ${b}", text, "textContent", binding.ToView)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Bind(scope.New(vm), nil); err != nil {
		t.Fatal(err)
	}
	if got := text.TextContent(); got != "X and Y" {
		t.Fatalf("initial = %q", got)
	}

	if err := vm.Set("a", "Z"); err != nil {
		t.Fatal(err)
	}
	if err := vm.Set("a", "W"); err != nil {
		t.Fatal(err)
	}
	if got := text.TextContent(); got != "X and Y" {
		t.Fatalf("write not deferred: %q", got)
	}
	if n := rt.Flush(); n != 1 {
		t.Errorf("Flush ran %d tasks, want 1", n)
	}
	if got := text.TextContent(); got != "W and Y" {
		t.Fatalf("after flush = %q, want %q", got, "W and Y")
	}
}

func TestRender(t *testing.T) {
	rt := New(Config{})
	defer rt.Dispose()

	got, err := rt.Render("Hello, ${user.name}! ${count > 0 ? 'new' : 'none'}", map[string]any{
		"user":  map[string]any{"name": "Ada"},
		"count": 0,
	})
	if err == nil {
		t.Fatalf("expected a syntax error for an unsupported operator, got %q", got)
	}
	if !errors.Is(err, expr.ErrSyntax) {
		t.Fatalf("error = %v, want ErrSyntax", err)
	}

	got, err = rt.Render("Hello, ${user.name}! ${unread ? 'new' : 'none'}", map[string]any{
		"user":   map[string]any{"name": "Ada"},
		"unread": false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello, Ada! none" {
		t.Fatalf("Render = %q", got)
	}
	if rt.Queue.Len() != 0 {
		t.Error("Render left tasks queued")
	}
}

func TestBatchRecordsPasses(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt := New(Config{Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg))})
	defer rt.Dispose()

	vm := rt.Object(map[string]any{"n": 0})
	text := dom.NewText("")
	b, err := rt.Interpolate("${n}", text, "textContent", binding.ToView)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Bind(scope.New(vm), nil); err != nil {
		t.Fatal(err)
	}

	err = rt.Batch(func() {
		_ = vm.Set("n", 1)
		_ = vm.Set("n", 2)
	})
	if err != nil {
		t.Fatal(err)
	}
	rt.Flush()

	if got := text.TextContent(); got != "2" {
		t.Fatalf("text = %q, want 2", got)
	}
	if got := gathered(t, reg, "weft_batch_passes_total"); got != 1 {
		t.Errorf("batch passes = %v, want 1", got)
	}
	if got := gathered(t, reg, "weft_target_writes_total"); got != 2 {
		t.Errorf("target writes = %v, want 2", got)
	}
}

func TestCustomBehavior(t *testing.T) {
	var bound []string
	rt := New(Config{Behaviors: map[string]func(expr.Expression) *expr.Behavior{
		"trace": func(e expr.Expression) *expr.Behavior {
			return &expr.Behavior{
				Expression: e,
				Name:       "trace",
				OnBind: func(s, host *scope.Scope, target any) error {
					bound = append(bound, fmt.Sprint(e))
					return nil
				},
			}
		},
	}})
	defer rt.Dispose()

	text := dom.NewText("")
	b, err := rt.Interpolate("${title & trace} ${title & oneTime}", text, "textContent", binding.ToView)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Bind(scope.New(rt.Object(map[string]any{"title": "t"})), nil); err != nil {
		t.Fatal(err)
	}
	if len(bound) != 1 || bound[0] != "title" {
		t.Fatalf("trace behavior bound %v", bound)
	}
}

func TestPostAndRun(t *testing.T) {
	rt := New(Config{FrameInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	ran := make(chan struct{})
	if err := rt.Post(func() { close(ran) }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("posted task did not run")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	rt.Dispose()
	if err := rt.Post(func() {}); !errors.Is(err, scheduler.ErrQueueUnavailable) {
		t.Fatalf("Post after Dispose = %v, want ErrQueueUnavailable", err)
	}
}

func TestControllersUseRuntimeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt := New(Config{Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg))})
	defer rt.Dispose()

	text := dom.NewText("")
	b, err := rt.Interpolate("${label}", text, "textContent", binding.ToView)
	if err != nil {
		t.Fatal(err)
	}
	c := rt.CustomElement(controller.Config{
		Name:      "badge",
		ViewModel: rt.Object(map[string]any{"label": "new"}),
		Bindings:  []binding.Binding{b},
	})
	ctx := context.Background()
	if err := c.Activate(ctx, nil).Err(); err != nil {
		t.Fatal(err)
	}
	if got := text.TextContent(); got != "new" {
		t.Fatalf("text = %q", got)
	}
	if got := gathered(t, reg, "weft_controllers_active"); got != 1 {
		t.Errorf("active controllers = %v, want 1", got)
	}
	if err := c.Deactivate(ctx).Err(); err != nil {
		t.Fatal(err)
	}
	if got := gathered(t, reg, "weft_controller_activations_total"); got != 1 {
		t.Errorf("activations = %v, want 1", got)
	}
	if got := gathered(t, reg, "weft_controllers_active"); got != 0 {
		t.Errorf("active controllers = %v, want 0", got)
	}

	f := rt.ViewFactory("row", 2, func() controller.Config { return controller.Config{} })
	if v := f.Create(); v.Name != "row" {
		t.Errorf("view name = %q, want row", v.Name)
	}
}

type pendingBeforeBind struct {
	entered chan struct{}
	result  *controller.Future
}

func (h *pendingBeforeBind) BeforeBind(ctx context.Context, c *controller.Controller) *controller.Future {
	close(h.entered)
	return h.result
}

// settledWithin waits for f and fails the test if it stays pending.
func settledWithin(t *testing.T, f *controller.Future, what string) error {
	t.Helper()
	select {
	case <-f.Done():
		return f.Err()
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not settle", what)
		return nil
	}
}

// A pending hook must not hold the run loop: other posted work, including
// the Deactivate that cancels the activation, runs while it waits.
func TestLifecycleThroughRunLoop(t *testing.T) {
	rt := New(Config{FrameInterval: time.Millisecond})
	defer rt.Dispose()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	result, settle := controller.NewFuture()
	hook := &pendingBeforeBind{entered: make(chan struct{}), result: result}
	var mu sync.Mutex
	var states []controller.State
	c := rt.Synthetic(controller.Config{
		Name:  "card",
		Hooks: hook,
		OnTransition: func(c *controller.Controller, from, to controller.State) {
			mu.Lock()
			states = append(states, to)
			mu.Unlock()
		},
	})

	activations := make(chan *controller.Future, 1)
	if err := rt.Post(func() { activations <- c.Activate(ctx, nil) }); err != nil {
		t.Fatal(err)
	}
	var activation *controller.Future
	select {
	case activation = <-activations:
	case <-time.After(2 * time.Second):
		t.Fatal("Activate held the run loop")
	}
	<-hook.entered
	if activation.Settled() {
		t.Fatal("activation settled while beforeBind is pending")
	}

	ran := make(chan struct{})
	if err := rt.Post(func() { close(ran) }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("posted work did not run while beforeBind was pending")
	}

	deactivations := make(chan *controller.Future, 1)
	if err := rt.Post(func() { deactivations <- c.Deactivate(ctx) }); err != nil {
		t.Fatal(err)
	}
	var deactivation *controller.Future
	select {
	case deactivation = <-deactivations:
	case <-time.After(2 * time.Second):
		t.Fatal("Deactivate did not run while beforeBind was pending")
	}

	settle(nil)
	if err := settledWithin(t, activation, "activation"); !errors.Is(err, controller.ErrActivationCanceled) {
		t.Fatalf("activation = %v, want ErrActivationCanceled", err)
	}
	if err := settledWithin(t, deactivation, "deactivation"); err != nil {
		t.Fatalf("deactivation = %v", err)
	}
	if got := c.State(); got != controller.StateDeactivated {
		t.Fatalf("state = %s, want deactivated", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, s := range states {
		if s == controller.StateActivated {
			t.Fatalf("controller reached activated: %v", states)
		}
	}
}
