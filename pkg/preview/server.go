// Package preview serves a live rendering of a template.
//
// The template is bound to an observable view model. Updates posted to
// /state run on the runtime's task queue; every change to the rendered
// tree is pushed to the browsers connected to /ws.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/weft"
	"github.com/vango-dev/weft/pkg/binding"
	"github.com/vango-dev/weft/pkg/dom"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/scope"
)

// maxStateBytes bounds the body of POST /state.
const maxStateBytes = 1 << 20

// Options configures a Server.
type Options struct {
	// Template is the ${...} template rendered into the preview.
	Template string

	// Data is the initial view model.
	Data map[string]any

	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer

	// Logger defaults to the runtime's logger.
	Logger *slog.Logger
}

// Server renders a template against a view model and serves it over HTTP.
type Server struct {
	rt      *weft.Runtime
	vm      *observe.Object
	root    *dom.Node
	binding *binding.InterpolationBinding
	hub     *Hub
	router  chi.Router
	logger  *slog.Logger

	mu   sync.RWMutex
	html string
}

// New binds the template and builds the router. It must run before the
// runtime's task loop starts, or on the runtime goroutine.
func New(rt *weft.Runtime, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = rt.Logger()
	}
	s := &Server{
		rt:     rt,
		vm:     rt.Object(observable(opts.Data)),
		root:   dom.El("div", dom.Attr("id", "weft-preview")),
		hub:    NewHub(),
		logger: logger,
	}

	text := dom.NewText("")
	if err := s.root.AppendChild(text); err != nil {
		return nil, err
	}
	b, err := rt.Interpolate(opts.Template, text, "textContent", binding.ToView)
	if err != nil {
		return nil, fmt.Errorf("preview template: %w", err)
	}
	s.binding = b

	s.root.OnMutation(func(dom.Mutation) { s.publish() })
	if err := b.Bind(scope.New(s.vm), nil); err != nil {
		return nil, fmt.Errorf("preview bind: %w", err)
	}
	s.publish()

	s.router = s.routes(opts.Gatherer)
	return s, nil
}

func (s *Server) routes(gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/state", s.handleGetState)
	r.Post("/state", s.handlePostState)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the preview's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HTML returns the latest rendering.
func (s *Server) HTML() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.html
}

// publish runs on the runtime goroutine after every change to the tree.
func (s *Server) publish() {
	html := dom.HTML(s.root)
	s.mu.Lock()
	changed := html != s.html
	s.html = html
	s.mu.Unlock()
	if changed {
		s.hub.Broadcast(Message{Type: MessageRender, HTML: html})
	}
}

// Update sets values on the view model from the runtime goroutine and
// waits until they are applied.
func (s *Server) Update(ctx context.Context, values map[string]any) error {
	done := make(chan error, 1)
	err := s.rt.Post(func() {
		done <- s.rt.Batch(func() {
			for k, v := range observable(values) {
				if err := s.vm.Set(k, v); err != nil {
					s.logger.Warn("preview update failed", "key", k, "error", err)
				}
			}
		})
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the view model.
func (s *Server) State() map[string]any {
	out := make(map[string]any)
	for _, k := range s.vm.Keys() {
		v := s.vm.Get(k)
		if sl, ok := v.(*observe.Slice); ok {
			v = sl.Items()
		}
		out[k] = v
	}
	return out
}

// Close disconnects all clients and unbinds the template on the runtime
// goroutine.
func (s *Server) Close() {
	s.hub.Close()
	if err := s.rt.Post(s.binding.Unbind); err != nil {
		// The runtime is gone, so nothing else touches the binding.
		s.binding.Unbind()
	}
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("preview listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>weft preview</title></head>
<body>
<div id="preview">{{.}}</div>
<script>
(function() {
    var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(protocol + '//' + location.host + '/ws');
    ws.onmessage = function(e) {
        var msg = JSON.parse(e.data);
        if (msg.type === 'render') {
            document.getElementById('preview').innerHTML = msg.html;
        }
    };
})();
</script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, template.HTML(s.HTML())); err != nil {
		s.logger.Warn("preview index failed", "error", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(s.HTML()))
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State())
}

func (s *Server) handlePostState(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStateBytes))
	if err := dec.Decode(&values); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a JSON object"})
		return
	}
	if err := s.Update(r.Context(), values); err != nil {
		s.logger.Warn("preview update failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"updated": len(values)})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r, func() Message {
		return Message{Type: MessageRender, HTML: s.HTML()}
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("preview request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// observable turns JSON arrays into observable slices so bindings see
// their mutations.
func observable(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if items, ok := v.([]any); ok {
			v = observe.NewSlice(items...)
		}
		out[k] = v
	}
	return out
}
