// Command weft-bench measures update latency of the live preview.
//
// Every client owns one slot of the previewed template. It posts a fresh
// token to /state and waits for a render frame on /ws that contains it.
// The round trip covers the HTTP update, the batch queue, the deferred
// layout write and the WebSocket broadcast.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/weft"
	"github.com/vango-dev/weft/pkg/preview"
	"github.com/vango-dev/weft/pkg/telemetry"
)

type profile struct {
	Name     string
	Clients  int
	Duration time.Duration
	RPS      float64
}

var profiles = map[string]profile{
	"fast":     {Name: "fast", Clients: 20, Duration: 10 * time.Second, RPS: 2},
	"standard": {Name: "standard", Clients: 100, Duration: 30 * time.Second, RPS: 5},
	"stress":   {Name: "stress", Clients: 250, Duration: 60 * time.Second, RPS: 10},
}

type benchConfig struct {
	Profile       string
	Clients       int
	Duration      time.Duration
	RPS           float64
	FrameInterval time.Duration
	JSONOutput    string
	UpdateTimeout time.Duration
}

type benchCounters struct {
	updatesSent     atomic.Uint64
	updatesComplete atomic.Uint64
	frames          atomic.Uint64
	frameBytes      atomic.Uint64
}

type benchErrors struct {
	handshakeFailures atomic.Uint64
	postFailures      atomic.Uint64
	frameFailures     atomic.Uint64
	tokenMissing      atomic.Uint64
	totalErrors       atomic.Uint64
}

func main() {
	log.SetFlags(0)

	cfg, err := parseConfig()
	if err != nil {
		log.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	rt := weft.New(weft.Config{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:       telemetry.NewMetrics(telemetry.WithRegistry(reg)),
		FrameInterval: cfg.FrameInterval,
	})
	defer rt.Dispose()

	srv, err := preview.New(rt, preview.Options{
		Template: slotTemplate(cfg.Clients),
		Data:     slotData(cfg.Clients),
	})
	if err != nil {
		log.Fatalf("preview: %v", err)
	}
	defer srv.Close()

	runCtx, stopRuntime := context.WithCancel(context.Background())
	defer stopRuntime()
	go rt.Run(runCtx)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	httpServer := &http.Server{Handler: srv.Handler()}
	go func() {
		_ = httpServer.Serve(ln)
	}()
	defer func() {
		_ = httpServer.Shutdown(context.Background())
	}()

	base := "http://" + ln.Addr().String()
	wsURL := "ws://" + ln.Addr().String() + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var (
		samples   []time.Duration
		samplesMu sync.Mutex
		counters  benchCounters
		errCounts benchErrors
	)
	record := func(d time.Duration) {
		samplesMu.Lock()
		samples = append(samples, d)
		samplesMu.Unlock()
	}

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		i := i
		go func() {
			defer wg.Done()
			if err := runClient(ctx, base, wsURL, i, cfg, &counters, &errCounts, record); err != nil {
				errCounts.totalErrors.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	samplesMu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	samplesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := buildReport(cfg, elapsed, latencies, &counters, &errCounts, before, after, gatherTotals(reg))
	writeSummary(os.Stderr, report)
	if err := writeJSON(cfg.JSONOutput, report); err != nil {
		log.Fatalf("write json: %v", err)
	}
}

func parseConfig() (benchConfig, error) {
	profileFlag := flag.String("profile", "standard", "profile: fast|standard|stress")
	clientsFlag := flag.Int("clients", -1, "number of concurrent websocket clients")
	durationFlag := flag.String("duration", "", "benchmark duration, e.g. 30s")
	rpsFlag := flag.Float64("rps", -1, "target updates/sec per client")
	frameFlag := flag.Duration("frame", weft.DefaultFrameInterval, "task queue flush interval")
	jsonFlag := flag.String("json", "-", "JSON output path ('-' for stdout)")
	flag.Parse()

	name := strings.ToLower(strings.TrimSpace(*profileFlag))
	if name == "" {
		name = "standard"
	}
	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:       base.Name,
		Clients:       base.Clients,
		Duration:      base.Duration,
		RPS:           base.RPS,
		FrameInterval: *frameFlag,
		JSONOutput:    strings.TrimSpace(*jsonFlag),
	}
	if *clientsFlag != -1 {
		cfg.Clients = *clientsFlag
	}
	if *durationFlag != "" {
		d, err := time.ParseDuration(*durationFlag)
		if err != nil {
			return benchConfig{}, fmt.Errorf("invalid -duration: %w", err)
		}
		cfg.Duration = d
	}
	if *rpsFlag != -1 {
		cfg.RPS = *rpsFlag
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	if cfg.Clients <= 0 {
		return benchConfig{}, errors.New("-clients must be > 0")
	}
	if cfg.Duration <= 0 {
		return benchConfig{}, errors.New("-duration must be > 0")
	}
	if cfg.RPS <= 0 {
		return benchConfig{}, errors.New("-rps must be > 0")
	}
	if cfg.FrameInterval <= 0 {
		return benchConfig{}, errors.New("-frame must be > 0")
	}

	cfg.UpdateTimeout = updateTimeout(cfg.RPS)
	return cfg, nil
}

func updateTimeout(rps float64) time.Duration {
	period := time.Duration(float64(time.Second) / rps)
	timeout := period * 10
	if timeout < 2*time.Second {
		timeout = 2 * time.Second
	}
	return timeout
}

func slotKey(i int) string {
	return fmt.Sprintf("s%d", i)
}

// slotTemplate renders one bracketed slot per client.
func slotTemplate(clients int) string {
	var b strings.Builder
	for i := 0; i < clients; i++ {
		fmt.Fprintf(&b, "[${%s}]", slotKey(i))
	}
	return b.String()
}

func slotData(clients int) map[string]any {
	data := make(map[string]any, clients)
	for i := 0; i < clients; i++ {
		data[slotKey(i)] = ""
	}
	return data
}

func runClient(
	ctx context.Context,
	base, wsURL string,
	clientID int,
	cfg benchConfig,
	counters *benchCounters,
	errCounts *benchErrors,
	record func(time.Duration),
) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		errCounts.handshakeFailures.Add(1)
		return err
	}
	defer conn.Close()

	frames := make(chan string, 64)
	go readFrames(conn, frames, counters, errCounts)

	httpClient := &http.Client{Timeout: cfg.UpdateTimeout}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.RPS))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		seq++
		token := fmt.Sprintf("c%dn%d", clientID, seq)
		body, _ := json.Marshal(map[string]string{slotKey(clientID): token})

		sent := time.Now()
		counters.updatesSent.Add(1)
		resp, err := httpClient.Post(base+"/state", "application/json", bytes.NewReader(body))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			errCounts.postFailures.Add(1)
			errCounts.totalErrors.Add(1)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			errCounts.postFailures.Add(1)
			errCounts.totalErrors.Add(1)
			continue
		}

		if err := waitForToken(ctx, frames, "["+token+"]", cfg.UpdateTimeout); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			errCounts.tokenMissing.Add(1)
			errCounts.totalErrors.Add(1)
			continue
		}
		counters.updatesComplete.Add(1)
		record(time.Since(sent))
	}
}

func readFrames(conn *websocket.Conn, out chan string, counters *benchCounters, errCounts *benchErrors) {
	defer close(out)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		counters.frames.Add(1)
		counters.frameBytes.Add(uint64(len(data)))

		var msg preview.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			errCounts.frameFailures.Add(1)
			continue
		}
		if msg.Type != preview.MessageRender {
			continue
		}
		select {
		case out <- msg.HTML:
		default:
			// A slow reader only needs the newest frames.
			select {
			case <-out:
			default:
			}
			out <- msg.HTML
		}
	}
}

func waitForToken(ctx context.Context, frames <-chan string, token string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errors.New("token timeout")
		case html, ok := <-frames:
			if !ok {
				return errors.New("connection closed")
			}
			if strings.Contains(html, token) {
				return nil
			}
		}
	}
}

// gatherTotals sums every counter family of the registry across labels.
func gatherTotals(g prometheus.Gatherer) map[string]float64 {
	out := make(map[string]float64)
	families, err := g.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[mf.GetName()] += c.GetValue()
			}
		}
	}
	return out
}

type benchReport struct {
	Version    string             `json:"version"`
	Run        runInfo            `json:"run"`
	Workload   workloadInfo       `json:"workload"`
	LatencyMS  latencyInfo        `json:"latency_ms"`
	Throughput throughputInfo     `json:"throughput"`
	GC         gcInfo             `json:"gc"`
	Runtime    map[string]float64 `json:"runtime"`
	Errors     errorInfo          `json:"errors"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
	GitCommit string `json:"git_commit,omitempty"`
}

type workloadInfo struct {
	Profile         string  `json:"profile"`
	Clients         int     `json:"clients"`
	DurationMS      int64   `json:"duration_ms"`
	RPSPerClient    float64 `json:"rps_per_client"`
	FrameIntervalMS float64 `json:"frame_interval_ms"`
	UpdateTimeoutMS int64   `json:"update_timeout_ms"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	UpdatesSent     uint64  `json:"updates_sent"`
	UpdatesTotal    uint64  `json:"updates_total"`
	UpdatesPerSec   float64 `json:"updates_per_sec"`
	Frames          uint64  `json:"frames"`
	AvgFrameBytes   float64 `json:"avg_frame_bytes"`
	FramesPerUpdate float64 `json:"frames_per_update"`
}

type gcInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	HeapLiveMB   float64 `json:"heap_live_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
}

type errorInfo struct {
	TotalErrors       uint64 `json:"total_errors"`
	HandshakeFailures uint64 `json:"handshake_failures"`
	PostFailures      uint64 `json:"post_failures"`
	FrameFailures     uint64 `json:"frame_failures"`
	TokenMissing      uint64 `json:"token_missing"`
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	errs *benchErrors,
	before, after runtime.MemStats,
	totals map[string]float64,
) benchReport {
	updates := counters.updatesComplete.Load()
	frames := counters.frames.Load()
	frameBytes := counters.frameBytes.Load()

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	avgFrameBytes := 0.0
	if frames > 0 {
		avgFrameBytes = float64(frameBytes) / float64(frames)
	}
	framesPerUpdate := 0.0
	if updates > 0 {
		framesPerUpdate = float64(frames) / float64(updates)
	}

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
			GitCommit: gitCommit(),
		},
		Workload: workloadInfo{
			Profile:         cfg.Profile,
			Clients:         cfg.Clients,
			DurationMS:      cfg.Duration.Milliseconds(),
			RPSPerClient:    cfg.RPS,
			FrameIntervalMS: ms(cfg.FrameInterval),
			UpdateTimeoutMS: cfg.UpdateTimeout.Milliseconds(),
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			UpdatesSent:     counters.updatesSent.Load(),
			UpdatesTotal:    updates,
			UpdatesPerSec:   float64(updates) / math.Max(0.001, elapsed.Seconds()),
			Frames:          frames,
			AvgFrameBytes:   avgFrameBytes,
			FramesPerUpdate: framesPerUpdate,
		},
		GC: gcInfo{
			AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:   float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:        after.NumGC - before.NumGC,
			PauseTotalMS: ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
		},
		Runtime: totals,
		Errors: errorInfo{
			TotalErrors:       errs.totalErrors.Load(),
			HandshakeFailures: errs.handshakeFailures.Load(),
			PostFailures:      errs.postFailures.Load(),
			FrameFailures:     errs.frameFailures.Load(),
			TokenMissing:      errs.tokenMissing.Load(),
		},
	}
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintln(w, "=== weft preview benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", report.Workload.Profile)
	fmt.Fprintf(w, "Clients: %d\n", report.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(report.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-client rate: %.2f updates/s\n", report.Workload.RPSPerClient)
	fmt.Fprintf(w, "Frame interval: %.1f ms\n", report.Workload.FrameIntervalMS)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Updates: %d of %d sent\n", report.Throughput.UpdatesTotal, report.Throughput.UpdatesSent)
	fmt.Fprintf(w, "Throughput: %.1f updates/s\n", report.Throughput.UpdatesPerSec)
	fmt.Fprintf(w, "Frames: %d (%.2f per update, %.1f bytes avg)\n",
		report.Throughput.Frames, report.Throughput.FramesPerUpdate, report.Throughput.AvgFrameBytes)
	fmt.Fprintf(w, "Errors: %d\n", report.Errors.TotalErrors)
	fmt.Fprintln(w)

	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "Round trip (POST /state -> render frame with token):")
		fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	if len(report.Runtime) > 0 {
		fmt.Fprintln(w, "Runtime counters:")
		names := make([]string, 0, len(report.Runtime))
		for name := range report.Runtime {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-36s %.0f\n", name, report.Runtime[name])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", report.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", report.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", report.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total)\n", report.GC.PauseTotalMS)
}

func writeJSON(path string, report benchReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
