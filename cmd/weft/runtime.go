package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vango-dev/weft"
	"github.com/vango-dev/weft/internal/config"
	"github.com/vango-dev/weft/internal/errors"
	"github.com/vango-dev/weft/pkg/observe"
	"github.com/vango-dev/weft/pkg/snapshot"
	"github.com/vango-dev/weft/pkg/telemetry"
)

// setup loads the project configuration and builds a runtime from it. The
// returned registry is nil when metrics are disabled.
func setup(flags *globalFlags, logOut io.Writer) (*config.Config, *weft.Runtime, *prometheus.Registry, error) {
	cfg, err := config.Load(flags.dir)
	if err != nil {
		return nil, nil, nil, err
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	logger := cfg.Log.NewLogger(logOut)

	if cfg.Observation.Collections {
		observe.EnableCollectionObservation()
	} else {
		observe.DisableCollectionObservation()
	}

	var (
		reg     *prometheus.Registry
		metrics *telemetry.Metrics
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = telemetry.NewMetrics(
			telemetry.WithRegistry(reg),
			telemetry.WithNamespace(cfg.Metrics.Namespace),
		)
	}

	rt := weft.New(weft.Config{
		Logger:        logger,
		Metrics:       metrics,
		Tracer:        telemetry.Tracer(cfg.Tracing.TracerName),
		FrameInterval: cfg.FrameInterval(),
	})
	if p := cfg.Path(); p != "" {
		logger.Debug("config loaded", "path", p)
	}
	return cfg, rt, reg, nil
}

// readData reads a JSON object from path. An empty path yields an empty
// object.
func readData(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("W301").WithDetail(path).Wrap(err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, errors.New("W301").
			WithDetail(path).
			WithSuggestion(`Pass a file containing an object, e.g. {"name": "World"}`)
	}
	return data, nil
}

// readTemplate reads a template file, or stdin for "-".
func readTemplate(path string, stdin io.Reader) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// snapshotStore returns the store configured in cfg.Snapshot. bucket
// overrides the configured bucket.
func snapshotStore(cfg *config.Config, bucket string) (snapshot.Store, error) {
	sc := cfg.Snapshot
	if bucket == "" {
		bucket = sc.Bucket
	}
	if bucket == "" {
		return snapshot.NewFileStore(cfg.SnapshotPath())
	}
	client := snapshot.NewS3Client(snapshot.S3Options{
		Region:    sc.Region,
		Endpoint:  sc.Endpoint,
		PathStyle: sc.PathStyle,
	})
	prefix := sc.Prefix
	if bucket != sc.Bucket {
		prefix = ""
	}
	return snapshot.NewS3Store(client, bucket, prefix), nil
}
