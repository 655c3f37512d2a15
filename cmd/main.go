package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/openalp/firn/camera"
	"github.com/openalp/firn/featureflag"
	firnhttp "github.com/openalp/firn/http"
	"github.com/openalp/firn/render"
	"github.com/openalp/firn/scheduler"
	"github.com/openalp/firn/smoketest"
	"github.com/openalp/firn/tile"
	"github.com/openalp/firn/tileload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The Firn version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "firn_info",
		Help:        "Firn information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	AdminAddr                   string        `cli:""        env:"FIRN_ADMIN_ADDR"            help:"Admin listening address."`
	OrthoURL                    string        `cli:""        env:"FIRN_ORTHO_URL"             help:"Imagery tile URL pattern with {z}, {x} and {y} placeholders."`
	HeightURL                   string        `cli:""        env:"FIRN_HEIGHT_URL"            help:"Elevation tile URL pattern with {z}, {x} and {y} placeholders."`
	LogLevel                    string        `cli:""        env:"FIRN_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent                   bool          `cli:""        env:"FIRN_LOG_INDENT"            help:"Indent logs."`
	RamQuadLimit                int           `cli:""        env:"FIRN_RAM_QUAD_LIMIT"        help:"The maximum number of quads kept in RAM."`
	GpuQuadLimit                int           `cli:""        env:"FIRN_GPU_QUAD_LIMIT"        help:"The maximum number of quads kept on the GPU."`
	PermissibleScreenSpaceError float64       `cli:""        env:"FIRN_PERMISSIBLE_SSE"       help:"Screen space error in pixels above which a tile is refined."`
	UpdateTimeout               time.Duration `cli:",hidden" env:"FIRN_UPDATE_TIMEOUT"        help:"Debounce delay before a camera change triggers a refresh."`
	PurgeTimeout                time.Duration `cli:",hidden" env:"FIRN_PURGE_TIMEOUT"         help:"Debounce delay before arrived quads trigger a RAM purge."`
	FetchConcurrency            int           `cli:",hidden" env:"FIRN_FETCH_CONCURRENCY"     help:"The maximum number of concurrent tile downloads."`
	FetchCacheSize              int           `cli:",hidden" env:"FIRN_FETCH_CACHE_SIZE"      help:"The number of raw tile payloads kept in the fetch cache."`
	LogSummaryInterval          time.Duration `cli:",hidden" env:"FIRN_LOG_SUMMARY_INTERVAL"  help:"The duration between each emission log summary."`
	MapExtent                   float64       `cli:",hidden" env:"FIRN_MAP_EXTENT"            help:"Edge length of the square map in meters."`
	MapMaxHeight                float64       `cli:",hidden" env:"FIRN_MAP_MAX_HEIGHT"        help:"Upper bound of the terrain height range in meters."`
	CameraInterval              time.Duration `cli:",hidden" env:"FIRN_CAMERA_INTERVAL"       help:"The duration between synthetic camera updates."`
	FeatureFlags                []string      `cli:",hidden" env:"FIRN_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version                     bool          `cli:""        env:"-"                          help:"Show version."`
	Help                        bool          `cli:""        env:"-"                          help:"Show help."`
}

func main() {
	conf := config{
		AdminAddr:                   ":18190",
		OrthoURL:                    "https://tiles.openalp.org/ortho/{z}/{x}/{y}.jpeg",
		HeightURL:                   "https://tiles.openalp.org/height/{z}/{x}/{y}.png",
		LogLevel:                    logs.InfoLevel.String(),
		RamQuadLimit:                512,
		GpuQuadLimit:                256,
		PermissibleScreenSpaceError: 2,
		UpdateTimeout:               time.Millisecond * 100,
		PurgeTimeout:                time.Second * 5,
		LogSummaryInterval:          time.Minute,
		MapExtent:                   40075016,
		MapMaxHeight:                9000,
		CameraInterval:              time.Second,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the Firn tile streaming server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	flags := featureflag.New(conf.FeatureFlags)

	bounds := tile.MapBounds{
		Extent:    conf.MapExtent,
		MaxHeight: conf.MapMaxHeight,
	}

	loader := tileload.New(ctx, tileload.Options{
		OrthoURLPattern:      conf.OrthoURL,
		HeightURLPattern:     conf.HeightURL,
		Transport:            metrics.HTTPTransport(http.DefaultTransport),
		MaxConcurrentFetches: conf.FetchConcurrency,
		CacheSize:            conf.FetchCacheSize,
		DisableCache:         flags.IsSet(featureflag.FlagDisableTileFetchCache),
	})

	window := render.NewHeadless()
	defer window.Close()

	var schedLoader scheduler.QuadLoader = loader
	flags.IfSet(featureflag.FlagLogQuadRequests, func() {
		schedLoader = scheduler.LoaderWithLogs(schedLoader)
	})

	var target scheduler.GpuTarget = window
	if flags.IsSet(featureflag.FlagLogGpuUpdates) {
		logged := scheduler.TargetWithLogs(target, conf.LogSummaryInterval)
		defer logged.Close()
		target = logged
	}

	sched := scheduler.New(scheduler.Options{
		Loader:                      schedLoader,
		Target:                      target,
		Bounds:                      bounds,
		RamQuadLimit:                conf.RamQuadLimit,
		GpuQuadLimit:                conf.GpuQuadLimit,
		PermissibleScreenSpaceError: conf.PermissibleScreenSpaceError,
		UpdateTimeout:               conf.UpdateTimeout,
		PurgeTimeout:                conf.PurgeTimeout,
	})
	defer sched.Close()

	loader.DeliverTo(sched)

	go driveCamera(ctx, sched, bounds, conf.CameraInterval)

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.Handle("/health", firnhttp.HandleWithCORS(http.HandlerFunc(firnhttp.HandleHealthCheck)))
	admin.Handle("/ready", firnhttp.HandleWithCORS(firnhttp.HandleReadyCheck(sched.Enabled)))
	admin.Handle("/version", firnhttp.HandleWithCORS(firnhttp.HandleVersion(version)))
	admin.Handle("/stats", firnhttp.HandleWithCORS(firnhttp.HandleStats(func() any {
		return sched.Stats()
	})))
	admin.HandleFunc("/smoke-test", smoketest.Handle(smoketest.Options{
		RamQuadLimit:                conf.RamQuadLimit,
		GpuQuadLimit:                conf.GpuQuadLimit,
		PermissibleScreenSpaceError: conf.PermissibleScreenSpaceError,
	}))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("admin_addr", conf.AdminAddr).
		WithTag("ortho_url", conf.OrthoURL).
		WithTag("height_url", conf.HeightURL).
		Info("starting firn server")

	firnhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.AdminAddr, Handler: metrics.HTTPHandler(&admin,
			firnhttp.MetricsPathFormatter)},
	)

	loader.Wait()
}

// driveCamera flies a synthetic descending orbit over the map center until
// ctx is canceled. It stands in for a host application's camera.
func driveCamera(ctx context.Context, sched *scheduler.Scheduler, bounds tile.MapBounds, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var step int
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			angle := float64(step) * math.Pi / 60
			altitude := bounds.Extent / math.Pow(1.05, float64(step%200))

			sched.UpdateCamera(camera.Definition{
				Position: tile.Vec3{
					X: bounds.Extent/2 + bounds.Extent/4*math.Cos(angle),
					Y: bounds.Extent/2 + bounds.Extent/4*math.Sin(angle),
					Z: altitude,
				},
				ViewportWidth:  1920,
				ViewportHeight: 1080,
				FieldOfView:    math.Pi / 3,
			})
			step++
		}
	}
}

func validateConfig(conf config) error {
	for _, pattern := range []string{conf.OrthoURL, conf.HeightURL} {
		if _, err := url.ParseRequestURI(pattern); err != nil {
			return errors.New("invalid tile url pattern").
				WithTag("pattern", pattern).
				Wrap(err)
		}
		for _, placeholder := range []string{"{z}", "{x}", "{y}"} {
			if !strings.Contains(pattern, placeholder) {
				return errors.New("tile url pattern is missing a placeholder").
					WithTag("pattern", pattern).
					WithTag("placeholder", placeholder)
			}
		}
	}

	if conf.RamQuadLimit <= 0 || conf.GpuQuadLimit <= 0 {
		return errors.New("quad limits must be positive")
	}
	if conf.PermissibleScreenSpaceError <= 0 {
		return errors.New("permissible screen space error must be positive")
	}
	if conf.UpdateTimeout <= 0 || conf.PurgeTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if conf.MapExtent <= 0 {
		return errors.New("map extent must be positive")
	}

	return nil
}
