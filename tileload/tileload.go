// Package tileload fetches imagery and elevation tiles over HTTP and
// assembles them into quads for the scheduler.
package tileload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openalp/firn/tile"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxConcurrentFetches bounds the number of in flight tile
	// downloads per service.
	DefaultMaxConcurrentFetches = 16

	// DefaultCacheSize is the number of raw tile payloads kept in the fetch
	// cache.
	DefaultCacheSize = 512

	// DefaultFetchTimeout bounds a single tile download.
	DefaultFetchTimeout = 30 * time.Second
)

// ErrTypeTileNotFound classifies fetches the tile server answered with 404.
// Maps have holes, these are expected and not treated as failures.
const ErrTypeTileNotFound = "tileload_tile_not_found"

// QuadReceiver accepts assembled quads. The scheduler implements it.
type QuadReceiver interface {
	ReceiveQuads(quads []tile.Quad)
}

// Options configure a Service. The URL patterns are mandatory and must
// contain the {z}, {x} and {y} placeholders.
type Options struct {
	// Where imagery tiles are fetched from, eg.
	// https://tiles.example.com/ortho/{z}/{x}/{y}.jpeg.
	OrthoURLPattern string

	// Where elevation tiles are fetched from.
	HeightURLPattern string

	Transport http.RoundTripper

	MaxConcurrentFetches int
	FetchTimeout         time.Duration

	// Size of the raw payload cache. DisableCache turns the cache off
	// entirely, every request then hits the network.
	CacheSize    int
	DisableCache bool

	OrthoTileSize  uint32
	HeightTileSize uint32
}

// Service downloads the tiles referenced by quad requests and delivers
// assembled quads to its receiver. Deliveries are asynchronous and may be
// partial: a tile that cannot be fetched yields a nil raster in the quad.
type Service struct {
	ctx    context.Context
	client *http.Client
	opts   Options

	fetchCache *lru.Cache[string, []byte]

	mutex    sync.Mutex
	receiver QuadReceiver
	pending  sync.WaitGroup
}

// New returns a tile loading service. It panics when the URL patterns are
// missing or malformed.
func New(ctx context.Context, opts Options) *Service {
	for _, pattern := range []string{opts.OrthoURLPattern, opts.HeightURLPattern} {
		if pattern == "" {
			panic("tileload: url pattern is not set")
		}
		if !strings.Contains(pattern, "{z}") ||
			!strings.Contains(pattern, "{x}") ||
			!strings.Contains(pattern, "{y}") {
			panic("tileload: url pattern is missing a {z}, {x} or {y} placeholder")
		}
	}

	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.OrthoTileSize == 0 {
		opts.OrthoTileSize = 256
	}
	if opts.HeightTileSize == 0 {
		opts.HeightTileSize = 65
	}

	var fetchCache *lru.Cache[string, []byte]
	if !opts.DisableCache {
		// lru.New only fails on a non positive size, which is handled above.
		fetchCache, _ = lru.New[string, []byte](opts.CacheSize)
	}

	return &Service{
		ctx: ctx,
		client: &http.Client{
			Transport: opts.Transport,
			Timeout:   opts.FetchTimeout,
		},
		opts:       opts,
		fetchCache: fetchCache,
	}
}

// DeliverTo sets the receiver for assembled quads. It must be called before
// the first request arrives.
func (s *Service) DeliverTo(r QuadReceiver) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.receiver = r
}

// RequestQuads fetches the tiles backing the given quad ids in the
// background and delivers the assembled quads to the receiver once the whole
// batch completed.
func (s *Service) RequestQuads(ids []tile.Id) {
	if len(ids) == 0 {
		return
	}

	batchID := uuid.NewString()
	batch := make([]tile.Id, len(ids))
	copy(batch, ids)

	s.pending.Add(1)
	go s.loadBatch(batchID, batch)
}

// Wait blocks until all in flight batches have been delivered.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) loadBatch(batchID string, ids []tile.Id) {
	defer s.pending.Done()

	start := time.Now()

	quads := make([]tile.Quad, len(ids))
	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.opts.MaxConcurrentFetches)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			quads[i] = s.loadQuad(ctx, id)
			return nil
		})
	}

	// Workers never return an error, fetch failures degrade to nil rasters.
	g.Wait()

	if s.ctx.Err() != nil {
		return
	}

	s.mutex.Lock()
	receiver := s.receiver
	s.mutex.Unlock()

	if receiver == nil {
		panic("tileload: no receiver is set")
	}

	logs.WithTag("batch_id", batchID).
		WithTag("quad_count", len(quads)).
		WithTag("duration", time.Since(start)).
		Debug("quad batch delivered")
	instrumentBatchLoaded(len(quads), time.Since(start))

	receiver.ReceiveQuads(quads)
}

// loadQuad fetches the payloads of the four children of id. Individual fetch
// failures are logged and leave the corresponding raster nil.
func (s *Service) loadQuad(ctx context.Context, id tile.Id) tile.Quad {
	quad := tile.Quad{Id: id}

	for i, child := range id.Children() {
		quad.Tiles[i].Id = child

		ortho, err := s.loadRaster(ctx, s.opts.OrthoURLPattern, child, s.opts.OrthoTileSize)
		if err != nil {
			logFetchError("ortho", child, err)
		}
		quad.Tiles[i].Ortho = ortho

		height, err := s.loadRaster(ctx, s.opts.HeightURLPattern, child, s.opts.HeightTileSize)
		if err != nil {
			logFetchError("height", child, err)
		}
		quad.Tiles[i].Height = height
	}

	return quad
}

func (s *Service) loadRaster(ctx context.Context, pattern string, id tile.Id, size uint32) (*tile.Raster, error) {
	url := expandURLPattern(pattern, id)

	if s.fetchCache != nil {
		if payload, ok := s.fetchCache.Get(url); ok {
			instrumentCacheHit()
			return tile.NewRaster(size, payload), nil
		}
	}

	payload, err := s.fetch(ctx, url)
	if err != nil {
		instrumentFetchError()
		return nil, err
	}
	instrumentFetch(len(payload))

	if s.fetchCache != nil {
		s.fetchCache.Add(url, payload)
	}
	return tile.NewRaster(size, payload), nil
}

func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New("creating tile request failed").
			WithTag("url", url).
			Wrap(err)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, errors.New("requesting tile failed").
			WithTag("url", url).
			Wrap(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.New("tile is not available").
			WithType(ErrTypeTileNotFound).
			WithTag("url", url)
	}
	if res.StatusCode != http.StatusOK {
		return nil, errors.New("tile server returned a non ok status").
			WithTag("url", url).
			WithTag("status", res.StatusCode)
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.New("reading tile payload failed").
			WithTag("url", url).
			Wrap(err)
	}
	return payload, nil
}

func logFetchError(layer string, id tile.Id, err error) {
	if errors.IsType(err, ErrTypeTileNotFound) {
		logs.WithTag("tile_id", id.String()).
			WithTag("layer", layer).
			Debug("tile is not available")
		return
	}

	logs.WithTag("tile_id", id.String()).
		WithTag("layer", layer).
		Error(errors.New("fetching tile failed").Wrap(err))
}

func expandURLPattern(pattern string, id tile.Id) string {
	r := strings.NewReplacer(
		"{z}", fmt.Sprint(id.Zoom),
		"{x}", fmt.Sprint(id.Coords.X),
		"{y}", fmt.Sprint(id.Coords.Y),
	)
	return r.Replace(pattern)
}
