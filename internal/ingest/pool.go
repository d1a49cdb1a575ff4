package ingest

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"treegift/internal/logging"
	"treegift/internal/services"
)

// ImageSource lists the stored images of a request.
type ImageSource interface {
	GetImagesForRequestID(ctx context.Context, requestID string) ([]string, error)
}

// PoolListener is notified whenever a request's pool contents change.
type PoolListener func(requestID string, urls []string)

// ImagePool caches candidate image URLs per request. The first Fetch for an
// id loads from the source; concurrent loads for the same id share one call.
type ImagePool struct {
	source ImageSource
	logger *slog.Logger
	group  singleflight.Group

	mu        sync.RWMutex
	images    map[string][]string
	listeners []PoolListener
}

// NewImagePool constructs an empty pool backed by source.
func NewImagePool(source ImageSource, logger *slog.Logger) *ImagePool {
	return &ImagePool{
		source: source,
		logger: logging.NewComponentLogger(logger, "image-pool"),
		images: make(map[string][]string),
	}
}

// Subscribe registers fn for pool change notifications.
func (p *ImagePool) Subscribe(fn PoolListener) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Images returns a copy of the cached pool for requestID.
func (p *ImagePool) Images(requestID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.images[requestID])
}

// Fetch returns the pool for requestID, loading it on first use.
func (p *ImagePool) Fetch(ctx context.Context, requestID string) ([]string, error) {
	p.mu.RLock()
	cached, ok := p.images[requestID]
	p.mu.RUnlock()
	if ok {
		return slices.Clone(cached), nil
	}
	return p.load(ctx, requestID)
}

// Refresh reloads the pool for requestID from the source.
func (p *ImagePool) Refresh(ctx context.Context, requestID string) ([]string, error) {
	return p.load(ctx, requestID)
}

// Merge adds urls to the pool, skipping duplicates and keeping first-seen
// order, and returns the merged pool.
func (p *ImagePool) Merge(requestID string, urls ...string) []string {
	p.mu.Lock()
	merged := MergeURLs(p.images[requestID], urls...)
	changed := !slices.Equal(merged, p.images[requestID])
	p.images[requestID] = merged
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	if changed {
		notify(listeners, requestID, merged)
	}
	return slices.Clone(merged)
}

// Forget drops the cached pool for requestID.
func (p *ImagePool) Forget(requestID string) {
	p.mu.Lock()
	delete(p.images, requestID)
	p.mu.Unlock()
}

func (p *ImagePool) load(ctx context.Context, requestID string) ([]string, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "image pool", "request id required", nil)
	}
	if p.source == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "image pool", "no image source", nil)
	}
	value, err, shared := p.group.Do(requestID, func() (any, error) {
		urls, err := p.source.GetImagesForRequestID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		return MergeURLs(nil, urls...), nil
	})
	if err != nil {
		logging.WarnWithContext(p.logger, "image pool fetch failed", "image_pool_fetch",
			logging.String(logging.FieldRequestID, requestID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "automatic photo matching unavailable"),
		)
		return nil, services.Wrap(services.ErrIngestion, "ingest", "image pool", "fetch images", err)
	}
	urls := value.([]string)

	p.mu.Lock()
	changed := !slices.Equal(urls, p.images[requestID])
	_, known := p.images[requestID]
	p.images[requestID] = urls
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	p.logger.Debug("image pool loaded",
		logging.String(logging.FieldRequestID, requestID),
		logging.Int("images", len(urls)),
		logging.Bool("shared", shared),
	)
	if changed || !known {
		notify(listeners, requestID, urls)
	}
	return slices.Clone(urls), nil
}

// MergeURLs appends extra to base, dropping blanks and duplicates.
func MergeURLs(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, u := range list {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

func notify(listeners []PoolListener, requestID string, urls []string) {
	for _, fn := range listeners {
		fn(requestID, slices.Clone(urls))
	}
}
