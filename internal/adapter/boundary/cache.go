package boundary

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/observability"
	"github.com/paulmach/orb/geojson"
)

// CachedSource wraps a BoundarySource with an in-process cache and, when dir
// is set, an on-disk cache whose entries expire after ttl.
type CachedSource struct {
	inner   domain.BoundarySource
	dir     string
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	memory map[string]*geojson.FeatureCollection
}

// NewCachedSource creates a cache decorator around a boundary source. An
// empty dir disables the disk cache.
func NewCachedSource(inner domain.BoundarySource, dir string, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		dir:     dir,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		memory:  make(map[string]*geojson.FeatureCollection),
	}
}

func (c *CachedSource) FetchBoundaries(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	c.mu.Lock()
	fc, ok := c.memory[url]
	c.mu.Unlock()
	if ok {
		c.metrics.BoundaryCache.WithLabelValues("memory").Inc()
		return fc, nil
	}

	if fc, ok := c.readDisk(url); ok {
		c.metrics.BoundaryCache.WithLabelValues("disk").Inc()
		c.remember(url, fc)
		return fc, nil
	}

	c.metrics.BoundaryCache.WithLabelValues("miss").Inc()
	fc, err := c.inner.FetchBoundaries(ctx, url)
	if err != nil {
		return nil, err
	}
	c.remember(url, fc)
	// A failed disk write only costs a refetch next run.
	if err := c.writeDisk(url, fc); err != nil {
		c.logger.Warn("boundary cache write failed", "url", url, "error", err)
	}
	return fc, nil
}

func (c *CachedSource) remember(url string, fc *geojson.FeatureCollection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[url] = fc
}

// path maps a URL onto a stable file name inside the cache directory.
func (c *CachedSource) path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8])+".geojson")
}

func (c *CachedSource) readDisk(url string) (*geojson.FeatureCollection, bool) {
	if c.dir == "" {
		return nil, false
	}
	p := c.path(url)
	info, err := os.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("boundary cache stat failed", "path", p, "error", err)
		}
		return nil, false
	}
	if age := domain.Now().Sub(info.ModTime()); age > c.ttl {
		c.logger.Debug("boundary cache entry expired", "path", p, "age", age)
		return nil, false
	}

	data, err := os.ReadFile(p)
	if err != nil {
		c.logger.Warn("boundary cache read failed", "path", p, "error", err)
		return nil, false
	}
	fc, err := decode(data)
	if err != nil {
		c.logger.Warn("boundary cache entry corrupt", "path", p, "error", err)
		return nil, false
	}
	return fc, true
}

func (c *CachedSource) writeDisk(url string, fc *geojson.FeatureCollection) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode boundary document: %w", err)
	}
	if err := renameio.WriteFile(c.path(url), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
