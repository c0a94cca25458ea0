// Package query wraps a grid engine's call surface: each query yields one
// zone buffer, which is decoded into zones for the caller.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rawbytedev/zonebuf"
	"github.com/rawbytedev/zonebuf/internal/logger"
	"github.com/rawbytedev/zonebuf/internal/metrics"
)

// Engine is the external grid engine. Implementations compute zones and
// return them in columnar form.
type Engine interface {
	ZonesFromBBox(ctx context.Context, depth uint8, densify bool, bbox [][]float64) (*zonebuf.ZoneBuffer, error)
	ZoneFromPoint(ctx context.Context, depth uint8, p zonebuf.Point, densify bool) (*zonebuf.ZoneBuffer, error)
	ZonesFromParent(ctx context.Context, depth uint8, parentID string, densify bool) (*zonebuf.ZoneBuffer, error)
	ZoneFromID(ctx context.Context, id string, densify bool) (*zonebuf.ZoneBuffer, error)
}

type Kind string

const (
	KindBBox   Kind = "bbox"
	KindPoint  Kind = "point"
	KindParent Kind = "parent"
	KindID     Kind = "id"
)

var ErrWire = errors.New("query: wire payload rejected")

type Options struct {
	Decoder   zonebuf.Options
	CacheSize int // 0 disables the result cache
	Logger    *slog.Logger
}

// Client decodes engine results. It is safe for concurrent use.
type Client struct {
	engine Engine
	dec    *zonebuf.Decoder
	log    *slog.Logger
	cache  *lru.Cache[string, []zonebuf.Zone]
}

func NewClient(engine Engine, opts Options) (*Client, error) {
	if engine == nil {
		return nil, errors.New("query: nil engine")
	}
	c := &Client{
		engine: engine,
		dec:    zonebuf.NewDecoder(opts.Decoder),
		log:    opts.Logger,
	}
	if c.log == nil {
		c.log = logger.L()
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []zonebuf.Zone](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("query: cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

func (c *Client) ZonesFromBBox(ctx context.Context, depth uint8, densify bool, bbox [][]float64) ([]zonebuf.Zone, error) {
	key := fmt.Sprintf("%s|%d|%t|%v", KindBBox, depth, densify, bbox)
	return c.run(ctx, KindBBox, key, func(ctx context.Context) (*zonebuf.ZoneBuffer, error) {
		return c.engine.ZonesFromBBox(ctx, depth, densify, bbox)
	})
}

func (c *Client) ZoneFromPoint(ctx context.Context, depth uint8, p zonebuf.Point, densify bool) ([]zonebuf.Zone, error) {
	key := fmt.Sprintf("%s|%d|%t|%v|%v", KindPoint, depth, densify, p.X, p.Y)
	return c.run(ctx, KindPoint, key, func(ctx context.Context) (*zonebuf.ZoneBuffer, error) {
		return c.engine.ZoneFromPoint(ctx, depth, p, densify)
	})
}

func (c *Client) ZonesFromParent(ctx context.Context, depth uint8, parentID string, densify bool) ([]zonebuf.Zone, error) {
	key := fmt.Sprintf("%s|%d|%t|%q", KindParent, depth, densify, parentID)
	return c.run(ctx, KindParent, key, func(ctx context.Context) (*zonebuf.ZoneBuffer, error) {
		return c.engine.ZonesFromParent(ctx, depth, parentID, densify)
	})
}

func (c *Client) ZoneFromID(ctx context.Context, id string, densify bool) ([]zonebuf.Zone, error) {
	key := fmt.Sprintf("%s|%t|%q", KindID, densify, id)
	return c.run(ctx, KindID, key, func(ctx context.Context) (*zonebuf.ZoneBuffer, error) {
		return c.engine.ZoneFromID(ctx, id, densify)
	})
}

func (c *Client) run(ctx context.Context, kind Kind, key string, call func(context.Context) (*zonebuf.ZoneBuffer, error)) ([]zonebuf.Zone, error) {
	metrics.QueriesTotal.WithLabelValues(string(kind)).Inc()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.cache != nil {
		if zones, ok := c.cache.Get(key); ok {
			metrics.CacheHitsTotal.Inc()
			return cloneZones(zones), nil
		}
		metrics.CacheMissesTotal.Inc()
	}
	buf, err := call(ctx)
	if err != nil {
		reason := "engine"
		if errors.Is(err, ErrWire) {
			reason = "wire"
		}
		metrics.DecodeFailuresTotal.WithLabelValues(reason).Inc()
		c.log.Warn("zone_query_error", "kind", kind, "err", err)
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	zones, err := c.dec.DecodeAll(buf)
	metrics.DecodeDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.DecodeFailuresTotal.WithLabelValues(zonebuf.Kind(err)).Inc()
		c.log.Warn("zone_decode_error", "kind", kind, "err", err)
		return nil, err
	}
	metrics.ZonesDecodedTotal.Add(float64(len(zones)))
	c.log.Debug("zone_query_ok", "kind", kind, "zones", len(zones))
	if c.cache != nil {
		c.cache.Add(key, detach(zones))
	}
	return zones, nil
}

// Index maps zone ids to their position in zones.
func Index(zones []zonebuf.Zone) map[string]int {
	m := make(map[string]int, len(zones))
	for i, z := range zones {
		m[z.ID] = i
	}
	return m
}

func cloneZones(zones []zonebuf.Zone) []zonebuf.Zone {
	out := make([]zonebuf.Zone, len(zones))
	for i, z := range zones {
		out[i] = z.Clone()
	}
	return out
}

// detach deep-copies zones including string bytes, so cached entries never
// alias an engine buffer decoded with unsafe strings.
func detach(zones []zonebuf.Zone) []zonebuf.Zone {
	out := cloneZones(zones)
	for i := range out {
		z := &out[i]
		z.ID = strings.Clone(z.ID)
		for j := range z.Children {
			z.Children[j] = strings.Clone(z.Children[j])
		}
		for j := range z.Neighbors {
			z.Neighbors[j] = strings.Clone(z.Neighbors[j])
		}
	}
	return out
}
