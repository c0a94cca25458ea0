package query

import (
	"context"
	"fmt"

	"github.com/rawbytedev/zonebuf"
	"github.com/rawbytedev/zonebuf/pkg/zonewire"
)

// Request describes one engine call. Only the fields of its Kind are set.
type Request struct {
	Kind     Kind
	Depth    uint8
	Densify  bool
	BBox     [][]float64
	Point    zonebuf.Point
	ParentID string
	ID       string
}

// FetchFunc returns the wire payload for a request, typically from a
// native boundary or a remote engine.
type FetchFunc func(ctx context.Context, req Request) ([]byte, error)

// WireEngine is an Engine over wire-encoded payloads.
type WireEngine struct {
	Fetch   FetchFunc
	Decoder *zonewire.Decoder // nil means zonewire.DefaultDecoder
}

func (w *WireEngine) ZonesFromBBox(ctx context.Context, depth uint8, densify bool, bbox [][]float64) (*zonebuf.ZoneBuffer, error) {
	return w.do(ctx, Request{Kind: KindBBox, Depth: depth, Densify: densify, BBox: bbox})
}

func (w *WireEngine) ZoneFromPoint(ctx context.Context, depth uint8, p zonebuf.Point, densify bool) (*zonebuf.ZoneBuffer, error) {
	return w.do(ctx, Request{Kind: KindPoint, Depth: depth, Densify: densify, Point: p})
}

func (w *WireEngine) ZonesFromParent(ctx context.Context, depth uint8, parentID string, densify bool) (*zonebuf.ZoneBuffer, error) {
	return w.do(ctx, Request{Kind: KindParent, Depth: depth, Densify: densify, ParentID: parentID})
}

func (w *WireEngine) ZoneFromID(ctx context.Context, id string, densify bool) (*zonebuf.ZoneBuffer, error) {
	return w.do(ctx, Request{Kind: KindID, Densify: densify, ID: id})
}

func (w *WireEngine) do(ctx context.Context, req Request) (*zonebuf.ZoneBuffer, error) {
	if w.Fetch == nil {
		return nil, fmt.Errorf("wire engine: no fetch function")
	}
	data, err := w.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	buf, err := w.decoder().Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWire, err)
	}
	return buf, nil
}

func (w *WireEngine) decoder() *zonewire.Decoder {
	if w.Decoder != nil {
		return w.Decoder
	}
	return zonewire.DefaultDecoder()
}
