// Package geometry runs polygon set operations on GEOS for orb geometries.
//
// An Engine owns one GEOS context and is not safe for concurrent use;
// give each goroutine its own. Geometries cross the boundary as WKB, so
// results from different engines can be combined freely.
package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// QuadrantSegments is the number of segments per quarter circle used when
// buffering.
const QuadrantSegments = 16

// Engine performs GEOS operations within a single context.
type Engine struct {
	ctx *geos.Context
}

// NewEngine creates an engine with a fresh GEOS context.
func NewEngine() *Engine {
	return &Engine{ctx: geos.NewContext()}
}

func (e *Engine) toGEOS(g orb.Geometry) (*geos.Geom, error) {
	b, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding wkb: %w", err)
	}
	gg, err := e.ctx.NewGeomFromWKB(b)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry in geos: %w", err)
	}
	return gg, nil
}

func fromGEOS(g *geos.Geom) (orb.Geometry, error) {
	out, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, fmt.Errorf("decoding wkb from geos: %w", err)
	}
	return out, nil
}

// Union returns the union of all polygonal parts of gs.
func (e *Engine) Union(gs ...orb.Geometry) (orb.Geometry, error) {
	var mp orb.MultiPolygon
	for _, g := range gs {
		mp = append(mp, Polygons(g)...)
	}
	if len(mp) == 0 {
		return orb.Polygon{}, nil
	}
	gg, err := e.toGEOS(mp)
	if err != nil {
		return nil, err
	}
	return fromGEOS(gg.UnaryUnion())
}

// ConvexHull returns the convex hull of g.
func (e *Engine) ConvexHull(g orb.Geometry) (orb.Geometry, error) {
	gg, err := e.toGEOS(g)
	if err != nil {
		return nil, err
	}
	return fromGEOS(gg.ConvexHull())
}

// Buffer grows g by width, or shrinks it when width is negative.
func (e *Engine) Buffer(g orb.Geometry, width float64) (orb.Geometry, error) {
	gg, err := e.toGEOS(g)
	if err != nil {
		return nil, err
	}
	return fromGEOS(gg.Buffer(width, QuadrantSegments))
}

// Closing applies a grow-then-shrink buffer pair in one GEOS round trip.
func (e *Engine) Closing(g orb.Geometry, grow, shrink float64) (orb.Geometry, error) {
	gg, err := e.toGEOS(g)
	if err != nil {
		return nil, err
	}
	return fromGEOS(gg.Buffer(grow, QuadrantSegments).Buffer(-shrink, QuadrantSegments))
}

// Intersection returns a ∩ b.
func (e *Engine) Intersection(a, b orb.Geometry) (orb.Geometry, error) {
	ga, err := e.toGEOS(a)
	if err != nil {
		return nil, err
	}
	gb, err := e.toGEOS(b)
	if err != nil {
		return nil, err
	}
	return fromGEOS(ga.Intersection(gb))
}

// Polygons flattens the polygonal parts of g, dropping empty ones.
func Polygons(g orb.Geometry) orb.MultiPolygon {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return nil
		}
		return orb.MultiPolygon{g}
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(g))
		for _, p := range g {
			if len(p) > 0 {
				out = append(out, p)
			}
		}
		return out
	case orb.Collection:
		var out orb.MultiPolygon
		for _, c := range g {
			out = append(out, Polygons(c)...)
		}
		return out
	case orb.Ring:
		return orb.MultiPolygon{{g}}
	}
	return nil
}

// Simplify returns g as a Polygon when it has exactly one part.
func Simplify(g orb.Geometry) orb.Geometry {
	mp := Polygons(g)
	switch len(mp) {
	case 0:
		return orb.Polygon{}
	case 1:
		return mp[0]
	}
	return mp
}

// IsEmpty reports whether g has no polygonal area.
func IsEmpty(g orb.Geometry) bool {
	return len(Polygons(g)) == 0
}
