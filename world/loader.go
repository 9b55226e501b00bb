// This file is part of go-mc/server project.
// Copyright (C) 2023.  Tnze
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package world

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/Schoggi0815/spellhaven/world/internal/bvh"
)

// ChunkLoader decides which trees stay loaded and how fine the terrain must be
// around one loader.
type ChunkLoader struct {
	LoadRange   int32     // trees kept loaded around the loader, per axis
	UnloadRange int32     // trees further than this on either axis are dropped
	LodRange    []float64 // world units; LodRange[i] is the reach of level i+1

	// Above FastMoveSpeed (world units per second, horizontal) nothing finer
	// than FastMoveLod is requested. Zero disables the clamp.
	FastMoveSpeed float64
	FastMoveLod   Lod
}

// DefaultChunkLoader reaches 2, 4, 8 ... 256 chunks for levels 1 to 8.
func DefaultChunkLoader(layout Layout) ChunkLoader {
	chunks := []float64{2, 4, 8, 16, 32, 64, 128, 256}
	reach := make([]float64, len(chunks))
	for i, c := range chunks {
		reach[i] = c * layout.ChunkWorldSize()
	}
	return ChunkLoader{
		LoadRange:     4,
		UnloadRange:   5,
		LodRange:      reach,
		FastMoveSpeed: 30,
		FastMoveLod:   LodHalf,
	}
}

// MinLodFor returns the finest level the loader at pos needs inside the node:
// the first level whose reach exceeds the planar distance from the loader to
// the closest point of the node, or the layout's coarsest level.
func (c ChunkLoader) MinLodFor(layout Layout, pos mgl64.Vec3, tree TreePos, p LodPosition) Lod {
	closest := layout.ClosestPoint(tree, p, pos.X(), pos.Z())
	dx, dz := closest[0]-pos.X(), closest[1]-pos.Z()
	d2 := dx*dx + dz*dz
	for i, reach := range c.LodRange {
		lod := Lod(i + 1)
		if lod >= layout.MaxLod {
			break
		}
		if d2 < reach*reach {
			return lod
		}
	}
	return layout.MaxLod
}

// Clamp applies the fast movement policy to a required level.
func (c ChunkLoader) Clamp(lod Lod, velocity mgl64.Vec3) Lod {
	if c.FastMoveSpeed <= 0 || lod >= c.FastMoveLod {
		return lod
	}
	speed2 := velocity.X()*velocity.X() + velocity.Z()*velocity.Z()
	if speed2 > c.FastMoveSpeed*c.FastMoveSpeed {
		return c.FastMoveLod
	}
	return lod
}

// Reach is the largest distance at which the loader asks for more than the
// coarsest level.
func (c ChunkLoader) Reach(layout Layout) float64 {
	var r float64
	for i, reach := range c.LodRange {
		if Lod(i+1) >= layout.MaxLod {
			break
		}
		r = math.Max(r, reach)
	}
	return r
}

// LoaderSource is anything with a position that should have terrain around it.
type LoaderSource interface {
	LoaderPosition() mgl64.Vec3
}

// VelocitySource is optionally implemented by a LoaderSource that moves.
type VelocitySource interface {
	LoaderVelocity() mgl64.Vec3
}

type (
	vec2d          = bvh.Vec2[float64]
	aabb2d         = bvh.AABB[float64, vec2d]
	loaderViewNode = bvh.Node[float64, aabb2d, *loader]
	loaderViewTree = bvh.Tree[float64, aabb2d, *loader]
)

type loader struct {
	id     uuid.UUID
	source LoaderSource
	config ChunkLoader

	pos, vel mgl64.Vec3 // copied once per tick
	view     *loaderViewNode
}

// loaderSet is the tick goroutine's copy of every registered loader. Loader
// reach boxes live in a BVH so a node only consults loaders that can reach it.
type loaderSet struct {
	layout  Layout
	loaders map[uuid.UUID]*loader
	views   loaderViewTree
}

func newLoaderSet(layout Layout) *loaderSet {
	return &loaderSet{layout: layout, loaders: make(map[uuid.UUID]*loader)}
}

func (s *loaderSet) add(id uuid.UUID, source LoaderSource, config ChunkLoader) {
	if old, ok := s.loaders[id]; ok {
		s.views.Delete(old.view)
	}
	config.UnloadRange = max(config.UnloadRange, config.LoadRange+1)
	l := &loader{id: id, source: source, config: config}
	l.read()
	l.view = s.views.Insert(l.bound(s.layout), l)
	s.loaders[id] = l
}

func (s *loaderSet) remove(id uuid.UUID) bool {
	l, ok := s.loaders[id]
	if !ok {
		return false
	}
	s.views.Delete(l.view)
	delete(s.loaders, id)
	return true
}

// snapshot reads every source once and refreshes the index.
func (s *loaderSet) snapshot() {
	for _, l := range s.loaders {
		if l.read() {
			l.view = s.views.Move(l.view, l.bound(s.layout))
		}
	}
}

// minLod is the LodPolicy over every loader: the finest requirement wins.
func (s *loaderSet) minLod(tree TreePos, p LodPosition) Lod {
	lower, upper := s.layout.NodeBounds(tree, p)
	box := aabb2d{Lower: vec2d(lower), Upper: vec2d(upper)}
	lod := s.layout.MaxLod
	s.views.Find(bvh.TouchBound[aabb2d](box), func(n *loaderViewNode) bool {
		l := n.Value
		lod = min(lod, l.config.Clamp(l.config.MinLodFor(s.layout, l.pos, tree, p), l.vel))
		return lod > LodFull
	})
	return lod
}

// wantedTrees lists every tree inside some loader's load range.
func (s *loaderSet) wantedTrees() []TreePos {
	seen := make(map[TreePos]struct{})
	var out []TreePos
	for _, l := range s.loaders {
		center := s.layout.TreeAt(l.pos)
		r := l.config.LoadRange
		for x := -r; x <= r; x++ {
			for z := -r; z <= r; z++ {
				t := TreePos{center[0] + x, center[1] + z}
				if _, ok := seen[t]; !ok {
					seen[t] = struct{}{}
					out = append(out, t)
				}
			}
		}
	}
	// Closest trees first so their roots get the earliest node ids.
	sort.Slice(out, func(i, j int) bool { return s.treeRank(out[i]) < s.treeRank(out[j]) })
	return out
}

func (s *loaderSet) treeRank(t TreePos) int32 {
	best := int32(math.MaxInt32)
	for _, l := range s.loaders {
		c := s.layout.TreeAt(l.pos)
		best = min(best, max(abs32(t[0]-c[0]), abs32(t[1]-c[1])))
	}
	return best
}

// keeps reports whether any loader still has the tree inside its unload range.
func (s *loaderSet) keeps(t TreePos) bool {
	for _, l := range s.loaders {
		c := s.layout.TreeAt(l.pos)
		r := l.config.UnloadRange
		if abs32(t[0]-c[0]) < r && abs32(t[1]-c[1]) < r {
			return true
		}
	}
	return false
}

// read copies the source's position and velocity. Non-finite positions are
// ignored. It reports whether the position changed.
func (l *loader) read() bool {
	pos := l.source.LoaderPosition()
	if v, ok := l.source.(VelocitySource); ok {
		l.vel = v.LoaderVelocity()
	}
	if !isFinite(pos) || pos == l.pos {
		return false
	}
	l.pos = pos
	return true
}

func (l *loader) bound(layout Layout) aabb2d {
	return bvh.Square(vec2d{l.pos.X(), l.pos.Z()}, l.config.Reach(layout))
}
