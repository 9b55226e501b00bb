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
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Lod is a resolution tier. LodFull is the finest, every step up halves the
// resolution on both horizontal axes.
type Lod uint8

const (
	LodFull    Lod = 1
	LodHalf    Lod = 2
	LodQuarter Lod = 3

	// DefaultMaxLod is the level of a tree root.
	DefaultMaxLod Lod = 10
)

// Multiplier returns how many full-detail chunks one chunk of this level spans per axis.
func (l Lod) Multiplier() int32 { return 1 << (l - 1) }

// Finer returns the next more detailed level. LodFull has no finer level.
func (l Lod) Finer() Lod {
	if l <= LodFull {
		panic("no level finer than LodFull")
	}
	return l - 1
}

// ChunkPos is a world-absolute chunk coordinate on the horizontal plane (x, z).
type ChunkPos [2]int32

// TreePos identifies one quad-tree root.
type TreePos [2]int32

// RegionPos identifies a region, the memoization unit for settlement and road data.
type RegionPos [2]int32

func (r RegionPos) Add(dx, dz int32) RegionPos { return RegionPos{r[0] + dx, r[1] + dz} }

// Quadrant selects one child of a subdivided node.
type Quadrant uint8

const (
	TopRight    Quadrant = iota // +x +z
	TopLeft                     // -x +z
	BottomRight                 // +x -z
	BottomLeft                  // -x -z
)

var quadrantOffsets = [4][2]int32{
	TopRight:    {1, 1},
	TopLeft:     {0, 1},
	BottomRight: {1, 0},
	BottomLeft:  {0, 0},
}

// LodPosition addresses a node inside one tree. Rel is measured in chunks of
// the node's own level.
type LodPosition struct {
	Lod Lod
	Rel [2]int32
}

func (p LodPosition) String() string {
	return fmt.Sprintf("lod%d(%d,%d)", p.Lod, p.Rel[0], p.Rel[1])
}

// Child returns the position of quadrant q one level finer.
func (p LodPosition) Child(q Quadrant) LodPosition {
	off := quadrantOffsets[q]
	return LodPosition{
		Lod: p.Lod.Finer(),
		Rel: [2]int32{p.Rel[0]*2 + off[0], p.Rel[1]*2 + off[1]},
	}
}

// Layout fixes the sizes that relate the coordinate spaces to each other.
type Layout struct {
	MaxLod     Lod
	ChunkSize  int32   // voxels per chunk edge
	VoxelSize  float64 // world units per voxel
	RegionSize int32   // voxels per region edge
}

// DefaultLayout is the standard world: 64 voxel chunks of quarter-unit
// voxels and regions of 2^14 world units.
func DefaultLayout() Layout {
	return Layout{
		MaxLod:     DefaultMaxLod,
		ChunkSize:  64,
		VoxelSize:  0.25,
		RegionSize: 1 << 16,
	}
}

// TreeChunks is the edge length of one tree in full-detail chunks.
func (l Layout) TreeChunks() int32 { return l.MaxLod.Multiplier() }

// ChunkWorldSize is the edge length of one full-detail chunk in world units.
func (l Layout) ChunkWorldSize() float64 { return float64(l.ChunkSize) * l.VoxelSize }

// TreeVoxels is the edge length of one tree in full-detail voxels.
func (l Layout) TreeVoxels() int32 { return l.ChunkSize * l.TreeChunks() }

// RegionsAlignToTrees reports whether every tree lies inside a single region.
func (l Layout) RegionsAlignToTrees() bool {
	t := l.TreeVoxels()
	return t > 0 && l.RegionSize%t == 0
}

func (l Layout) treeWorldSize() float64 { return l.ChunkWorldSize() * float64(l.TreeChunks()) }

// TreeAt returns the tree containing the world position. Only x and z are used.
func (l Layout) TreeAt(pos mgl64.Vec3) TreePos {
	size := l.treeWorldSize()
	return TreePos{int32(math.Floor(pos.X() / size)), int32(math.Floor(pos.Z() / size))}
}

// ChunkAt returns the full-detail chunk containing the world position.
func (l Layout) ChunkAt(pos mgl64.Vec3) ChunkPos {
	size := l.ChunkWorldSize()
	return ChunkPos{int32(math.Floor(pos.X() / size)), int32(math.Floor(pos.Z() / size))}
}

// ValidLodPosition reports whether p lies inside a tree rooted at MaxLod.
func (l Layout) ValidLodPosition(p LodPosition) bool {
	if p.Lod < LodFull || p.Lod > l.MaxLod {
		return false
	}
	span := int32(1) << (l.MaxLod - p.Lod)
	return p.Rel[0] >= 0 && p.Rel[1] >= 0 && p.Rel[0] < span && p.Rel[1] < span
}

// AbsoluteChunk returns the full-detail chunk at the minimum corner of the node.
func (l Layout) AbsoluteChunk(tree TreePos, p LodPosition) ChunkPos {
	m := p.Lod.Multiplier()
	t := l.TreeChunks()
	return ChunkPos{p.Rel[0]*m + tree[0]*t, p.Rel[1]*m + tree[1]*t}
}

// NodeBounds returns the node's horizontal extent in world units.
func (l Layout) NodeBounds(tree TreePos, p LodPosition) (lower, upper [2]float64) {
	c := l.AbsoluteChunk(tree, p)
	size := l.ChunkWorldSize()
	span := size * float64(p.Lod.Multiplier())
	lower = [2]float64{float64(c[0]) * size, float64(c[1]) * size}
	upper = [2]float64{lower[0] + span, lower[1] + span}
	return
}

// ClosestPoint clamps the planar point into the node's bounds.
func (l Layout) ClosestPoint(tree TreePos, p LodPosition, x, z float64) [2]float64 {
	lower, upper := l.NodeBounds(tree, p)
	return [2]float64{
		math.Min(math.Max(x, lower[0]), upper[0]),
		math.Min(math.Max(z, lower[1]), upper[1]),
	}
}

// RegionOf returns the region containing the chunk.
func (l Layout) RegionOf(c ChunkPos) RegionPos {
	return RegionPos{
		floorDiv(c[0]*l.ChunkSize, l.RegionSize),
		floorDiv(c[1]*l.ChunkSize, l.RegionSize),
	}
}

// RegionOrigin returns the voxel coordinate of the region's minimum corner.
func (l Layout) RegionOrigin(r RegionPos) [2]int32 {
	return [2]int32{r[0] * l.RegionSize, r[1] * l.RegionSize}
}

func floorDiv(value, size int32) int32 {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}
