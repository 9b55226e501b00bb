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
)

type BlockType uint8

const (
	BlockAir BlockType = iota
	BlockStone
	BlockDirt
	BlockGrass
	BlockPath
	BlockSnow
	BlockWood
	BlockLeaves
)

// ChunkVoxels is a cube of Size voxels per edge, indexed x, y, z.
type ChunkVoxels struct {
	Size   int32
	Blocks []BlockType
}

func NewChunkVoxels(size int32) *ChunkVoxels {
	return &ChunkVoxels{Size: size, Blocks: make([]BlockType, size*size*size)}
}

func (v *ChunkVoxels) index(x, y, z int32) (int32, bool) {
	if x < 0 || y < 0 || z < 0 || x >= v.Size || y >= v.Size || z >= v.Size {
		return 0, false
	}
	return (x*v.Size+y)*v.Size + z, true
}

// Get returns BlockAir outside the cube.
func (v *ChunkVoxels) Get(x, y, z int32) BlockType {
	if i, ok := v.index(x, y, z); ok {
		return v.Blocks[i]
	}
	return BlockAir
}

// Set ignores writes outside the cube.
func (v *ChunkVoxels) Set(x, y, z int32, b BlockType) {
	if i, ok := v.index(x, y, z); ok {
		v.Blocks[i] = b
	}
}

func (v *ChunkVoxels) SetIfAir(x, y, z int32, b BlockType) {
	if i, ok := v.index(x, y, z); ok && v.Blocks[i] == BlockAir {
		v.Blocks[i] = b
	}
}

// ChunkRequest describes one chunk task: a node, and which vertical slab of
// it. Offset 0 is the lowest slab; stacked slabs reuse the Base height chosen
// for it.
type ChunkRequest struct {
	Tree   TreePos
	Pos    LodPosition
	Offset int32
	Base   int32 // voxel height of slab 0, set for Offset > 0
	Region RegionPos
}

// MeshData and ColliderData stand in for the render and physics outputs.
type MeshData struct {
	Faces    int
	Vertices int
}

type ColliderData struct {
	Solid int
}

// ChunkResult is what a finished chunk task hands back to the scheduler.
type ChunkResult struct {
	Request       ChunkRequest
	Voxels        *ChunkVoxels
	Mesh          MeshData
	Collider      ColliderData
	GenerateAbove bool
	MinHeight     int32
}

// ChunkGenerator turns a request plus its region data into a chunk. It runs on
// a pool worker and must not touch scheduler state.
type ChunkGenerator interface {
	GenerateChunk(req ChunkRequest, region *RegionData) ChunkResult
}

// Mesher builds render and collision data from voxels.
type Mesher interface {
	Mesh(v *ChunkVoxels) (MeshData, ColliderData)
}

// VoxelGenerator is the default ChunkGenerator: a heightmap fill with roads
// carved near region paths and structures grown on top.
type VoxelGenerator struct {
	Layout     Layout
	Seed       int64
	Noise      TerrainNoise
	Structures []StructureGenerator
	Mesher     Mesher
	RoadWidth  float64 // voxels
	SnowLine   float64 // voxels
}

func NewVoxelGenerator(opts *GenerationOptions) *VoxelGenerator {
	return &VoxelGenerator{
		Layout:     opts.Layout,
		Seed:       opts.Seed,
		Noise:      opts.Noise,
		Structures: opts.Structures,
		Mesher:     CulledMesher{},
		RoadWidth:  6,
		SnowLine:   150,
	}
}

func (g *VoxelGenerator) GenerateChunk(req ChunkRequest, region *RegionData) ChunkResult {
	size := g.Layout.ChunkSize
	m := req.Pos.Lod.Multiplier()
	chunk := g.Layout.AbsoluteChunk(req.Tree, req.Pos)
	x0, z0 := chunk[0]*g.Layout.ChunkSize, chunk[1]*g.Layout.ChunkSize

	heights := make([]float64, size*size)
	roads := make([]bool, size*size)
	lowest := math.Inf(1)
	for x := int32(0); x < size; x++ {
		for z := int32(0); z < size; z++ {
			wx, wz := x0+x*m, z0+z*m
			h := g.Noise.Sample(float64(wx), float64(wz)).Value
			if region != nil && g.onRoad(region, [2]int32{wx, wz}, m) {
				roads[x*size+z] = true
			}
			heights[x*size+z] = h
			lowest = math.Min(lowest, h)
		}
	}

	base := req.Base
	if req.Offset == 0 {
		// One voxel below the lowest column so the surface is never on the slab floor.
		base = int32(math.Floor(lowest)) - m
	}
	bottom := base + req.Offset*size*m
	top := bottom + size*m

	v := NewChunkVoxels(size)
	above := false
	for x := int32(0); x < size; x++ {
		for z := int32(0); z < size; z++ {
			h := heights[x*size+z]
			if h >= float64(top) {
				above = true
			}
			for y := int32(0); y < size; y++ {
				wy := float64(bottom + y*m)
				if wy > h {
					break
				}
				v.Set(x, y, z, g.block(h, wy, m, roads[x*size+z]))
			}
		}
	}
	g.grow(v, req, heights, roads, x0, z0, bottom)

	result := ChunkResult{
		Request:       req,
		Voxels:        v,
		GenerateAbove: above,
		MinHeight:     base,
	}
	if g.Mesher != nil {
		result.Mesh, result.Collider = g.Mesher.Mesh(v)
	}
	return result
}

func (g *VoxelGenerator) block(height, y float64, scale int32, road bool) BlockType {
	depth := height - y
	switch {
	case depth < float64(scale) && road:
		return BlockPath
	case depth < float64(scale) && height > g.SnowLine:
		return BlockSnow
	case depth < float64(scale):
		return BlockGrass
	case depth < float64(4*scale):
		return BlockDirt
	default:
		return BlockStone
	}
}

func (g *VoxelGenerator) onRoad(region *RegionData, point [2]int32, scale int32) bool {
	margin := int32(math.Ceil(g.RoadWidth)) + scale
	for _, p := range region.AllPaths() {
		if !p.InBox(point, margin) {
			continue
		}
		for i := range p.Lines {
			l := &p.Lines[i]
			if !l.InBox(point, margin) {
				continue
			}
			c, _, ok := l.ClosestPoint(point, margin)
			if ok && c.Sub(vec2(point)).Len() <= g.RoadWidth+float64(scale)/2 {
				return true
			}
		}
	}
	return false
}

func (g *VoxelGenerator) grow(v *ChunkVoxels, req ChunkRequest, heights []float64, roads []bool, x0, z0, bottom int32) {
	size := g.Layout.ChunkSize
	m := req.Pos.Lod.Multiplier()
	x1, z1 := x0+size*m, z0+size*m
	for _, s := range g.Structures {
		spacing := max(s.Spacing, 1)
		for gx := floorDiv(x0, spacing); gx <= floorDiv(x1-1, spacing); gx++ {
			for gz := floorDiv(z0, spacing); gz <= floorDiv(z1-1, spacing); gz++ {
				at, ok := s.Candidate(g.Seed, gx, gz)
				if !ok || at[0] < x0 || at[0] >= x1 || at[1] < z0 || at[1] >= z1 {
					continue
				}
				lx, lz := (at[0]-x0)/m, (at[1]-z0)/m
				if roads[lx*size+lz] {
					continue
				}
				ground := int32(math.Floor(heights[lx*size+lz]))
				s.Grow(v, lx, (ground-bottom)/m+1, lz, m)
			}
		}
	}
}

// CulledMesher counts block faces that touch air. Faces on the cube boundary
// count as exposed.
type CulledMesher struct{}

func (CulledMesher) Mesh(v *ChunkVoxels) (MeshData, ColliderData) {
	var mesh MeshData
	var collider ColliderData
	neighbours := [...][3]int32{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	for x := int32(0); x < v.Size; x++ {
		for y := int32(0); y < v.Size; y++ {
			for z := int32(0); z < v.Size; z++ {
				if v.Get(x, y, z) == BlockAir {
					continue
				}
				collider.Solid++
				for _, n := range neighbours {
					if v.Get(x+n[0], y+n[1], z+n[2]) == BlockAir {
						mesh.Faces++
					}
				}
			}
		}
	}
	mesh.Vertices = mesh.Faces * 4
	return mesh, collider
}
