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

import "testing"

// slopeTerrain rises one voxel per voxel along x.
type slopeTerrain struct{}

func (slopeTerrain) Sample(x, _ float64) NoiseResult {
	return NoiseResult{Value: x, Derivative: [2]float64{1, 0}}
}

func testGenerator(noise TerrainNoise) *VoxelGenerator {
	return NewVoxelGenerator(&GenerationOptions{
		Layout: Layout{MaxLod: 3, ChunkSize: 8, VoxelSize: 1, RegionSize: 256},
		Noise:  noise,
	})
}

func surface(v *ChunkVoxels, x, z int32) (BlockType, int32) {
	for y := v.Size - 1; y >= 0; y-- {
		if b := v.Get(x, y, z); b != BlockAir {
			return b, y
		}
	}
	return BlockAir, -1
}

func TestVoxelGenerator_Flat(t *testing.T) {
	g := testGenerator(FlatTerrain(10))
	res := g.GenerateChunk(ChunkRequest{Pos: LodPosition{Lod: LodFull}}, nil)

	if res.GenerateAbove {
		t.Error("flat chunk wants a slab above")
	}
	if res.MinHeight != 9 {
		t.Errorf("MinHeight = %d, want 9", res.MinHeight)
	}
	for x := int32(0); x < 8; x++ {
		for z := int32(0); z < 8; z++ {
			if b, y := surface(res.Voxels, x, z); b != BlockGrass || y != 1 {
				t.Fatalf("surface at %d,%d = %v at %d", x, z, b, y)
			}
			if b := res.Voxels.Get(x, 0, z); b != BlockDirt {
				t.Fatalf("below surface: %v", b)
			}
		}
	}
	if res.Collider.Solid != 128 {
		t.Errorf("solid = %d", res.Collider.Solid)
	}
	if res.Mesh.Faces == 0 || res.Mesh.Vertices != 4*res.Mesh.Faces {
		t.Errorf("mesh = %+v", res.Mesh)
	}
}

func TestVoxelGenerator_Stacked(t *testing.T) {
	g := testGenerator(slopeTerrain{})
	req := ChunkRequest{Pos: LodPosition{Lod: LodFull}}
	first := g.GenerateChunk(req, nil)
	if !first.GenerateAbove {
		t.Fatal("terrain reaching the top did not ask for a slab above")
	}

	req.Offset, req.Base = 1, first.MinHeight
	second := g.GenerateChunk(req, nil)
	if second.GenerateAbove {
		t.Error("second slab still wants more")
	}
	if second.MinHeight != first.MinHeight {
		t.Errorf("base moved: %d -> %d", first.MinHeight, second.MinHeight)
	}
	if b, y := surface(second.Voxels, 7, 0); b == BlockAir || y != 0 {
		t.Errorf("top of column 7 = %v at %d", b, y)
	}
	if b, _ := surface(second.Voxels, 0, 0); b != BlockAir {
		t.Errorf("low column reached the upper slab: %v", b)
	}
}

func TestVoxelGenerator_Road(t *testing.T) {
	g := testGenerator(FlatTerrain(10))
	region := &RegionData{Paths: &PathData{Paths: []Path{newPath([][2]int32{{-50, 4}, {50, 4}})}}}
	res := g.GenerateChunk(ChunkRequest{Pos: LodPosition{Lod: LodFull}}, region)
	if b, _ := surface(res.Voxels, 2, 4); b != BlockPath {
		t.Errorf("surface on the road = %v", b)
	}

	far := &RegionData{Paths: &PathData{Paths: []Path{newPath([][2]int32{{-50, 100}, {50, 100}})}}}
	res = g.GenerateChunk(ChunkRequest{Pos: LodPosition{Lod: LodFull}}, far)
	if b, _ := surface(res.Voxels, 2, 4); b != BlockGrass {
		t.Errorf("surface away from the road = %v", b)
	}
}

func TestVoxelGenerator_Structures(t *testing.T) {
	g := testGenerator(FlatTerrain(10))
	g.Layout.ChunkSize = 16
	g.Structures = []StructureGenerator{{Kind: StructureOak, Spacing: 16, Chance: 1}}
	res := g.GenerateChunk(ChunkRequest{Pos: LodPosition{Lod: LodFull}}, nil)

	var wood, leaves int
	for _, b := range res.Voxels.Blocks {
		switch b {
		case BlockWood:
			wood++
		case BlockLeaves:
			leaves++
		}
	}
	if wood == 0 || leaves == 0 {
		t.Errorf("wood = %d leaves = %d", wood, leaves)
	}
}

func TestVoxelGenerator_CoarseLevel(t *testing.T) {
	g := testGenerator(FlatTerrain(10))
	res := g.GenerateChunk(ChunkRequest{Pos: LodPosition{Lod: LodQuarter}}, nil)
	// Voxels are four units tall: one below the surface and the surface.
	if res.MinHeight != 6 {
		t.Errorf("MinHeight = %d, want 6", res.MinHeight)
	}
	if b, y := surface(res.Voxels, 0, 0); b != BlockGrass || y != 1 {
		t.Errorf("surface = %v at %d", b, y)
	}
}

func TestStructureGenerator_Candidate(t *testing.T) {
	s := StructureGenerator{Kind: StructurePine, Spacing: 10, Chance: 1}
	for gx := int32(-3); gx < 3; gx++ {
		at, ok := s.Candidate(1, gx, 2)
		if !ok {
			t.Fatal("chance 1 left a cell empty")
		}
		if floorDiv(at[0], 10) != gx || floorDiv(at[1], 10) != 2 {
			t.Errorf("cell %d: candidate %v outside its cell", gx, at)
		}
		again, _ := s.Candidate(1, gx, 2)
		if again != at {
			t.Error("candidate not deterministic")
		}
	}
	if _, ok := (StructureGenerator{Spacing: 10}).Candidate(1, 0, 0); ok {
		t.Error("chance 0 placed a structure")
	}
}

func TestCulledMesher(t *testing.T) {
	v := NewChunkVoxels(4)
	v.Set(1, 1, 1, BlockStone)
	mesh, collider := CulledMesher{}.Mesh(v)
	if mesh.Faces != 6 || mesh.Vertices != 24 || collider.Solid != 1 {
		t.Errorf("single block: %+v %+v", mesh, collider)
	}
	v.Set(2, 1, 1, BlockStone)
	if mesh, _ = (CulledMesher{}).Mesh(v); mesh.Faces != 10 {
		t.Errorf("two blocks: %d faces", mesh.Faces)
	}
	v.Set(9, 9, 9, BlockStone)
	if v.Get(9, 9, 9) != BlockAir || v.Get(-1, 0, 0) != BlockAir {
		t.Error("out of range access")
	}
}
