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
	"math/rand"
)

type StructureKind uint8

const (
	StructureOak StructureKind = iota
	StructurePine
)

func (k StructureKind) String() string {
	switch k {
	case StructureOak:
		return "oak"
	case StructurePine:
		return "pine"
	default:
		return fmt.Sprintf("StructureKind(%d)", uint8(k))
	}
}

// StructureGenerator scatters one kind of feature on a jittered grid. Each grid
// cell holds at most one instance; Chance decides whether it does.
type StructureGenerator struct {
	Kind    StructureKind
	Spacing int32   // voxels between grid cells
	Chance  float64 // 0..1
}

// DefaultStructures is the vegetation of a fresh world.
func DefaultStructures() []StructureGenerator {
	return []StructureGenerator{
		{Kind: StructureOak, Spacing: 48, Chance: 0.6},
		{Kind: StructurePine, Spacing: 32, Chance: 0.35},
	}
}

// Candidate returns the instance position for grid cell (gx, gz), in voxels,
// or false if the cell stays empty.
func (s StructureGenerator) Candidate(seed int64, gx, gz int32) ([2]int32, bool) {
	spacing := max(s.Spacing, 1)
	rng := rand.New(rand.NewSource(mixSeed(seed+int64(s.Kind)+1, gx, gz)))
	if rng.Float64() >= s.Chance {
		return [2]int32{}, false
	}
	return [2]int32{gx*spacing + rng.Int31n(spacing), gz*spacing + rng.Int31n(spacing)}, true
}

// Grow writes the structure into v with its base at the local voxel
// (x, y, z). scale is the LOD multiplier; larger scales shrink the shape.
func (s StructureGenerator) Grow(v *ChunkVoxels, x, y, z, scale int32) {
	scale = max(scale, 1)
	switch s.Kind {
	case StructureOak:
		growOak(v, x, y, z, scale)
	case StructurePine:
		growPine(v, x, y, z, scale)
	}
}

func growOak(v *ChunkVoxels, x, y, z, scale int32) {
	trunk := max(12/scale, 1)
	for i := int32(0); i < trunk; i++ {
		v.Set(x, y+i, z, BlockWood)
	}
	r := max(5/scale, 1)
	cy := y + trunk
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				if dx*dx+dy*dy+dz*dz <= r*r {
					v.SetIfAir(x+dx, cy+dy, z+dz, BlockLeaves)
				}
			}
		}
	}
}

func growPine(v *ChunkVoxels, x, y, z, scale int32) {
	height := max(20/scale, 2)
	for i := int32(0); i < height; i++ {
		v.Set(x, y+i, z, BlockWood)
	}
	base := max(4/scale, 1)
	for i := base; i <= height; i++ {
		r := (height - i) * 4 / height
		for dx := -r; dx <= r; dx++ {
			for dz := -r; dz <= r; dz++ {
				if abs32(dx)+abs32(dz) <= r {
					v.SetIfAir(x+dx, y+i, z+dz, BlockLeaves)
				}
			}
		}
	}
	v.SetIfAir(x, y+height, z, BlockLeaves)
}
