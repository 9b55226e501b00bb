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
	"github.com/aquilax/go-perlin"
)

// NoiseResult is a terrain height in voxels and its gradient along x and z.
type NoiseResult struct {
	Value      float64
	Derivative [2]float64
}

// TerrainNoise is the pure height function of the world. Implementations must
// be safe for concurrent use.
type TerrainNoise interface {
	Sample(x, z float64) NoiseResult
}

// PerlinTerrain layers a detail octave modulated by a slow mask on top of a
// broad base octave. Coordinates are in voxels.
type PerlinTerrain struct {
	detail, mask, base *perlin.Perlin

	DetailAmplitude float64
	BaseAmplitude   float64
	Offset          float64
}

func NewPerlinTerrain(seed int64) *PerlinTerrain {
	return &PerlinTerrain{
		detail:          perlin.NewPerlin(2, 2, 3, seed),
		mask:            perlin.NewPerlin(2, 2, 2, seed+1),
		base:            perlin.NewPerlin(2, 2, 4, seed+2),
		DetailAmplitude: 80,
		BaseAmplitude:   60,
		Offset:          32,
	}
}

func (p *PerlinTerrain) height(x, z float64) float64 {
	high := p.DetailAmplitude * p.detail.Noise2D(x*0.004, z*0.004)
	f := p.mask.Noise2D(x*0.0006, z*0.0006)
	low := p.BaseAmplitude * p.base.Noise2D(x*0.0003, z*0.0003)
	return p.Offset + high*f*f*4 + low
}

// Sample evaluates the height and estimates the gradient with central
// differences one voxel apart.
func (p *PerlinTerrain) Sample(x, z float64) NoiseResult {
	return NoiseResult{
		Value: p.height(x, z),
		Derivative: [2]float64{
			(p.height(x+1, z) - p.height(x-1, z)) / 2,
			(p.height(x, z+1) - p.height(x, z-1)) / 2,
		},
	}
}

// FlatTerrain is a constant height, useful for tests and empty worlds.
type FlatTerrain float64

func (f FlatTerrain) Sample(float64, float64) NoiseResult { return NoiseResult{Value: float64(f)} }
