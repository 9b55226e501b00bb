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
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

type fixedSource struct{ pos, vel mgl64.Vec3 }

func (s *fixedSource) LoaderPosition() mgl64.Vec3 { return s.pos }
func (s *fixedSource) LoaderVelocity() mgl64.Vec3 { return s.vel }

func TestChunkLoader_MinLodFor(t *testing.T) {
	layout := Layout{MaxLod: 10, ChunkSize: 1, VoxelSize: 1, RegionSize: 1 << 16}
	c := ChunkLoader{LodRange: []float64{50, 100, 200}}
	// A full-detail node 120 units away along x.
	p := LodPosition{Lod: 1, Rel: [2]int32{120, 0}}

	if got := c.MinLodFor(layout, mgl64.Vec3{0, 0, 0.5}, TreePos{}, p); got != 3 {
		t.Errorf("at distance 120: %d, want 3", got)
	}
	if got := c.MinLodFor(layout, mgl64.Vec3{120.5, 0, 0.5}, TreePos{}, p); got != 1 {
		t.Errorf("inside the node: %d, want 1", got)
	}
	far := LodPosition{Lod: 1, Rel: [2]int32{500, 0}}
	if got := c.MinLodFor(layout, mgl64.Vec3{}, TreePos{}, far); got != 10 {
		t.Errorf("beyond every range: %d, want 10", got)
	}
}

func TestChunkLoader_MinLodForCapsAtMaxLod(t *testing.T) {
	layout := Layout{MaxLod: 2, ChunkSize: 1, VoxelSize: 1, RegionSize: 64}
	c := ChunkLoader{LodRange: []float64{1, 2, 4, 8}}
	p := LodPosition{Lod: 1, Rel: [2]int32{3, 0}}
	if got := c.MinLodFor(layout, mgl64.Vec3{}, TreePos{}, p); got != 2 {
		t.Errorf("got %d, want MaxLod", got)
	}
	if got := c.Reach(layout); got != 1 {
		t.Errorf("Reach = %v, want 1", got)
	}
}

func TestChunkLoader_Clamp(t *testing.T) {
	c := ChunkLoader{FastMoveSpeed: 10, FastMoveLod: LodQuarter}
	slow, fast := mgl64.Vec3{3, 100, 4}, mgl64.Vec3{8, 0, 8}
	if got := c.Clamp(LodFull, slow); got != LodFull {
		t.Errorf("slow: %d", got)
	}
	if got := c.Clamp(LodFull, fast); got != LodQuarter {
		t.Errorf("fast: %d", got)
	}
	if got := c.Clamp(5, fast); got != 5 {
		t.Errorf("coarse level changed: %d", got)
	}
	if got := (ChunkLoader{}).Clamp(LodFull, fast); got != LodFull {
		t.Errorf("disabled clamp: %d", got)
	}
}

func TestLoaderSet_Trees(t *testing.T) {
	layout := Layout{MaxLod: 2, ChunkSize: 8, VoxelSize: 1, RegionSize: 64}
	s := newLoaderSet(layout)
	src := &fixedSource{pos: mgl64.Vec3{8, 0, 8}}
	s.add(uuid.New(), src, ChunkLoader{LoadRange: 1, UnloadRange: 1})
	s.snapshot()

	wanted := s.wantedTrees()
	if len(wanted) != 9 {
		t.Fatalf("wanted %d trees, want 9", len(wanted))
	}
	if wanted[0] != (TreePos{0, 0}) {
		t.Errorf("closest tree not first: %v", wanted[0])
	}
	// UnloadRange is raised to LoadRange+1.
	if !s.keeps(TreePos{1, -1}) {
		t.Error("tree in load range dropped")
	}
	if s.keeps(TreePos{2, 0}) {
		t.Error("tree outside unload range kept")
	}

	src.pos = mgl64.Vec3{48, 0, 8}
	s.snapshot()
	if !s.keeps(TreePos{2, 0}) {
		t.Error("loader move not picked up")
	}
}

func TestLoaderSet_IgnoresNonFinite(t *testing.T) {
	layout := Layout{MaxLod: 2, ChunkSize: 8, VoxelSize: 1, RegionSize: 64}
	s := newLoaderSet(layout)
	src := &fixedSource{pos: mgl64.Vec3{8, 0, 8}}
	id := uuid.New()
	s.add(id, src, ChunkLoader{LoadRange: 0})

	var nan mgl64.Vec3
	nan[0] = nan[0] / nan[0]
	src.pos = nan
	s.snapshot()
	if got := s.loaders[id].pos; got != (mgl64.Vec3{8, 0, 8}) {
		t.Fatalf("position = %v", got)
	}
}

func TestLoaderSet_MinLodMatchesScan(t *testing.T) {
	layout := Layout{MaxLod: 6, ChunkSize: 4, VoxelSize: 1, RegionSize: 1 << 10}
	config := ChunkLoader{LoadRange: 1, LodRange: []float64{8, 16, 32, 64}}
	s := newLoaderSet(layout)
	rng := rand.New(rand.NewSource(3))
	var sources []*fixedSource
	for i := 0; i < 20; i++ {
		src := &fixedSource{pos: mgl64.Vec3{rng.Float64()*512 - 256, 0, rng.Float64()*512 - 256}}
		sources = append(sources, src)
		s.add(uuid.New(), src, config)
	}
	s.snapshot()

	scan := func(tree TreePos, p LodPosition) Lod {
		lod := layout.MaxLod
		for _, src := range sources {
			lod = min(lod, config.MinLodFor(layout, src.pos, tree, p))
		}
		return lod
	}
	for i := 0; i < 500; i++ {
		lod := Lod(rng.Intn(int(layout.MaxLod)) + 1)
		span := int32(1) << (layout.MaxLod - lod)
		tree := TreePos{rng.Int31n(4) - 2, rng.Int31n(4) - 2}
		p := LodPosition{Lod: lod, Rel: [2]int32{rng.Int31n(span), rng.Int31n(span)}}
		if got, want := s.minLod(tree, p), scan(tree, p); got != want {
			t.Fatalf("minLod(%v, %v) = %d, scan says %d", tree, p, got, want)
		}
	}
}
