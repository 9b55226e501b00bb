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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap/zaptest"
)

// countingViewer is safe to read from the test goroutine.
type countingViewer struct {
	mu      sync.Mutex
	visible map[ChunkID]Lod
}

func (v *countingViewer) ViewChunkLoad(c *LoadedChunk) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible[c.ID] = c.Pos.Lod
}

func (v *countingViewer) ViewChunkUnload(id ChunkID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.visible, id)
}

func (v *countingViewer) count(lod Lod) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, l := range v.visible {
		if lod == 0 || l == lod {
			n++
		}
	}
	return n
}

func testWorld(t *testing.T) (*World, *countingViewer) {
	layout := Layout{MaxLod: 3, ChunkSize: 8, VoxelSize: 1, RegionSize: 64}
	w := New(zaptest.NewLogger(t), Options{
		Layout:        layout,
		Generation:    GenerationOptions{Seed: 1, Noise: FlatTerrain(4)},
		ChunkWorkers:  2,
		RegionWorkers: 1,
		QueueSize:     16,
		MaxChunkTasks: 8,
		TickRate:      time.Millisecond,
	})
	t.Cleanup(w.Close)
	v := &countingViewer{visible: make(map[ChunkID]Lod)}
	w.AddViewer(v)
	return w, v
}

func tickUntil(t *testing.T, w *World, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	// Always tick once: cond may still describe the state before a change.
	for {
		w.Tick()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached: %+v", w.Stats())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorld_LoadsAroundLoader(t *testing.T) {
	w, v := testWorld(t)
	src := &fixedSource{pos: mgl64.Vec3{4, 0, 4}}
	// Tree edge is 32 units; full detail within 8, half within 16.
	id := w.AddLoader(src, ChunkLoader{LoadRange: 0, LodRange: []float64{8, 16}})

	tickUntil(t, w, w.Ready)
	s := w.Stats()
	if s.Forest.Trees != 1 {
		t.Errorf("trees = %d", s.Forest.Trees)
	}
	if v.count(LodFull) == 0 {
		t.Error("no full-detail chunks near the loader")
	}
	if s.Regions == 0 {
		t.Error("no region generated")
	}

	if !w.RemoveLoader(id) {
		t.Fatal("RemoveLoader")
	}
	w.Tick()
	if n := v.count(0); n != 0 {
		t.Errorf("%d chunks visible without loaders", n)
	}
	if w.Stats().Forest.Trees != 0 {
		t.Error("trees kept without loaders")
	}
}

func TestWorld_FollowsLoader(t *testing.T) {
	w, v := testWorld(t)
	src := &fixedSource{pos: mgl64.Vec3{4, 0, 4}}
	w.AddLoader(src, ChunkLoader{LoadRange: 1, LodRange: []float64{8, 16}})
	tickUntil(t, w, w.Ready)
	if w.Stats().Forest.Trees != 9 {
		t.Fatalf("trees = %d", w.Stats().Forest.Trees)
	}

	src.pos = mgl64.Vec3{100, 0, 4}
	if !w.Ready() {
		t.Fatal("settled world not ready before the move is seen")
	}
	tickUntil(t, w, w.Ready)

	s := w.Stats()
	if s.Forest.Trees != 9 {
		t.Errorf("trees after move = %d", s.Forest.Trees)
	}
	if _, ok := w.forest.Root(TreePos{-1, 0}); ok {
		t.Error("tree behind the loader not unloaded")
	}
	if v.count(0) != s.Forest.Chunks {
		t.Errorf("viewer sees %d chunks, forest has %d", v.count(0), s.Forest.Chunks)
	}
}

func TestWorld_Run(t *testing.T) {
	w, _ := testWorld(t)
	w.AddLoader(&fixedSource{}, ChunkLoader{LodRange: []float64{8}})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	deadline := time.Now().Add(30 * time.Second)
	for !w.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("world never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
}
