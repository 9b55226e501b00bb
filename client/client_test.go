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

package client

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Schoggi0815/spellhaven/world"
)

func TestClient_Tracking(t *testing.T) {
	c := New(zaptest.NewLogger(t))
	full := world.LodPosition{Lod: world.LodFull}
	half := world.LodPosition{Lod: world.LodHalf}

	c.ViewChunkLoad(&world.LoadedChunk{ID: 1, Pos: full, ChunkResult: &world.ChunkResult{Mesh: world.MeshData{Faces: 10}}})
	c.ViewChunkLoad(&world.LoadedChunk{ID: 2, Pos: half, ChunkResult: &world.ChunkResult{Mesh: world.MeshData{Faces: 4}}})
	c.ViewChunkLoad(&world.LoadedChunk{ID: 2, Pos: half})

	if c.Len() != 2 || c.Faces() != 14 {
		t.Fatalf("len = %d faces = %d", c.Len(), c.Faces())
	}
	if cov := c.Coverage(); cov[world.LodFull] != 1 || cov[world.LodHalf] != 1 {
		t.Errorf("coverage = %v", cov)
	}

	c.ViewChunkUnload(1)
	c.ViewChunkUnload(1)
	if c.Len() != 1 || c.Faces() != 4 {
		t.Errorf("after unload: len = %d faces = %d", c.Len(), c.Faces())
	}
	if loads, unloads := c.Counts(); loads != 2 || unloads != 1 {
		t.Errorf("counts = %d %d", loads, unloads)
	}
}
