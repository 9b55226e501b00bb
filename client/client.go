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

// Package client is the in-process consumer of streamed chunks. It stands
// where a renderer or a network session would.
package client

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Schoggi0815/spellhaven/world"
)

// Client implements world.ChunkViewer and keeps track of what is on display.
type Client struct {
	log *zap.Logger

	mu      sync.Mutex
	visible map[world.ChunkID]chunkInfo
	faces   int
	loads   uint64
	unloads uint64
}

type chunkInfo struct {
	tree   world.TreePos
	pos    world.LodPosition
	offset int32
	faces  int
}

func New(log *zap.Logger) *Client {
	return &Client{
		log:     log.Named("client"),
		visible: make(map[world.ChunkID]chunkInfo),
	}
}

func (c *Client) ViewChunkLoad(lc *world.LoadedChunk) {
	info := chunkInfo{tree: lc.Tree, pos: lc.Pos, offset: lc.Offset}
	if lc.ChunkResult != nil {
		info.faces = lc.Mesh.Faces
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.visible[lc.ID]; ok {
		c.log.Warn("Chunk loaded twice", zap.Uint64("id", uint64(lc.ID)))
		return
	}
	c.visible[lc.ID] = info
	c.faces += info.faces
	c.loads++
}

func (c *Client) ViewChunkUnload(id world.ChunkID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.visible[id]
	if !ok {
		c.log.Warn("Unloading a chunk that is not visible", zap.Uint64("id", uint64(id)))
		return
	}
	delete(c.visible, id)
	c.faces -= info.faces
	c.unloads++
}

// Len returns the number of visible chunks.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.visible)
}

// Faces returns the total face count of the visible chunks.
func (c *Client) Faces() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faces
}

// Counts returns how many load and unload events were received.
func (c *Client) Counts() (loads, unloads uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads, c.unloads
}

// Coverage returns the visible chunks per level of detail.
func (c *Client) Coverage() map[world.Lod]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[world.Lod]int)
	for _, info := range c.visible {
		out[info.pos.Lod]++
	}
	return out
}
