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
	"sort"

	"go.uber.org/zap"
)

// LodPolicy returns the finest level any loader requires for a node.
type LodPolicy func(tree TreePos, pos LodPosition) Lod

// ChunkStart is a chunk task waiting for a worker.
type ChunkStart struct {
	Node    NodeID
	Request ChunkRequest
}

type outstandingTask struct {
	req   ChunkRequest
	stale bool // the node stopped wanting this result
}

// Forest is the arena of all loaded quad-trees. It is not safe for
// concurrent use: only the tick goroutine touches it.
type Forest struct {
	log    *zap.Logger
	layout Layout
	viewer ChunkViewer

	lastNode  NodeID
	lastChunk ChunkID

	trees  map[TreePos]NodeID
	nodes  map[NodeID]*chunkNode
	chunks map[ChunkID]*LoadedChunk

	starts      map[NodeID]ChunkRequest
	outstanding map[NodeID]*outstandingTask
}

// NewForest creates an empty forest. viewer receives chunk load and unload
// events and may be nil.
func NewForest(log *zap.Logger, layout Layout, viewer ChunkViewer) *Forest {
	return &Forest{
		log:         log.Named("forest"),
		layout:      layout,
		viewer:      viewer,
		trees:       make(map[TreePos]NodeID),
		nodes:       make(map[NodeID]*chunkNode),
		chunks:      make(map[ChunkID]*LoadedChunk),
		starts:      make(map[NodeID]ChunkRequest),
		outstanding: make(map[NodeID]*outstandingTask),
	}
}

// LoadTrees creates a root leaf for every tree not yet loaded.
func (f *Forest) LoadTrees(trees []TreePos) (created int) {
	for _, t := range trees {
		if _, ok := f.trees[t]; ok {
			continue
		}
		root := f.newNode(t, LodPosition{Lod: f.layout.MaxLod}, 0, 0)
		f.trees[t] = root.id
		created++
	}
	return
}

// UnloadTree despawns the tree and everything beneath it.
func (f *Forest) UnloadTree(t TreePos) bool {
	root, ok := f.trees[t]
	if !ok {
		return false
	}
	f.removeSubtree(root)
	delete(f.trees, t)
	return true
}

func (f *Forest) Trees() []TreePos {
	out := make([]TreePos, 0, len(f.trees))
	for t := range f.trees {
		out = append(out, t)
	}
	return out
}

// CheckForDivision splits every live leaf whose location requires a finer
// level. Leaves are visited coarsest first, and leaves created during the pass
// wait for the next one.
func (f *Forest) CheckForDivision(policy LodPolicy) (divided int) {
	var leaves []*chunkNode
	for _, n := range f.nodes {
		if n.state.Kind == StateLeaf && !n.dead && n.pos.Lod > LodFull {
			leaves = append(leaves, n)
		}
	}
	sort.Slice(leaves, func(i, j int) bool {
		if leaves[i].pos.Lod != leaves[j].pos.Lod {
			return leaves[i].pos.Lod > leaves[j].pos.Lod
		}
		return leaves[i].id < leaves[j].id
	})

	for _, n := range leaves {
		if policy(n.tree, n.pos) >= n.pos.Lod {
			continue
		}
		if n.state.Children != ([4]NodeID{}) {
			f.log.DPanic("Leaf already owns children", zap.Stringer("pos", n.pos))
			continue
		}
		var children [4]NodeID
		for q := range children {
			c := f.newNode(n.tree, n.pos.Child(Quadrant(q)), n.id, Quadrant(q))
			children[q] = c.id
		}
		n.state = NodeState{Kind: StateLeafToBranch, Children: children}
		divided++
	}
	return
}

// CheckForMerging collapses every live branch whose location no longer needs
// its children, finest first. The children stay on display, marked dead, until
// the branch's own chunk is ready.
func (f *Forest) CheckForMerging(policy LodPolicy) (merged int) {
	var branches []*chunkNode
	for _, n := range f.nodes {
		if n.state.Kind == StateBranch && !n.dead {
			branches = append(branches, n)
		}
	}
	sort.Slice(branches, func(i, j int) bool {
		if branches[i].pos.Lod != branches[j].pos.Lod {
			return branches[i].pos.Lod < branches[j].pos.Lod
		}
		return branches[i].id < branches[j].id
	})

	for _, n := range branches {
		if n.dead || policy(n.tree, n.pos) < n.pos.Lod {
			continue
		}
		for _, c := range n.state.Children {
			f.markDead(c)
		}
		n.state = NodeState{Kind: StateBranchToLeaf, Children: n.state.Children}
		merged++
	}
	return
}

// CheckForTaskSpawning queues the first slab of every live node that shows its
// own chunk but has not asked for it yet. A node with an unfinished task waits.
func (f *Forest) CheckForTaskSpawning() (spawned int) {
	for id, n := range f.nodes {
		if n.dead || n.state.SpawnedTask {
			continue
		}
		if n.state.Kind != StateLeaf && n.state.Kind != StateBranchToLeaf {
			continue
		}
		if _, busy := f.outstanding[id]; busy {
			continue
		}
		n.state.SpawnedTask = true
		f.starts[id] = f.request(n, 0, 0)
		spawned++
	}
	return
}

// PendingStarts lists the chunk tasks waiting for a worker, coarsest first.
func (f *Forest) PendingStarts() []ChunkStart {
	out := make([]ChunkStart, 0, len(f.starts))
	for id, req := range f.starts {
		out = append(out, ChunkStart{Node: id, Request: req})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Request, out[j].Request
		if a.Pos.Lod != b.Pos.Lod {
			return a.Pos.Lod > b.Pos.Lod
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return out[i].Node < out[j].Node
	})
	return out
}

// MarkQueued records that the start for node has been handed to a worker.
func (f *Forest) MarkQueued(id NodeID) bool {
	req, ok := f.starts[id]
	if !ok {
		return false
	}
	if _, busy := f.outstanding[id]; busy {
		f.log.DPanic("Node already has a task in flight", zap.Uint64("node", uint64(id)))
		return false
	}
	delete(f.starts, id)
	f.outstanding[id] = &outstandingTask{req: req}
	return true
}

// requeue undoes MarkQueued for a task that never reached a worker.
func (f *Forest) requeue(id NodeID) {
	if o, ok := f.outstanding[id]; ok {
		delete(f.outstanding, id)
		f.starts[id] = o.req
	}
}

// OnChunkFailed returns a failed task's request to the start queue.
func (f *Forest) OnChunkFailed(id NodeID, err error) {
	o, ok := f.outstanding[id]
	if !ok {
		return
	}
	delete(f.outstanding, id)
	n := f.nodes[id]
	if n == nil || n.dead || o.stale {
		return
	}
	f.log.Warn("Chunk task failed, retrying",
		zap.Stringer("pos", n.pos),
		zap.Int32("offset", o.req.Offset),
		zap.Error(err),
	)
	f.starts[id] = o.req
}

// OnChunkReady delivers a finished slab to its node and advances the node's
// state machine. Results for removed, dead or superseded nodes are dropped.
func (f *Forest) OnChunkReady(id NodeID, result *ChunkResult) {
	o, ok := f.outstanding[id]
	if !ok {
		f.log.DPanic("Chunk result without a task in flight", zap.Uint64("node", uint64(id)))
		return
	}
	delete(f.outstanding, id)
	n := f.nodes[id]
	if n == nil || n.dead || o.stale || n.state.Kind == StateBranch {
		return
	}

	f.showChunk(n, o.req, result)
	if result.GenerateAbove {
		f.starts[id] = f.request(n, o.req.Offset+1, result.MinHeight)
		return
	}

	if n.state.Kind == StateBranchToLeaf {
		for _, c := range n.state.Children {
			f.removeSubtree(c)
		}
		n.state = NodeState{Kind: StateLeaf, SpawnedTask: true}
	}
	f.notifyParent(n)
}

// notifyParent marks n's quadrant done in a dividing parent. A parent whose
// four quadrants are done becomes a branch, hides its own chunks and reports
// to its own parent in turn.
func (f *Forest) notifyParent(n *chunkNode) {
	for {
		p := f.nodes[n.parent]
		if p == nil || p.state.Kind != StateLeafToBranch {
			return
		}
		if p.state.Children[n.quadrant] != n.id {
			f.log.DPanic("Child is not owned by its parent",
				zap.Stringer("child", n.pos),
				zap.Stringer("parent", p.pos),
			)
			return
		}
		p.state.Done[n.quadrant] = true
		if !p.state.allDone() {
			return
		}

		p.state = NodeState{Kind: StateBranch, Children: p.state.Children}
		f.hideChunks(p)
		delete(f.starts, p.id)
		if o, ok := f.outstanding[p.id]; ok {
			o.stale = true
		}
		n = p
	}
}

func (f *Forest) newNode(tree TreePos, pos LodPosition, parent NodeID, q Quadrant) *chunkNode {
	if !f.layout.ValidLodPosition(pos) {
		f.log.DPanic("Invalid node position", zap.Stringer("pos", pos))
	}
	f.lastNode++
	n := &chunkNode{
		id:       f.lastNode,
		tree:     tree,
		pos:      pos,
		parent:   parent,
		quadrant: q,
		state:    NodeState{Kind: StateLeaf},
	}
	f.nodes[n.id] = n
	return n
}

// request addresses a slab of n. The region is the one holding the node's
// minimum corner; a node never straddles regions as long as the region size
// is a multiple of the tree size, which Config.Validate enforces.
func (f *Forest) request(n *chunkNode, offset, base int32) ChunkRequest {
	return ChunkRequest{
		Tree:   n.tree,
		Pos:    n.pos,
		Offset: offset,
		Base:   base,
		Region: f.layout.RegionOf(f.layout.AbsoluteChunk(n.tree, n.pos)),
	}
}

func (f *Forest) markDead(id NodeID) {
	n := f.nodes[id]
	if n == nil || n.dead {
		return
	}
	n.dead = true
	delete(f.starts, id)
	if n.state.Kind != StateLeaf {
		for _, c := range n.state.Children {
			f.markDead(c)
		}
	}
}

func (f *Forest) removeSubtree(id NodeID) {
	n := f.nodes[id]
	if n == nil {
		return
	}
	if n.state.Kind != StateLeaf {
		for _, c := range n.state.Children {
			f.removeSubtree(c)
		}
	}
	f.hideChunks(n)
	delete(f.starts, id)
	delete(f.nodes, id)
}

func (f *Forest) showChunk(n *chunkNode, req ChunkRequest, result *ChunkResult) {
	f.lastChunk++
	c := &LoadedChunk{
		ID:          f.lastChunk,
		Node:        n.id,
		Tree:        n.tree,
		Pos:         n.pos,
		Offset:      req.Offset,
		ChunkResult: result,
	}
	f.chunks[c.ID] = c
	n.chunks = append(n.chunks, c.ID)
	if f.viewer != nil {
		f.viewer.ViewChunkLoad(c)
	}
}

func (f *Forest) hideChunks(n *chunkNode) {
	for _, id := range n.chunks {
		if _, ok := f.chunks[id]; !ok {
			f.log.DPanic("Hiding a chunk that is not loaded", zap.Uint64("chunk", uint64(id)))
			continue
		}
		delete(f.chunks, id)
		if f.viewer != nil {
			f.viewer.ViewChunkUnload(id)
		}
	}
	n.chunks = n.chunks[:0]
}

// Node returns a snapshot of the node.
func (f *Forest) Node(id NodeID) (NodeInfo, bool) {
	n, ok := f.nodes[id]
	if !ok {
		return NodeInfo{}, false
	}
	return n.info(), true
}

// Root returns the root node of a loaded tree.
func (f *Forest) Root(t TreePos) (NodeID, bool) {
	id, ok := f.trees[t]
	return id, ok
}

// Nodes returns a snapshot of every node, ordered by id.
func (f *Forest) Nodes() []NodeInfo {
	out := make([]NodeInfo, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InFlight returns the nodes with a task handed to a worker.
func (f *Forest) InFlight() int { return len(f.outstanding) }

// Settled reports whether no chunk work is waiting, running or about to be
// requested and no node is between states.
func (f *Forest) Settled() bool {
	if len(f.starts) > 0 || len(f.outstanding) > 0 {
		return false
	}
	for _, n := range f.nodes {
		switch {
		case n.dead:
			return false
		case n.state.Kind == StateLeafToBranch, n.state.Kind == StateBranchToLeaf:
			return false
		case n.state.Kind == StateLeaf && !n.state.SpawnedTask:
			return false
		}
	}
	return true
}

// ForestStats counts nodes per state and chunk work.
type ForestStats struct {
	Trees       int
	Nodes       map[NodeKind]int
	Dead        int
	Chunks      int
	Pending     int
	Outstanding int
}

func (f *Forest) Stats() ForestStats {
	s := ForestStats{
		Trees:       len(f.trees),
		Nodes:       make(map[NodeKind]int, 4),
		Chunks:      len(f.chunks),
		Pending:     len(f.starts),
		Outstanding: len(f.outstanding),
	}
	for _, n := range f.nodes {
		s.Nodes[n.state.Kind]++
		if n.dead {
			s.Dead++
		}
	}
	return s
}
