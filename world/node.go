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

import "fmt"

// NodeID is a stable handle into the forest arena. IDs are never reused, so a
// late task result can always tell whether its node still exists.
type NodeID uint64

// ChunkID identifies one displayed chunk slab.
type ChunkID uint64

type NodeKind uint8

const (
	StateLeaf         NodeKind = iota // shows its own chunks
	StateLeafToBranch                 // shows its own chunks while children generate
	StateBranch                       // children show everything
	StateBranchToLeaf                 // children shown while its own chunk generates
)

func (k NodeKind) String() string {
	switch k {
	case StateLeaf:
		return "leaf"
	case StateLeafToBranch:
		return "leaf_to_branch"
	case StateBranch:
		return "branch"
	case StateBranchToLeaf:
		return "branch_to_leaf"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// NodeState is the tagged state of a node. SpawnedTask is meaningful for
// StateLeaf and StateBranchToLeaf, Children for every state but StateLeaf and
// Done only for StateLeafToBranch.
type NodeState struct {
	Kind        NodeKind
	SpawnedTask bool
	Children    [4]NodeID
	Done        [4]bool
}

func (s NodeState) allDone() bool {
	return s.Done[0] && s.Done[1] && s.Done[2] && s.Done[3]
}

type chunkNode struct {
	id       NodeID
	tree     TreePos
	pos      LodPosition
	parent   NodeID // 0 for roots; only used to report completion upward
	quadrant Quadrant
	state    NodeState
	dead     bool
	chunks   []ChunkID
}

// NodeInfo is a read-only snapshot of a node.
type NodeInfo struct {
	ID     NodeID
	Parent NodeID
	Tree   TreePos
	Pos    LodPosition
	State  NodeState
	Dead   bool
	Chunks int
}

func (n *chunkNode) info() NodeInfo {
	return NodeInfo{
		ID:     n.id,
		Parent: n.parent,
		Tree:   n.tree,
		Pos:    n.pos,
		State:  n.state,
		Dead:   n.dead,
		Chunks: len(n.chunks),
	}
}

// LoadedChunk is a finished chunk slab currently on display.
type LoadedChunk struct {
	ID     ChunkID
	Node   NodeID
	Tree   TreePos
	Pos    LodPosition
	Offset int32
	*ChunkResult
}
