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
	"container/heap"
	"errors"
	"fmt"
	"math"
)

// ErrNoPath is returned by a PathPlanner when the endpoints cannot be joined.
// Callers treat it as "no road here", not as a failure.
var ErrNoPath = errors.New("no path")

// PathPlanner finds a walkable route between two voxel positions.
type PathPlanner interface {
	Plan(start, end [2]int32, area PlanArea) ([][2]int32, error)
}

// PlanArea restricts a search to the union of two regions.
type PlanArea struct {
	Layout  Layout
	Regions [2]RegionPos
}

func (a PlanArea) Contains(voxel [2]int32) bool {
	r := RegionPos{floorDiv(voxel[0], a.Layout.RegionSize), floorDiv(voxel[1], a.Layout.RegionSize)}
	return r == a.Regions[0] || r == a.Regions[1]
}

// AStarPlanner searches an 8-connected grid of CellSize voxels. Straight steps
// cost 10, diagonal steps 14. A step may turn by at most 45 degrees and may not
// climb steeper than MaxSlope.
type AStarPlanner struct {
	Noise           TerrainNoise
	CellSize        int32
	MaxSlope        float64
	HeightWeight    float64
	SteepnessWeight float64
	MaxExpansions   int
}

func NewAStarPlanner(noise TerrainNoise, cellSize int32) *AStarPlanner {
	return &AStarPlanner{
		Noise:           noise,
		CellSize:        cellSize,
		MaxSlope:        0.55,
		HeightWeight:    40,
		SteepnessWeight: 20,
		MaxExpansions:   1 << 18,
	}
}

var planDirections = [...][2]int32{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

type planState struct {
	cell [2]int32
	dir  [2]int32
}

func (a *AStarPlanner) Plan(start, end [2]int32, area PlanArea) ([][2]int32, error) {
	if !area.Contains(start) || !area.Contains(end) {
		return nil, fmt.Errorf("%w: endpoints outside search area", ErrNoPath)
	}
	size := max(a.CellSize, 1)
	noise := a.Noise
	if noise == nil {
		noise = FlatTerrain(0)
	}
	from := [2]int32{floorDiv(start[0], size), floorDiv(start[1], size)}
	to := [2]int32{floorDiv(end[0], size), floorDiv(end[1], size)}

	origin := planState{cell: from}
	best := map[planState]int{origin: 0}
	prev := make(map[planState]planState)
	open := &planQueue{{state: origin, f: octile(from, to)}}

	for expanded := 0; open.Len() > 0; expanded++ {
		if a.MaxExpansions > 0 && expanded >= a.MaxExpansions {
			return nil, fmt.Errorf("%w: gave up after %d expansions", ErrNoPath, expanded)
		}
		cur := heap.Pop(open).(*planItem)
		if cur.g > best[cur.state] {
			continue
		}
		if cur.state.cell == to {
			return a.reconstruct(prev, cur.state, origin, start, end, size), nil
		}

		for _, dir := range planDirections {
			turn := abs32(dir[0]-cur.state.dir[0]) + abs32(dir[1]-cur.state.dir[1])
			if cur.state.dir != ([2]int32{}) && turn > 1 {
				continue
			}
			next := [2]int32{cur.state.cell[0] + dir[0], cur.state.cell[1] + dir[1]}
			center := [2]int32{next[0]*size + size/2, next[1]*size + size/2}
			if !area.Contains(center) {
				continue
			}
			cost, ok := a.stepCost(noise, center, dir)
			if !ok {
				continue
			}
			s := planState{cell: next, dir: dir}
			g := cur.g + cost
			if old, seen := best[s]; seen && old <= g {
				continue
			}
			best[s] = g
			prev[s] = cur.state
			heap.Push(open, &planItem{state: s, g: g, f: g + octile(next, to)})
		}
	}
	return nil, ErrNoPath
}

func (a *AStarPlanner) stepCost(noise TerrainNoise, voxel, dir [2]int32) (int, bool) {
	base, length := 10, 1.0
	if dir[0] != 0 && dir[1] != 0 {
		base, length = 14, math.Sqrt2
	}
	d := noise.Sample(float64(voxel[0]), float64(voxel[1])).Derivative
	ux, uz := float64(dir[0])/length, float64(dir[1])/length
	slope := math.Abs(d[0]*ux + d[1]*uz)
	if slope > a.MaxSlope {
		return 0, false
	}
	steepness := math.Abs(d[0]*-uz + d[1]*ux)
	return base + int(slope*a.HeightWeight) + int(steepness*a.SteepnessWeight), true
}

func (a *AStarPlanner) reconstruct(prev map[planState]planState, goal, origin planState, start, end [2]int32, size int32) [][2]int32 {
	var cells [][2]int32
	for s := goal; s != origin; s = prev[s] {
		cells = append(cells, s.cell)
	}
	points := make([][2]int32, 0, len(cells)+2)
	points = append(points, start)
	for i := len(cells) - 1; i >= 0; i-- {
		c := cells[i]
		points = append(points, [2]int32{c[0]*size + size/2, c[1]*size + size/2})
	}
	if len(points) > 1 {
		points[len(points)-1] = end
	} else {
		points = append(points, end)
	}
	return points
}

// octile is the admissible distance estimate for 10/14 step costs.
func octile(a, b [2]int32) int {
	dx, dz := int(abs32(a[0]-b[0])), int(abs32(a[1]-b[1]))
	return 10*(dx+dz) - 6*min(dx, dz)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

type planItem struct {
	state planState
	g, f  int
}

type planQueue []*planItem

func (q planQueue) Len() int           { return len(q) }
func (q planQueue) Less(i, j int) bool { return q[i].f < q[j].f }
func (q planQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *planQueue) Push(x any)        { *q = append(*q, x.(*planItem)) }
func (q *planQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}
