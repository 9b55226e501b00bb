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
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// GenerationOptions is the read-only input shared by every generation task.
type GenerationOptions struct {
	Seed          int64
	GeneratePaths bool
	Layout        Layout
	Noise         TerrainNoise
	Planner       PathPlanner
	Structures    []StructureGenerator
}

// StructureData is the settlement placement of one region.
type StructureData struct {
	CityLocation [2]int32 // voxels
}

// PathData holds the roads that start in one region.
type PathData struct {
	Paths []Path
}

// RegionData is everything a chunk needs to know about its region: the
// region's own settlement and roads plus the roads of the -x and -z neighbours,
// which may cross into it.
type RegionData struct {
	Pos       RegionPos
	Structure *StructureData
	Paths     *PathData
	PathsNegX *PathData
	PathsNegZ *PathData
}

// AllPaths returns the roads that can touch the region.
func (r *RegionData) AllPaths() []*Path {
	var out []*Path
	for _, pd := range [...]*PathData{r.Paths, r.PathsNegX, r.PathsNegZ} {
		if pd == nil {
			continue
		}
		for i := range pd.Paths {
			out = append(out, &pd.Paths[i])
		}
	}
	return out
}

// CacheStore owns the per-region caches. Lookups form an acyclic graph:
// regions read paths, paths read structures, structures read nothing.
type CacheStore struct {
	log     *zap.Logger
	options *GenerationOptions

	Structures *GenerationCache[RegionPos, StructureData]
	Paths      *GenerationCache[RegionPos, PathData]
	Regions    *GenerationCache[RegionPos, RegionData]
}

func NewCacheStore(log *zap.Logger, options *GenerationOptions) *CacheStore {
	return &CacheStore{
		log:        log.Named("cache"),
		options:    options,
		Structures: NewGenerationCache[RegionPos, StructureData]("structure"),
		Paths:      NewGenerationCache[RegionPos, PathData]("path"),
		Regions:    NewGenerationCache[RegionPos, RegionData]("region"),
	}
}

func (s *CacheStore) Options() *GenerationOptions { return s.options }

func (s *CacheStore) Structure(pos RegionPos) (*StructureData, error) {
	return s.Structures.GetOrGenerate(pos, s.generateStructure)
}

func (s *CacheStore) PathsFor(pos RegionPos) (*PathData, error) {
	return s.Paths.GetOrGenerate(pos, s.generatePaths)
}

func (s *CacheStore) Region(pos RegionPos) (*RegionData, error) {
	return s.Regions.GetOrGenerate(pos, s.generateRegion)
}

func (s *CacheStore) generateRegion(pos RegionPos) (*RegionData, error) {
	structure, err := s.Structure(pos)
	if err != nil {
		return nil, err
	}
	r := &RegionData{Pos: pos, Structure: structure}
	for _, p := range [...]struct {
		dst **PathData
		key RegionPos
	}{
		{&r.Paths, pos},
		{&r.PathsNegX, pos.Add(-1, 0)},
		{&r.PathsNegZ, pos.Add(0, -1)},
	} {
		if *p.dst, err = s.PathsFor(p.key); err != nil {
			return nil, fmt.Errorf("region %v: %w", pos, err)
		}
	}
	return r, nil
}

func (s *CacheStore) generateStructure(pos RegionPos) (*StructureData, error) {
	size := s.options.Layout.RegionSize
	margin := min(int32(100), size/4)
	rng := rand.New(rand.NewSource(mixSeed(s.options.Seed, pos[0], pos[1])))
	origin := s.options.Layout.RegionOrigin(pos)
	return &StructureData{CityLocation: [2]int32{
		origin[0] + margin + rng.Int31n(size-2*margin),
		origin[1] + margin + rng.Int31n(size-2*margin),
	}}, nil
}

// generatePaths connects this region's city to the cities of the +x and +z
// neighbours. The travel direction alternates by region parity so that both
// ends of a border get planned from either side about equally often.
func (s *CacheStore) generatePaths(pos RegionPos) (*PathData, error) {
	if !s.options.GeneratePaths || s.options.Planner == nil {
		return &PathData{}, nil
	}

	neighbours := [...]RegionPos{pos.Add(1, 0), pos.Add(0, 1)}
	here, err := s.Structure(pos)
	if err != nil {
		return nil, err
	}

	flip := (pos[0]+pos[1])&1 == 0
	data := &PathData{Paths: make([]Path, 0, len(neighbours))}
	for _, n := range neighbours {
		there, err := s.Structure(n)
		if err != nil {
			return nil, err
		}
		start, end := here.CityLocation, there.CityLocation
		if flip {
			start, end = end, start
		}
		path, err := s.planPath(start, end, [2]RegionPos{pos, n})
		if err != nil {
			return nil, err
		}
		data.Paths = append(data.Paths, path)
	}
	return data, nil
}

func (s *CacheStore) planPath(start, end [2]int32, regions [2]RegionPos) (Path, error) {
	logger := s.log.With(
		zap.Int32s("start", start[:]),
		zap.Int32s("end", end[:]),
	)
	points, err := s.options.Planner.Plan(start, end, PlanArea{Layout: s.options.Layout, Regions: regions})
	if errors.Is(err, ErrNoPath) {
		logger.Info("No path could be created")
		return Path{}, nil
	} else if err != nil {
		return Path{}, fmt.Errorf("plan path: %w", err)
	}
	logger.Debug("Path planned", zap.Int("points", len(points)))
	return newPath(points), nil
}

// Path is a smoothed road made of spline segments.
type Path struct {
	Lines []PathLine
	Lower [2]int32
	Upper [2]int32
}

// InBox reports whether point lies within margin of the path's bounding box.
func (p *Path) InBox(point [2]int32, margin int32) bool {
	return inBox(point, p.Lower, p.Upper, margin)
}

// PathLine is one cubic Bezier segment of a road, pre-sampled into a polyline.
type PathLine struct {
	Start, End      [2]int32
	SplineOne       mgl64.Vec2
	SplineTwo       mgl64.Vec2
	Lower, Upper    [2]int32
	EstimatedLength float64
	SamplePoints    [][2]int32
}

func newPath(points [][2]int32) Path {
	if len(points) < 2 {
		return Path{}
	}
	path := Path{Lower: points[0], Upper: points[0]}
	for _, p := range points {
		path.Lower = [2]int32{min(path.Lower[0], p[0]), min(path.Lower[1], p[1])}
		path.Upper = [2]int32{max(path.Upper[0], p[0]), max(path.Upper[1], p[1])}
	}

	smooth := make([][2]int32, 0, len(points)+1)
	smooth = append(smooth, points[0])
	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		smooth = append(smooth, [2]int32{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2})
	}
	smooth = append(smooth, points[len(points)-1])

	// The outer control points repeat the ends so the first and last segments
	// leave and arrive straight.
	last := len(smooth) - 1
	for i := 0; i < last; i++ {
		before, after := smooth[max(i-1, 0)], smooth[min(i+2, last)]
		path.Lines = append(path.Lines, newPathLine(smooth[i], smooth[i+1], before, after))
	}
	return path
}

func newPathLine(start, end, before, after [2]int32) PathLine {
	s, e := vec2(start), vec2(end)
	length := e.Sub(s).Len()

	one := s.Add(vec2(end).Sub(vec2(before)).Mul(1.0 / 6))
	two := e.Sub(vec2(after).Sub(vec2(start)).Mul(1.0 / 6))
	one = s.Add(normalize(one.Sub(s)).Mul(length / 2))
	two = e.Add(normalize(two.Sub(e)).Mul(length / 2))

	l := PathLine{
		Start:           start,
		End:             end,
		SplineOne:       one,
		SplineTwo:       two,
		Lower:           [2]int32{min(start[0], end[0]), min(start[1], end[1])},
		Upper:           [2]int32{max(start[0], end[0]), max(start[1], end[1])},
		EstimatedLength: length,
		SamplePoints:    [][2]int32{start},
	}

	n := math.Max(length/20, 2)
	last := start
	for i := 1; i < int(n); i++ {
		p := l.LerpOnSpline(float64(i) / n)
		cur := [2]int32{int32(p.X()), int32(p.Y())}
		if cur == last {
			continue
		}
		l.SamplePoints = append(l.SamplePoints, cur)
		l.Lower = [2]int32{min(l.Lower[0], cur[0]), min(l.Lower[1], cur[1])}
		l.Upper = [2]int32{max(l.Upper[0], cur[0]), max(l.Upper[1], cur[1])}
		last = cur
	}
	l.SamplePoints = append(l.SamplePoints, end)
	return l
}

func (l *PathLine) InBox(point [2]int32, margin int32) bool {
	return inBox(point, l.Lower, l.Upper, margin)
}

// LerpOnSpline evaluates the segment's Bezier curve at t in [0, 1].
func (l *PathLine) LerpOnSpline(t float64) mgl64.Vec2 {
	a := lerp(vec2(l.Start), l.SplineOne, t)
	b := lerp(l.SplineOne, l.SplineTwo, t)
	c := lerp(l.SplineTwo, vec2(l.End), t)
	return lerp(lerp(a, b, t), lerp(b, c, t), t)
}

// ClosestPoint returns the nearest point of the sampled polyline and the
// direction of the segment it lies on. It only considers samples whose boxes
// are within margin of point.
func (l *PathLine) ClosestPoint(point [2]int32, margin int32) (closest, dir mgl64.Vec2, ok bool) {
	best := math.MaxFloat64
	p := vec2(point)
	for i := 1; i < len(l.SamplePoints); i++ {
		a, b := l.SamplePoints[i-1], l.SamplePoints[i]
		lower := [2]int32{min(a[0], b[0]), min(a[1], b[1])}
		upper := [2]int32{max(a[0], b[0]), max(a[1], b[1])}
		if !inBox(point, lower, upper, margin) {
			continue
		}
		c := closestOnSegment(vec2(a), vec2(b), p)
		if d := c.Sub(p).LenSqr(); d < best {
			best, closest, dir, ok = d, c, normalize(vec2(b).Sub(vec2(a))), true
		}
	}
	return
}

func closestOnSegment(a, b, p mgl64.Vec2) mgl64.Vec2 {
	ab := b.Sub(a)
	lsq := ab.LenSqr()
	if lsq == 0 {
		return a
	}
	t := mgl64.Clamp(p.Sub(a).Dot(ab)/lsq, 0, 1)
	return a.Add(ab.Mul(t))
}

func inBox(point, lower, upper [2]int32, margin int32) bool {
	return point[0] >= lower[0]-margin && point[0] <= upper[0]+margin &&
		point[1] >= lower[1]-margin && point[1] <= upper[1]+margin
}

func vec2(p [2]int32) mgl64.Vec2 { return mgl64.Vec2{float64(p[0]), float64(p[1])} }

func lerp(a, b mgl64.Vec2, t float64) mgl64.Vec2 { return a.Mul(1 - t).Add(b.Mul(t)) }

func normalize(v mgl64.Vec2) mgl64.Vec2 {
	if v.LenSqr() == 0 {
		return v
	}
	return v.Normalize()
}

// mixSeed derives a stable per-key seed (splitmix64 finalizer).
func mixSeed(seed int64, x, z int32) int64 {
	h := uint64(seed) ^ uint64(uint32(x))<<32 ^ uint64(uint32(z))
	h += 0x9e3779b97f4a7c15
	h = (h ^ h>>30) * 0xbf58476d1ce4e5b9
	h = (h ^ h>>27) * 0x94d049bb133111eb
	return int64(h ^ h>>31)
}
