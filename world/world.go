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
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// World streams terrain around its loaders. All quad-tree work happens inside
// Tick, which is serialized by tickLock; generation runs on the pools.
type World struct {
	log     *zap.Logger
	options Options

	store     *CacheStore
	regions   *RegionCache
	chunkPool *TaskPool[*ChunkResult]
	provider  *ChunkProvider

	tickLock sync.Mutex
	ticks    uint64
	idle     bool // the last tick changed nothing
	forest   *Forest
	loaders  *loaderSet
	viewers  viewerList

	closeOnce sync.Once
}

// Options configures a World.
type Options struct {
	Layout     Layout
	Generation GenerationOptions
	Generator  ChunkGenerator // nil selects a VoxelGenerator

	TickRate      time.Duration
	ChunkWorkers  int
	RegionWorkers int
	QueueSize     int
	MaxChunkTasks int
	ChunkLimiter  *rate.Limiter // nil means unlimited
}

// DefaultOptions is a Perlin world with roads and vegetation.
func DefaultOptions(seed int64) Options {
	layout := DefaultLayout()
	noise := NewPerlinTerrain(seed)
	return Options{
		Layout: layout,
		Generation: GenerationOptions{
			Seed:          seed,
			GeneratePaths: true,
			Layout:        layout,
			Noise:         noise,
			Planner:       NewAStarPlanner(noise, 64),
			Structures:    DefaultStructures(),
		},
		TickRate:      50 * time.Millisecond,
		ChunkWorkers:  6,
		RegionWorkers: 4,
		QueueSize:     64,
		MaxChunkTasks: 20,
	}
}

func New(logger *zap.Logger, options Options) *World {
	gen := &options.Generation
	gen.Layout = options.Layout
	if gen.Noise == nil {
		gen.Noise = FlatTerrain(0)
	}
	if options.Generator == nil {
		options.Generator = NewVoxelGenerator(gen)
	}

	w := &World{
		log:     logger,
		options: options,
		loaders: newLoaderSet(options.Layout),
	}
	w.store = NewCacheStore(logger, &w.options.Generation)
	w.regions = NewRegionCache(logger, w.store, options.RegionWorkers, options.QueueSize)
	w.chunkPool = NewTaskPool[*ChunkResult](logger, "chunk", options.ChunkWorkers, options.QueueSize)
	w.provider = NewChunkProvider(logger, w.regions, options.Generator, w.chunkPool, options.ChunkLimiter, options.MaxChunkTasks)
	w.forest = NewForest(logger, options.Layout, &w.viewers)
	return w
}

// AddLoader registers a loader and returns the id to remove it with.
func (w *World) AddLoader(source LoaderSource, config ChunkLoader) uuid.UUID {
	w.tickLock.Lock()
	defer w.tickLock.Unlock()
	id := uuid.New()
	w.loaders.add(id, source, config)
	w.log.Debug("Add loader",
		zap.Stringer("id", id),
		zap.Int32("load range", config.LoadRange),
		zap.Int("levels", len(config.LodRange)),
	)
	return id
}

// RemoveLoader forgets a loader. Trees it alone kept loaded are dropped on the
// next tick.
func (w *World) RemoveLoader(id uuid.UUID) bool {
	w.tickLock.Lock()
	defer w.tickLock.Unlock()
	w.log.Debug("Remove loader", zap.Stringer("id", id), zap.Int("trees", len(w.forest.trees)))
	return w.loaders.remove(id)
}

// AddViewer subscribes v to chunk events from the next tick on.
func (w *World) AddViewer(v ChunkViewer) {
	w.tickLock.Lock()
	defer w.tickLock.Unlock()
	w.viewers = append(w.viewers, v)
}

// Caches exposes the generation caches for inspection.
func (w *World) Caches() *CacheStore { return w.store }

// Stats is a point-in-time summary of the world.
type Stats struct {
	Ticks          uint64
	Forest         ForestStats
	InFlight       int
	RegionsPending int
	Regions        int
}

func (w *World) Stats() Stats {
	w.tickLock.Lock()
	defer w.tickLock.Unlock()
	return Stats{
		Ticks:          w.ticks,
		Forest:         w.forest.Stats(),
		InFlight:       w.provider.InFlight(),
		RegionsPending: w.regions.Pending(),
		Regions:        w.store.Regions.Len(),
	}
}

// Ready reports whether every loaded tree has settled: the last tick found
// nothing to do and no chunk work is waiting or generating.
func (w *World) Ready() bool {
	w.tickLock.Lock()
	defer w.tickLock.Unlock()
	return w.idle && len(w.forest.trees) > 0 && w.provider.InFlight() == 0 && w.forest.Settled()
}

// Close stops the pools after their queued tasks finish. Results that were
// never polled are dropped.
func (w *World) Close() {
	w.closeOnce.Do(func() {
		w.chunkPool.Close()
		w.regions.Close()
	})
}
