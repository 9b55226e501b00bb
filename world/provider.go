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

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrReachRateLimit is returned when the per-tick chunk budget is spent.
var ErrReachRateLimit = errors.New("reach rate limit")

// RegionCache hands region data to the tick goroutine without blocking it.
// Missing regions are generated on the region pool, one task per key.
type RegionCache struct {
	log     *zap.Logger
	store   *CacheStore
	pool    *TaskPool[regionOutcome]
	pending map[RegionPos]*Task[regionOutcome]
}

type regionOutcome struct {
	data *RegionData
	err  error
}

func NewRegionCache(log *zap.Logger, store *CacheStore, workers, queueSize int) *RegionCache {
	return &RegionCache{
		log:     log.Named("regions"),
		store:   store,
		pool:    NewTaskPool[regionOutcome](log, "region", workers, queueSize),
		pending: make(map[RegionPos]*Task[regionOutcome]),
	}
}

// GetOrQueue returns the region data if it is ready. Otherwise it makes sure
// a task is computing it and reports false; call again on a later tick.
func (r *RegionCache) GetOrQueue(pos RegionPos) (*RegionData, bool) {
	if d, ok := r.store.Regions.TryGet(pos); ok {
		// The task may have filled the cache before its handle was polled.
		delete(r.pending, pos)
		return d, true
	}

	if t, ok := r.pending[pos]; ok {
		out, done, err := t.Poll()
		if !done {
			return nil, false
		}
		delete(r.pending, pos)
		if err == nil {
			err = out.err
		}
		if err != nil {
			r.log.Error("Region generation failed",
				zap.Int32("x", pos[0]),
				zap.Int32("z", pos[1]),
				zap.Error(err),
			)
			return nil, false
		}
		return out.data, true
	}

	t, err := r.pool.Spawn(func() regionOutcome {
		d, err := r.store.Region(pos)
		return regionOutcome{data: d, err: err}
	})
	if err != nil {
		r.log.Debug("Region task not queued", zap.Error(err))
		return nil, false
	}
	r.pending[pos] = t
	return nil, false
}

// Pending returns the number of region tasks not yet collected.
func (r *RegionCache) Pending() int { return len(r.pending) }

// Close waits for running region tasks.
func (r *RegionCache) Close() { r.pool.Close() }

// ChunkProvider moves chunk starts from the forest onto the chunk pool and
// feeds finished tasks back.
type ChunkProvider struct {
	log       *zap.Logger
	regions   *RegionCache
	generator ChunkGenerator
	pool      *TaskPool[*ChunkResult]
	limiter   *rate.Limiter
	maxTasks  int

	inFlight []chunkTask
}

type chunkTask struct {
	node NodeID
	task *Task[*ChunkResult]
}

// NewChunkProvider creates a provider. A nil limiter never throttles and
// maxTasks below one means one.
func NewChunkProvider(log *zap.Logger, regions *RegionCache, generator ChunkGenerator, pool *TaskPool[*ChunkResult], limiter *rate.Limiter, maxTasks int) *ChunkProvider {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &ChunkProvider{
		log:       log.Named("provider"),
		regions:   regions,
		generator: generator,
		pool:      pool,
		limiter:   limiter,
		maxTasks:  max(maxTasks, 1),
	}
}

// Queue spawns pending starts, coarsest first, until the in-flight cap, the
// rate limit or the pool queue stops it. Starts whose region is not ready yet
// stay pending.
func (p *ChunkProvider) Queue(forest *Forest) (queued int) {
	for _, s := range forest.PendingStarts() {
		if len(p.inFlight) >= p.maxTasks {
			break
		}
		region, ok := p.regions.GetOrQueue(s.Request.Region)
		if !ok {
			continue
		}
		if !forest.MarkQueued(s.Node) {
			continue
		}
		t, err := p.spawn(s.Request, region)
		if err != nil {
			forest.requeue(s.Node)
			if !errors.Is(err, ErrReachRateLimit) && !errors.Is(err, ErrQueueFull) {
				p.log.Error("Spawn chunk task", zap.Error(err))
			}
			break
		}
		p.inFlight = append(p.inFlight, chunkTask{node: s.Node, task: t})
		queued++
	}
	chunkTasksInFlight.Set(float64(len(p.inFlight)))
	return
}

func (p *ChunkProvider) spawn(req ChunkRequest, region *RegionData) (*Task[*ChunkResult], error) {
	if !p.limiter.Allow() {
		return nil, ErrReachRateLimit
	}
	return p.pool.Spawn(func() *ChunkResult {
		res := p.generator.GenerateChunk(req, region)
		return &res
	})
}

// Poll delivers every finished task to the forest.
func (p *ChunkProvider) Poll(forest *Forest) (completed int) {
	remaining := p.inFlight[:0]
	for _, ct := range p.inFlight {
		res, done, err := ct.task.Poll()
		switch {
		case !done:
			remaining = append(remaining, ct)
			continue
		case err != nil:
			forest.OnChunkFailed(ct.node, err)
		default:
			forest.OnChunkReady(ct.node, res)
		}
		completed++
	}
	clear(p.inFlight[len(remaining):])
	p.inFlight = remaining
	chunkTasksInFlight.Set(float64(len(p.inFlight)))
	return
}

func (p *ChunkProvider) InFlight() int { return len(p.inFlight) }
