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
	"time"

	"go.uber.org/zap"
)

// Run ticks the world at the configured rate until ctx is done.
func (w *World) Run(ctx context.Context) error {
	rate := w.options.TickRate
	if rate <= 0 {
		rate = 50 * time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick runs one scheduling pass. It never waits on generation work.
func (w *World) Tick() {
	w.tickLock.Lock()
	defer w.tickLock.Unlock()
	w.tick(w.ticks)
	w.ticks++
}

func (w *World) tick(n uint64) {
	w.loaders.snapshot()
	loaded := w.subtickLoadTrees()

	divided := w.forest.CheckForDivision(w.loaders.minLod)
	merged := w.forest.CheckForMerging(w.loaders.minLod)
	spawned := w.forest.CheckForTaskSpawning()

	queued := w.provider.Queue(w.forest)
	completed := w.provider.Poll(w.forest)

	unloaded := w.subtickUnloadTrees()
	w.publishGauges()

	w.idle = loaded+divided+merged+spawned+queued+completed+unloaded == 0
	if !w.idle {
		w.log.Debug("Tick",
			zap.Uint64("n", n),
			zap.Int("trees loaded", loaded),
			zap.Int("divided", divided),
			zap.Int("merged", merged),
			zap.Int("spawned", spawned),
			zap.Int("queued", queued),
			zap.Int("completed", completed),
			zap.Int("trees unloaded", unloaded),
		)
	}
}

func (w *World) subtickLoadTrees() int {
	return w.forest.LoadTrees(w.loaders.wantedTrees())
}

func (w *World) subtickUnloadTrees() (unloaded int) {
	for _, t := range w.forest.Trees() {
		if w.loaders.keeps(t) {
			continue
		}
		w.forest.UnloadTree(t)
		unloaded++
	}
	return
}

func (w *World) publishGauges() {
	s := w.forest.Stats()
	chunkTrees.Set(float64(s.Trees))
	for _, k := range []NodeKind{StateLeaf, StateLeafToBranch, StateBranch, StateBranchToLeaf} {
		chunkNodes.WithLabelValues(k.String()).Set(float64(s.Nodes[k]))
	}
}
