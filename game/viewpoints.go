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

package game

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Schoggi0815/spellhaven/world"
)

// viewpointList tracks the cameras registered as chunk loaders.
type viewpointList struct {
	log       *zap.Logger
	overworld *world.World

	mu      sync.Mutex
	entries map[string]viewpointEntry
}

type viewpointEntry struct {
	viewpoint *world.Viewpoint
	loader    uuid.UUID
}

func newViewpointList(log *zap.Logger, w *world.World) *viewpointList {
	return &viewpointList{
		log:       log.Named("viewpoints"),
		overworld: w,
		entries:   make(map[string]viewpointEntry),
	}
}

// add registers vp under its name, replacing any viewpoint of that name.
func (l *viewpointList) add(vp *world.Viewpoint, loader world.ChunkLoader) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.entries[vp.Name]; ok {
		l.overworld.RemoveLoader(old.loader)
	}
	id := l.overworld.AddLoader(vp, loader)
	l.entries[vp.Name] = viewpointEntry{viewpoint: vp, loader: id}
	l.log.Info("Viewpoint added",
		zap.String("name", vp.Name),
		zap.Stringer("uuid", vp.UUID),
		zap.Int32("eid", vp.EntityID),
	)
}

func (l *viewpointList) remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[name]
	if !ok {
		return false
	}
	delete(l.entries, name)
	l.overworld.RemoveLoader(e.loader)
	l.log.Info("Viewpoint removed", zap.String("name", name))
	return true
}

func (l *viewpointList) get(name string) (*world.Viewpoint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[name]
	return e.viewpoint, ok
}

// advance moves every viewpoint by dt seconds of its velocity.
func (l *viewpointList) advance(dt float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		e.viewpoint.Advance(dt)
	}
}

func (l *viewpointList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
