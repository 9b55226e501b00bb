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
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Schoggi0815/spellhaven/client"
	"github.com/Schoggi0815/spellhaven/world"
)

type Game struct {
	log *zap.Logger

	config    Config
	overworld *world.World
	sink      *client.Client

	*viewpointList
}

// NewGame builds the world, attaches the chunk sink and places the configured
// viewpoints. Ticking starts with Run.
func NewGame(log *zap.Logger, config Config) (*Game, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	overworld := world.New(log.Named("overworld"), config.WorldOptions())
	sink := client.New(log)
	overworld.AddViewer(sink)

	g := &Game{
		log:           log.Named("game"),
		config:        config,
		overworld:     overworld,
		sink:          sink,
		viewpointList: newViewpointList(log, overworld),
	}
	loader := config.ChunkLoader()
	for _, v := range config.Viewpoints {
		pos, vel := v.vectors()
		g.add(world.NewViewpoint(v.Name, pos, vel), loader)
	}
	return g, nil
}

func (g *Game) World() *world.World { return g.overworld }

func (g *Game) Client() *client.Client { return g.sink }

// AddViewpoint places a new camera with the configured loader.
func (g *Game) AddViewpoint(vp *world.Viewpoint) { g.add(vp, g.config.ChunkLoader()) }

// RemoveViewpoint drops the named camera.
func (g *Game) RemoveViewpoint(name string) bool { return g.remove(name) }

// Viewpoint returns the named camera.
func (g *Game) Viewpoint(name string) (*world.Viewpoint, bool) { return g.get(name) }

// Run ticks the world and moves the viewpoints until ctx is done. It logs once
// when the terrain around the viewpoints has settled.
func (g *Game) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- g.overworld.Run(ctx) }()

	rate := g.config.TickRate.Duration
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	status := time.NewTicker(10 * time.Second)
	defer status.Stop()

	ready := false
	for {
		select {
		case <-ctx.Done():
			err := <-errc
			g.overworld.Close()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-ticker.C:
			g.advance(rate.Seconds())
			if r := g.overworld.Ready(); r != ready {
				ready = r
				if ready {
					g.log.Info("World ready", zap.Int("chunks", g.sink.Len()))
				}
			}
		case <-status.C:
			s := g.overworld.Stats()
			g.log.Info("Status",
				zap.Uint64("ticks", s.Ticks),
				zap.Int("trees", s.Forest.Trees),
				zap.Int("chunks", s.Forest.Chunks),
				zap.Int("in flight", s.InFlight),
				zap.Int("regions", s.Regions),
				zap.Int("viewpoints", g.len()),
				zap.Int("faces", g.sink.Faces()),
			)
		}
	}
}
