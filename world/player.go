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

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Viewpoint is a named camera that terrain is streamed around. Whoever drives
// it writes Inputs; the tick goroutine copies them when the lock is free, so a
// busy writer delays an update by a tick instead of stalling the world.
type Viewpoint struct {
	Entity
	Name string
	UUID uuid.UUID

	Inputs Inputs
}

// Inputs is the externally written state of a viewpoint.
type Inputs struct {
	sync.Mutex
	Position mgl64.Vec3
	Velocity mgl64.Vec3
}

func NewViewpoint(name string, pos, vel mgl64.Vec3) *Viewpoint {
	v := &Viewpoint{
		Entity: Entity{EntityID: NewEntityID(), Position: pos, Velocity: vel},
		Name:   name,
		UUID:   uuid.New(),
	}
	v.Inputs.Position, v.Inputs.Velocity = pos, vel
	return v
}

// Set replaces the inputs.
func (v *Viewpoint) Set(pos, vel mgl64.Vec3) {
	v.Inputs.Lock()
	defer v.Inputs.Unlock()
	v.Inputs.Position, v.Inputs.Velocity = pos, vel
}

// Advance moves the inputs by dt seconds of their own velocity.
func (v *Viewpoint) Advance(dt float64) {
	v.Inputs.Lock()
	defer v.Inputs.Unlock()
	v.Inputs.Position = v.Inputs.Position.Add(v.Inputs.Velocity.Mul(dt))
}

// LoaderPosition implements LoaderSource. Invalid input positions are dropped.
func (v *Viewpoint) LoaderPosition() mgl64.Vec3 {
	if v.Inputs.TryLock() {
		if isFinite(v.Inputs.Position) {
			v.Position = v.Inputs.Position
		}
		v.Velocity = v.Inputs.Velocity
		v.Inputs.Unlock()
	}
	return v.Position
}

// LoaderVelocity implements VelocitySource.
func (v *Viewpoint) LoaderVelocity() mgl64.Vec3 { return v.Velocity }
