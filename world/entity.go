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
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

var entityCounter atomic.Int32

// NewEntityID returns a process-unique id for a moving object.
func NewEntityID() int32 {
	return entityCounter.Add(1)
}

// Entity is the movable part of a viewpoint.
type Entity struct {
	EntityID int32
	Position mgl64.Vec3
	Velocity mgl64.Vec3 // world units per second
}

func isFinite(v mgl64.Vec3) bool {
	return !math.IsNaN(v[0]) && !math.IsNaN(v[1]) && !math.IsNaN(v[2]) &&
		!math.IsInf(v[0], 0) && !math.IsInf(v[1], 0) && !math.IsInf(v[2], 0)
}
