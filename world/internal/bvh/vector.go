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

package bvh

import "golang.org/x/exp/constraints"

// Vec2 is a point on the horizontal plane.
type Vec2[I constraints.Signed | constraints.Float] [2]I

func (v Vec2[I]) Add(other Vec2[I]) Vec2[I] { return Vec2[I]{v[0] + other[0], v[1] + other[1]} }
func (v Vec2[I]) Sub(other Vec2[I]) Vec2[I] { return Vec2[I]{v[0] - other[0], v[1] - other[1]} }
func (v Vec2[I]) Max(other Vec2[I]) Vec2[I] { return Vec2[I]{max(v[0], other[0]), max(v[1], other[1])} }
func (v Vec2[I]) Min(other Vec2[I]) Vec2[I] { return Vec2[I]{min(v[0], other[0]), min(v[1], other[1])} }
func (v Vec2[I]) Sum() I                    { return v[0] + v[1] }

// LessEq reports whether every component is <= the other's.
func (v Vec2[I]) LessEq(other Vec2[I]) bool { return v[0] <= other[0] && v[1] <= other[1] }

// Square returns the box of half-size r around v.
func Square[I constraints.Float](center Vec2[I], r I) AABB[I, Vec2[I]] {
	return AABB[I, Vec2[I]]{
		Upper: Vec2[I]{center[0] + r, center[1] + r},
		Lower: Vec2[I]{center[0] - r, center[1] - r},
	}
}
