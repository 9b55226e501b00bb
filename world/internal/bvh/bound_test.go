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

import "testing"

func TestAABB_WithIn(t *testing.T) {
	aabb := aabb2d{Upper: vec2d{2, 2}, Lower: vec2d{-1, -1}}
	for _, tc := range []struct {
		p    vec2d
		want bool
	}{
		{vec2d{0, 0}, true},
		{vec2d{2, 2}, true},
		{vec2d{-1, 0}, true},
		{vec2d{-2, -2}, false},
		{vec2d{0, 2.5}, false},
	} {
		if got := aabb.WithIn(tc.p); got != tc.want {
			t.Errorf("WithIn(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestAABB_Touch(t *testing.T) {
	a := Square(vec2d{0, 0}, 1)
	if !a.Touch(Square(vec2d{2, 0}, 1)) {
		t.Error("boxes sharing an edge should touch")
	}
	if a.Touch(Square(vec2d{3, 0}, 1)) {
		t.Error("separate boxes should not touch")
	}
	if !a.Touch(Square(vec2d{0, 0}, 10)) {
		t.Error("contained box should touch")
	}
	if u := a.Union(Square(vec2d{5, 5}, 1)); u.Lower != (vec2d{-1, -1}) || u.Upper != (vec2d{6, 6}) {
		t.Errorf("Union = %v", u)
	}
}
