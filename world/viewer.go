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

// ChunkViewer receives finished chunks as they appear and disappear. Calls
// come from the tick goroutine; implementations must not block.
type ChunkViewer interface {
	ViewChunkLoad(c *LoadedChunk)
	ViewChunkUnload(id ChunkID)
}

// viewerList fans chunk events out to every registered viewer.
type viewerList []ChunkViewer

func (l *viewerList) ViewChunkLoad(c *LoadedChunk) {
	for _, v := range *l {
		v.ViewChunkLoad(c)
	}
}

func (l *viewerList) ViewChunkUnload(id ChunkID) {
	for _, v := range *l {
		v.ViewChunkUnload(id)
	}
}
