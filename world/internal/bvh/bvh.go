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

// Package bvh is a dynamic bounding volume hierarchy. Leaves are inserted at
// the sibling that grows the total surface the least, and the branch is
// rotated on the way back up to keep the tree shallow.
package bvh

import (
	"container/heap"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Bound is what a tree can index.
type Bound[I constraints.Float, B any] interface {
	Union(B) B
	Surface() I
}

type Node[I constraints.Float, B Bound[I, B], V any] struct {
	Box      B
	Value    V
	parent   *Node[I, B, V]
	children [2]*Node[I, B, V]
	isLeaf   bool
}

func (n *Node[I, B, V]) sibling(of *Node[I, B, V]) *Node[I, B, V] {
	switch of {
	case n.children[0]:
		return n.children[1]
	case n.children[1]:
		return n.children[0]
	}
	panic("bvh: node is not a child of its parent")
}

func (n *Node[I, B, V]) childSlot(child *Node[I, B, V]) **Node[I, B, V] {
	switch child {
	case n.children[0]:
		return &n.children[0]
	case n.children[1]:
		return &n.children[1]
	}
	panic("bvh: node is not a child of its parent")
}

func (n *Node[I, B, V]) each(test func(bound B) bool, foreach func(n *Node[I, B, V]) bool) bool {
	if n == nil {
		return true
	}
	if !test(n.Box) {
		return true
	}
	if n.isLeaf {
		return foreach(n)
	}
	return n.children[0].each(test, foreach) && n.children[1].each(test, foreach)
}

// Tree is the zero-value-ready hierarchy. It is not safe for concurrent use.
type Tree[I constraints.Float, B Bound[I, B], V any] struct {
	root  *Node[I, B, V]
	count int
}

// Insert adds a leaf and returns its handle.
func (t *Tree[I, B, V]) Insert(box B, value V) *Node[I, B, V] {
	n := &Node[I, B, V]{Box: box, Value: value, isLeaf: true}
	t.count++
	if t.root == nil {
		t.root = n
		return n
	}

	// Branch and bound search for the cheapest sibling.
	sibling := t.root
	slot := &t.root
	bestCost := t.root.Box.Union(box).Surface()
	leafCost := box.Surface()

	queue := searchHeap[I, Node[I, B, V]]{{pointer: t.root, slot: &t.root}}
	for queue.Len() > 0 {
		p := heap.Pop(&queue).(searchItem[I, Node[I, B, V]])
		merged := p.pointer.Box.Union(box).Surface()
		if cost := p.inherited + merged; cost <= bestCost {
			bestCost, sibling, slot = cost, p.pointer, p.slot
		}
		inherited := p.inherited + merged - p.pointer.Box.Surface()
		if !p.pointer.isLeaf && inherited+leafCost < bestCost {
			for i := range p.pointer.children {
				heap.Push(&queue, searchItem[I, Node[I, B, V]]{
					pointer:   p.pointer.children[i],
					slot:      &p.pointer.children[i],
					inherited: inherited,
				})
			}
		}
	}

	parent := &Node[I, B, V]{
		Box:      sibling.Box.Union(box),
		parent:   sibling.parent,
		children: [2]*Node[I, B, V]{sibling, n},
	}
	*slot = parent
	n.parent, sibling.parent = parent, parent
	t.refit(parent)
	return n
}

// Delete removes a leaf previously returned by Insert and returns its value.
func (t *Tree[I, B, V]) Delete(n *Node[I, B, V]) V {
	t.count--
	if n.parent == nil {
		t.root = nil
		return n.Value
	}
	sibling := n.parent.sibling(n)
	grand := n.parent.parent
	if grand == nil {
		t.root = sibling
		sibling.parent = nil
		return n.Value
	}
	*grand.childSlot(n.parent) = sibling
	sibling.parent = grand
	t.refit(grand)
	n.parent = nil
	return n.Value
}

// Move changes the box of a leaf and returns its new handle. The old handle
// must not be used afterwards.
func (t *Tree[I, B, V]) Move(n *Node[I, B, V], box B) *Node[I, B, V] {
	return t.Insert(box, t.Delete(n))
}

// Len returns the number of leaves.
func (t *Tree[I, B, V]) Len() int { return t.count }

// Find calls foreach for every leaf whose box and ancestors pass test, until
// foreach returns false.
func (t *Tree[I, B, V]) Find(test func(bound B) bool, foreach func(n *Node[I, B, V]) bool) {
	t.root.each(test, foreach)
}

func (t *Tree[I, B, V]) refit(from *Node[I, B, V]) {
	for p := from; p != nil; p = p.parent {
		p.Box = p.children[0].Box.Union(p.children[1].Box)
		t.rotate(p)
	}
}

// rotate swaps one of n's children with n's sibling when that shrinks n.
func (t *Tree[I, B, V]) rotate(n *Node[I, B, V]) {
	if n.isLeaf || n.parent == nil {
		return
	}
	sibling := n.parent.sibling(n)
	current := n.Box.Surface()
	for i := range n.children {
		keep := n.children[1-i]
		if keep.Box.Union(sibling.Box).Surface() >= current {
			continue
		}
		moved := n.children[i]
		*n.parent.childSlot(sibling) = moved
		moved.parent = n.parent
		n.children[i] = sibling
		sibling.parent = n
		n.Box = n.children[0].Box.Union(n.children[1].Box)
		return
	}
}

func (t Tree[I, B, V]) String() string {
	return t.root.String()
}

func (n *Node[I, B, V]) String() string {
	switch {
	case n == nil:
		return "{}"
	case n.isLeaf:
		return fmt.Sprint(n.Value)
	default:
		return fmt.Sprintf("{%v, %v}", n.children[0], n.children[1])
	}
}

// TouchPoint matches boxes containing point.
func TouchPoint[Vec any, B interface{ WithIn(Vec) bool }](point Vec) func(bound B) bool {
	return func(bound B) bool { return bound.WithIn(point) }
}

// TouchBound matches boxes intersecting other.
func TouchBound[B interface{ Touch(B) bool }](other B) func(bound B) bool {
	return func(bound B) bool { return bound.Touch(other) }
}

type (
	searchHeap[I constraints.Float, V any] []searchItem[I, V]
	searchItem[I constraints.Float, V any] struct {
		pointer   *V
		slot      **V
		inherited I
	}
)

func (h searchHeap[I, V]) Len() int           { return len(h) }
func (h searchHeap[I, V]) Less(i, j int) bool { return h[i].inherited < h[j].inherited }
func (h searchHeap[I, V]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *searchHeap[I, V]) Push(x any)        { *h = append(*h, x.(searchItem[I, V])) }
func (h *searchHeap[I, V]) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
