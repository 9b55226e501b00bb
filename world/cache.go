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
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrGenerationPanic wraps a panic raised by a cache generator.
var ErrGenerationPanic = errors.New("generator panicked")

// GenerationCache memoizes derived world data per key. A value is computed at
// most once; every later or concurrent caller receives the same pointer.
//
// The outer lock guards only the key set. Each key has its own lock, so a slow
// generation blocks callers of that key and nobody else.
type GenerationCache[K comparable, T any] struct {
	name    string
	lock    sync.RWMutex
	entries map[K]*cacheEntry[T]
}

type cacheEntry[T any] struct {
	sync.RWMutex
	value   *T
	attempt atomic.Uint64 // finished generation attempts
	err     error         // error of the last attempt, cleared on success
}

func NewGenerationCache[K comparable, T any](name string) *GenerationCache[K, T] {
	return &GenerationCache[K, T]{
		name:    name,
		entries: make(map[K]*cacheEntry[T]),
	}
}

// GetOrGenerate returns the value for key, running generate if nobody has
// produced it yet. If generate fails, the error goes to this caller and to
// every caller that was waiting on the same attempt. Nothing is stored, so the
// next caller tries again.
func (c *GenerationCache[K, T]) GetOrGenerate(key K, generate func(K) (*T, error)) (*T, error) {
	e := c.entry(key)

	// Read before blocking: a caller that queues behind a failing attempt
	// must see that attempt's error instead of starting a new one.
	seen := e.attempt.Load()
	e.RLock()
	v := e.value
	e.RUnlock()
	if v != nil {
		cacheLookups.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}

	e.Lock()
	defer e.Unlock()
	// Someone else may have finished while we waited for the write lock.
	if e.value != nil {
		cacheLookups.WithLabelValues(c.name, "waited").Inc()
		return e.value, nil
	}
	if e.attempt.Load() != seen && e.err != nil {
		cacheLookups.WithLabelValues(c.name, "failed").Inc()
		return nil, e.err
	}

	start := time.Now()
	v, err := c.run(key, generate)
	cacheGenerationDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	e.attempt.Add(1)
	if err == nil && v == nil {
		err = fmt.Errorf("%s cache: generator returned nil for %v", c.name, key)
	}
	if err != nil {
		e.err = err
		cacheLookups.WithLabelValues(c.name, "failed").Inc()
		return nil, err
	}
	e.value, e.err = v, nil
	cacheLookups.WithLabelValues(c.name, "generated").Inc()
	return v, nil
}

// TryGet returns the value without blocking. It reports false when the key is
// absent, still generating, or either lock is currently held by a writer.
func (c *GenerationCache[K, T]) TryGet(key K) (*T, bool) {
	if !c.lock.TryRLock() {
		return nil, false
	}
	e, ok := c.entries[key]
	c.lock.RUnlock()
	if !ok || !e.TryRLock() {
		return nil, false
	}
	defer e.RUnlock()
	return e.value, e.value != nil
}

// Len returns the number of keys that have an entry, ready or not.
func (c *GenerationCache[K, T]) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.entries)
}

func (c *GenerationCache[K, T]) entry(key K) *cacheEntry[T] {
	c.lock.RLock()
	e, ok := c.entries[key]
	c.lock.RUnlock()
	if ok {
		return e
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok = c.entries[key]; !ok {
		e = new(cacheEntry[T])
		c.entries[key] = e
	}
	return e
}

func (c *GenerationCache[K, T]) run(key K, generate func(K) (*T, error)) (v *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%s cache key %v: %w: %v", c.name, key, ErrGenerationPanic, r)
		}
	}()
	return generate(key)
}
