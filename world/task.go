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

	"go.uber.org/zap"
)

var (
	ErrQueueFull  = errors.New("task queue is full")
	ErrPoolClosed = errors.New("task pool is closed")
)

// TaskPool runs closures on a fixed number of worker goroutines. Spawn never
// blocks, so it is safe to call from the tick loop.
type TaskPool[R any] struct {
	log  *zap.Logger
	name string

	jobs chan func()
	wg   sync.WaitGroup

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Task is the handle of one spawned closure.
type Task[R any] struct {
	done   chan struct{}
	result R
	err    error
	spent  bool // only touched by the polling goroutine
}

func NewTaskPool[R any](log *zap.Logger, name string, workers, queueSize int) *TaskPool[R] {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	p := &TaskPool[R]{
		log:  log.Named(name + "-pool"),
		name: name,
		jobs: make(chan func(), queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Spawn queues fn. It returns ErrQueueFull instead of waiting for room.
func (p *TaskPool[R]) Spawn(fn func() R) (*Task[R], error) {
	t := &Task[R]{done: make(chan struct{})}
	job := func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("%s task: %v", p.name, r)
				p.log.Error("Task panicked", zap.Any("panic", r))
				poolCompleted.WithLabelValues(p.name, "panic").Inc()
			}
		}()
		t.result = fn()
		poolCompleted.WithLabelValues(p.name, "ok").Inc()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		poolQueued.WithLabelValues(p.name).Inc()
		return t, nil
	default:
		return nil, ErrQueueFull
	}
}

// Queued returns the number of tasks waiting for a worker.
func (p *TaskPool[R]) Queued() int { return len(p.jobs) }

// Close stops accepting tasks, lets queued ones run and waits for the workers.
func (p *TaskPool[R]) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *TaskPool[R]) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		poolQueued.WithLabelValues(p.name).Dec()
		job()
	}
}

// Poll returns the result once the task has finished. The first successful
// poll consumes the result; later polls report false.
func (t *Task[R]) Poll() (r R, ok bool, err error) {
	if t.spent {
		return r, false, nil
	}
	select {
	case <-t.done:
		t.spent = true
		return t.result, true, t.err
	default:
		return r, false, nil
	}
}

// Done is closed when the task has finished.
func (t *Task[R]) Done() <-chan struct{} { return t.done }
