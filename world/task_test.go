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
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func waitTask[R any](t *testing.T, task *Task[R]) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestTaskPool_PollOnce(t *testing.T) {
	p := NewTaskPool[int](zaptest.NewLogger(t), "test", 2, 4)
	defer p.Close()

	task, err := p.Spawn(func() int { return 5 })
	if err != nil {
		t.Fatal(err)
	}
	waitTask(t, task)

	v, ok, err := task.Poll()
	if !ok || err != nil || v != 5 {
		t.Fatalf("Poll = %d %v %v", v, ok, err)
	}
	if _, ok, _ := task.Poll(); ok {
		t.Fatal("second Poll returned the result again")
	}
}

func TestTaskPool_PollBeforeDone(t *testing.T) {
	p := NewTaskPool[int](zaptest.NewLogger(t), "test", 1, 1)
	defer p.Close()

	release := make(chan struct{})
	task, err := p.Spawn(func() int { <-release; return 1 })
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := task.Poll(); ok {
		t.Fatal("unfinished task polled as done")
	}
	close(release)
	waitTask(t, task)
	if _, ok, _ := task.Poll(); !ok {
		t.Fatal("finished task not reported")
	}
}

func TestTaskPool_QueueFull(t *testing.T) {
	p := NewTaskPool[int](zaptest.NewLogger(t), "test", 1, 1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	if _, err := p.Spawn(func() int { close(started); <-release; return 0 }); err != nil {
		t.Fatal(err)
	}
	<-started
	if _, err := p.Spawn(func() int { return 0 }); err != nil {
		t.Fatalf("queue slot: %v", err)
	}
	if _, err := p.Spawn(func() int { return 0 }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	close(release)
}

func TestTaskPool_Closed(t *testing.T) {
	p := NewTaskPool[int](zaptest.NewLogger(t), "test", 1, 4)
	ran := make(chan struct{}, 1)
	if _, err := p.Spawn(func() int { ran <- struct{}{}; return 0 }); err != nil {
		t.Fatal(err)
	}
	p.Close()
	select {
	case <-ran:
	default:
		t.Fatal("queued task dropped by Close")
	}
	if _, err := p.Spawn(func() int { return 0 }); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
	p.Close()
}

func TestTaskPool_Panic(t *testing.T) {
	p := NewTaskPool[string](zaptest.NewLogger(t), "test", 1, 1)
	defer p.Close()

	task, err := p.Spawn(func() string { panic("broken") })
	if err != nil {
		t.Fatal(err)
	}
	waitTask(t, task)
	if _, ok, err := task.Poll(); !ok || err == nil {
		t.Fatalf("Poll = %v %v, want a panic error", ok, err)
	}

	// The worker survives.
	task, err = p.Spawn(func() string { return "ok" })
	if err != nil {
		t.Fatal(err)
	}
	waitTask(t, task)
	if v, _, err := task.Poll(); v != "ok" || err != nil {
		t.Fatalf("Poll = %q %v", v, err)
	}
}
