/*
Copyright (C) 2026  BAR Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package msgqueue

import (
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := New(0, nil)
	for i := 0; i < 5; i++ {
		if !q.Put(i) {
			t.Fatal("put failed")
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Get(0)
		if !ok || v.(int) != i {
			t.Fatalf("expected %d, got %v ok=%v", i, v, ok)
		}
	}
}

func TestBoundedPutBlocksUntilGet(t *testing.T) {
	q := New(1, nil)
	if !q.Put(1) {
		t.Fatal("first put should succeed")
	}
	doneCh := make(chan bool, 1)
	go func() {
		doneCh <- q.Put(2)
	}()
	select {
	case <-doneCh:
		t.Fatal("second put should have blocked on a full bounded queue")
	case <-time.After(50 * time.Millisecond):
	}
	v, ok := q.Get(0)
	if !ok || v.(int) != 1 {
		t.Fatalf("unexpected get result %v %v", v, ok)
	}
	select {
	case ok := <-doneCh:
		if !ok {
			t.Fatal("put should have succeeded once room was made")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked put never completed")
	}
}

func TestSetEndOfMessageUnblocksPutAndGet(t *testing.T) {
	q := New(1, nil)
	q.Put(1) // fill capacity

	putDone := make(chan bool, 1)
	go func() { putDone <- q.Put(2) }()

	time.Sleep(20 * time.Millisecond)
	q.SetEndOfMessage()

	if ok := <-putDone; ok {
		t.Fatal("put after end should return false without enqueuing")
	}

	// queue still has the one message enqueued before end
	v, ok := q.Get(0)
	if !ok || v.(int) != 1 {
		t.Fatalf("expected to drain remaining message, got %v %v", v, ok)
	}
	_, ok = q.Get(0)
	if ok {
		t.Fatal("get on an empty ended queue must return false")
	}
}

func TestClearRunsFreeFunction(t *testing.T) {
	var freed []int
	q := New(0, func(m interface{}) { freed = append(freed, m.(int)) })
	q.Put(1)
	q.Put(2)
	q.Clear()
	if len(freed) != 2 {
		t.Fatalf("expected 2 freed messages, got %d", len(freed))
	}
	if q.Len() != 0 {
		t.Fatal("queue should be empty after clear")
	}
}

func TestResetRearms(t *testing.T) {
	q := New(0, nil)
	q.SetEndOfMessage()
	if q.Put(1) {
		t.Fatal("put should fail while ended")
	}
	q.Reset()
	if !q.Put(1) {
		t.Fatal("put should succeed after reset")
	}
}
