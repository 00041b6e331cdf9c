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

package semaphore

import (
	"testing"
	"time"
)

func TestReadWriteMutualExclusion(t *testing.T) {
	s := New("test")
	if !s.Acquire(Read, WaitForever) {
		t.Fatal("read acquire failed")
	}
	done := make(chan bool, 1)
	go func() {
		done <- s.Acquire(ReadWrite, 100*time.Millisecond)
	}()
	if ok := <-done; ok {
		t.Fatal("writer acquired while a reader still holds the lock")
	}
	s.Release()
}

func TestWriterBlocksThenSucceedsAfterRelease(t *testing.T) {
	s := New("test2")
	if !s.Acquire(Read, WaitForever) {
		t.Fatal("read acquire failed")
	}
	resultCh := make(chan bool, 1)
	go func() {
		ok := s.Acquire(ReadWrite, WaitForever)
		if ok {
			s.Release() // only the owning goroutine may release
		}
		resultCh <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	s.Release() // drop the read lock
	select {
	case ok := <-resultCh:
		if !ok {
			t.Fatal("writer failed to acquire after reader released")
		}
	case <-time.After(time.Second):
		t.Fatal("writer never acquired")
	}
}

func TestReentrantWriter(t *testing.T) {
	s := New("test3")
	if !s.Acquire(ReadWrite, WaitForever) {
		t.Fatal("first write acquire failed")
	}
	if !s.Acquire(ReadWrite, WaitForever) {
		t.Fatal("recursive write acquire failed")
	}
	if s.readWriteLock != 2 {
		t.Fatalf("expected depth 2, got %d", s.readWriteLock)
	}
	s.Release()
	if !s.IsOwned() {
		t.Fatal("should still be owned after releasing one level")
	}
	s.Release()
	if s.IsOwned() {
		t.Fatal("should not be owned after releasing both levels")
	}
}

func TestReleaseUnownedPanics(t *testing.T) {
	s := New("test4")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic releasing an unowned semaphore")
		}
	}()
	s.Release()
}

func TestSetEndWakesWaiters(t *testing.T) {
	s := New("test5")
	acquiredCh := make(chan bool, 1)
	doneCh := make(chan bool, 1)
	go func() {
		// WaitModified is called by the goroutine that holds the lock
		if !s.Acquire(ReadWrite, WaitForever) {
			acquiredCh <- false
			return
		}
		acquiredCh <- true
		ok := s.WaitModified(WaitForever)
		s.Release()
		doneCh <- ok
	}()
	if !<-acquiredCh {
		t.Fatal("acquire failed")
	}
	time.Sleep(20 * time.Millisecond)
	s.SetEnd()
	select {
	case ok := <-doneCh:
		if !ok {
			t.Fatal("waitModified should return true once end is set")
		}
	case <-time.After(time.Second):
		t.Fatal("setEnd did not wake the waiter in time")
	}
}

func TestReaderBlocksThenSucceedsAfterWriterRelease(t *testing.T) {
	s := New("test2b")
	if !s.Acquire(ReadWrite, WaitForever) {
		t.Fatal("write acquire failed")
	}
	resultCh := make(chan bool, 1)
	go func() {
		ok := s.Acquire(Read, WaitForever)
		if ok {
			s.Release() // only the owning goroutine may release
		}
		resultCh <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	s.Release() // drop the write lock
	select {
	case ok := <-resultCh:
		if !ok {
			t.Fatal("reader failed to acquire after writer released")
		}
	case <-time.After(time.Second):
		t.Fatal("reader never acquired; writer release did not wake it")
	}
}

func TestReaderPromotionPanics(t *testing.T) {
	s := New("test7")
	if !s.Acquire(Read, WaitForever) {
		t.Fatal("read acquire failed")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic promoting a reader to writer")
		}
	}()
	s.Acquire(ReadWrite, 50*time.Millisecond)
}

func TestWaitModifiedRestoresReadDepth(t *testing.T) {
	s := New("test8")
	s.Acquire(Read, WaitForever)
	s.Acquire(Read, WaitForever) // depth 2, same goroutine

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Acquire(ReadWrite, WaitForever)
		s.Release()
	}()

	if !s.WaitModified(time.Second) {
		t.Fatal("waitModified timed out")
	}
	if s.readLock != 2 {
		t.Fatalf("expected restored read depth 2, got %d", s.readLock)
	}
	s.Release()
	s.Release()
}

func TestWaitModifiedRestoresDepth(t *testing.T) {
	s := New("test6")
	s.Acquire(ReadWrite, WaitForever)
	s.Acquire(ReadWrite, WaitForever) // depth 2

	go func() {
		time.Sleep(10 * time.Millisecond)
		// another writer signals modified while waiting for the lock itself
		s.Acquire(ReadWrite, WaitForever)
		s.SignalModified(SignalOne)
		s.Release()
	}()

	if !s.WaitModified(time.Second) {
		t.Fatal("waitModified timed out")
	}
	if s.readWriteLock != 2 {
		t.Fatalf("expected restored depth 2, got %d", s.readWriteLock)
	}
	s.Release()
	s.Release()
}
