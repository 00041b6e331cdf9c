/*
Copyright (C) 2025  Carl-Philip Hänsch

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
package storage

import (
	"runtime"
	"time"
)

// global semaphore to limit concurrent disk-backed load operations
var loadSemaphore chan struct{}

func init() {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	loadSemaphore = make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		loadSemaphore <- struct{}{}
	}
}

// acquireLoadSlot blocks until a load slot is available and returns a release func.
func acquireLoadSlot() func() {
	<-loadSemaphore
	return func() { loadSemaphore <- struct{}{} }
}

// BandwidthLimiter throttles write() calls to a configured byte rate,
// per spec §4.7: after each completed write it computes
// duration = endWall - startWall and bytes = endAcct - startAcct, and
// sleeps until bytes/duration <= limit. A limit of 0 disables
// throttling.
type BandwidthLimiter struct {
	bytesPerSecond int64
	windowStart    time.Time
	windowBytes    int64
}

// NewBandwidthLimiter creates a limiter capped at bytesPerSecond. Zero
// means unlimited.
func NewBandwidthLimiter(bytesPerSecond int64) *BandwidthLimiter {
	return &BandwidthLimiter{bytesPerSecond: bytesPerSecond, windowStart: time.Now()}
}

// AccountWrite records n newly written bytes and, if a limit is
// configured, sleeps long enough to keep the observed rate at or below
// it. Non-monotonic wall-clock moves backward are tolerated by
// resetting the accounting window rather than computing a negative
// duration.
func (b *BandwidthLimiter) AccountWrite(n int64) {
	if b.bytesPerSecond <= 0 {
		return
	}
	now := time.Now()
	duration := now.Sub(b.windowStart)
	if duration < 0 {
		b.windowStart = now
		b.windowBytes = 0
		return
	}
	b.windowBytes += n

	if duration <= 0 {
		return
	}
	observedRate := float64(b.windowBytes) / duration.Seconds()
	if observedRate > float64(b.bytesPerSecond) {
		targetDuration := time.Duration(float64(b.windowBytes) / float64(b.bytesPerSecond) * float64(time.Second))
		if sleep := targetDuration - duration; sleep > 0 {
			time.Sleep(sleep)
		}
	}

	// reset the window periodically so long-running transfers don't
	// accumulate unbounded history
	if duration > time.Minute {
		b.windowStart = time.Now()
		b.windowBytes = 0
	}
}
