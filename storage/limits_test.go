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
package storage

import "testing"

func TestBandwidthLimiterUnlimitedDoesNotBlock(t *testing.T) {
	l := NewBandwidthLimiter(0)
	for i := 0; i < 1000; i++ {
		l.AccountWrite(1 << 20)
	}
}

func TestBandwidthLimiterAccumulatesWindow(t *testing.T) {
	l := NewBandwidthLimiter(1 << 30) // 1 GiB/s, high enough not to sleep in a unit test
	l.AccountWrite(1024)
	if l.windowBytes != 1024 {
		t.Fatalf("expected windowBytes 1024, got %d", l.windowBytes)
	}
	l.AccountWrite(2048)
	if l.windowBytes != 3072 {
		t.Fatalf("expected windowBytes 3072, got %d", l.windowBytes)
	}
}

func TestAcquireLoadSlotReleases(t *testing.T) {
	release := acquireLoadSlot()
	release()
}
