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

package codec

import (
	"bytes"
	"testing"

	"github.com/launix-de/bar/compress"
)

func compressAll(t *testing.T, c compress.Codec, data []byte) []byte {
	t.Helper()
	in := compress.NewRing(len(data) + 64*1024)
	out := compress.NewRing(4 * 64 * 1024)
	in.Write(data)

	var result bytes.Buffer
	for {
		res, err := c.CompressStep(in, out, true)
		if err != nil {
			t.Fatal(err)
		}
		buf := make([]byte, out.Len())
		out.Read(buf)
		result.Write(buf)
		if res == compress.StepStreamEnd {
			break
		}
	}
	return result.Bytes()
}

func decompressAll(t *testing.T, c compress.Codec, data []byte) []byte {
	t.Helper()
	in := compress.NewRing(len(data) + 64*1024)
	out := compress.NewRing(4 * 64 * 1024)
	in.Write(data)

	var result bytes.Buffer
	for {
		res, err := c.DecompressStep(in, out)
		if err != nil {
			t.Fatal(err)
		}
		buf := make([]byte, out.Len())
		out.Read(buf)
		result.Write(buf)
		if res == compress.StepStreamEnd {
			break
		}
	}
	return result.Bytes()
}

func TestLZ4RoundTripSmallPayload(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeatedly, repeatedly, repeatedly")
	c, err := newLZ4(4)
	if err != nil {
		t.Fatal(err)
	}
	compressed := compressAll(t, c, data)

	d, err := newLZ4(4)
	if err != nil {
		t.Fatal(err)
	}
	out := decompressAll(t, d, compressed)
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch: got %q want %q", out, data)
	}
}

func TestLZ4EmptyInputFlushProducesStreamEnd(t *testing.T) {
	c, err := newLZ4(0)
	if err != nil {
		t.Fatal(err)
	}
	in := compress.NewRing(16)
	out := compress.NewRing(16)
	res, err := c.CompressStep(in, out, true)
	if err != nil {
		t.Fatal(err)
	}
	if res != compress.StepStreamEnd {
		t.Fatalf("expected immediate stream end on empty flush, got %v", res)
	}
}
