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
	"encoding/binary"

	"github.com/launix-de/bar/compress"
	"github.com/pierrec/lz4/v4"
)

func init() {
	compress.Register(compress.LZ4, newLZ4)
}

// LZ4 chunk header bits, bit-exact per original_source/bar/compress_lz4.c.
const (
	lz4EndOfDataFlag  uint32 = 0x80000000
	lz4CompressedFlag uint32 = 0x40000000
	lz4StreamFlag     uint32 = 0x20000000
	lz4LengthMask     uint32 = 0x00FFFFFF
	lz4MaxChunk              = 64 * 1024
)

type lz4Codec struct {
	level       int
	compressBuf []byte
}

func newLZ4(level int) (compress.Codec, error) {
	if level < 0 {
		level = 0
	}
	if level > 16 {
		level = 16
	}
	return &lz4Codec{level: level, compressBuf: make([]byte, lz4MaxChunk)}, nil
}

func (c *lz4Codec) CompressStep(in, out *compress.Ring, flush bool) (compress.StepResult, error) {
	chunkSize := lz4MaxChunk
	if in.Len() < chunkSize && !flush {
		return compress.StepNeedsInput, nil
	}
	if in.Len() == 0 {
		if !flush {
			return compress.StepNeedsInput, nil
		}
		// empty final chunk terminates a stream whose last real chunk
		// exactly filled 64 KiB
		return c.writeChunk(out, nil, false, true)
	}
	if chunkSize > in.Len() {
		chunkSize = in.Len()
	}
	raw := make([]byte, chunkSize)
	n := in.Read(raw)
	raw = raw[:n]

	compressed, err := lz4.CompressBlock(raw, c.compressBuf, nil)
	if err != nil {
		return compress.StepNeedsOutput, err
	}
	isLast := flush && in.Len() == 0
	if compressed > 0 && compressed < len(raw) {
		return c.writeChunk(out, c.compressBuf[:compressed], true, isLast)
	}
	return c.writeChunk(out, raw, false, isLast)
}

func (c *lz4Codec) writeChunk(out *compress.Ring, payload []byte, compressed, last bool) (compress.StepResult, error) {
	header := uint32(len(payload)) & lz4LengthMask
	header |= lz4StreamFlag
	if compressed {
		header |= lz4CompressedFlag
	}
	if last {
		header |= lz4EndOfDataFlag
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], header)
	if out.Free() < 4+len(payload) {
		return compress.StepNeedsOutput, nil
	}
	out.Write(hdr[:])
	out.Write(payload)
	if last {
		return compress.StepStreamEnd, nil
	}
	return compress.StepMadeProgress, nil
}

func (c *lz4Codec) DecompressStep(in, out *compress.Ring) (compress.StepResult, error) {
	if in.Len() < 4 {
		return compress.StepNeedsInput, nil
	}
	hdrBytes := in.Peek(4)
	header := binary.LittleEndian.Uint32(hdrBytes)
	length := int(header & lz4LengthMask)
	isCompressed := header&lz4CompressedFlag != 0
	isLast := header&lz4EndOfDataFlag != 0

	if in.Len() < 4+length {
		return compress.StepNeedsInput, nil
	}
	in.Discard(4)
	payload := make([]byte, length)
	in.Read(payload)

	if length == 0 && isLast {
		return compress.StepStreamEnd, nil
	}

	var decoded []byte
	if isCompressed {
		decoded = make([]byte, lz4MaxChunk)
		n, err := lz4.UncompressBlock(payload, decoded)
		if err != nil {
			return compress.StepNeedsInput, err
		}
		decoded = decoded[:n]
	} else {
		decoded = payload
	}

	if out.Free() < len(decoded) {
		return compress.StepNeedsOutput, nil
	}
	out.Write(decoded)

	if isLast {
		return compress.StepStreamEnd, nil
	}
	return compress.StepMadeProgress, nil
}

func (c *lz4Codec) Reset() error { return nil }

func (c *lz4Codec) Done() error { return nil }
