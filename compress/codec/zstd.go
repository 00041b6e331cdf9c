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
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/launix-de/bar/compress"
)

func init() {
	compress.Register(compress.Zstandard, newZstd)
}

// zstdCodec relies entirely on the library's own end-of-frame
// detection rather than any pre-declared decompressed length; see
// DESIGN.md for why the original's compressInfo->length field is not
// carried forward.
type zstdCodec struct {
	level zstd.EncoderLevel

	enc  *zstd.Encoder
	wBuf bytes.Buffer

	dec  *zstd.Decoder
	rBuf bytes.Buffer
}

func newZstd(level int) (compress.Codec, error) {
	// map the spec's 0-19 level range onto the library's four-speed
	// preset tiers
	var lvl zstd.EncoderLevel
	switch {
	case level <= 1:
		lvl = zstd.SpeedFastest
	case level <= 6:
		lvl = zstd.SpeedDefault
	case level <= 12:
		lvl = zstd.SpeedBetterCompression
	default:
		lvl = zstd.SpeedBestCompression
	}
	return &zstdCodec{level: lvl}, nil
}

func (c *zstdCodec) ensureEncoder() error {
	if c.enc != nil {
		return nil
	}
	enc, err := zstd.NewWriter(&c.wBuf, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return err
	}
	c.enc = enc
	return nil
}

func (c *zstdCodec) CompressStep(in, out *compress.Ring, flush bool) (compress.StepResult, error) {
	if err := c.ensureEncoder(); err != nil {
		return compress.StepNeedsOutput, err
	}
	chunk := make([]byte, 32*1024)
	n := in.Read(chunk)
	madeProgress := false
	if n > 0 {
		if _, err := c.enc.Write(chunk[:n]); err != nil {
			return compress.StepNeedsOutput, err
		}
		madeProgress = true
	}
	if flush && in.Len() == 0 {
		if err := c.enc.Close(); err != nil {
			return compress.StepNeedsOutput, err
		}
		out.Write(c.wBuf.Bytes())
		c.wBuf.Reset()
		return compress.StepStreamEnd, nil
	}
	written := out.Write(c.wBuf.Bytes())
	c.wBuf.Next(written)
	if madeProgress || written > 0 {
		return compress.StepMadeProgress, nil
	}
	return compress.StepNeedsInput, nil
}

func (c *zstdCodec) DecompressStep(in, out *compress.Ring) (compress.StepResult, error) {
	chunk := in.Peek(in.Len())
	if len(chunk) > 0 {
		c.rBuf.Write(chunk)
		in.Discard(len(chunk))
	}
	if c.dec == nil {
		if c.rBuf.Len() == 0 {
			return compress.StepNeedsInput, nil
		}
		dec, err := zstd.NewReader(&c.rBuf)
		if err != nil {
			return compress.StepNeedsInput, err
		}
		c.dec = dec
	}
	buf := make([]byte, 32*1024)
	n, err := c.dec.Read(buf)
	if n > 0 {
		out.Write(buf[:n])
	}
	if err == io.EOF {
		return compress.StepStreamEnd, nil
	}
	if err != nil {
		return compress.StepNeedsInput, err
	}
	return compress.StepMadeProgress, nil
}

func (c *zstdCodec) Reset() error {
	if c.enc != nil {
		c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
	c.wBuf.Reset()
	c.rBuf.Reset()
	return nil
}

func (c *zstdCodec) Done() error {
	return c.Reset()
}
