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

// Package codec registers the four required compression back-ends
// (deflate, lzma, lz4, zstd) with the compress package's factory
// registry. Grounded on the teacher's scm/streams.go, which already
// wraps compress/gzip (the flate family) for its "gzip" builtin in the
// same init-time-registration style used here.
package codec

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/launix-de/bar/compress"
)

func init() {
	compress.Register(compress.Deflate, newDeflate)
}

type deflateCodec struct {
	level int
	w     *flate.Writer
	r     io.ReadCloser
	// compressBuf receives the writer's compressed output for the chunk
	// currently being moved into the output ring.
	compressBuf bytes.Buffer
	inputBuf    bytes.Buffer
}

func newDeflate(level int) (compress.Codec, error) {
	if level < 0 {
		level = flate.DefaultCompression
	}
	if level > 9 {
		level = 9
	}
	w, err := flate.NewWriter(&bytes.Buffer{}, level)
	if err != nil {
		return nil, err
	}
	return &deflateCodec{level: level, w: w}, nil
}

func (c *deflateCodec) CompressStep(in, out *compress.Ring, flush bool) (compress.StepResult, error) {
	chunk := make([]byte, 32*1024)
	n := in.Read(chunk)
	madeProgress := false
	if n > 0 {
		c.compressBuf.Reset()
		c.w.Reset(&c.compressBuf)
		if _, err := c.w.Write(chunk[:n]); err != nil {
			return compress.StepNeedsOutput, err
		}
		if err := c.w.Flush(); err != nil {
			return compress.StepNeedsOutput, err
		}
		written := out.Write(c.compressBuf.Bytes())
		if written < c.compressBuf.Len() {
			return compress.StepNeedsOutput, nil
		}
		madeProgress = true
	}
	if flush && in.Len() == 0 {
		c.compressBuf.Reset()
		c.w.Reset(&c.compressBuf)
		if err := c.w.Close(); err != nil {
			return compress.StepNeedsOutput, err
		}
		out.Write(c.compressBuf.Bytes())
		return compress.StepStreamEnd, nil
	}
	if madeProgress {
		return compress.StepMadeProgress, nil
	}
	return compress.StepNeedsInput, nil
}

func (c *deflateCodec) DecompressStep(in, out *compress.Ring) (compress.StepResult, error) {
	chunk := in.Peek(in.Len())
	if len(chunk) == 0 {
		return compress.StepNeedsInput, nil
	}
	c.inputBuf.Write(chunk)
	in.Discard(len(chunk))

	if c.r == nil {
		c.r = flate.NewReader(&c.inputBuf)
	}
	buf := make([]byte, 32*1024)
	n, err := c.r.Read(buf)
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

func (c *deflateCodec) Reset() error {
	c.compressBuf.Reset()
	c.inputBuf.Reset()
	c.r = nil
	c.w.Reset(&c.compressBuf)
	return nil
}

func (c *deflateCodec) Done() error {
	if c.r != nil {
		return c.r.Close()
	}
	return nil
}
