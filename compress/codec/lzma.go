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

	"github.com/launix-de/bar/compress"
	"github.com/ulikunitz/xz/lzma"
)

func init() {
	compress.Register(compress.LZMA, newLZMA)
}

// lzmaCodec streams through lzma.Writer2/Reader2, each backed by an
// in-memory bytes.Buffer that stages data between the codec and the
// rings.
type lzmaCodec struct {
	preset int

	w       *lzma.Writer2
	wBuf    bytes.Buffer
	r       *lzma.Reader2
	rBuf    bytes.Buffer
	started bool
}

func newLZMA(level int) (compress.Codec, error) {
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}
	return &lzmaCodec{preset: level}, nil
}

func (c *lzmaCodec) ensureWriter() error {
	if c.w != nil {
		return nil
	}
	cfg := lzma.Writer2Config{}
	w, err := cfg.NewWriter2(&c.wBuf)
	if err != nil {
		return err
	}
	c.w = w
	return nil
}

func (c *lzmaCodec) CompressStep(in, out *compress.Ring, flush bool) (compress.StepResult, error) {
	if err := c.ensureWriter(); err != nil {
		return compress.StepNeedsOutput, err
	}
	chunk := make([]byte, 32*1024)
	n := in.Read(chunk)
	madeProgress := false
	if n > 0 {
		if _, err := c.w.Write(chunk[:n]); err != nil {
			return compress.StepNeedsOutput, err
		}
		madeProgress = true
	}
	if flush && in.Len() == 0 {
		if err := c.w.Close(); err != nil {
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

func (c *lzmaCodec) DecompressStep(in, out *compress.Ring) (compress.StepResult, error) {
	chunk := in.Peek(in.Len())
	if len(chunk) > 0 {
		c.rBuf.Write(chunk)
		in.Discard(len(chunk))
	}
	if c.r == nil {
		if c.rBuf.Len() == 0 {
			return compress.StepNeedsInput, nil
		}
		r, err := lzma.NewReader2(&c.rBuf)
		if err != nil {
			return compress.StepNeedsInput, err
		}
		c.r = r
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

func (c *lzmaCodec) Reset() error {
	c.w = nil
	c.wBuf.Reset()
	c.r = nil
	c.rBuf.Reset()
	c.started = false
	return nil
}

func (c *lzmaCodec) Done() error {
	return nil
}
