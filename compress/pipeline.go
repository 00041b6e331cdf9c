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

package compress

import "github.com/launix-de/bar/barerr"

// Mode selects which direction a Pipeline drives its codec.
type Mode int

const (
	ModeDeflate Mode = iota // compress: data -> compress
	ModeInflate              // decompress: compress -> data
)

// Pipeline is the uniform streaming wrapper described in spec §3/§4.6:
// two fixed-capacity rings, a codec, and flush/end-of-data tracking.
// It is not internally synchronized; the caller (typically a single
// archiver worker goroutine) owns serialized access, matching
// RingBuffer's own external-synchronization contract.
type Pipeline struct {
	mode  Mode
	algo  Algorithm
	codec Codec

	data     *Ring // producer-facing on deflate, consumer-facing on inflate
	compress *Ring // codec output on deflate, codec input on inflate

	flushFlag     bool
	endOfDataFlag bool
	totalIn       int64
	totalOut      int64
}

// NewPipeline constructs a pipeline for algorithm/level in the given
// mode, with ring capacities for the data and compress sides.
func NewPipeline(mode Mode, algo Algorithm, level, dataCap, compressCap int) (*Pipeline, error) {
	codec, err := newCodec(algo, level)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		mode:     mode,
		algo:     algo,
		codec:    codec,
		data:     NewRing(dataCap),
		compress: NewRing(compressCap),
	}, nil
}

// Write appends to the producer-facing ring (data on deflate, compress
// on inflate). It returns the number of bytes actually accepted;
// fewer than len(p) signals backpressure.
func (p *Pipeline) Write(b []byte) int {
	if p.mode == ModeDeflate {
		return p.data.Write(b)
	}
	return p.compress.Write(b)
}

// Read drains from the consumer-facing ring (compress on deflate, data
// on inflate).
func (p *Pipeline) Read(b []byte) int {
	if p.mode == ModeDeflate {
		return p.compress.Read(b)
	}
	return p.data.Read(b)
}

// Flush sets flushFlag: no further input will be written. Subsequent
// Step calls drain internal codec state and set endOfDataFlag once the
// output is complete.
func (p *Pipeline) Flush() {
	p.flushFlag = true
}

// EndOfData reports whether the codec has emitted its final output
// byte.
func (p *Pipeline) EndOfData() bool { return p.endOfDataFlag }

// GetInputLength and GetOutputLength report cumulative bytes observed.
func (p *Pipeline) GetInputLength() int64  { return p.totalIn }
func (p *Pipeline) GetOutputLength() int64 { return p.totalOut }

// Step drives the codec once, moving bytes between the two rings. It
// returns the codec's StepResult.
func (p *Pipeline) Step() (StepResult, error) {
	if p.endOfDataFlag {
		return StepStreamEnd, nil
	}

	var in, out *Ring
	if p.mode == ModeDeflate {
		in, out = p.data, p.compress
	} else {
		in, out = p.compress, p.data
	}

	inBefore, outBefore := in.Len(), out.Len()

	var result StepResult
	var err error
	if p.mode == ModeDeflate {
		result, err = p.codec.CompressStep(in, out, p.flushFlag)
	} else {
		result, err = p.codec.DecompressStep(in, out)
	}
	if err != nil {
		return result, barerr.Wrap(barerr.KindIO, "compress.step", p.algo.String(), err)
	}

	p.totalIn += int64(inBefore - in.Len())
	p.totalOut += int64(out.Len() - outBefore)

	if result == StepStreamEnd {
		p.endOfDataFlag = true
	}
	return result, nil
}

// Reset restores the codec and empties both rings.
func (p *Pipeline) Reset() error {
	p.data.Reset()
	p.compress.Reset()
	p.flushFlag = false
	p.endOfDataFlag = false
	p.totalIn, p.totalOut = 0, 0
	return p.codec.Reset()
}

// Close releases the codec's resources.
func (p *Pipeline) Close() error {
	return p.codec.Done()
}
