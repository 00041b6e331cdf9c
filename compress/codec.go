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

// StepResult describes what a single codec step accomplished.
type StepResult int

const (
	StepMadeProgress StepResult = iota
	StepNeedsInput
	StepNeedsOutput
	StepStreamEnd
)

// Algorithm names the four required codec back-ends.
type Algorithm int

const (
	Deflate Algorithm = iota
	LZMA
	LZ4
	Zstandard
)

func (a Algorithm) String() string {
	switch a {
	case Deflate:
		return "deflate"
	case LZMA:
		return "lzma"
	case LZ4:
		return "lz4"
	case Zstandard:
		return "zstd"
	default:
		return "unknown"
	}
}

// Codec is the uniform back-end contract every algorithm implements:
// drive bytes from an input ring to an output ring, either compressing
// or decompressing depending on how the codec was constructed.
type Codec interface {
	// CompressStep moves as many bytes as possible from in to out,
	// compressing. flush indicates no further input will arrive.
	CompressStep(in, out *Ring, flush bool) (StepResult, error)
	// DecompressStep moves as many bytes as possible from in to out,
	// decompressing.
	DecompressStep(in, out *Ring) (StepResult, error)
	// Reset restores the codec to its freshly initialized state.
	Reset() error
	// Done releases any codec-held resources.
	Done() error
}

// CodecFactory constructs a Codec for the given algorithm and level.
// level's valid range is algorithm-specific (spec §4.6): Deflate 0-9,
// LZMA 1-9, LZ4 0-16, Zstandard 0-19.
type CodecFactory func(level int) (Codec, error)

var factories = map[Algorithm]CodecFactory{}

// Register associates a CodecFactory with an Algorithm. Codec back-ends
// in the codec subpackage call this from an init function.
func Register(a Algorithm, f CodecFactory) {
	factories[a] = f
}

func newCodec(a Algorithm, level int) (Codec, error) {
	f, ok := factories[a]
	if !ok {
		return nil, barerr.New(barerr.KindArgument, "compress.newCodec", a.String(), "no codec registered for algorithm")
	}
	return f(level)
}
