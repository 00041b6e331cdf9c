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

// Command bar is the systems-core CLI entry point: it declares the
// option schema (C6), resolves the destination storage back-end (C8),
// matches source paths against an include list (C10), and streams
// their bytes through the compression pipeline (C1+C7) into storage.
// If requested it also feeds the continuous-change watcher (C9).
//
// The archive container format itself is out of scope (spec.md §1
// Non-goals); this writes one compressed blob per matched source file,
// back to back, rather than inventing a multi-entry archive layout.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/launix-de/bar/barerr"
	"github.com/launix-de/bar/barlog"
	"github.com/launix-de/bar/compress"
	_ "github.com/launix-de/bar/compress/codec"
	"github.com/launix-de/bar/continuous"
	"github.com/launix-de/bar/entrylist"
	"github.com/launix-de/bar/options"
	"github.com/launix-de/bar/storage"
)

const (
	ringDataCapacity     = 64 * 1024
	ringCompressCapacity = 64 * 1024
)

func buildSchema() *options.Schema {
	s := options.NewSchema()

	algoValues := map[string]int64{}
	for lvl := 0; lvl <= 9; lvl++ {
		algoValues[fmt.Sprintf("zip%d", lvl)] = int64(lvl)
	}
	for lvl := 1; lvl <= 9; lvl++ {
		algoValues[fmt.Sprintf("lzma%d", lvl)] = int64(lvl)
	}
	for lvl := 0; lvl <= 16; lvl++ {
		algoValues[fmt.Sprintf("lz4-%d", lvl)] = int64(lvl)
	}
	for lvl := 0; lvl <= 19; lvl++ {
		algoValues[fmt.Sprintf("zstd%d", lvl)] = int64(lvl)
	}

	s.Declare(&options.Declaration{
		LongName: "--archive-size", Type: options.TypeInteger64,
		Desc:    "split size for the output archive, with optional k/M/G unit suffix",
		Default: int64(0),
	})
	s.Declare(&options.Declaration{
		LongName: "--compress-algorithm", ShortName: 'z', Type: options.TypeSelect,
		Desc: "compression back-end and level, e.g. zip9, lzma6, lz4-4, zstd19",
		Default: "zip6", Values: algoValues,
	})
	s.Declare(&options.Declaration{
		LongName: "--verbose", ShortName: 'v', Type: options.TypeIncrement,
		Desc: "increase diagnostic output; repeatable",
	})
	s.Declare(&options.Declaration{
		LongName: "--continuous", Type: options.TypeBoolean,
		Desc: "feed a continuous-change watch database for the source paths instead of archiving once",
		Default: false,
	})
	s.Declare(&options.Declaration{
		LongName: "--continuous-db", Type: options.TypeString,
		Desc: "path to the continuous-watcher database", Default: "",
	})
	s.Declare(&options.Declaration{
		LongName: "--job-uuid", Type: options.TypeString,
		Desc: "job UUID attributed to continuous-watcher change rows", Default: "",
	})
	s.Declare(&options.Declaration{
		LongName: "--schedule-uuid", Type: options.TypeString,
		Desc: "schedule UUID attributed to continuous-watcher change rows", Default: "",
	})
	s.Declare(&options.Declaration{
		LongName: "--help", ShortName: 'h', Type: options.TypeFlag,
		Desc: "print this help and exit",
	})

	return s
}

// resolveAlgorithm splits a select token like "zip9" or "lz4-4" into
// its compress.Algorithm and numeric level, per spec.md §8's testable
// scenario ("compress-algorithm=zip9" → ZIP level 9). Prefixes are
// checked longest-first since "lz4-" itself contains a digit.
func resolveAlgorithm(token string) (compress.Algorithm, int, error) {
	prefixes := []struct {
		prefix string
		algo   compress.Algorithm
	}{
		{"lz4-", compress.LZ4},
		{"lzma", compress.LZMA},
		{"zstd", compress.Zstandard},
		{"zip", compress.Deflate},
	}
	for _, p := range prefixes {
		if !hasPrefix(token, p.prefix) {
			continue
		}
		level, err := strconv.Atoi(token[len(p.prefix):])
		if err != nil {
			return 0, 0, barerr.Wrap(barerr.KindArgument, "resolve compress-algorithm", token, err)
		}
		return p.algo, level, nil
	}
	return 0, 0, barerr.New(barerr.KindArgument, "resolve compress-algorithm", token, "unknown algorithm prefix")
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// destinationSpecifier resolves a positional archive argument (a bare
// path or a full "scheme://..." specifier) into a StorageSpecifier and
// the archive-relative name the back-end should use.
func destinationSpecifier(archiveArg string) (*storage.StorageSpecifier, string, error) {
	if isSpecifierURI(archiveArg) {
		spec, err := storage.ParseSpecifier(archiveArg)
		if err != nil {
			return nil, "", err
		}
		name := filepath.Base(spec.Path)
		spec.Path = filepath.Dir(spec.Path)
		return spec, name, nil
	}
	abs, err := filepath.Abs(archiveArg)
	if err != nil {
		return nil, "", barerr.Wrap(barerr.KindArgument, "resolve destination", archiveArg, err)
	}
	return &storage.StorageSpecifier{Scheme: "file", Path: filepath.Dir(abs), Raw: archiveArg}, filepath.Base(abs), nil
}

func isSpecifierURI(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == ':' && s[i+1] == '/' && s[i+2] == '/' {
			return true
		}
	}
	return false
}

// streamThroughPipeline drives src's bytes through a compress.Pipeline
// in deflate mode and writes the resulting compressed bytes to dst,
// per the ring-buffer producer/consumer protocol in spec.md §4.6.
func streamThroughPipeline(pipeline *compress.Pipeline, src io.Reader, dst io.Writer) error {
	inBuf := make([]byte, 32*1024)
	outBuf := make([]byte, 32*1024)
	eof := false

	for {
		if !eof {
			n, err := src.Read(inBuf)
			if n > 0 {
				written := 0
				for written < n {
					w := pipeline.Write(inBuf[written:n])
					if w == 0 {
						if _, stepErr := drain(pipeline, outBuf, dst); stepErr != nil {
							return stepErr
						}
						continue
					}
					written += w
				}
			}
			if err == io.EOF {
				eof = true
				pipeline.Flush()
			} else if err != nil {
				return barerr.Wrap(barerr.KindIO, "read source", "", err)
			}
		}

		progressed, err := drain(pipeline, outBuf, dst)
		if err != nil {
			return err
		}
		if pipeline.EndOfData() {
			return nil
		}
		if eof && !progressed {
			result, err := pipeline.Step()
			if err != nil {
				return err
			}
			if result == compress.StepStreamEnd {
				return drainRemaining(pipeline, outBuf, dst)
			}
		}
	}
}

func drain(pipeline *compress.Pipeline, outBuf []byte, dst io.Writer) (bool, error) {
	progressed := false
	for {
		result, err := pipeline.Step()
		if err != nil {
			return progressed, err
		}
		n := pipeline.Read(outBuf)
		if n > 0 {
			if _, werr := dst.Write(outBuf[:n]); werr != nil {
				return progressed, barerr.Wrap(barerr.KindIO, "write destination", "", werr)
			}
			progressed = true
		}
		if result == compress.StepNeedsInput || result == compress.StepStreamEnd {
			return progressed, nil
		}
		if n == 0 && result == compress.StepNeedsOutput {
			return progressed, nil
		}
	}
}

func drainRemaining(pipeline *compress.Pipeline, outBuf []byte, dst io.Writer) error {
	for {
		n := pipeline.Read(outBuf)
		if n == 0 {
			return nil
		}
		if _, err := dst.Write(outBuf[:n]); err != nil {
			return barerr.Wrap(barerr.KindIO, "write destination", "", err)
		}
	}
}

func run(args []string) error {
	schema := buildSchema()
	vals, positional, err := schema.ParseArgs(args)
	if err != nil {
		return err
	}
	if vals.Bool("--help") {
		schema.Help(os.Stdout, "")
		return nil
	}
	if vals.Int("--verbose") > 0 {
		barlog.SetLevel(barlog.LevelDebug)
	}
	if len(positional) < 1 {
		return barerr.New(barerr.KindArgument, "parse arguments", "", "missing archive destination")
	}
	archiveArg := positional[0]
	sources := positional[1:]

	patterns := make([]string, 0, len(sources))
	list := entrylist.New()
	for _, src := range sources {
		pattern := filepath.Join(src, "*")
		if _, err := list.Add(entrylist.StoreFile, pattern, entrylist.PatternGlob); err != nil {
			return err
		}
		patterns = append(patterns, pattern)
	}

	if vals.Bool("--continuous") {
		return runContinuous(vals, sources, patterns)
	}

	algo, level, err := resolveAlgorithm(vals.String("--compress-algorithm"))
	if err != nil {
		return err
	}

	spec, name, err := destinationSpecifier(archiveArg)
	if err != nil {
		return err
	}
	backend, err := storage.NewBackend(spec)
	if err != nil {
		return err
	}
	defer backend.Done()

	handle, err := backend.Create(name, 0, false, storage.ModeCreate)
	if err != nil {
		return err
	}
	defer handle.Close()

	pipeline, err := compress.NewPipeline(compress.ModeDeflate, algo, level, ringDataCapacity, ringCompressCapacity)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	matched := 0
	var totalIn, totalOut int64
	for _, src := range sources {
		err := filepath.Walk(src, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if info.IsDir() {
				return nil
			}
			if !list.Match(path, entrylist.MatchWhole) {
				return nil
			}
			matched++
			f, err := os.Open(path)
			if err != nil {
				return barerr.Wrap(barerr.KindIO, "open source", path, err)
			}
			defer f.Close()
			barlog.Debugf("archiving %s", path)
			if err := pipeline.Reset(); err != nil {
				return err
			}
			err = streamThroughPipeline(pipeline, f, handle)
			totalIn += pipeline.GetInputLength()
			totalOut += pipeline.GetOutputLength()
			return err
		})
		if err != nil {
			return err
		}
	}

	barlog.Infof("archived %d file(s) into %s (%s, %d -> %d bytes)",
		matched, spec.PrintableName(), vals.String("--compress-algorithm"),
		totalIn, totalOut)
	return nil
}

func runContinuous(vals *options.Values, sources, patterns []string) error {
	dbPath := vals.String("--continuous-db")
	if dbPath == "" {
		return barerr.New(barerr.KindArgument, "start continuous watcher", "", "--continuous-db is required")
	}
	// job/schedule UUIDs are normally carried in from the caller's backup
	// configuration; for an ad-hoc invocation with neither supplied, mint
	// fresh ones so a first run can still arm the watcher. The generated
	// values are logged so a caller who wants change-history continuity
	// across restarts can pass them back in explicitly next time.
	jobUUID := vals.String("--job-uuid")
	if jobUUID == "" {
		jobUUID = storage.NewUUID().String()
		barlog.Infof("no --job-uuid given; generated %s", jobUUID)
	}
	scheduleUUID := vals.String("--schedule-uuid")
	if scheduleUUID == "" {
		scheduleUUID = storage.NewUUID().String()
		barlog.Infof("no --schedule-uuid given; generated %s", scheduleUUID)
	}

	w, err := continuous.Open(dbPath)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, src := range sources {
		w.InitNotify(src, jobUUID, scheduleUUID, patterns)
	}

	barlog.Infof("continuous watcher armed for %d source path(s); press Ctrl+C to stop", len(sources))
	select {}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
