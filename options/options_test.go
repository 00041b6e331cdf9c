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

package options

import (
	"bytes"
	"strings"
	"testing"
)

func testSchema() *Schema {
	s := NewSchema()
	s.Declare(&Declaration{LongName: "--verbose", ShortName: 'v', Type: TypeFlag, Desc: "be verbose"})
	s.Declare(&Declaration{LongName: "--compress-level", ShortName: 'l', Type: TypeInteger, Default: int64(6), Desc: "compression level"})
	s.Declare(&Declaration{LongName: "--max-size", Type: TypeInteger, Desc: "max size with unit suffix"})
	s.Declare(&Declaration{LongName: "--algorithm", Type: TypeSelect, Desc: "algorithm", Values: map[string]int64{"zstd": 0, "lzma": 1}})
	s.Declare(&Declaration{LongName: "--config", Type: TypeString, Priority: 10, Desc: "config file path"})
	return s
}

func TestDuplicateLongNamePanics(t *testing.T) {
	s := NewSchema()
	s.Declare(&Declaration{LongName: "--x", Type: TypeFlag})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate declaration")
		}
	}()
	s.Declare(&Declaration{LongName: "--x", Type: TypeFlag})
}

func TestParseArgsLongAndShort(t *testing.T) {
	s := testSchema()
	vals, pos, err := s.ParseArgs([]string{"-v", "--compress-level=9", "file.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if !vals.Bool("--verbose") {
		t.Fatal("expected verbose flag set")
	}
	if vals.Int("--compress-level") != 9 {
		t.Fatalf("expected compress-level 9, got %d", vals.Int("--compress-level"))
	}
	if len(pos) != 1 || pos[0] != "file.txt" {
		t.Fatalf("unexpected positional args %v", pos)
	}
}

func TestDefaultAppliesWhenUnset(t *testing.T) {
	s := testSchema()
	vals, _, err := s.ParseArgs(nil)
	if err != nil {
		t.Fatal(err)
	}
	if vals.Int("--compress-level") != 6 {
		t.Fatalf("expected default 6, got %d", vals.Int("--compress-level"))
	}
}

func TestUnitSuffixParsing(t *testing.T) {
	s := testSchema()
	vals, _, err := s.ParseArgs([]string{"--max-size=10MB"})
	if err != nil {
		t.Fatal(err)
	}
	if vals.Int("--max-size") != 10*1024*1024 {
		t.Fatalf("expected 10MB in bytes, got %d", vals.Int("--max-size"))
	}
}

func TestSelectRejectsUnknownValue(t *testing.T) {
	s := testSchema()
	_, _, err := s.ParseArgs([]string{"--algorithm=brotli"})
	if err == nil {
		t.Fatal("expected error for unknown select value")
	}
}

func TestBooleanTokens(t *testing.T) {
	cases := []struct {
		token string
		want  bool
	}{
		{"1", true}, {"yes", true}, {"on", true}, {"true", true},
		{"0", false}, {"no", false}, {"off", false}, {"false", false},
	}
	for _, c := range cases {
		s := NewSchema()
		s.Declare(&Declaration{LongName: "--bool-opt", Type: TypeBoolean})
		vals, _, err := s.ParseArgs([]string{"--bool-opt=" + c.token})
		if err != nil {
			t.Fatalf("token %q: %v", c.token, err)
		}
		if got := vals.Bool("--bool-opt"); got != c.want {
			t.Fatalf("token %q: expected %v, got %v", c.token, c.want, got)
		}
	}
}

func TestBooleanNoValueSetsTrue(t *testing.T) {
	s := NewSchema()
	s.Declare(&Declaration{LongName: "--bool-opt", Type: TypeBoolean})
	vals, _, err := s.ParseArgs([]string{"--bool-opt"})
	if err != nil {
		t.Fatal(err)
	}
	if !vals.Bool("--bool-opt") {
		t.Fatal("expected --bool-opt with no value to set true")
	}
}

func TestSetBitmaskMerge(t *testing.T) {
	s := NewSchema()
	s.Declare(&Declaration{LongName: "--set-opt", Type: TypeSet, Values: map[string]int64{"a": 1, "b": 2, "c": 4}})
	vals, _, err := s.ParseArgs([]string{"--set-opt=a,b"})
	if err != nil {
		t.Fatal(err)
	}
	if vals.Int("--set-opt") != 3 {
		t.Fatalf("expected bitmask 3, got %d", vals.Int("--set-opt"))
	}
}

func TestFlagBitmaskMerge(t *testing.T) {
	s := NewSchema()
	s.Declare(&Declaration{LongName: "--delta-compress", Type: TypeFlag, Bits: 1, Target: "--archive-flags"})
	s.Declare(&Declaration{LongName: "--stop-on-error", Type: TypeFlag, Bits: 2, Target: "--archive-flags"})
	vals, _, err := s.ParseArgs([]string{"--delta-compress", "--stop-on-error"})
	if err != nil {
		t.Fatal(err)
	}
	if vals.Int("--archive-flags") != 3 {
		t.Fatalf("expected merged bitmask 3, got %d", vals.Int("--archive-flags"))
	}
}

func TestDoubleDashEndsOptionParsing(t *testing.T) {
	s := testSchema()
	_, pos, err := s.ParseArgs([]string{"-v", "--", "--compress-level=9"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pos) != 1 || pos[0] != "--compress-level=9" {
		t.Fatalf("expected the literal option text as positional, got %v", pos)
	}
}

func TestUnknownOptionErrors(t *testing.T) {
	s := testSchema()
	_, _, err := s.ParseArgs([]string{"--nope"})
	if err == nil {
		t.Fatal("expected error for unknown option")
	}
}

func TestConfigFilePreservesUnknownLines(t *testing.T) {
	s := testSchema()
	input := "# a comment\n[main]\ncompress-level = 3\nunknown-setting = 1\n\n"
	vals, raw, err := s.ParseConfigFile(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if vals.Int("--compress-level") != 3 {
		t.Fatalf("expected 3, got %d", vals.Int("--compress-level"))
	}
	// 5 lines: the comment, the section header, the two assignments,
	// and the trailing blank line before EOF.
	if len(raw) != 5 {
		t.Fatalf("expected 5 raw lines preserved, got %d: %v", len(raw), raw)
	}
	if raw[4] != "" {
		t.Fatalf("expected the trailing blank line to round-trip, got %q", raw[4])
	}
}

func TestHelpListsDeclaredOptions(t *testing.T) {
	s := testSchema()
	var buf bytes.Buffer
	s.Help(&buf, "")
	out := buf.String()
	if !strings.Contains(out, "--verbose") || !strings.Contains(out, "--compress-level") {
		t.Fatalf("expected help to list declared options, got %q", out)
	}
}
