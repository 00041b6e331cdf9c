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

package entrylist

import "testing"

func TestGlobMatchWhole(t *testing.T) {
	l := New()
	if _, err := l.Add(StoreFile, "/etc/*", PatternGlob); err != nil {
		t.Fatal(err)
	}
	if !l.Match("/etc/passwd", MatchWhole) {
		t.Fatal("expected /etc/passwd to match /etc/*")
	}
	if !l.Match("/etc/foo/bar", MatchWhole) {
		t.Fatal("expected /etc/foo/bar to match /etc/* under whole-path recursion")
	}
	if l.Match("/var/log", MatchWhole) {
		t.Fatal("did not expect /var/log to match /etc/*")
	}
}

func TestGlobMatchExact(t *testing.T) {
	l := New()
	l.Add(StoreFile, "/tmp/a.bar", PatternGlob)
	if !l.Match("/tmp/a.bar", MatchExact) {
		t.Fatal("expected exact match")
	}
	if l.Match("/tmp/a.bar.tmp", MatchExact) {
		t.Fatal("did not expect partial exact match")
	}
}

func TestRegexMatch(t *testing.T) {
	l := New()
	if _, err := l.Add(StoreFile, `.*\.go$`, PatternRegex); err != nil {
		t.Fatal(err)
	}
	if !l.Match("main.go", MatchWhole) {
		t.Fatal("expected main.go to match")
	}
	if l.Match("main.py", MatchWhole) {
		t.Fatal("did not expect main.py to match")
	}
}

func TestExtendedRegexPrefix(t *testing.T) {
	l := New()
	l.Add(StoreFile, `^/home/[a-z]+`, PatternExtendedRegex)
	if !l.Match("/home/alice/docs", MatchPrefix) {
		t.Fatal("expected prefix match")
	}
	if l.Match("/srv/home/alice", MatchPrefix) {
		t.Fatal("did not expect prefix match at non-zero offset")
	}
}

func TestFirstMatchWins(t *testing.T) {
	l := New()
	l.Add(StoreFile, "/a/*", PatternGlob)
	l.Add(StoreImage, "/b/*", PatternGlob)
	l.Add(StoreFile, "/b/*", PatternGlob)
	e, ok := l.MatchAny("/b/disk.img", MatchWhole)
	if !ok {
		t.Fatal("expected a match")
	}
	if e.StoreType != StoreImage {
		t.Fatalf("expected image store type, got %v", e.StoreType)
	}
}

func TestInvalidPatternRejected(t *testing.T) {
	l := New()
	if _, err := l.Add(StoreFile, "(unclosed", PatternRegex); err == nil {
		t.Fatal("expected compile error for invalid regex")
	}
}

func TestEntriesSnapshotIsOrderedAndIndependent(t *testing.T) {
	l := New()
	l.Add(StoreFile, "/a/*", PatternGlob)
	l.Add(StoreFile, "/b/*", PatternGlob)
	entries := l.Entries()
	if len(entries) != 2 || entries[0].Source != "/a/*" || entries[1].Source != "/b/*" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	l.Add(StoreFile, "/c/*", PatternGlob)
	if len(entries) != 2 {
		t.Fatal("snapshot should not observe later mutation")
	}
}
