/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package raft

import (
	"bytes"
	"testing"
)

func TestEmptyLogBoundaries(t *testing.T) {
	l := newLog()
	if l.lastIndex() != 0 {
		t.Errorf("expected lastIndex 0, got %d", l.lastIndex())
	}
	if l.lastTerm() != 0 {
		t.Errorf("expected lastTerm 0, got %d", l.lastTerm())
	}
	if !l.matches(0, 0) {
		t.Error("expected empty log to match prevIndex=0, prevTerm=0")
	}
}

func TestLogMatchesExistingEntry(t *testing.T) {
	l := newLog()
	l.appendLeader(1, []byte("a"))
	l.appendLeader(1, []byte("b"))

	if !l.matches(2, 1) {
		t.Error("expected match at index 2 term 1")
	}
	if l.matches(2, 2) {
		t.Error("expected mismatch at index 2 term 2")
	}
	if l.matches(5, 1) {
		t.Error("expected mismatch for an index past the end of the log")
	}
}

func TestAppendFollowerConflictTruncation(t *testing.T) {
	// S5: follower log [(1,1,a),(1,2,b),(2,3,x)]; leader sends
	// prevLogIndex=2, prevLogTerm=1, entries=[(3,3,y),(3,4,z)].
	l := newLog()
	l.replace([]LogEntry{
		{Term: 1, Index: 1, Command: []byte("a")},
		{Term: 1, Index: 2, Command: []byte("b")},
		{Term: 2, Index: 3, Command: []byte("x")},
	}, 0)

	if !l.matches(2, 1) {
		t.Fatal("expected prefix to match before applying the conflicting suffix")
	}

	result := l.appendFollower(2, 1, []LogEntry{
		{Term: 3, Index: 3, Command: []byte("y")},
		{Term: 3, Index: 4, Command: []byte("z")},
	})

	if result.TruncatedFrom != 3 {
		t.Errorf("expected truncation from index 3, got %d", result.TruncatedFrom)
	}
	if len(result.Appended) != 2 {
		t.Fatalf("expected 2 appended entries, got %d", len(result.Appended))
	}
	if l.lastIndex() != 4 {
		t.Errorf("expected lastIndex 4, got %d", l.lastIndex())
	}
	want := []LogEntry{
		{Term: 1, Index: 1, Command: []byte("a")},
		{Term: 1, Index: 2, Command: []byte("b")},
		{Term: 3, Index: 3, Command: []byte("y")},
		{Term: 3, Index: 4, Command: []byte("z")},
	}
	got := l.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Term != want[i].Term || got[i].Index != want[i].Index || !bytes.Equal(got[i].Command, want[i].Command) {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestAppendFollowerIdempotentRetry(t *testing.T) {
	l := newLog()
	entries := []LogEntry{{Term: 1, Index: 1, Command: []byte("a")}}
	result := l.appendFollower(0, 0, entries)
	if len(result.Appended) != 1 {
		t.Fatalf("expected 1 entry appended on first attempt")
	}

	// Retry the identical AppendEntries (simulating a duplicated/retried
	// RPC): the entry already matches, so nothing should be truncated or
	// re-appended.
	result = l.appendFollower(0, 0, entries)
	if result.TruncatedFrom != 0 {
		t.Errorf("expected no truncation on idempotent retry, got %d", result.TruncatedFrom)
	}
	if len(result.Appended) != 0 {
		t.Errorf("expected no entries appended on idempotent retry, got %d", len(result.Appended))
	}
	if l.lastIndex() != 1 {
		t.Errorf("expected lastIndex to remain 1, got %d", l.lastIndex())
	}
}

func TestCommitToNeverRegresses(t *testing.T) {
	l := newLog()
	l.appendLeader(1, []byte("a"))
	l.appendLeader(1, []byte("b"))
	l.commitTo(2)
	if l.commitIndex != 2 {
		t.Fatalf("expected commitIndex 2, got %d", l.commitIndex)
	}
	l.commitTo(1)
	if l.commitIndex != 2 {
		t.Errorf("commitIndex regressed to %d", l.commitIndex)
	}
	l.commitTo(10)
	if l.commitIndex != 2 {
		t.Errorf("expected commitTo to clamp to lastIndex, got %d", l.commitIndex)
	}
}

func TestIsUpToDate(t *testing.T) {
	cases := []struct {
		candTerm, candIdx, ourTerm, ourIdx Term
		want                               bool
	}{
		{2, 5, 1, 100, true},  // higher term wins regardless of length
		{1, 100, 2, 5, false}, // lower term loses regardless of length
		{1, 5, 1, 5, true},    // equal term, equal length
		{1, 5, 1, 6, false},   // equal term, shorter log
		{1, 6, 1, 5, true},    // equal term, longer log
	}
	for _, c := range cases {
		got := isUpToDate(c.candTerm, Index(c.candIdx), c.ourTerm, Index(c.ourIdx))
		if got != c.want {
			t.Errorf("isUpToDate(%d,%d,%d,%d) = %v, want %v", c.candTerm, c.candIdx, c.ourTerm, c.ourIdx, got, c.want)
		}
	}
}

func TestFirstIndexOfTerm(t *testing.T) {
	l := newLog()
	l.replace([]LogEntry{
		{Term: 1, Index: 1},
		{Term: 1, Index: 2},
		{Term: 2, Index: 3},
		{Term: 2, Index: 4},
	}, 0)
	if got := l.firstIndexOfTerm(2); got != 3 {
		t.Errorf("expected first index of term 2 to be 3, got %d", got)
	}
	if got := l.firstIndexOfTerm(5); got != 0 {
		t.Errorf("expected first index of absent term to be 0, got %d", got)
	}
}
