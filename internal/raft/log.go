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

// log is the ordered, append-only sequence of LogEntry records backing a
// single node. Indices are 1-based and contiguous; entries[0] corresponds
// to Index 1. Generalized out of the inline slice manipulation the
// teacher performs directly inside handleAppendEntries/
// broadcastAppendEntries (cluster/raft.go) into its own type, since this
// package budgets Log as an independently testable ~20% of the core.
type log struct {
	entries     []LogEntry
	commitIndex Index
}

func newLog() *log {
	return &log{}
}

// lastIndex returns the index of the last entry, or 0 if empty.
func (l *log) lastIndex() Index {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Index
}

// lastTerm returns the term of the last entry, or 0 if empty.
func (l *log) lastTerm() Term {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

// termAt returns the term of the entry at i, and whether it exists.
// i == 0 is treated as the synthetic "before the log" position with
// term 0, matching the boundary behavior required for prevLogIndex == 0.
func (l *log) termAt(i Index) (Term, bool) {
	if i == 0 {
		return 0, true
	}
	pos := int(i) - 1
	if pos < 0 || pos >= len(l.entries) {
		return 0, false
	}
	return l.entries[pos].Term, true
}

// entriesFrom returns a copy of every entry at index >= i, for leader
// replication. Returns nil if i is past the end of the log.
func (l *log) entriesFrom(i Index) []LogEntry {
	if i == 0 {
		i = 1
	}
	pos := int(i) - 1
	if pos < 0 || pos >= len(l.entries) {
		return nil
	}
	out := make([]LogEntry, len(l.entries)-pos)
	copy(out, l.entries[pos:])
	return out
}

// matches reports whether prevIndex/prevTerm describe a valid prefix:
// true if prevIndex is 0 (empty prefix, always matches) or the entry at
// prevIndex exists with term prevTerm.
func (l *log) matches(prevIndex Index, prevTerm Term) bool {
	if prevIndex == 0 {
		return true
	}
	t, ok := l.termAt(prevIndex)
	return ok && t == prevTerm
}

// appendFollowerResult reports exactly what mutation appendFollower made,
// so the caller can mirror the same operations onto durable Storage
// instead of re-deriving them (and risking divergence between the
// in-memory log and what gets persisted).
type appendFollowerResult struct {
	// TruncatedFrom is nonzero if a conflicting suffix was discarded
	// starting at this index; the caller must call Storage.TruncateLog
	// with this value before AppendLog.
	TruncatedFrom Index
	// Appended holds the entries that were actually added to the log
	// (nil if every incoming entry already matched what was present).
	Appended []LogEntry
}

// appendFollower applies a leader's AppendEntries to this log. Precondition:
// matches(prevIndex, prevTerm) must already hold, checked by the caller
// (Node.handleAppendEntriesRequest) so the conflict-index hint it computes
// on mismatch stays in one place.
//
// For each incoming entry at position prevIndex+k, if an existing entry at
// that position has a different term, the log is truncated from that
// position onward before appending the remaining incoming entries (and
// everything after them, since they can no longer be trusted either).
// Entries already present with matching terms are left untouched — this
// matters because re-truncating identical already-committed entries would
// otherwise violate the "entries are immutable once committed" rule on a
// retried/duplicated AppendEntries.
func (l *log) appendFollower(prevIndex Index, prevTerm Term, entries []LogEntry) appendFollowerResult {
	insertPos := int(prevIndex) // position in l.entries where entries[0] would land if prevIndex>0; entries are 1-based so index prevIndex+1 is at pos prevIndex
	for k, incoming := range entries {
		pos := insertPos + k
		if pos < len(l.entries) {
			if l.entries[pos].Term != incoming.Term {
				truncatedFrom := l.entries[pos].Index
				l.entries = l.entries[:pos]
				l.entries = append(l.entries, entries[k:]...)
				return appendFollowerResult{TruncatedFrom: truncatedFrom, Appended: entries[k:]}
			}
			// identical entry already present; keep scanning
			continue
		}
		l.entries = append(l.entries, entries[k:]...)
		return appendFollowerResult{Appended: entries[k:]}
	}
	return appendFollowerResult{}
}

// appendLeader appends a single new entry authored by the leader at
// lastIndex()+1, and returns its index.
func (l *log) appendLeader(term Term, command []byte) Index {
	idx := l.lastIndex() + 1
	l.entries = append(l.entries, LogEntry{Term: term, Index: idx, Command: command})
	return idx
}

// commitTo raises commitIndex to min(target, lastIndex), never decreasing
// it (P5 commit monotonicity).
func (l *log) commitTo(target Index) {
	if target > l.lastIndex() {
		target = l.lastIndex()
	}
	if target > l.commitIndex {
		l.commitIndex = target
	}
}

// entriesSince returns committed entries with index > last, up to the
// current commitIndex, for the host's apply loop.
func (l *log) entriesSince(last Index) []LogEntry {
	if last >= l.commitIndex {
		return nil
	}
	start := last
	return l.entriesFromTo(start+1, l.commitIndex)
}

func (l *log) entriesFromTo(from, to Index) []LogEntry {
	if from == 0 {
		from = 1
	}
	var out []LogEntry
	for _, e := range l.entries {
		if e.Index >= from && e.Index <= to {
			out = append(out, e)
		}
	}
	return out
}

// isUpToDate implements the "at least as up-to-date" comparison used by
// voting: candidateTerm/candidateIndex describe the candidate's log tail.
func isUpToDate(candidateTerm Term, candidateIndex Index, ourTerm Term, ourIndex Index) bool {
	if candidateTerm != ourTerm {
		return candidateTerm > ourTerm
	}
	return candidateIndex >= ourIndex
}

// firstIndexOfTerm returns the lowest index in the log whose entry has
// the given term, used to compute the AppendEntries conflict-index hint
// so a rejected leader can back off nextIndex by a whole term at once
// instead of one entry at a time.
func (l *log) firstIndexOfTerm(term Term) Index {
	for _, e := range l.entries {
		if e.Term == term {
			return e.Index
		}
	}
	return 0
}

// snapshot returns a defensive copy of the entries, for persistence.
func (l *log) snapshot() []LogEntry {
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// replace resets the log to the given entries and commit index, used
// when loading PersistentState at construction time.
func (l *log) replace(entries []LogEntry, commitIndex Index) {
	l.entries = append([]LogEntry(nil), entries...)
	l.commitIndex = commitIndex
}
