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

/*
Package storage provides raft.Storage Port adapters: Memory for tests and
ephemeral single-process demos, and File for a durable, crash-recoverable
on-disk WAL (see file.go).
*/
package storage

import (
	"sync"

	"raftkit/internal/raft"
)

// Memory is an in-memory raft.Storage adapter. It satisfies the Storage
// Port contract (durability across process restarts) only in the
// trivial sense that the process never restarts; it exists for tests,
// cmd/raftctl's in-memory demo mode, and anywhere durable recovery
// across crashes isn't the point.
type Memory struct {
	mu       sync.Mutex
	term     raft.Term
	votedFor *raft.NodeID
	entries  []raft.LogEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// LoadState implements raft.Storage.
func (m *Memory) LoadState() (raft.Term, *raft.NodeID, []raft.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]raft.LogEntry(nil), m.entries...)
	return m.term, m.votedFor, out, nil
}

// SaveMeta implements raft.Storage.
func (m *Memory) SaveMeta(term raft.Term, votedFor *raft.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.term = term
	m.votedFor = votedFor
	return nil
}

// AppendLog implements raft.Storage.
func (m *Memory) AppendLog(entries []raft.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

// TruncateLog implements raft.Storage.
func (m *Memory) TruncateLog(fromIndex raft.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.Index < fromIndex {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}
