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

import "testing"

// memStorage is the minimal in-memory Storage used by this package's own
// tests. internal/storage ships the production-grade version (with
// checksums and an optional durable file backend); this one stays local
// to keep the core's tests free of a dependency on a sibling package.
type memStorage struct {
	term     Term
	votedFor *NodeID
	entries  []LogEntry
}

func (s *memStorage) LoadState() (Term, *NodeID, []LogEntry, error) {
	out := append([]LogEntry(nil), s.entries...)
	return s.term, s.votedFor, out, nil
}

func (s *memStorage) SaveMeta(term Term, votedFor *NodeID) error {
	s.term = term
	s.votedFor = votedFor
	return nil
}

func (s *memStorage) AppendLog(entries []LogEntry) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *memStorage) TruncateLog(fromIndex Index) error {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Index < fromIndex {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// scriptedClock lets tests advance time explicitly and deterministically.
type scriptedClock struct {
	now Millis
}

func (c *scriptedClock) NowMs() Millis { return c.now }

// scriptedRandom always returns the same deterministic value within the
// requested range, so election timeouts are reproducible in tests.
type scriptedRandom struct {
	fixed Millis
}

func (r *scriptedRandom) UniformMs(min, max Millis) Millis {
	if r.fixed < min {
		return min
	}
	if r.fixed > max {
		return max
	}
	return r.fixed
}

// cluster is a small in-process simulation harness: N nodes, a shared
// scripted clock/random pair per node, and a simple synchronous message
// router that lets tests drive elections and replication deterministically.
// Modeled on the teacher's setupTestEngine helper pattern
// (internal/storage/test_helpers.go): a constructor that wires up
// everything a test needs and returns handles to poke at.
type cluster struct {
	t       *testing.T
	ids     []NodeID
	nodes   map[NodeID]*Node
	storage map[NodeID]*memStorage
	clocks  map[NodeID]*scriptedClock
	now     Millis
}

func newCluster(t *testing.T, n int, electionFixed Millis) *cluster {
	t.Helper()
	c := &cluster{
		t:       t,
		nodes:   map[NodeID]*Node{},
		storage: map[NodeID]*memStorage{},
		clocks:  map[NodeID]*scriptedClock{},
	}
	ids := make([]NodeID, n)
	for i := 0; i < n; i++ {
		ids[i] = NodeID(string(rune('A' + i)))
	}
	c.ids = ids

	for _, id := range ids {
		var peers []NodeID
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		st := &memStorage{}
		clk := &scriptedClock{now: 0}
		ports := Ports{Storage: st, Clock: clk, Random: &scriptedRandom{fixed: electionFixed}}
		node, err := NewNode(id, peers, ports, DefaultConfig())
		if err != nil {
			t.Fatalf("NewNode(%s): %v", id, err)
		}
		c.nodes[id] = node
		c.storage[id] = st
		c.clocks[id] = clk
	}
	return c
}

// addressed pairs an Outbound with the node that produced it, so the
// router always knows the true "from" of every hop.
type addressed struct {
	from NodeID
	ob   Outbound
}

// tickAll advances every node's clock to now and delivers whatever each
// produces, one node's batch at a time.
func (c *cluster) tickAll(now Millis) {
	c.now = now
	for _, id := range c.ids {
		c.clocks[id].now = now
		out := c.nodes[id].Tick(now)
		c.deliverFrom(id, out)
	}
}

func (c *cluster) tickOne(id NodeID, now Millis) {
	c.now = now
	c.clocks[id].now = now
	out := c.nodes[id].Tick(now)
	c.deliverFrom(id, out)
}

// deliverFrom delivers out (produced by sender) and recursively routes
// whatever the recipients produce in response, until the cluster goes
// quiet or a round cap is hit (guards against an accidental infinite
// ping-pong in a buggy scenario under test).
func (c *cluster) deliverFrom(sender NodeID, out []Outbound) {
	var queue []addressed
	for _, ob := range out {
		queue = append(queue, addressed{from: sender, ob: ob})
	}

	for round := 0; len(queue) > 0 && round < 50; round++ {
		var next []addressed
		for _, a := range queue {
			dest, ok := c.nodes[a.ob.To]
			if !ok {
				continue
			}
			c.clocks[a.ob.To].now = c.now
			produced := dest.OnMessage(a.from, a.ob.Message)
			for _, p := range produced {
				next = append(next, addressed{from: a.ob.To, ob: p})
			}
		}
		queue = next
	}
}

func (c *cluster) leader() (NodeID, bool) {
	for _, id := range c.ids {
		if c.nodes[id].Status().Role == Leader {
			return id, true
		}
	}
	return "", false
}
