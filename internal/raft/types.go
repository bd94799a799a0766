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
Package raft implements a deterministic, in-memory Raft consensus core:
leader election with PreVote, append-entries log replication, and
quorum-based commit advancement.

The core is single-threaded and cooperative. A Node changes state only
through three entry points, Tick, OnMessage, and SubmitCommand, all
synchronous and mutually exclusive; there are no goroutines, channels,
or locks inside this package. Storage, the clock, and randomness are all supplied by the host
through small capability interfaces (Ports) so that tests can drive a
cluster of Nodes with a scripted clock and a shared in-memory transport.

	┌─────────────────────────────────────────────┐
	│                    Node                      │
	│  role: Follower / PreCandidate /             │
	│        Candidate / Leader                    │
	│                                               │
	│   Tick(now) ───┐          ┌─── OnMessage(...) │
	│                ▼          ▼                   │
	│          ┌───────────────────┐                │
	│          │   state machine    │               │
	│          └─────────┬──────────┘                │
	│                    │                            │
	│        ┌───────────┼────────────┐               │
	│        ▼           ▼            ▼               │
	│      Log       Storage      Clock/Random        │
	└─────────────────────────────────────────────┘

This package never imports a transport, a logger, or a config loader
directly; the host (internal/transport, cmd/raftctl, ...) wires those in.
*/
package raft

import "fmt"

// Term is a monotonically non-decreasing logical epoch number.
type Term uint64

// Index is a 1-based log position; 0 means "no entry".
type Index uint64

// NodeID identifies a cluster member. raftkit keys nodes by string
// identifier (an address or logical name) rather than a numeric id,
// following the teacher's own peer-keying convention throughout
// cluster/raft.go.
type NodeID string

// Millis is a monotonic millisecond timestamp, as produced by a Clock.
type Millis uint64

// Role is a closed variant of the four states a Node can be in. It is
// modeled as an enum rather than a type hierarchy: leader-only
// bookkeeping lives in Node's own leaderState field, not in a Role
// payload, since Go has no tagged-union variant payloads — see node.go.
type Role int

const (
	Follower Role = iota
	PreCandidate
	Candidate
	Leader
)

// String renders the role name.
func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case PreCandidate:
		return "PreCandidate"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// LogEntry is one record in the replicated log.
type LogEntry struct {
	Term    Term
	Index   Index
	Command []byte
}

// PersistentState is the durable record a Storage Port loads and saves.
type PersistentState struct {
	CurrentTerm Term
	VotedFor    *NodeID
	Log         []LogEntry
}

// Status is the read-only snapshot returned by Node.Status.
type Status struct {
	ID            NodeID
	Role          Role
	Term          Term
	LastLogIndex  Index
	CommitIndex   Index
	LeaderID      *NodeID
}

// Outbound pairs a message with the peer it must be delivered to. Tick
// and OnMessage return a slice of these; the host's transport is
// responsible for actually getting the bytes to the peer.
type Outbound struct {
	To      NodeID
	Message Message
}

// quorumSize returns the strict-majority quorum size for a cluster of n
// voting members (self included).
func quorumSize(n int) int {
	return n/2 + 1
}
