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

// MessageKind tags the six-variant RPC alphabet exchanged between nodes.
// Every handler switches exhaustively on Kind instead of using
// interface-based dispatch, per the "tagged message alphabet" design
// note: a new variant that is not handled everywhere fails to compile
// cleanly wherever Go's exhaustiveness tooling is run, and is at least
// visibly unhandled in a default case here.
type MessageKind int

const (
	KindPreVoteRequest MessageKind = iota
	KindPreVoteResponse
	KindVoteRequest
	KindVoteResponse
	KindAppendEntriesRequest
	KindAppendEntriesResponse
)

// String renders the message kind name, used in logging.
func (k MessageKind) String() string {
	switch k {
	case KindPreVoteRequest:
		return "PreVoteRequest"
	case KindPreVoteResponse:
		return "PreVoteResponse"
	case KindVoteRequest:
		return "VoteRequest"
	case KindVoteResponse:
		return "VoteResponse"
	case KindAppendEntriesRequest:
		return "AppendEntriesRequest"
	case KindAppendEntriesResponse:
		return "AppendEntriesResponse"
	default:
		return "Unknown"
	}
}

// Message is the tagged union of every RPC raftkit exchanges. Exactly
// one of the typed fields is meaningful for a given Kind; the others are
// zero. A single struct (rather than an interface per variant) keeps the
// wire encoding trivial (internal/protocol gob-encodes this directly)
// while still forcing exhaustive handling via the Kind switch in node.go.
type Message struct {
	Kind MessageKind

	// Term is present on every variant and drives the universal
	// step-down check in §4.3.2. For PreVote variants it is advisory
	// only — see the PreVote exception in node.go's OnMessage.
	Term Term

	// PreVoteRequest / VoteRequest fields.
	CandidateID  NodeID
	LastLogIndex Index
	LastLogTerm  Term

	// PreVoteResponse / VoteResponse fields.
	VoteGranted bool

	// AppendEntriesRequest fields.
	LeaderID     NodeID
	PrevLogIndex Index
	PrevLogTerm  Term
	Entries      []LogEntry
	LeaderCommit Index

	// AppendEntriesResponse fields.
	Success      bool
	ConflictIndex Index
	ConflictTerm  Term
	// MatchIndex is carried on a successful AppendEntriesResponse so the
	// leader can advance matchIndex[p] without recomputing it from
	// PrevLogIndex + len(Entries) against a possibly-stale view.
	MatchIndex Index
}

// PreVoteRequest builds a PreVoteRequest message.
func PreVoteRequest(term Term, candidate NodeID, lastLogIndex Index, lastLogTerm Term) Message {
	return Message{
		Kind:         KindPreVoteRequest,
		Term:         term,
		CandidateID:  candidate,
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
	}
}

// PreVoteResponse builds a PreVoteResponse message.
func PreVoteResponse(term Term, granted bool) Message {
	return Message{Kind: KindPreVoteResponse, Term: term, VoteGranted: granted}
}

// VoteRequest builds a VoteRequest message.
func VoteRequest(term Term, candidate NodeID, lastLogIndex Index, lastLogTerm Term) Message {
	return Message{
		Kind:         KindVoteRequest,
		Term:         term,
		CandidateID:  candidate,
		LastLogIndex: lastLogIndex,
		LastLogTerm:  lastLogTerm,
	}
}

// VoteResponse builds a VoteResponse message.
func VoteResponse(term Term, granted bool) Message {
	return Message{Kind: KindVoteResponse, Term: term, VoteGranted: granted}
}

// AppendEntriesRequest builds an AppendEntriesRequest message.
func AppendEntriesRequest(term Term, leader NodeID, prevIndex Index, prevTerm Term, entries []LogEntry, leaderCommit Index) Message {
	return Message{
		Kind:         KindAppendEntriesRequest,
		Term:         term,
		LeaderID:     leader,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: leaderCommit,
	}
}

// AppendEntriesResponse builds an AppendEntriesResponse message.
func AppendEntriesResponse(term Term, success bool, matchIndex Index, conflictIndex Index, conflictTerm Term) Message {
	return Message{
		Kind:          KindAppendEntriesResponse,
		Term:          term,
		Success:       success,
		MatchIndex:    matchIndex,
		ConflictIndex: conflictIndex,
		ConflictTerm:  conflictTerm,
	}
}
