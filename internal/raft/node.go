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

import "raftkit/internal/errors"

// leaderState holds the per-peer bookkeeping that only exists while this
// node is Leader. Keeping it as its own struct (nilled out on every
// non-Leader transition) is the Go stand-in for the "Leader-only
// bookkeeping lives inside the Leader variant payload" design note: Go
// has no tagged-union payloads, so instead of carrying dead fields on
// every role, the pointer itself is nil except while role == Leader.
type leaderState struct {
	nextIndex  map[NodeID]Index
	matchIndex map[NodeID]Index
}

// electionState holds the vote-tally bookkeeping that only exists while
// this node is PreCandidate or Candidate.
type electionState struct {
	votesGranted    map[NodeID]struct{}
	preVotesGranted map[NodeID]struct{}
}

// Node drives one cluster member's Raft state machine. See the package
// doc comment for the concurrency contract: Tick, OnMessage, and
// SubmitCommand are the only entry points that change state, are
// mutually exclusive, and never block.
type Node struct {
	id    NodeID
	peers []NodeID
	ports Ports
	cfg   Config

	log         *log
	currentTerm Term
	votedFor    *NodeID
	role        Role
	leaderID    *NodeID

	// lastHeartbeatAt records when we last accepted an AppendEntries from
	// a current leader; nil until the first contact. Used by PreVote
	// rejection (§4.3.3) to detect "recent leader contact".
	lastHeartbeatAt *Millis

	electionDeadline   Millis
	nextHeartbeatAt    Millis

	election *electionState
	leader   *leaderState

	// failed is set once any Storage call returns an error. Per §7, a
	// StorageError is fatal: the node stops emitting messages until the
	// host re-constructs it against a repaired Storage.
	failed    bool
	failedErr error
}

// NewNode constructs a Node in the Follower role, with state loaded from
// ports.Storage (or Term 0 / no vote / empty log if the store is fresh).
// peers must not include id.
func NewNode(id NodeID, peers []NodeID, ports Ports, cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ports.Storage == nil || ports.Clock == nil || ports.Random == nil {
		return nil, errors.BadConfig("ports", "storage, clock, and random ports are all required")
	}

	term, votedFor, entries, err := ports.Storage.LoadState()
	if err != nil {
		return nil, errors.IOFailed("load state", err)
	}

	l := newLog()
	l.replace(entries, 0)

	n := &Node{
		id:          id,
		peers:       append([]NodeID(nil), peers...),
		ports:       ports,
		cfg:         cfg,
		log:         l,
		currentTerm: term,
		votedFor:    votedFor,
		role:        Follower,
	}
	n.resetElectionDeadline(ports.Clock.NowMs())
	return n, nil
}

// Status returns a read-only snapshot of the node's externally visible
// state.
func (n *Node) Status() Status {
	return Status{
		ID:           n.id,
		Role:         n.role,
		Term:         n.currentTerm,
		LastLogIndex: n.log.lastIndex(),
		CommitIndex:  n.log.commitIndex,
		LeaderID:     n.leaderID,
	}
}

// CommittedEntriesSince returns committed entries with index > last, for
// the host's apply loop.
func (n *Node) CommittedEntriesSince(last Index) []LogEntry {
	return n.log.entriesSince(last)
}

// quorum returns the strict-majority size for this cluster, counting
// self among the voting members.
func (n *Node) quorum() int {
	return quorumSize(len(n.peers) + 1)
}

func (n *Node) fail(err error) {
	n.failed = true
	n.failedErr = err
}

// persistMeta saves (currentTerm, votedFor) before any dependent
// outbound effect, per P6. On failure it marks the node permanently
// failed and the caller must stop emitting messages for this event.
func (n *Node) persistMeta() bool {
	if err := n.ports.Storage.SaveMeta(n.currentTerm, n.votedFor); err != nil {
		n.fail(errors.IOFailed("save meta", err))
		return false
	}
	return true
}

// resetElectionDeadline draws a new randomized deadline from now.
func (n *Node) resetElectionDeadline(now Millis) {
	n.electionDeadline = now + n.ports.Random.UniformMs(n.cfg.ElectionTimeoutMin, n.cfg.ElectionTimeoutMax)
}

// ============================================================================
// Tick
// ============================================================================

// Tick advances time to nowMs: it checks the election deadline and, for
// a Leader, emits any due heartbeats. The core never schedules its own
// timers; everything here is driven purely by this externally supplied
// timestamp (§4.3.7, §9 "Timers").
func (n *Node) Tick(nowMs Millis) []Outbound {
	if n.failed {
		return nil
	}

	var out []Outbound

	switch n.role {
	case Follower:
		if nowMs >= n.electionDeadline {
			out = append(out, n.becomePreCandidate(nowMs)...)
		}
	case PreCandidate:
		if nowMs >= n.electionDeadline {
			out = append(out, n.becomePreCandidate(nowMs)...)
		}
	case Candidate:
		if nowMs >= n.electionDeadline {
			out = append(out, n.becomePreCandidate(nowMs)...)
		}
	case Leader:
		if nowMs >= n.nextHeartbeatAt {
			out = append(out, n.broadcastAppendEntries()...)
			n.nextHeartbeatAt = nowMs + n.cfg.HeartbeatInterval
			n.lastHeartbeatAt = &nowMs
		}
	}

	return out
}

// ============================================================================
// Role transitions
// ============================================================================

func (n *Node) becomeFollower(now Millis, term Term, leader *NodeID) bool {
	n.role = Follower
	n.currentTerm = term
	n.votedFor = nil
	n.leaderID = leader
	n.election = nil
	n.leader = nil
	if !n.persistMeta() {
		return false
	}
	n.resetElectionDeadline(now)
	return true
}

func (n *Node) becomePreCandidate(now Millis) []Outbound {
	n.role = PreCandidate
	n.leaderID = nil
	n.leader = nil
	n.election = &electionState{preVotesGranted: map[NodeID]struct{}{n.id: {}}}
	n.resetElectionDeadline(now)

	if !n.cfg.PreVoteEnabled {
		return n.becomeCandidate()
	}

	if n.quorum() <= 1 {
		// Single-voter cluster: we already hold quorum with our own vote.
		return n.becomeCandidate()
	}

	prospective := n.currentTerm + 1
	var out []Outbound
	for _, p := range n.peers {
		out = append(out, Outbound{To: p, Message: PreVoteRequest(prospective, n.id, n.log.lastIndex(), n.log.lastTerm())})
	}
	return out
}

func (n *Node) becomeCandidate() []Outbound {
	n.role = Candidate
	n.currentTerm++
	self := n.id
	n.votedFor = &self
	n.election = &electionState{votesGranted: map[NodeID]struct{}{n.id: {}}}
	n.leader = nil
	n.leaderID = nil
	if !n.persistMeta() {
		return nil
	}
	n.resetElectionDeadline(n.ports.Clock.NowMs())

	if n.quorum() <= 1 {
		return n.becomeLeader()
	}

	var out []Outbound
	for _, p := range n.peers {
		out = append(out, Outbound{To: p, Message: VoteRequest(n.currentTerm, n.id, n.log.lastIndex(), n.log.lastTerm())})
	}
	return out
}

func (n *Node) becomeLeader() []Outbound {
	n.role = Leader
	self := n.id
	n.leaderID = &self
	n.election = nil

	ls := &leaderState{nextIndex: map[NodeID]Index{}, matchIndex: map[NodeID]Index{}}
	for _, p := range n.peers {
		ls.nextIndex[p] = n.log.lastIndex() + 1
		ls.matchIndex[p] = 0
	}
	n.leader = ls

	now := n.ports.Clock.NowMs()
	out := n.broadcastAppendEntries()
	n.nextHeartbeatAt = now + n.cfg.HeartbeatInterval
	n.lastHeartbeatAt = &now
	return out
}

// broadcastAppendEntries sends an AppendEntries (heartbeat or carrying
// pending entries) to every peer, per each peer's own nextIndex.
func (n *Node) broadcastAppendEntries() []Outbound {
	var out []Outbound
	for _, p := range n.peers {
		out = append(out, n.appendEntriesFor(p))
	}
	return out
}

func (n *Node) appendEntriesFor(p NodeID) Outbound {
	next := n.leader.nextIndex[p]
	if next == 0 {
		next = 1
	}
	prevIndex := next - 1
	prevTerm, _ := n.log.termAt(prevIndex)

	entries := n.log.entriesFrom(next)
	if len(entries) > n.cfg.MaxEntriesPerAppend {
		entries = entries[:n.cfg.MaxEntriesPerAppend]
	}

	return Outbound{
		To:      p,
		Message: AppendEntriesRequest(n.currentTerm, n.id, prevIndex, prevTerm, entries, n.log.commitIndex),
	}
}

// ============================================================================
// SubmitCommand
// ============================================================================

// SubmitCommand appends command to the leader's log and persists it.
// Replication happens lazily on the next Tick/ack cycle rather than
// synchronously here, matching Tick's role as the sole driver of
// outbound traffic pacing; callers that need immediate replication
// should Tick the node right after a successful submit.
func (n *Node) SubmitCommand(command []byte) (Index, error) {
	if n.failed {
		return 0, n.failedErr
	}
	if n.role != Leader {
		hint := ""
		if n.leaderID != nil {
			hint = string(*n.leaderID)
		}
		return 0, errors.NotLeader(hint)
	}

	idx := n.log.appendLeader(n.currentTerm, command)
	if err := n.ports.Storage.AppendLog([]LogEntry{{Term: n.currentTerm, Index: idx, Command: command}}); err != nil {
		n.fail(errors.IOFailed("append log", err))
		return 0, n.failedErr
	}
	n.leader.matchIndex[n.id] = idx
	return idx, nil
}

// ============================================================================
// OnMessage
// ============================================================================

// OnMessage processes one inbound message from a peer and returns any
// outbound messages it produces. It is mutually exclusive with Tick and
// SubmitCommand.
func (n *Node) OnMessage(from NodeID, msg Message) []Outbound {
	if n.failed {
		return nil
	}

	now := n.ports.Clock.NowMs()

	// §4.3.2 universal pre-processing, with the PreVote exception: PreVote
	// messages carry an advisory term field that must never trigger a
	// step-down or a rejection-by-term on either side (§9 design note).
	if msg.Kind != KindPreVoteRequest && msg.Kind != KindPreVoteResponse {
		if msg.Term > n.currentTerm {
			if !n.becomeFollower(now, msg.Term, nil) {
				return nil
			}
		} else if msg.Term < n.currentTerm {
			return n.rejectStaleTerm(from, msg)
		}
	}

	switch msg.Kind {
	case KindPreVoteRequest:
		return n.handlePreVoteRequest(now, from, msg)
	case KindPreVoteResponse:
		return n.handlePreVoteResponse(now, from, msg)
	case KindVoteRequest:
		return n.handleVoteRequest(now, from, msg)
	case KindVoteResponse:
		return n.handleVoteResponse(from, msg)
	case KindAppendEntriesRequest:
		return n.handleAppendEntriesRequest(now, from, msg)
	case KindAppendEntriesResponse:
		return n.handleAppendEntriesResponse(from, msg)
	default:
		// Unknown variant: ignore rather than crash. A host-level
		// transport decoder is expected to have already rejected this
		// with errors.UnknownRPC before it ever reaches the core.
		return nil
	}
}

// rejectStaleTerm handles §4.3.2 step 2 for a message whose term is below
// currentTerm. Only request-shaped variants get a rejection response; a
// stale response (the peer answering a vote/append request we no longer
// care about) is simply dropped, since nothing is waiting to pair it
// with a fresher retry.
func (n *Node) rejectStaleTerm(from NodeID, msg Message) []Outbound {
	switch msg.Kind {
	case KindVoteRequest:
		return []Outbound{{To: from, Message: VoteResponse(n.currentTerm, false)}}
	case KindAppendEntriesRequest:
		return []Outbound{{To: from, Message: AppendEntriesResponse(n.currentTerm, false, 0, 0, 0)}}
	default:
		return nil
	}
}

// ============================================================================
// Follower handling (§4.3.3)
// ============================================================================

func (n *Node) handlePreVoteRequest(now Millis, from NodeID, msg Message) []Outbound {
	recentLeaderContact := n.lastHeartbeatAt != nil && now-*n.lastHeartbeatAt < n.cfg.recencyWindow()

	grantedByTerm := msg.Term > n.currentTerm || (msg.Term == n.currentTerm && !recentLeaderContact)
	if recentLeaderContact {
		grantedByTerm = false
	}
	upToDate := isUpToDate(msg.LastLogTerm, msg.LastLogIndex, n.log.lastTerm(), n.log.lastIndex())

	granted := grantedByTerm && upToDate
	return []Outbound{{To: from, Message: PreVoteResponse(n.currentTerm, granted)}}
}

func (n *Node) handleVoteRequest(now Millis, from NodeID, msg Message) []Outbound {
	canVote := n.votedFor == nil || *n.votedFor == msg.CandidateID
	upToDate := isUpToDate(msg.LastLogTerm, msg.LastLogIndex, n.log.lastTerm(), n.log.lastIndex())

	if canVote && upToDate {
		cand := msg.CandidateID
		n.votedFor = &cand
		if !n.persistMeta() {
			return nil
		}
		n.resetElectionDeadline(now)
		return []Outbound{{To: from, Message: VoteResponse(n.currentTerm, true)}}
	}
	return []Outbound{{To: from, Message: VoteResponse(n.currentTerm, false)}}
}

func (n *Node) handleAppendEntriesRequest(now Millis, from NodeID, msg Message) []Outbound {
	if msg.Term < n.currentTerm {
		return []Outbound{{To: from, Message: AppendEntriesResponse(n.currentTerm, false, 0, 0, 0)}}
	}

	// term == currentTerm (a higher term was already normalized to
	// Follower by the universal pre-processing above). Accept this
	// sender as leader and reset the election clock regardless of role:
	// PreCandidate/Candidate must also step down on a valid AppendEntries
	// from the term's legitimate leader (§4.3.4, §4.3.5).
	if n.role != Follower {
		n.role = Follower
		n.election = nil
		n.leader = nil
	}
	leader := from
	n.leaderID = &leader
	heartbeatTime := now
	n.lastHeartbeatAt = &heartbeatTime
	n.resetElectionDeadline(now)

	if !n.log.matches(msg.PrevLogIndex, msg.PrevLogTerm) {
		conflictIndex, conflictTerm := n.conflictHint(msg.PrevLogIndex)
		return []Outbound{{To: from, Message: AppendEntriesResponse(n.currentTerm, false, 0, conflictIndex, conflictTerm)}}
	}

	if len(msg.Entries) > 0 {
		result := n.log.appendFollower(msg.PrevLogIndex, msg.PrevLogTerm, msg.Entries)
		if result.TruncatedFrom > 0 {
			if err := n.ports.Storage.TruncateLog(result.TruncatedFrom); err != nil {
				n.fail(errors.IOFailed("truncate log", err))
				return nil
			}
		}
		if len(result.Appended) > 0 {
			if err := n.ports.Storage.AppendLog(result.Appended); err != nil {
				n.fail(errors.IOFailed("append log", err))
				return nil
			}
		}
	}

	n.log.commitTo(msg.LeaderCommit)

	return []Outbound{{To: from, Message: AppendEntriesResponse(n.currentTerm, true, n.log.lastIndex(), 0, 0)}}
}

// conflictHint computes the AppendEntries conflict-index hint per §4.3.3:
// the index of the first entry of the term found at prevLogIndex, or
// lastIndex+1 if our log is shorter than prevLogIndex.
func (n *Node) conflictHint(prevLogIndex Index) (Index, Term) {
	if prevLogIndex > n.log.lastIndex() {
		return n.log.lastIndex() + 1, 0
	}
	t, ok := n.log.termAt(prevLogIndex)
	if !ok {
		return n.log.lastIndex() + 1, 0
	}
	return n.log.firstIndexOfTerm(t), t
}

// ============================================================================
// PreCandidate handling (§4.3.4)
// ============================================================================

func (n *Node) handlePreVoteResponse(now Millis, from NodeID, msg Message) []Outbound {
	if n.role != PreCandidate || n.election == nil {
		return nil
	}
	if !msg.VoteGranted {
		return nil
	}
	n.election.preVotesGranted[from] = struct{}{}
	if len(n.election.preVotesGranted) >= n.quorum() {
		return n.becomeCandidate()
	}
	return nil
}

// ============================================================================
// Candidate handling (§4.3.5)
// ============================================================================

func (n *Node) handleVoteResponse(from NodeID, msg Message) []Outbound {
	if n.role != Candidate || n.election == nil {
		return nil
	}
	if msg.Term != n.currentTerm || !msg.VoteGranted {
		return nil
	}
	n.election.votesGranted[from] = struct{}{}
	if len(n.election.votesGranted) >= n.quorum() {
		return n.becomeLeader()
	}
	return nil
}

// ============================================================================
// Leader handling (§4.3.6)
// ============================================================================

func (n *Node) handleAppendEntriesResponse(from NodeID, msg Message) []Outbound {
	if n.role != Leader || n.leader == nil || msg.Term != n.currentTerm {
		return nil
	}

	if msg.Success {
		if msg.MatchIndex > n.leader.matchIndex[from] {
			n.leader.matchIndex[from] = msg.MatchIndex
		}
		n.leader.nextIndex[from] = n.leader.matchIndex[from] + 1
		n.advanceCommit()
		return nil
	}

	if msg.ConflictIndex > 0 {
		n.leader.nextIndex[from] = msg.ConflictIndex
	} else if n.leader.nextIndex[from] > 1 {
		n.leader.nextIndex[from]--
	}
	// Retry happens on the next heartbeat tick; no immediate resend here
	// keeps OnMessage free of its own timing decisions.
	return nil
}

// advanceCommit implements the same-term commit rule (§4.3.6, S6): find
// the largest N such that a quorum (including self) has matchIndex >= N
// and log[N].term == currentTerm, then raise commitIndex to N.
func (n *Node) advanceCommit() {
	n.leader.matchIndex[n.id] = n.log.lastIndex()

	for N := n.log.lastIndex(); N > n.log.commitIndex; N-- {
		t, ok := n.log.termAt(N)
		if !ok || t != n.currentTerm {
			continue
		}
		count := 0
		for _, idx := range n.leader.matchIndex {
			if idx >= N {
				count++
			}
		}
		if count >= n.quorum() {
			n.log.commitTo(N)
			return
		}
	}
}
