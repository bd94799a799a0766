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

// Config holds the tunable parameters of a Node's election/heartbeat
// timing and replication batching. The zero Config is not valid; use
// DefaultConfig and override only what you need.
type Config struct {
	ElectionTimeoutMin Millis
	ElectionTimeoutMax Millis
	HeartbeatInterval  Millis
	MaxEntriesPerAppend int
	PreVoteEnabled      bool

	// PreVoteRecencyWindow bounds how long ago a leader contact must have
	// been to still cause a PreVoteRequest rejection (§9 Open Question:
	// the teacher's source rejects unconditionally whenever any leader
	// contact has ever been recorded; this package instead parameterizes
	// the window explicitly). Defaults to ElectionTimeoutMin.
	PreVoteRecencyWindow Millis
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ElectionTimeoutMin:   150,
		ElectionTimeoutMax:   300,
		HeartbeatInterval:    50,
		MaxEntriesPerAppend:  64,
		PreVoteEnabled:       true,
		PreVoteRecencyWindow: 150,
	}
}

// Validate checks the config invariants from §6: heartbeatInterval <
// electionTimeoutMin <= electionTimeoutMax; maxEntriesPerAppend >= 1.
func (c Config) Validate() error {
	if c.ElectionTimeoutMin == 0 {
		return errors.BadConfig("election_timeout_min", "must be greater than zero")
	}
	if c.ElectionTimeoutMax < c.ElectionTimeoutMin {
		return errors.BadConfig("election_timeout_max", "must be >= election_timeout_min")
	}
	if c.HeartbeatInterval >= c.ElectionTimeoutMin {
		return errors.BadConfig("heartbeat_interval", "must be strictly less than election_timeout_min")
	}
	if c.MaxEntriesPerAppend < 1 {
		return errors.BadConfig("max_entries_per_append", "must be at least 1")
	}
	return nil
}

func (c Config) recencyWindow() Millis {
	if c.PreVoteRecencyWindow > 0 {
		return c.PreVoteRecencyWindow
	}
	return c.ElectionTimeoutMin
}
