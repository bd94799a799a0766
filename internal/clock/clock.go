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
Package clock provides the production Clock and Random adapters that
satisfy internal/raft's Ports interfaces. The core never reads the wall
clock or a PRNG directly (§5); every timestamp and every randomized
timeout reaches it through here, the same pattern the test harness's
scriptedClock/scriptedRandom use for determinism — this package is their
host-facing counterpart.
*/
package clock

import (
	"math/rand"
	"sync"
	"time"

	"raftkit/internal/raft"
)

// System is a raft.Clock backed by the monotonic wall clock, anchored at
// construction time so NowMs() returns small, log-friendly values
// instead of a giant Unix epoch millisecond count.
type System struct {
	epoch time.Time
}

// NewSystem creates a System clock anchored at the current instant.
func NewSystem() *System {
	return &System{epoch: time.Now()}
}

// NowMs returns milliseconds elapsed since the clock was constructed.
func (c *System) NowMs() raft.Millis {
	return raft.Millis(time.Since(c.epoch).Milliseconds())
}

// MathRandom is a raft.Random backed by math/rand, sufficient for
// election-timeout jitter where the randomness only needs to avoid
// synchronized elections across peers, not resist an adversary (§1
// Non-goals: no Byzantine tolerance).
type MathRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMathRandom seeds a MathRandom from the current time. Each Node
// should get its own instance so peers don't draw identical sequences.
func NewMathRandom() *MathRandom {
	return &MathRandom{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// UniformMs returns a uniformly distributed value in [min, max].
func (r *MathRandom) UniformMs(min, max raft.Millis) raft.Millis {
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	span := int64(max - min)
	return min + raft.Millis(r.rnd.Int63n(span+1))
}
