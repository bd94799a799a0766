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
Package health provides passive failure-suspicion observability for a
raftkit cluster, using a phi-accrual detector fed by transport-level
heartbeats.

This is deliberately NOT wired into the consensus core: raftkit's
election timeout (internal/raft) is the only thing that ever decides a
leader is gone, per §4.3.7 and the single-threaded Tick/OnMessage
contract. A PhiAccrualDetector here only turns raw heartbeat timing into
a suspicion score for dashboards and logs (cmd/raftctl's driver feeds a
Monitor from inbound messages; its status view does not show the score) —
it never calls SubmitCommand, never forces a role transition, and holds
no reference to a Node.
*/
package health

import (
	"math"
	"sync"
	"time"
)

// Config holds configuration for a phi-accrual detector.
type Config struct {
	Threshold  float64
	MinSamples int
	MaxSamples int
}

// DefaultConfig returns sensible defaults, tuned for a heartbeat interval
// in the tens-of-milliseconds range (matching raft.Config.HeartbeatInterval).
func DefaultConfig() Config {
	return Config{
		Threshold:  8.0,
		MinSamples: 10,
		MaxSamples: 1000,
	}
}

// PhiAccrualDetector implements the phi-accrual failure detector: instead
// of a fixed timeout, it tracks the distribution of recent heartbeat
// intervals and computes a continuous suspicion level (phi) from how
// unusual the current gap since the last heartbeat is.
type PhiAccrualDetector struct {
	mu sync.RWMutex

	cfg       Config
	intervals []float64
	lastBeat  time.Time
	mean      float64
	variance  float64
}

// NewPhiAccrualDetector creates a detector for a single peer.
func NewPhiAccrualDetector(cfg Config) *PhiAccrualDetector {
	return &PhiAccrualDetector{
		cfg:       cfg,
		intervals: make([]float64, 0, cfg.MaxSamples),
	}
}

// Heartbeat records receipt of a heartbeat (an AppendEntries, a Ping
// frame, or any other liveness signal from the peer) at now.
func (d *PhiAccrualDetector) Heartbeat(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastBeat.IsZero() {
		interval := now.Sub(d.lastBeat).Seconds() * 1000
		d.intervals = append(d.intervals, interval)
		if len(d.intervals) > d.cfg.MaxSamples {
			d.intervals = d.intervals[1:]
		}
		d.updateStats()
	}
	d.lastBeat = now
}

func (d *PhiAccrualDetector) updateStats() {
	if len(d.intervals) == 0 {
		return
	}
	sum := 0.0
	for _, v := range d.intervals {
		sum += v
	}
	mean := sum / float64(len(d.intervals))

	sumSq := 0.0
	for _, v := range d.intervals {
		diff := v - mean
		sumSq += diff * diff
	}

	d.mean = mean
	d.variance = sumSq / float64(len(d.intervals))
}

// Phi returns the current suspicion level as of now: 0 if too few
// samples have been collected yet, threshold+1 if no heartbeat has ever
// arrived, otherwise a value that grows the longer now outpaces the
// observed heartbeat distribution.
func (d *PhiAccrualDetector) Phi(now time.Time) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.intervals) < d.cfg.MinSamples {
		return 0
	}
	if d.lastBeat.IsZero() {
		return d.cfg.Threshold + 1
	}

	timeSinceLast := now.Sub(d.lastBeat).Seconds() * 1000
	return d.phi(timeSinceLast)
}

// phi evaluates the phi-accrual formula (Hayashibara et al.) using a
// logistic approximation of the normal CDF.
func (d *PhiAccrualDetector) phi(timeSinceLast float64) float64 {
	stdDev := math.Sqrt(d.variance)
	if stdDev < 1 {
		stdDev = 1
	}

	y := (timeSinceLast - d.mean) / stdDev
	e := math.Exp(-y * (1.5976 + 0.070566*y*y))
	if timeSinceLast > d.mean {
		return -math.Log10(e / (1 + e))
	}
	return -math.Log10(1 - 1/(1+e))
}

// Suspected reports whether Phi(now) exceeds the configured threshold.
func (d *PhiAccrualDetector) Suspected(now time.Time) bool {
	return d.Phi(now) > d.cfg.Threshold
}

// Monitor tracks one PhiAccrualDetector per cluster peer, fed by the
// transport layer on every received frame. It is pure observability: a
// host can surface Monitor.Suspected(peer) in logs or a status endpoint,
// but nothing in internal/raft consults it.
type Monitor struct {
	cfg       Config
	mu        sync.Mutex
	detectors map[string]*PhiAccrualDetector
}

// NewMonitor creates an empty per-peer suspicion monitor.
func NewMonitor(cfg Config) *Monitor {
	return &Monitor{cfg: cfg, detectors: make(map[string]*PhiAccrualDetector)}
}

// RecordHeartbeat feeds one liveness observation for peer.
func (m *Monitor) RecordHeartbeat(peer string, now time.Time) {
	m.mu.Lock()
	d, ok := m.detectors[peer]
	if !ok {
		d = NewPhiAccrualDetector(m.cfg)
		m.detectors[peer] = d
	}
	m.mu.Unlock()
	d.Heartbeat(now)
}

// Suspected reports whether peer currently looks unreachable. Unknown
// peers (no heartbeat ever recorded) are reported as not suspected,
// since there is no basis yet for a suspicion score.
func (m *Monitor) Suspected(peer string, now time.Time) bool {
	m.mu.Lock()
	d, ok := m.detectors[peer]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return d.Suspected(now)
}

// Phi returns the current suspicion score for peer, or 0 if unknown.
func (m *Monitor) Phi(peer string, now time.Time) float64 {
	m.mu.Lock()
	d, ok := m.detectors[peer]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return d.Phi(now)
}
