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

package health

import (
	"testing"
	"time"
)

func TestPhiBeforeMinSamplesIsZero(t *testing.T) {
	d := NewPhiAccrualDetector(Config{Threshold: 8, MinSamples: 10, MaxSamples: 100})
	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		d.Heartbeat(now)
		now = now.Add(50 * time.Millisecond)
	}
	if d.Phi(now) != 0 {
		t.Errorf("expected phi 0 before min samples, got %f", d.Phi(now))
	}
}

func TestPhiRisesWithSilence(t *testing.T) {
	d := NewPhiAccrualDetector(Config{Threshold: 8, MinSamples: 5, MaxSamples: 100})
	now := time.Unix(0, 0)
	for i := 0; i < 20; i++ {
		d.Heartbeat(now)
		now = now.Add(50 * time.Millisecond)
	}

	soon := now // one regular interval after the last heartbeat
	silent := now.Add(5 * time.Second)

	if d.Suspected(soon) {
		t.Error("expected not suspected shortly after a regular heartbeat")
	}
	if !d.Suspected(silent) {
		t.Error("expected suspected after a long silence relative to the heartbeat interval")
	}
	if d.Phi(silent) <= d.Phi(soon) {
		t.Errorf("expected phi to grow with elapsed silence: phi(soon)=%f phi(silent)=%f", d.Phi(soon), d.Phi(silent))
	}
}

func TestMonitorPerPeer(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	now := time.Unix(0, 0)

	for i := 0; i < 15; i++ {
		m.RecordHeartbeat("A", now)
		now = now.Add(20 * time.Millisecond)
	}

	if m.Suspected("B", now) {
		t.Error("unknown peer should never be reported as suspected")
	}
	if m.Suspected("A", now) {
		t.Error("peer A should not be suspected right after a heartbeat")
	}
	if !m.Suspected("A", now.Add(10*time.Second)) {
		t.Error("peer A should be suspected after a long silence")
	}
}
