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

package transport

import (
	"testing"
	"time"

	"raftkit/internal/raft"
)

func TestDeliverSendsToEveryRegisteredPeer(t *testing.T) {
	net := NewNetwork()
	leader := net.NewBus("leader", 0)
	defer leader.Close()
	followers := []raft.NodeID{"b", "c", "d"}
	buses := make(map[raft.NodeID]*Bus, len(followers))
	for _, id := range followers {
		buses[id] = net.NewBus(id, 0)
		defer buses[id].Close()
	}

	out := make([]raft.Outbound, len(followers))
	for i, id := range followers {
		out[i] = raft.Outbound{To: id, Message: raft.PreVoteRequest(1, "leader", 0, 0)}
	}

	sent, failed := Deliver(leader, out)
	if sent != len(followers) || failed != 0 {
		t.Fatalf("expected sent=%d failed=0, got sent=%d failed=%d", len(followers), sent, failed)
	}

	for _, id := range followers {
		select {
		case env := <-buses[id].Inbox():
			if env.From != "leader" {
				t.Errorf("peer %s: expected From=leader, got %s", id, env.From)
			}
		case <-time.After(time.Second):
			t.Fatalf("peer %s: timed out waiting for delivery", id)
		}
	}
}

func TestDeliverCountsFailedSendsWithoutAbortingTheBatch(t *testing.T) {
	net := NewNetwork()
	leader := net.NewBus("leader", 0)
	defer leader.Close()
	b := net.NewBus("b", 0)
	defer b.Close()

	out := []raft.Outbound{
		{To: "b", Message: raft.PreVoteRequest(1, "leader", 0, 0)},
		{To: "ghost", Message: raft.PreVoteRequest(1, "leader", 0, 0)},
	}

	sent, failed := Deliver(leader, out)
	if sent != 1 || failed != 1 {
		t.Fatalf("expected sent=1 failed=1, got sent=%d failed=%d", sent, failed)
	}

	select {
	case <-b.Inbox():
	case <-time.After(time.Second):
		t.Fatal("expected delivery to the reachable peer despite the other failing")
	}
}
