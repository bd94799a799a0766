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
	"sync"

	"raftkit/internal/errors"
	"raftkit/internal/raft"
)

// Network is a shared in-process registry of Bus endpoints, one per
// simulated node. It is the in-memory analogue of a real network: Bus
// endpoints registered on the same Network can reach each other by
// NodeID without a socket in between. Useful for cmd/raftctl's
// in-memory demo mode and for tests that want goroutine-driven nodes
// without binding real ports.
type Network struct {
	mu        sync.RWMutex
	endpoints map[raft.NodeID]*Bus

	// partitioned holds NodeIDs currently cut off from all peers, for
	// tests that exercise partition-and-heal behavior.
	partitioned map[raft.NodeID]bool
}

// NewNetwork creates an empty in-memory network.
func NewNetwork() *Network {
	return &Network{
		endpoints:   make(map[raft.NodeID]*Bus),
		partitioned: make(map[raft.NodeID]bool),
	}
}

// Partition cuts id off from every other registered endpoint until Heal
// is called.
func (n *Network) Partition(id raft.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitioned[id] = true
}

// Heal restores id's connectivity to the network.
func (n *Network) Heal(id raft.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.partitioned, id)
}

func (n *Network) isPartitioned(id raft.NodeID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.partitioned[id]
}

// NewBus registers and returns a Bus for id on this network.
func (n *Network) NewBus(id raft.NodeID, queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	b := &Bus{
		id:      id,
		network: n,
		inbox:   make(chan Envelope, queueSize),
	}
	n.mu.Lock()
	n.endpoints[id] = b
	n.mu.Unlock()
	return b
}

// Bus is an in-process Transport: Send looks up the destination's Bus
// on the shared Network and pushes directly onto its inbox channel.
type Bus struct {
	id      raft.NodeID
	network *Network
	inbox   chan Envelope
	closed  bool
	mu      sync.Mutex
}

// Send implements Transport.
func (b *Bus) Send(to raft.NodeID, msg raft.Message) error {
	if b.network.isPartitioned(b.id) || b.network.isPartitioned(to) {
		return nil // best-effort per Transport.Send: dropped, not an error
	}

	b.network.mu.RLock()
	dst, ok := b.network.endpoints[to]
	b.network.mu.RUnlock()
	if !ok {
		return errors.NewTransportError("unknown peer " + string(to))
	}

	select {
	case dst.inbox <- Envelope{From: b.id, Msg: msg}:
		return nil
	default:
		return nil // full inbox: dropped, tolerated by Raft's retry-by-tick
	}
}

// Inbox implements Transport.
func (b *Bus) Inbox() <-chan Envelope {
	return b.inbox
}

// Close implements Transport.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	b.network.mu.Lock()
	delete(b.network.endpoints, b.id)
	b.network.mu.Unlock()
	return nil
}
