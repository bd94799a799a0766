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

package main

import (
	"fmt"
	"sync"
	"time"

	"raftkit/internal/health"
	"raftkit/internal/logging"
	"raftkit/internal/raft"
	"raftkit/internal/transport"
)

// tickInterval is the wall-clock cadence the driver calls Node.Tick at.
// It must be well under cfg.HeartbeatInterval so the node's own Raft
// timers (not this loop) govern protocol timing.
const tickInterval = 10 * time.Millisecond

// driver runs one raft.Node from two goroutines: a ticker that calls
// Tick and a reader that drains the Transport's Inbox into OnMessage;
// each logs newly committed entries right after its call. d.mu
// serializes every call into the node, so internal/raft itself stays
// single-threaded (Tick/OnMessage are never called concurrently here);
// driver is the thin host-side glue the package doc comment defers to
// "the host process".
type driver struct {
	id    raft.NodeID
	node  *raft.Node
	trans transport.Transport
	mon   *health.Monitor
	log   *logging.Logger

	mu       sync.Mutex
	lastSeen raft.Index
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func newDriver(id raft.NodeID, node *raft.Node, trans transport.Transport) *driver {
	return &driver{
		id:     id,
		node:   node,
		trans:  trans,
		mon:    health.NewMonitor(health.DefaultConfig()),
		log:    logging.NewLogger("raftctl.driver").With("node", string(id)),
		stopCh: make(chan struct{}),
	}
}

// run drives the node until stop is called.
func (d *driver) run() {
	d.wg.Add(2)
	go d.tickLoop()
	go d.inboxLoop()
}

func (d *driver) stop() {
	close(d.stopCh)
	d.trans.Close()
	d.wg.Wait()
}

func (d *driver) tickLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			now := raft.Millis(time.Since(start).Milliseconds())
			d.mu.Lock()
			out := d.node.Tick(now)
			d.drainCommitted()
			d.mu.Unlock()
			transport.Deliver(d.trans, out)
		}
	}
}

func (d *driver) inboxLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			return
		case env := <-d.trans.Inbox():
			d.mon.RecordHeartbeat(string(env.From), time.Now())
			d.mu.Lock()
			out := d.node.OnMessage(env.From, env.Msg)
			d.drainCommitted()
			d.mu.Unlock()
			transport.Deliver(d.trans, out)
		}
	}
}

// drainCommitted logs newly committed entries. Must be called with d.mu held.
func (d *driver) drainCommitted() {
	committed := d.node.CommittedEntriesSince(d.lastSeen)
	for _, e := range committed {
		d.log.Info("entry committed", "index", e.Index, "term", e.Term, "bytes", len(e.Command))
		d.lastSeen = e.Index
	}
}

// submit proposes command through the node, serialized against Tick/OnMessage.
func (d *driver) submit(command []byte) (raft.Index, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.node.SubmitCommand(command)
}

func (d *driver) status() raft.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.node.Status()
}

func formatStatus(s raft.Status) string {
	leader := "none"
	if s.LeaderID != nil {
		leader = string(*s.LeaderID)
	}
	return fmt.Sprintf("id=%s role=%s term=%d lastLogIndex=%d commitIndex=%d leader=%s",
		s.ID, s.Role, s.Term, s.LastLogIndex, s.CommitIndex, leader)
}
