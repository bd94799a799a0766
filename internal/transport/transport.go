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
Package transport carries raft.Message RPCs between cluster members.
internal/raft never imports this package: a Node only returns
raft.Outbound values from Tick/OnMessage/SubmitCommand, and it is the
host process's job to hand those to a Transport and to feed received
envelopes back into OnMessage. This keeps the consensus core's Tick/
OnMessage contract free of goroutines, sockets, and I/O errors (§4.1).

Two adapters are provided: Bus, an in-process fan-out for tests and
single-process demos, and TCP, a one-RPC-per-connection network
transport framed with internal/protocol and optionally secured with
internal/tls.
*/
package transport

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"raftkit/internal/raft"
)

// Envelope is a received RPC: the sender and the decoded raft.Message.
type Envelope struct {
	From raft.NodeID
	Msg  raft.Message
}

// Transport sends raft.Message RPCs to named peers and delivers
// received ones on Inbox. Implementations must be safe for concurrent
// Send calls; Inbox is read by a single driver goroutine.
type Transport interface {
	// Send delivers msg to peer "to". Implementations may drop
	// messages to unreachable peers rather than blocking or retrying:
	// Raft already tolerates lost messages via its own retry-by-tick
	// behavior (§4.5), so Send is best-effort.
	Send(to raft.NodeID, msg raft.Message) error

	// Inbox returns the channel of envelopes received from peers.
	Inbox() <-chan Envelope

	// Close releases any sockets or goroutines owned by the transport.
	Close() error
}

// Deliver routes every Outbound from a Tick/OnMessage/SubmitCommand
// call through t, fanning sends out concurrently so one slow or
// unreachable peer (e.g. a dial timeout on TCP) doesn't delay delivery
// to the rest of a heartbeat batch. Send errors are swallowed (logged
// by the caller via the returned count) per the best-effort contract
// described on Transport.Send.
func Deliver(t Transport, out []raft.Outbound) (sent, failed int) {
	var sentCount, failedCount int64
	var g errgroup.Group
	for _, ob := range out {
		ob := ob
		g.Go(func() error {
			if err := t.Send(ob.To, ob.Message); err != nil {
				atomic.AddInt64(&failedCount, 1)
				return nil
			}
			atomic.AddInt64(&sentCount, 1)
			return nil
		})
	}
	g.Wait()
	return int(sentCount), int(failedCount)
}
