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

	"raftkit/internal/compression"
	"raftkit/internal/raft"
)

func TestTCPSendAndReceiveRoundTrip(t *testing.T) {
	a, err := NewTCP(TCPConfig{SelfID: "a", ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewTCP a: %v", err)
	}
	defer a.Close()

	b, err := NewTCP(TCPConfig{SelfID: "b", ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewTCP b: %v", err)
	}
	defer b.Close()

	a.cfg.Peers = map[raft.NodeID]string{"b": b.listener.Addr().String()}

	msg := raft.VoteRequest(3, "a", 7, 2)
	if err := a.Send("b", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case env := <-b.Inbox():
		if env.From != "a" {
			t.Errorf("expected From=a, got %s", env.From)
		}
		if env.Msg.Kind != msg.Kind || env.Msg.Term != msg.Term {
			t.Errorf("round-tripped message mismatch: got %+v, want %+v", env.Msg, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TCP delivery")
	}
}

func TestTCPSendToUnknownPeerErrors(t *testing.T) {
	a, err := NewTCP(TCPConfig{SelfID: "a", ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewTCP: %v", err)
	}
	defer a.Close()

	if err := a.Send("ghost", raft.VoteRequest(1, "a", 0, 0)); err == nil {
		t.Fatal("expected an error sending to an unknown peer")
	}
}

func TestTCPCompressedRoundTrip(t *testing.T) {
	comp := compression.NewCompressor(compression.Config{Algorithm: compression.AlgorithmSnappy})

	a, err := NewTCP(TCPConfig{SelfID: "a", ListenAddr: "127.0.0.1:0", Compressor: comp, Algo: compression.AlgorithmSnappy})
	if err != nil {
		t.Fatalf("NewTCP a: %v", err)
	}
	defer a.Close()

	b, err := NewTCP(TCPConfig{SelfID: "b", ListenAddr: "127.0.0.1:0", Compressor: comp, Algo: compression.AlgorithmSnappy})
	if err != nil {
		t.Fatalf("NewTCP b: %v", err)
	}
	defer b.Close()

	a.cfg.Peers = map[raft.NodeID]string{"b": b.listener.Addr().String()}

	msg := raft.AppendEntriesRequest(2, "a", 5, 1, nil, 4)
	if err := a.Send("b", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case env := <-b.Inbox():
		if env.Msg.Term != msg.Term {
			t.Errorf("expected term %v, got %v", msg.Term, env.Msg.Term)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for compressed TCP delivery")
	}
}
