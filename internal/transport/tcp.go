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
	"crypto/tls"
	"net"
	"sync"
	"time"

	"raftkit/internal/compression"
	"raftkit/internal/errors"
	"raftkit/internal/logging"
	"raftkit/internal/protocol"
	"raftkit/internal/raft"
)

const (
	dialTimeout  = 500 * time.Millisecond
	writeTimeout = 2 * time.Second
	readTimeout  = 10 * time.Second
)

// TCPConfig configures a TCP transport.
type TCPConfig struct {
	// SelfID is this node's own NodeID, stamped onto every outbound
	// Envelope so the receiver knows who sent it.
	SelfID raft.NodeID
	// ListenAddr is this node's bind address, e.g. ":9998".
	ListenAddr string
	// Peers maps every other cluster member's NodeID to its dial address.
	Peers map[raft.NodeID]string
	// TLSConfig, if non-nil, wraps both the listener and outbound
	// dials in TLS (see internal/tls for self-signed cert generation).
	TLSConfig *tls.Config
	// Compressor, if non-nil, compresses RPC payloads with Algo.
	Compressor *compression.Compressor
	Algo       compression.Algorithm
}

// TCP is a Transport that dials one connection per RPC, mirroring the
// teacher's cluster.RaftNode wire pattern: small, infrequent messages
// in a 3-7 node cluster don't justify held-open connection pooling.
type TCP struct {
	cfg      TCPConfig
	selfID   raft.NodeID
	listener net.Listener
	inbox    chan Envelope
	log      *logging.Logger

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewTCP starts a listener on cfg.ListenAddr and begins accepting
// incoming RPC connections.
func NewTCP(cfg TCPConfig) (*TCP, error) {
	var ln net.Listener
	var err error
	if cfg.TLSConfig != nil {
		ln, err = tls.Listen("tcp", cfg.ListenAddr, cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", cfg.ListenAddr)
	}
	if err != nil {
		return nil, errors.NewTransportError("listen on " + cfg.ListenAddr + ": " + err.Error())
	}

	t := &TCP{
		cfg:      cfg,
		selfID:   cfg.SelfID,
		listener: ln,
		inbox:    make(chan Envelope, 256),
		log:      logging.NewLogger("transport.tcp"),
		stopCh:   make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()
	return t, nil
}

func (t *TCP) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
				t.log.Warn("accept failed", "error", err)
				continue
			}
		}
		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

func (t *TCP) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(readTimeout))

	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		t.log.Debug("read message failed", "error", err)
		return
	}
	if msg.Header.Type != protocol.MsgRPC {
		return
	}

	from, rmsg, err := protocol.DecodeCompressedRPC(msg.Payload, msg.Header.Flags, t.cfg.Compressor, t.cfg.Algo)
	if err != nil {
		t.log.Warn("decode rpc failed", "error", err)
		return
	}

	select {
	case t.inbox <- Envelope{From: from, Msg: rmsg}:
	default:
		t.log.Warn("inbox full, dropping message", "from", from)
	}
}

// Send implements Transport, dialing a fresh connection to "to".
func (t *TCP) Send(to raft.NodeID, msg raft.Message) error {
	addr, ok := t.cfg.Peers[to]
	if !ok {
		return errors.NewTransportError("no address known for peer " + string(to))
	}

	var conn net.Conn
	var err error
	if t.cfg.TLSConfig != nil {
		d := &net.Dialer{Timeout: dialTimeout}
		conn, err = tls.DialWithDialer(d, "tcp", addr, t.cfg.TLSConfig)
	} else {
		conn, err = net.DialTimeout("tcp", addr, dialTimeout)
	}
	if err != nil {
		return errors.DialFailed(addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(writeTimeout))

	payload, flags, err := protocol.EncodeCompressedRPC(t.selfID, msg, t.cfg.Compressor, t.cfg.Algo)
	if err != nil {
		return errors.FramingError(err.Error())
	}
	if err := protocol.WriteMessage(conn, protocol.MsgRPC, flags, payload); err != nil {
		return errors.NewTransportError("write to " + addr + ": " + err.Error())
	}
	return nil
}

// Inbox implements Transport.
func (t *TCP) Inbox() <-chan Envelope {
	return t.inbox
}

// Close implements Transport.
func (t *TCP) Close() error {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.listener.Close()
	})
	t.wg.Wait()
	return nil
}
