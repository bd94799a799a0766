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

package protocol

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"raftkit/internal/compression"
	"raftkit/internal/raft"
)

// Envelope is the gob-serializable wire form of raft.Message. raft.Message
// itself stays free of struct tags or encoding concerns (§4.2); Envelope
// is the one place that format lives, matching the teacher's layering of
// wire concerns into internal/protocol rather than into domain types.
type Envelope struct {
	From raft.NodeID
	Msg  raft.Message
}

// EncodeRPC serializes an envelope with gob, the same encoding the
// standard library offers out of the box for Go-to-Go wire traffic and
// the lowest-friction choice for a closed, Go-only RPC alphabet.
func EncodeRPC(from raft.NodeID, msg raft.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(Envelope{From: from, Msg: msg}); err != nil {
		return nil, fmt.Errorf("encode rpc envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRPC reverses EncodeRPC.
func DecodeRPC(payload []byte) (raft.NodeID, raft.Message, error) {
	var env Envelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return "", raft.Message{}, fmt.Errorf("decode rpc envelope: %w", err)
	}
	return env.From, env.Msg, nil
}

// EncodeCompressedRPC encodes an RPC envelope and, when c and algo are
// set, compresses it with c and returns FlagCompressed. The algorithm is
// not recorded on the wire: the receiver must pass the same algo to
// DecodeCompressedRPC.
//
// Payloads shorter than c.MinSize() are sent as-is: a heartbeat-sized
// empty AppendEntries costs more CPU to run through gzip/zstd/etc. than
// it would ever save on the wire.
func EncodeCompressedRPC(from raft.NodeID, msg raft.Message, c *compression.Compressor, algo compression.Algorithm) ([]byte, MessageFlag, error) {
	raw, err := EncodeRPC(from, msg)
	if err != nil {
		return nil, FlagNone, err
	}
	if c == nil || algo == compression.AlgorithmNone || len(raw) < c.MinSize() {
		return raw, FlagNone, nil
	}
	compressed, err := c.Compress(raw)
	if err != nil {
		return nil, FlagNone, fmt.Errorf("compress rpc payload: %w", err)
	}
	return compressed, FlagCompressed, nil
}

// DecodeCompressedRPC reverses EncodeCompressedRPC given the flags read
// off the wire header.
func DecodeCompressedRPC(payload []byte, flags MessageFlag, c *compression.Compressor, algo compression.Algorithm) (raft.NodeID, raft.Message, error) {
	if flags&FlagCompressed != 0 {
		if c == nil {
			return "", raft.Message{}, fmt.Errorf("received compressed payload with no compressor configured")
		}
		raw, err := c.Decompress(payload, algo)
		if err != nil {
			return "", raft.Message{}, fmt.Errorf("decompress rpc payload: %w", err)
		}
		payload = raw
	}
	return DecodeRPC(payload)
}
