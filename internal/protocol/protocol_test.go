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
	"testing"

	"raftkit/internal/compression"
	"raftkit/internal/raft"
)

func TestWriteAndReadHeader(t *testing.T) {
	tests := []struct {
		name   string
		header Header
	}{
		{
			name: "RPC message",
			header: Header{
				Magic:   MagicByte,
				Version: ProtocolVersion,
				Type:    MsgRPC,
				Flags:   FlagNone,
				Length:  100,
			},
		},
		{
			name: "Hello message",
			header: Header{
				Magic:   MagicByte,
				Version: ProtocolVersion,
				Type:    MsgHello,
				Flags:   FlagNone,
				Length:  50,
			},
		},
		{
			name: "Compressed message",
			header: Header{
				Magic:   MagicByte,
				Version: ProtocolVersion,
				Type:    MsgRPC,
				Flags:   FlagCompressed,
				Length:  1000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			if err := WriteHeader(buf, tt.header); err != nil {
				t.Fatalf("WriteHeader failed: %v", err)
			}

			readHeader, err := ReadHeader(buf)
			if err != nil {
				t.Fatalf("ReadHeader failed: %v", err)
			}

			if readHeader != tt.header {
				t.Errorf("header mismatch: got %+v, want %+v", readHeader, tt.header)
			}
		})
	}
}

func TestWriteAndReadMessage(t *testing.T) {
	payload, err := EncodeRPC("A", raft.VoteRequest(1, "A", 0, 0))
	if err != nil {
		t.Fatalf("EncodeRPC failed: %v", err)
	}

	buf := new(bytes.Buffer)
	if err := WriteMessage(buf, MsgRPC, FlagNone, payload); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	msg, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	if msg.Header.Type != MsgRPC {
		t.Errorf("Type mismatch: got %x, want %x", msg.Header.Type, MsgRPC)
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Errorf("payload round-trip mismatch")
	}

	from, decoded, err := DecodeRPC(msg.Payload)
	if err != nil {
		t.Fatalf("DecodeRPC failed: %v", err)
	}
	if from != "A" || decoded.Kind != raft.KindVoteRequest || decoded.Term != 1 {
		t.Errorf("decoded envelope mismatch: from=%s msg=%+v", from, decoded)
	}
}

func TestInvalidMagicByte(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00})

	_, err := ReadHeader(buf)
	if err != ErrInvalidMagic {
		t.Errorf("Expected ErrInvalidMagic, got %v", err)
	}
}

func TestInvalidVersion(t *testing.T) {
	buf := bytes.NewBuffer([]byte{MagicByte, 0xFF, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00})

	_, err := ReadHeader(buf)
	if err != ErrInvalidVersion {
		t.Errorf("Expected ErrInvalidVersion, got %v", err)
	}
}

func TestMessageTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	h := Header{
		Magic:   MagicByte,
		Version: ProtocolVersion,
		Type:    MsgRPC,
		Flags:   FlagNone,
		Length:  MaxMessageSize + 1,
	}
	WriteHeader(buf, h)

	_, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	if err != ErrMessageTooLarge {
		t.Errorf("Expected ErrMessageTooLarge, got %v", err)
	}
}

func TestEmptyPayload(t *testing.T) {
	buf := new(bytes.Buffer)

	if err := WriteMessage(buf, MsgPing, FlagNone, nil); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	msg, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	if msg.Header.Type != MsgPing {
		t.Errorf("Type mismatch: got %x, want %x", msg.Header.Type, MsgPing)
	}
	if len(msg.Payload) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(msg.Payload))
	}
}

func TestCompressedRPCRoundTrip(t *testing.T) {
	entries := []raft.LogEntry{{Term: 1, Index: 1, Command: []byte("x=1")}}
	msg := raft.AppendEntriesRequest(1, "L", 0, 0, entries, 0)

	cfg := compression.DefaultConfig()
	cfg.Algorithm = compression.AlgorithmSnappy
	cfg.MinSize = 0 // force compression regardless of this payload's size
	c := compression.NewCompressor(cfg)

	payload, flags, err := EncodeCompressedRPC("L", msg, c, cfg.Algorithm)
	if err != nil {
		t.Fatalf("EncodeCompressedRPC failed: %v", err)
	}
	if flags != FlagCompressed {
		t.Fatalf("expected FlagCompressed, got %v", flags)
	}

	from, decoded, err := DecodeCompressedRPC(payload, flags, c, cfg.Algorithm)
	if err != nil {
		t.Fatalf("DecodeCompressedRPC failed: %v", err)
	}
	if from != "L" || decoded.Kind != raft.KindAppendEntriesRequest || len(decoded.Entries) != 1 {
		t.Errorf("decoded mismatch: from=%s msg=%+v", from, decoded)
	}
}
