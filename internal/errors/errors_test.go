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

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestRaftErrorBasic(t *testing.T) {
	err := NewProtocolError("unexpected frame")

	if err.Code != ErrCodeProtocol {
		t.Errorf("Expected code %d, got %d", ErrCodeProtocol, err.Code)
	}
	if err.Category != CategoryProtocol {
		t.Errorf("Expected category %s, got %s", CategoryProtocol, err.Category)
	}
	if !strings.Contains(err.Error(), "unexpected frame") {
		t.Errorf("Expected error message to contain 'unexpected frame', got: %s", err.Error())
	}
}

func TestRaftErrorWithDetail(t *testing.T) {
	err := NewStorageError("append failed").WithDetail("disk full")

	if err.Detail != "disk full" {
		t.Errorf("Expected detail 'disk full', got: %s", err.Detail)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Expected error to contain detail, got: %s", err.Error())
	}
}

func TestRaftErrorWithHint(t *testing.T) {
	err := NotLeader("node-2")

	userMsg := err.UserMessage()
	if !strings.Contains(userMsg, "HINT:") {
		t.Errorf("Expected user message to contain HINT, got: %s", userMsg)
	}
	if !strings.Contains(userMsg, "node-2") {
		t.Errorf("Expected leader hint in user message, got: %s", userMsg)
	}
}

func TestRaftErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewStorageError("write failed").WithCause(cause)

	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
}

func TestProtocolErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *RaftError
		code     ErrorCode
		category Category
	}{
		{"MalformedMessage", MalformedMessage("truncated payload"), ErrCodeMalformedMessage, CategoryProtocol},
		{"UnknownRPC", UnknownRPC("0xFF"), ErrCodeUnknownRPC, CategoryProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, tt.err.Code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, tt.err.Category)
			}
		})
	}
}

func TestStorageErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *RaftError
		code     ErrorCode
		category Category
	}{
		{"WALCorrupted", WALCorrupted("bad record at offset 128"), ErrCodeWALCorrupted, CategoryStorage},
		{"ChecksumMismatch", ChecksumMismatch(256), ErrCodeChecksumMismatch, CategoryStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, tt.err.Code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, tt.err.Category)
			}
		})
	}
}

func TestErrorCategoryChecks(t *testing.T) {
	protoErr := NewProtocolError("test")
	storageErr := NewStorageError("test")
	leaderErr := NotLeader("")

	if !IsProtocolError(protoErr) {
		t.Error("Expected IsProtocolError to return true for protocol error")
	}
	if IsProtocolError(storageErr) {
		t.Error("Expected IsProtocolError to return false for storage error")
	}
	if !IsStorageError(storageErr) {
		t.Error("Expected IsStorageError to return true for storage error")
	}
	if !IsNotLeader(leaderErr) {
		t.Error("Expected IsNotLeader to return true for NotLeader error")
	}
}

func TestGetCode(t *testing.T) {
	err := WALCorrupted("detail")
	if GetCode(err) != ErrCodeWALCorrupted {
		t.Errorf("Expected code %d, got %d", ErrCodeWALCorrupted, GetCode(err))
	}

	regularErr := errors.New("regular error")
	if GetCode(regularErr) != 0 {
		t.Errorf("Expected code 0 for regular error, got %d", GetCode(regularErr))
	}
}

func TestFormatError(t *testing.T) {
	raftErr := NewProtocolError("test error")
	formatted := FormatError(raftErr)
	if !strings.HasPrefix(formatted, "ERROR:") {
		t.Errorf("Expected formatted error to start with 'ERROR:', got: %s", formatted)
	}

	regularErr := errors.New("regular error")
	formatted = FormatError(regularErr)
	if !strings.Contains(formatted, "regular error") {
		t.Errorf("Expected formatted error to contain message, got: %s", formatted)
	}
}
