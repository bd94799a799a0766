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

package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestEntryToPeerPrefersNodeIDTxtField(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "some-instance._raftkit._tcp.local.",
		AddrV4:     net.ParseIP("10.0.0.5"),
		Port:       9998,
		InfoFields: []string{"node_id=n3"},
	}

	p := entryToPeer(entry)
	if p.NodeID != "n3" {
		t.Errorf("expected NodeID n3, got %s", p.NodeID)
	}
	if p.Addr != "10.0.0.5:9998" {
		t.Errorf("expected addr 10.0.0.5:9998, got %s", p.Addr)
	}
}

func TestEntryToPeerFallsBackToNameWithoutTxtField(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:   "n4._raftkit._tcp.local.",
		Host:   "n4.local.",
		AddrV4: net.ParseIP("10.0.0.9"),
		Port:   9998,
	}

	p := entryToPeer(entry)
	if p.NodeID != "n4._raftkit._tcp.local." {
		t.Errorf("expected NodeID to fall back to entry.Name, got %s", p.NodeID)
	}
}

func TestResolveIPsAcceptsLiteralAddress(t *testing.T) {
	ips := resolveIPs("192.168.1.10")
	if len(ips) != 1 || ips[0].String() != "192.168.1.10" {
		t.Errorf("expected a single parsed IP, got %v", ips)
	}
}
