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
Package discovery finds candidate peer addresses for a raftkit cluster
member joining the network: mDNS for same-segment LAN discovery, with
a DNS SRV lookup as the fallback for environments where multicast is
firewalled off (the common case inside a Kubernetes cluster or a cloud
VPC).

Discovery only proposes addresses. It never mutates cluster membership
or a Node's peer set directly (§1 Non-goals: no membership changes) —
the host process decides whether and how to fold a discovered Peer into
its static configuration.
*/
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"

	"raftkit/internal/logging"
	"raftkit/internal/raft"
)

// ServiceName is the mDNS service type raftkit nodes advertise under.
const ServiceName = "_raftkit._tcp"

// Peer is a discovered candidate cluster member.
type Peer struct {
	NodeID raft.NodeID
	Addr   string // host:port, dialable as a transport.TCPConfig peer address
}

// Advertiser announces this node's presence over mDNS so other nodes
// on the same network segment can find it without static config.
type Advertiser struct {
	server *mdns.Server
	log    *logging.Logger
}

// Advertise starts broadcasting an mDNS record for (nodeID, host,
// port). Call Shutdown when the node leaves the network.
func Advertise(nodeID raft.NodeID, host string, port int) (*Advertiser, error) {
	svc, err := mdns.NewMDNSService(
		string(nodeID),
		ServiceName,
		"",   // domain: default to .local.
		"",   // hostName: default to os.Hostname()+domain
		port,
		resolveIPs(host),
		[]string{"node_id=" + string(nodeID)},
	)
	if err != nil {
		return nil, fmt.Errorf("build mdns service record: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}

	return &Advertiser{server: server, log: logging.NewLogger("discovery.mdns")}, nil
}

// Shutdown stops advertising.
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

func resolveIPs(host string) []net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return nil // mdns.NewMDNSService falls back to interface addresses
	}
	return ips
}

// DiscoverMDNS browses the local network segment for raftkit nodes for
// up to timeout, returning whatever candidates answered in time.
func DiscoverMDNS(timeout time.Duration) ([]Peer, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 16)
	var peers []Peer
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entriesCh {
			peers = append(peers, entryToPeer(entry))
		}
	}()

	params := mdns.DefaultParams(ServiceName)
	params.Timeout = timeout
	params.Entries = entriesCh
	params.DisableIPv6 = true

	queryErr := mdns.Query(params)
	close(entriesCh)
	<-done

	if queryErr != nil {
		return nil, fmt.Errorf("mdns query: %w", queryErr)
	}
	return peers, nil
}

func entryToPeer(entry *mdns.ServiceEntry) Peer {
	nodeID := raft.NodeID(entry.Name)
	for _, f := range entry.InfoFields {
		if len(f) > len("node_id=") && f[:len("node_id=")] == "node_id=" {
			nodeID = raft.NodeID(f[len("node_id="):])
		}
	}

	addr := entry.Host
	if entry.AddrV4 != nil {
		addr = entry.AddrV4.String()
	}
	return Peer{
		NodeID: nodeID,
		Addr:   net.JoinHostPort(addr, strconv.Itoa(entry.Port)),
	}
}

// DiscoverSRV resolves peer addresses via a DNS SRV record, the
// fallback for networks where mDNS multicast doesn't reach (most
// container orchestrators). name is a fully-qualified SRV name, e.g.
// "_raftkit._tcp.raftkit.svc.cluster.local.". server is the resolver
// to query, "host:port"; if empty, "127.0.0.1:53" is used.
func DiscoverSRV(name, server string) ([]Peer, error) {
	if server == "" {
		server = "127.0.0.1:53"
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)

	client := new(dns.Client)
	client.Timeout = 3 * time.Second

	resp, _, err := client.Exchange(msg, server)
	if err != nil {
		return nil, fmt.Errorf("dns srv query for %s: %w", name, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns srv query for %s: rcode %d", name, resp.Rcode)
	}

	var peers []Peer
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		target := srv.Target
		if len(target) > 0 && target[len(target)-1] == '.' {
			target = target[:len(target)-1]
		}
		peers = append(peers, Peer{
			NodeID: raft.NodeID(target),
			Addr:   net.JoinHostPort(target, strconv.Itoa(int(srv.Port))),
		})
	}
	return peers, nil
}
