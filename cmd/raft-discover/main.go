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
raft-discover - raftkit node discovery tool

Discovers raftkit nodes on the local network using mDNS, with a DNS
SRV fallback for segments where multicast doesn't reach. Useful for
finding existing cluster members to fold into a new node's peer list.

Usage:

	raft-discover                      # mDNS discovery (5 second timeout)
	raft-discover --timeout 10         # custom timeout in seconds
	raft-discover --srv NAME --server ADDR   # DNS SRV fallback
	raft-discover --json               # output as JSON
	raft-discover --quiet              # only output addresses (for scripting)
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"raftkit/internal/discovery"
)

const (
	version   = "1.0.0"
	copyright = "Copyright (c) 2026 Firefly Software Solutions Inc."
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func main() {
	timeout := flag.Int("timeout", 5, "Discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	quiet := flag.Bool("quiet", false, "Only output peer addresses (for scripting)")
	srvName := flag.String("srv", "", "DNS SRV name to query instead of mDNS, e.g. _raftkit._tcp.raftkit.svc.cluster.local.")
	srvServer := flag.String("server", "", "DNS server to query for --srv (host:port, default 127.0.0.1:53)")
	help := flag.Bool("help", false, "Show help")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(help, "h", false, "Show help")
	flag.BoolVar(showVersion, "v", false, "Show version information")
	flag.BoolVar(quiet, "q", false, "Only output peer addresses (for scripting)")

	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if !*quiet && !*jsonOutput {
		printBanner()
	}

	var peers []discovery.Peer
	var err error

	if *srvName != "" {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%sℹ%s Querying DNS SRV record %s...\n\n", cyan, bold, reset, *srvName)
		}
		peers, err = discovery.DiscoverSRV(*srvName, *srvServer)
	} else {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%sℹ%s Scanning for raftkit nodes on the network (timeout: %ds)...\n\n",
				cyan, bold, reset, *timeout)
		}
		peers, err = discovery.DiscoverMDNS(time.Duration(*timeout) * time.Second)
	}

	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s%s✗%s Discovery failed: %v\n", red, bold, reset, err)
		}
		os.Exit(1)
	}

	if len(peers) == 0 {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%s⚠%s No raftkit nodes found.\n\n", yellow, bold, reset)
			fmt.Printf("%s  Common issues:%s\n", dim, reset)
			fmt.Printf("    %s•%s No raftkit nodes are advertising on this network\n", yellow, reset)
			fmt.Printf("    %s•%s mDNS/Bonjour is blocked by firewall (UDP port 5353)\n", yellow, reset)
			fmt.Printf("    %s•%s Nodes are on a different network segment; try --srv\n\n", yellow, reset)
		}
		os.Exit(0)
	}

	switch {
	case *jsonOutput:
		outputJSON(peers)
	case *quiet:
		outputQuiet(peers)
	default:
		outputHuman(peers)
	}
}

func printBanner() {
	fmt.Println()
	fmt.Printf("  %s%sraft-discover%s %sv%s%s\n", green, bold, reset, dim, version, reset)
	fmt.Printf("  %sNetwork Node Discovery Tool%s\n\n", dim, reset)
}

func printVersion() {
	fmt.Println()
	fmt.Printf("  %s%sraft-discover%s %sv%s%s\n", cyan, bold, reset, dim, version, reset)
	fmt.Printf("  %s%s%s\n\n", dim, copyright, reset)
}

func printUsage() {
	printBanner()
	fmt.Printf("%s  Discovers raftkit nodes via mDNS, with a DNS SRV fallback.%s\n\n", dim, reset)
	fmt.Printf("%sUsage:%s raft-discover [options]\n\n", bold, reset)
	fmt.Printf("%s%sOPTIONS%s\n\n", bold, cyan, reset)
	fmt.Printf("    %s--timeout%s <seconds>   mDNS discovery timeout (default: 5)\n", green, reset)
	fmt.Printf("    %s--srv%s <name>          Query a DNS SRV record instead of mDNS\n", green, reset)
	fmt.Printf("    %s--server%s <addr>       DNS server for --srv (default 127.0.0.1:53)\n", green, reset)
	fmt.Printf("    %s--json%s                Output results as JSON\n", green, reset)
	fmt.Printf("    %s--quiet%s, %s-q%s           Only output addresses (for scripting)\n", green, reset, green, reset)
	fmt.Printf("    %s--version%s, %s-v%s         Show version information\n", green, reset, green, reset)
	fmt.Printf("    %s--help%s, %s-h%s            Show this help message\n\n", green, reset, green, reset)
}

func outputJSON(peers []discovery.Peer) {
	type peerOutput struct {
		NodeID string `json:"node_id"`
		Addr   string `json:"addr"`
	}
	out := make([]peerOutput, len(peers))
	for i, p := range peers {
		out[i] = peerOutput{NodeID: string(p.NodeID), Addr: p.Addr}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func outputQuiet(peers []discovery.Peer) {
	addrs := make([]string, len(peers))
	for i, p := range peers {
		addrs[i] = p.Addr
	}
	fmt.Println(strings.Join(addrs, ","))
}

func outputHuman(peers []discovery.Peer) {
	fmt.Printf("%s%s✓%s Found %d raftkit node(s)\n\n", green, bold, reset, len(peers))
	for i, p := range peers {
		fmt.Printf("  %s[%d]%s %s%s%s\n", dim, i+1, reset, bold+cyan, p.NodeID, reset)
		fmt.Printf("      %sAddress:%s %s%s%s\n\n", dim, reset, green, p.Addr, reset)
	}
	fmt.Printf("%s  Tip: Use --json for machine-readable output%s\n\n", dim, reset)
}
