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
raftctl - interactive raftkit cluster shell

Two modes:

	raftctl demo --ids a,b,c            boots an in-memory 3-node cluster
	                                     in this one process, wired through
	                                     transport.Bus, for exploring
	                                     elections and replication live.

	raftctl join --id a --listen :9001 --peers b=host:9002,c=host:9003
	                                     runs one real cluster member over
	                                     TCP, with a durable file-backed
	                                     log under --data-dir. Add --tls
	                                     to encrypt node-to-node traffic
	                                     with a self-signed certificate.

Once running, a readline shell accepts:

	status            show this node's (or every demo node's) Status
	propose <text>     submit a command to the current leader
	partition <id>     (demo only) cut a node off from the others
	heal <id>          (demo only) restore a partitioned node
	quit / exit        shut down and exit
*/
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"raftkit/internal/clock"
	"raftkit/internal/raft"
	"raftkit/internal/storage"
	rafttls "raftkit/internal/tls"
	"raftkit/internal/transport"
	"raftkit/pkg/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		runDemo(os.Args[2:])
	case "join":
		runJoin(os.Args[2:])
	case "--help", "-h", "help":
		printUsage()
	default:
		cli.PrintError("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(cli.Highlight("raftctl - interactive raftkit cluster shell"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  raftctl demo --ids a,b,c")
	fmt.Println("  raftctl join --id a --listen :9001 --peers b=host:9002,c=host:9003 --data-dir ./data/a")
}

// runDemo boots an in-memory multi-node cluster in one process.
func runDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	idsFlag := fs.String("ids", "a,b,c", "comma-separated node IDs")
	fs.Parse(args)

	ids := splitNonEmpty(*idsFlag, ",")
	if len(ids) < 3 {
		cli.PrintError("demo mode needs at least 3 node IDs, got %v", ids)
		os.Exit(1)
	}

	peers := make([]raft.NodeID, len(ids))
	for i, id := range ids {
		peers[i] = raft.NodeID(id)
	}

	network := transport.NewNetwork()
	drivers := make(map[raft.NodeID]*driver, len(ids))

	for _, id := range peers {
		others := otherPeers(peers, id)
		ports := raft.Ports{
			Storage: storage.NewMemory(),
			Clock:   clock.NewSystem(),
			Random:  clock.NewMathRandom(),
		}
		node, err := raft.NewNode(id, others, ports, raft.DefaultConfig())
		if err != nil {
			cli.PrintError("construct node %s: %v", id, err)
			os.Exit(1)
		}
		bus := network.NewBus(id, 256)
		d := newDriver(id, node, bus)
		drivers[id] = d
		d.run()
	}
	defer func() {
		for _, d := range drivers {
			d.stop()
		}
	}()

	cli.PrintSuccess("demo cluster running: %s", strings.Join(ids, ", "))
	repl(func(cmd string, rest string) bool {
		switch cmd {
		case "status":
			for _, id := range peers {
				fmt.Println(formatStatus(drivers[id].status()))
			}
		case "propose":
			proposeToLeader(drivers, peers, rest)
		case "partition":
			id := raft.NodeID(strings.TrimSpace(rest))
			network.Partition(id)
			cli.PrintWarning("partitioned %s", id)
		case "heal":
			id := raft.NodeID(strings.TrimSpace(rest))
			network.Heal(id)
			cli.PrintSuccess("healed %s", id)
		default:
			return false
		}
		return true
	})
}

func proposeToLeader(drivers map[raft.NodeID]*driver, peers []raft.NodeID, command string) {
	for _, id := range peers {
		d := drivers[id]
		if d.status().Role != raft.Leader {
			continue
		}
		idx, err := d.submit([]byte(command))
		if err != nil {
			cli.PrintError("propose via %s: %v", id, err)
			return
		}
		cli.PrintSuccess("submitted at index %d via leader %s", idx, id)
		return
	}
	cli.PrintWarning("no leader elected yet; try again shortly")
}

func otherPeers(all []raft.NodeID, self raft.NodeID) []raft.NodeID {
	out := make([]raft.NodeID, 0, len(all)-1)
	for _, id := range all {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

// runJoin runs a single real cluster member over TCP with durable storage.
func runJoin(args []string) {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	id := fs.String("id", "", "this node's ID (required)")
	listen := fs.String("listen", ":9001", "address to listen on")
	peersFlag := fs.String("peers", "", "comma-separated id=addr pairs, e.g. b=host:9002,c=host:9003")
	dataDir := fs.String("data-dir", "", "durable storage directory (empty: in-memory only)")
	useTLS := fs.Bool("tls", false, "encrypt node-to-node traffic with a self-signed certificate")
	fs.Parse(args)

	if *id == "" {
		cli.PrintError("--id is required")
		os.Exit(1)
	}

	peerAddrs := map[raft.NodeID]string{}
	var peerIDs []raft.NodeID
	for _, pair := range splitNonEmpty(*peersFlag, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			cli.PrintError("malformed --peers entry %q, want id=addr", pair)
			os.Exit(1)
		}
		pid := raft.NodeID(parts[0])
		peerAddrs[pid] = parts[1]
		peerIDs = append(peerIDs, pid)
	}

	var store raft.Storage
	if *dataDir != "" {
		f, err := storage.NewFile(*dataDir)
		if err != nil {
			cli.PrintError("open data dir %s: %v", *dataDir, err)
			os.Exit(1)
		}
		store = f
	} else {
		store = storage.NewMemory()
	}

	ports := raft.Ports{Storage: store, Clock: clock.NewSystem(), Random: clock.NewMathRandom()}
	node, err := raft.NewNode(raft.NodeID(*id), peerIDs, ports, raft.DefaultConfig())
	if err != nil {
		cli.PrintError("construct node: %v", err)
		os.Exit(1)
	}

	var tlsConfig *tls.Config
	if *useTLS {
		tlsConfig, err = nodeTLSConfig(*dataDir, *id)
		if err != nil {
			cli.PrintError("tls setup: %v", err)
			os.Exit(1)
		}
	}

	tcp, err := transport.NewTCP(transport.TCPConfig{
		SelfID:     raft.NodeID(*id),
		ListenAddr: *listen,
		Peers:      peerAddrs,
		TLSConfig:  tlsConfig,
	})
	if err != nil {
		cli.PrintError("start transport: %v", err)
		os.Exit(1)
	}

	d := newDriver(raft.NodeID(*id), node, tcp)
	d.run()
	defer d.stop()

	cli.PrintSuccess("node %s listening on %s, peers: %v", *id, *listen, peerAddrs)
	repl(func(cmd string, rest string) bool {
		switch cmd {
		case "status":
			fmt.Println(formatStatus(d.status()))
		case "propose":
			idx, err := d.submit([]byte(rest))
			if err != nil {
				cli.PrintError("propose: %v", err)
				return true
			}
			cli.PrintSuccess("submitted at index %d", idx)
		default:
			return false
		}
		return true
	})
}

// nodeTLSConfig generates (or reuses, if already on disk) a self-signed
// certificate for this node and builds a symmetric tls.Config used for
// both the listener and outbound dials. Cluster members don't share a
// CA, so there's no peer identity to verify — this buys encryption of
// node-to-node traffic on the wire, not authentication, which matches
// the spec's non-goal of Byzantine tolerance.
func nodeTLSConfig(dataDir string, id string) (*tls.Config, error) {
	certDir := dataDir
	if certDir == "" {
		certDir, _, _ = rafttls.GetDefaultCertPaths()
	}
	certDir = filepath.Join(certDir, "tls")
	certPath := filepath.Join(certDir, "node.crt")
	keyPath := filepath.Join(certDir, "node.key")

	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		cfg := rafttls.DefaultCertConfig()
		cfg.CommonName = id
		certPEM, keyPEM, err := rafttls.GenerateSelfSignedCert(cfg)
		if err != nil {
			return nil, fmt.Errorf("generate cert: %w", err)
		}
		if err := rafttls.SaveCertificates(certPath, keyPath, certPEM, keyPEM); err != nil {
			return nil, fmt.Errorf("save cert: %w", err)
		}
	}

	tlsConfig, err := rafttls.LoadTLSConfig(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	tlsConfig.InsecureSkipVerify = true
	return tlsConfig, nil
}

// repl runs the shared readline loop. handler receives the first
// whitespace-separated token and the remainder of the line, and returns
// false for unrecognized commands so the loop can print a hint.
func repl(handler func(cmd, rest string) bool) {
	rl, err := readline.New(cli.Highlight("raftctl> "))
	if err != nil {
		cli.PrintError("readline init: %v", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "quit", "exit":
			return
		case "help":
			fmt.Println("commands: status, propose <text>, partition <id>, heal <id>, quit")
		default:
			if !handler(cmd, strings.TrimSpace(rest)) {
				cli.PrintWarning("unrecognized command %q (try: help)", cmd)
			}
		}
	}
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
