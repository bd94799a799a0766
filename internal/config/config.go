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
Package config implements layered host configuration for a raftkit node:
built-in defaults, overridden by a TOML-like file, overridden by
RAFTKIT_* environment variables. A Manager holds the active Config and
can reload it from disk, notifying subscribers registered via OnReload.

The [raft] section maps directly onto raft.Config; everything else
(listen port, data directory, log level) is host-side.
*/
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"raftkit/internal/errors"
)

// Environment variable names recognized by LoadFromEnv.
const (
	EnvPort          = "RAFTKIT_PORT"
	EnvNodeID        = "RAFTKIT_NODE_ID"
	EnvPeers         = "RAFTKIT_PEERS"
	EnvDataDir       = "RAFTKIT_DATA_DIR"
	EnvLogLevel      = "RAFTKIT_LOG_LEVEL"
	EnvLogJSON       = "RAFTKIT_LOG_JSON"
	EnvAdminPassword = "RAFTKIT_ADMIN_PASSWORD"
)

// Config holds a raftkit node's full host + consensus configuration.
type Config struct {
	// Host-side fields.
	Port          int    // status/admin listen port
	NodeID        string // this node's identity, e.g. "node-1"
	Peers         []string
	DataDir       string
	LogLevel      string
	LogJSON       bool
	AdminPassword string
	ConfigFile    string

	// Consensus fields (mirror raft.Config).
	ElectionTimeoutMinMs int
	ElectionTimeoutMaxMs int
	HeartbeatIntervalMs  int
	MaxEntriesPerAppend  int
	PreVoteEnabled       bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:                 8888,
		NodeID:               "node-1",
		Peers:                nil,
		DataDir:              "raftkit-data",
		LogLevel:             "info",
		LogJSON:              false,
		ElectionTimeoutMinMs: 150,
		ElectionTimeoutMaxMs: 300,
		HeartbeatIntervalMs:  50,
		MaxEntriesPerAppend:  64,
		PreVoteEnabled:       true,
	}
}

// Validate checks that the config describes a runnable node.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.BadConfig("port", fmt.Sprintf("must be between 1 and 65535, got %d", c.Port))
	}
	if strings.TrimSpace(c.NodeID) == "" {
		return errors.MissingField("node_id")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.MissingField("data_dir")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.BadConfig("log_level", fmt.Sprintf("unrecognized level %q", c.LogLevel))
	}
	if c.ElectionTimeoutMinMs <= 0 || c.ElectionTimeoutMaxMs < c.ElectionTimeoutMinMs {
		return errors.BadConfig("election_timeout", "election_timeout_min_ms must be positive and not exceed election_timeout_max_ms")
	}
	if c.HeartbeatIntervalMs <= 0 || c.HeartbeatIntervalMs >= c.ElectionTimeoutMinMs {
		return errors.BadConfig("heartbeat_interval_ms", "must be positive and less than election_timeout_min_ms")
	}
	if c.MaxEntriesPerAppend < 1 {
		return errors.BadConfig("max_entries_per_append", "must be at least 1")
	}
	return nil
}

// String returns a human-readable summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{NodeID: %s, Port: %d, Role: %s, DataDir: %s, Peers: %v, LogLevel: %s}",
		c.NodeID, c.Port, roleLabel(c), c.DataDir, c.Peers, c.LogLevel,
	)
}

func roleLabel(c *Config) string {
	if len(c.Peers) == 0 {
		return "standalone"
	}
	return "cluster-member"
}

// ToTOML renders the config as a TOML-like text file, in the order a
// human would read it.
func (c *Config) ToTOML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# raftkit node configuration\n")
	fmt.Fprintf(&b, "node_id = %q\n", c.NodeID)
	fmt.Fprintf(&b, "port = %d\n", c.Port)
	fmt.Fprintf(&b, "data_dir = %q\n", c.DataDir)
	if len(c.Peers) > 0 {
		fmt.Fprintf(&b, "peers = %q\n", strings.Join(c.Peers, ","))
	}
	fmt.Fprintf(&b, "log_level = %q\n", c.LogLevel)
	fmt.Fprintf(&b, "log_json = %t\n", c.LogJSON)
	fmt.Fprintf(&b, "\n[raft]\n")
	fmt.Fprintf(&b, "election_timeout_min_ms = %d\n", c.ElectionTimeoutMinMs)
	fmt.Fprintf(&b, "election_timeout_max_ms = %d\n", c.ElectionTimeoutMaxMs)
	fmt.Fprintf(&b, "heartbeat_interval_ms = %d\n", c.HeartbeatIntervalMs)
	fmt.Fprintf(&b, "max_entries_per_append = %d\n", c.MaxEntriesPerAppend)
	fmt.Fprintf(&b, "pre_vote_enabled = %t\n", c.PreVoteEnabled)
	return b.String()
}

// SaveToFile writes the config to path, creating parent directories as needed.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.IOFailed("mkdir", err)
	}
	if err := os.WriteFile(path, []byte(c.ToTOML()), 0644); err != nil {
		return errors.IOFailed("write config", err)
	}
	return nil
}

// Manager owns the active Config and supports file/env loading, hot
// reload, and reload notification.
type Manager struct {
	mu       sync.RWMutex
	cfg      *Config
	path     string
	onReload []func(*Config)
}

// NewManager returns a Manager seeded with DefaultConfig.
func NewManager() *Manager {
	return &Manager{cfg: DefaultConfig()}
}

// Get returns the currently active config.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// LoadFromFile parses a TOML-like config file and merges it onto the
// current config, remembering the path for Reload.
func (m *Manager) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.IOFailed("open config file", err)
	}
	defer f.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := applyFile(m.cfg, f); err != nil {
		return err
	}
	m.cfg.ConfigFile = path
	m.path = path
	return nil
}

func applyFile(cfg *Config, f *os.File) error {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		val = strings.Trim(val, `"`)

		switch key {
		case "node_id":
			cfg.NodeID = val
		case "port":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Port = n
			}
		case "binary_port", "replication_port":
			// retained for on-disk backward compatibility with older
			// config files; raftkit has no separate binary/replication port.
		case "data_dir", "db_path":
			cfg.DataDir = val
		case "peers":
			if val != "" {
				cfg.Peers = strings.Split(val, ",")
			}
		case "log_level":
			cfg.LogLevel = val
		case "log_json":
			cfg.LogJSON = val == "true"
		case "master_addr":
			if len(cfg.Peers) == 0 && val != "" {
				cfg.Peers = []string{val}
			}
		case "election_timeout_min_ms":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.ElectionTimeoutMinMs = n
			}
		case "election_timeout_max_ms":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.ElectionTimeoutMaxMs = n
			}
		case "heartbeat_interval_ms":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.HeartbeatIntervalMs = n
			}
		case "max_entries_per_append":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.MaxEntriesPerAppend = n
			}
		case "pre_vote_enabled":
			cfg.PreVoteEnabled = val == "true"
		}
	}
	return scanner.Err()
}

// LoadFromEnv overlays RAFTKIT_* environment variables onto the current config.
func (m *Manager) LoadFromEnv() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v := os.Getenv(EnvPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m.cfg.Port = n
		}
	}
	if v := os.Getenv(EnvNodeID); v != "" {
		m.cfg.NodeID = v
	}
	if v := os.Getenv(EnvPeers); v != "" {
		m.cfg.Peers = strings.Split(v, ",")
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		m.cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		m.cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		m.cfg.LogJSON = v == "true"
	}
	if v := os.Getenv(EnvAdminPassword); v != "" {
		m.cfg.AdminPassword = v
	}
}

// Reload re-reads the config file last passed to LoadFromFile and
// notifies every callback registered via OnReload.
func (m *Manager) Reload() error {
	m.mu.RLock()
	path := m.path
	m.mu.RUnlock()

	if path == "" {
		return errors.NewConfigError("no config file loaded; nothing to reload")
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.IOFailed("open config file", err)
	}
	defer f.Close()

	m.mu.Lock()
	if err := applyFile(m.cfg, f); err != nil {
		m.mu.Unlock()
		return err
	}
	cfg := m.cfg
	callbacks := append([]func(*Config){}, m.onReload...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
	return nil
}

// OnReload registers a callback invoked after every successful Reload.
func (m *Manager) OnReload(cb func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, cb)
}

var (
	globalOnce sync.Once
	globalMgr  *Manager
)

// Global returns the process-wide Manager singleton.
func Global() *Manager {
	globalOnce.Do(func() {
		globalMgr = NewManager()
	})
	return globalMgr
}
