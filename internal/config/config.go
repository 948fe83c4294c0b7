// Copyright 2015, 2016 Ethcore (UK) Ltd.
// This file is part of Parity.

// Parity is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Parity is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.

// You should have received a copy of the GNU General Public License
// along with Parity.  If not, see <http://www.gnu.org/licenses/>.

// Package config is the process's configuration surface: a TOML file loaded
// at startup. cmd/ethcored lets command-line flags override data dir, chain
// spec, pruning, cache size, author, extra data, sealing and the RPC bind
// address and enable switch; the other fields come from the file only. Fields
// group the same way the original daemon's own flag surface did: where to
// keep data, how to prune it, how big to let caches grow, who the node
// talks to, and what the RPC front door looks like.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the full process configuration. Zero value is not meaningful;
// use Default() as a starting point.
type Config struct {
	DataDir       string `toml:"data_dir"`
	ChainSpecPath string `toml:"chain_spec"`

	Pruning   string `toml:"pruning"` // "archive" or "fast" (pruned)
	History   uint64 `toml:"history"`
	CacheSize int    `toml:"cache_size_mb"`

	QueueMemoryCapMB int `toml:"queue_memory_cap_mb"`

	ListenAddr   string   `toml:"listen_addr"`
	PublicAddr   string   `toml:"public_addr"`
	PeerTarget   int      `toml:"peer_target"`
	Discovery    bool     `toml:"discovery"`
	UPnP         bool     `toml:"upnp"`
	NodeKeyPath  string   `toml:"node_key_path"`
	BootNodes    []string `toml:"boot_nodes"`

	RPC RPCConfig `toml:"rpc"`

	Author    common.Address `toml:"-"`
	AuthorHex string         `toml:"author"`
	ExtraData string         `toml:"extra_data"`
	Sealing   bool           `toml:"sealing"`
}

// RPCConfig is the JSON-RPC front end's bind/CORS/API surface.
type RPCConfig struct {
	Enabled    bool     `toml:"enabled"`
	BindAddr   string   `toml:"bind_addr"`
	CORSDomain []string `toml:"cors_domain"`
	APIs       []string `toml:"apis"`
}

// Default returns the configuration a fresh node starts from absent any
// file or flags: pruned mode, modest caches, RPC off.
func Default() Config {
	return Config{
		DataDir:          "./data",
		ChainSpecPath:    "./chain.json",
		Pruning:          "fast",
		History:          1000,
		CacheSize:        128,
		QueueMemoryCapMB: 64,
		ListenAddr:       "0.0.0.0:30303",
		PeerTarget:       25,
		Discovery:        true,
		UPnP:             true,
		RPC: RPCConfig{
			BindAddr: "127.0.0.1:8545",
			APIs:     []string{"eth"},
		},
	}
}

// Load reads path as TOML over Default(), so an absent field in the file
// keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Archive reports whether the configured pruning mode disables pruning.
func (c Config) Archive() bool { return c.Pruning == "archive" }

// Validate rejects configurations that would otherwise fail confusingly
// deep inside client/chainindex construction.
func (c Config) Validate() error {
	switch c.Pruning {
	case "archive", "fast", "":
	default:
		return fmt.Errorf("config: unknown pruning mode %q (want archive or fast)", c.Pruning)
	}
	if c.RPC.Enabled && c.RPC.BindAddr == "" {
		return fmt.Errorf("config: rpc enabled but bind_addr is empty")
	}
	return nil
}
