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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.DataDir != want.DataDir || cfg.Pruning != want.Pruning {
		t.Fatalf("Load(missing) = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	content := `data_dir = "/var/lib/ethcored"
pruning = "archive"

[rpc]
enabled = true
bind_addr = "0.0.0.0:8545"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/ethcored" {
		t.Fatalf("DataDir = %q, want override", cfg.DataDir)
	}
	if !cfg.Archive() {
		t.Fatalf("Archive() = false, want true for pruning=archive")
	}
	if !cfg.RPC.Enabled || cfg.RPC.BindAddr != "0.0.0.0:8545" {
		t.Fatalf("RPC = %+v, want enabled on 0.0.0.0:8545", cfg.RPC)
	}
	// Fields the file didn't mention keep their defaults.
	if cfg.PeerTarget != Default().PeerTarget {
		t.Fatalf("PeerTarget = %d, want default %d (untouched by file)", cfg.PeerTarget, Default().PeerTarget)
	}
}

func TestValidateRejectsUnknownPruningMode(t *testing.T) {
	cfg := Default()
	cfg.Pruning = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for unknown pruning mode")
	}
}

func TestValidateRejectsRPCEnabledWithoutBindAddr(t *testing.T) {
	cfg := Default()
	cfg.RPC.Enabled = true
	cfg.RPC.BindAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for rpc enabled with empty bind_addr")
	}
}
