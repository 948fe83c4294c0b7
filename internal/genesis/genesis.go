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

// Package genesis reads the chain spec file named in internal/config and
// turns it into the genesis header and pre-seeded state the rest of the
// node is built around.
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/consensus/poa"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
)

// Spec is the on-disk chain spec shape: authority set plus pre-funded
// accounts, the two things a fresh node needs before it can validate or
// seal a single block.
type Spec struct {
	Signers    []common.Address          `json:"signers"`
	PeriodSecs uint64                    `json:"period_seconds"`
	Alloc      map[common.Address]string `json:"alloc"` // decimal wei balances
	ExtraData  string                    `json:"extra_data"`
	GasLimit   uint64                    `json:"gas_limit"`
	Timestamp  uint64                    `json:"timestamp"`
}

// Load reads and parses a chain spec file.
func Load(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	if len(spec.Signers) == 0 {
		return nil, fmt.Errorf("genesis: %s names no signers", path)
	}
	return &spec, nil
}

// Engine builds the poa.Engine this spec's authority set implies.
func (s *Spec) Engine() *poa.Engine {
	signers := append([]common.Address(nil), s.Signers...)
	sort.Slice(signers, func(i, j int) bool { return bytes.Compare(signers[i][:], signers[j][:]) < 0 })
	return poa.New(poa.Config{Signers: signers, Period: time.Duration(s.PeriodSecs) * time.Second})
}

// Header builds the genesis header and seeds sdb with the spec's
// pre-funded accounts, returning the header with its StateRoot set to the
// resulting committed root.
func (s *Spec) Header(sdb state.Database, engine *poa.Engine) (*types.Header, error) {
	st, err := state.New(common.Hash{}, sdb, engine.AccountStartNonce())
	if err != nil {
		return nil, fmt.Errorf("genesis: new state: %w", err)
	}
	for addr, wei := range s.Alloc {
		balance, ok := new(big.Int).SetString(wei, 10)
		if !ok {
			return nil, fmt.Errorf("genesis: alloc balance %q for %s is not a decimal integer", wei, addr)
		}
		u256, overflow := uint256.FromBig(balance)
		if overflow {
			return nil, fmt.Errorf("genesis: alloc balance %q for %s overflows 256 bits", wei, addr)
		}
		st.AddBalance(addr, u256)
	}
	root, err := st.Commit()
	if err != nil {
		return nil, fmt.Errorf("genesis: commit: %w", err)
	}
	return &types.Header{
		StateRoot:  root,
		Number:     0,
		Time:       s.Timestamp,
		GasLimit:   s.GasLimit,
		Extra:      []byte(s.ExtraData),
		Difficulty: uint256.NewInt(1),
	}, nil
}
