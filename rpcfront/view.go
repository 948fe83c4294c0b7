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

package rpcfront

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// blockView is the wire shape for eth_getBlockByHash/Number — the fields an
// explorer or wallet actually reads, hex-encoded the way geth's RPC does it.
type blockView struct {
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Number     string `json:"number"`
	Difficulty string `json:"difficulty"`
	GasLimit   string `json:"gasLimit"`
	GasUsed    string `json:"gasUsed"`
	Timestamp  string `json:"timestamp"`
}

func headerView(h *types.Header) blockView {
	return blockView{
		Hash:       h.Hash().Hex(),
		ParentHash: h.ParentHash.Hex(),
		Number:     fmt.Sprintf("0x%x", h.Number),
		Difficulty: fmt.Sprintf("0x%x", h.Difficulty),
		GasLimit:   fmt.Sprintf("0x%x", h.GasLimit),
		GasUsed:    fmt.Sprintf("0x%x", h.GasUsed),
		Timestamp:  fmt.Sprintf("0x%x", h.Time),
	}
}
