// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

// rawList adapts a slice of already-RLP-encoded items to gethtypes.DeriveSha's
// DerivableList, so StackTrie sees them in the non-monotonic index order
// (1, 2, ..., 0x7f, 0, 0x80, ...) it actually requires instead of the raw
// encode(0), encode(1), ... order, which StackTrie.Update rejects as
// non-ascending past index 0.
type rawList []rlp.RawValue

func (l rawList) Len() int                          { return len(l) }
func (l rawList) EncodeIndex(i int, w *bytes.Buffer) { w.Write(l[i]) }

// DeriveRoot computes the Merkle-Patricia root over a map keyed by the RLP
// encoding of the item's position (0, 1, 2, ...) and valued by the item's own
// RLP encoding — the ordered trie root used for both the transactions-root
// and the receipts-root. Delegates to go-ethereum's own DeriveSha, which
// inserts indices in the order StackTrie needs rather than index order.
func DeriveRoot(items []rlp.RawValue) common.Hash {
	return gethtypes.DeriveSha(rawList(items), trie.NewStackTrie(nil))
}

// EncodeEach RLP-encodes every item in vs, preserving order.
func EncodeEach[T any](vs []T) []rlp.RawValue {
	out := make([]rlp.RawValue, len(vs))
	for i, v := range vs {
		enc, err := rlp.EncodeToBytes(v)
		if err != nil {
			panic("types: rlp encode failed: " + err.Error())
		}
		out[i] = enc
	}
	return out
}

// UnclesHash returns keccak256 of the RLP-encoded uncle header list — the
// header's uncles_hash field.
func UnclesHash(uncles []*Header) (common.Hash, []byte) {
	enc, err := rlp.EncodeToBytes(uncles)
	if err != nil {
		panic("types: rlp encode failed: " + err.Error())
	}
	return crypto.Keccak256Hash(enc), enc
}
