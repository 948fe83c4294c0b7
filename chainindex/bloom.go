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

package chainindex

import gethtypes "github.com/ethereum/go-ethereum/core/types"

// BlocksWithBloom scans the canonical chain from..to (inclusive) for blocks
// whose header bloom filter might contain bloom, the coarse first pass a
// log filter runs before it ever decodes a single receipt.
func (idx *Index) BlocksWithBloom(bloom gethtypes.Bloom, from, to uint64) ([]uint64, error) {
	var matches []uint64
	for n := from; n <= to; n++ {
		hash, ok := idx.CanonicalHash(n)
		if !ok {
			continue
		}
		header, err := idx.GetHeader(hash)
		if err != nil {
			return nil, err
		}
		if bloomMatches(header.Bloom, bloom) {
			matches = append(matches, n)
		}
		if n == to {
			break
		}
	}
	return matches, nil
}

// bloomMatches reports whether every bit set in want is also set in have.
func bloomMatches(have, want gethtypes.Bloom) bool {
	for i := range want {
		if have[i]&want[i] != want[i] {
			return false
		}
	}
	return true
}
