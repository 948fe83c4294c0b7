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

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/core/types"
)

func testHeader(number uint64, parent common.Hash) *types.Header {
	h := &types.Header{
		ParentHash: parent,
		Number:     number,
		GasLimit:   8_000_000,
		Time:       uint64(number) * 10,
		Difficulty: uint256.NewInt(1),
	}
	return h
}

func storeChain(t *testing.T, idx *Index, length int) []*types.Header {
	t.Helper()
	var parent common.Hash
	var headers []*types.Header
	var td = uint256.NewInt(0)
	for n := uint64(0); n < uint64(length); n++ {
		h := testHeader(n, parent)
		td = new(uint256.Int).Add(td, uint256.NewInt(1))
		body := &types.Body{}
		if err := idx.Store(h, body, nil, Details{ParentHash: parent, TotalDifficulty: new(uint256.Int).Set(td), Number: n}); err != nil {
			t.Fatalf("Store(%d): %v", n, err)
		}
		headers = append(headers, h)
		parent = h.Hash()
	}
	return headers
}

func TestStoreRoundTripsHeaderCanonicalHashAndDetails(t *testing.T) {
	idx, err := New(rawdb.NewMemoryDatabase(), 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	headers := storeChain(t, idx, 3)
	h := headers[2]
	hash := h.Hash()

	if !idx.IsKnown(hash) {
		t.Fatalf("IsKnown(%s) = false, want true", hash)
	}
	got, err := idx.GetHeader(hash)
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	if got.Hash() != hash {
		t.Fatalf("GetHeader returned a different block: got %s want %s", got.Hash(), hash)
	}

	canon, ok := idx.CanonicalHash(2)
	if !ok || canon != hash {
		t.Fatalf("CanonicalHash(2) = %s, %v; want %s, true", canon, ok, hash)
	}

	details, err := idx.GetDetails(hash)
	if err != nil {
		t.Fatalf("GetDetails: %v", err)
	}
	if details.Number != 2 || details.ParentHash != headers[1].Hash() {
		t.Fatalf("GetDetails mismatch: %+v", details)
	}
}

func TestIsKnownFalseForUnseenHash(t *testing.T) {
	idx, err := New(rawdb.NewMemoryDatabase(), 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if idx.IsKnown(common.HexToHash("0xdead")) {
		t.Fatalf("IsKnown(unseen hash) = true, want false")
	}
}

func TestTreeRouteAcrossAFork(t *testing.T) {
	idx, err := New(rawdb.NewMemoryDatabase(), 32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Shared trunk of 3 blocks (0,1,2), then two competing tips off block 2.
	trunk := storeChain(t, idx, 3)
	ancestorHash := trunk[2].Hash()

	left := testHeader(3, ancestorHash)
	left.Extra = []byte("left")
	if err := idx.Store(left, &types.Body{}, nil, Details{ParentHash: ancestorHash, TotalDifficulty: uint256.NewInt(4), Number: 3}); err != nil {
		t.Fatalf("Store(left): %v", err)
	}
	leftTip := testHeader(4, left.Hash())
	if err := idx.Store(leftTip, &types.Body{}, nil, Details{ParentHash: left.Hash(), TotalDifficulty: uint256.NewInt(5), Number: 4}); err != nil {
		t.Fatalf("Store(leftTip): %v", err)
	}

	right := testHeader(3, ancestorHash)
	right.Extra = []byte("right")
	if err := idx.Store(right, &types.Body{}, nil, Details{ParentHash: ancestorHash, TotalDifficulty: uint256.NewInt(4), Number: 3}); err != nil {
		t.Fatalf("Store(right): %v", err)
	}

	route, err := idx.TreeRoute(leftTip.Hash(), right.Hash())
	if err != nil {
		t.Fatalf("TreeRoute: %v", err)
	}
	if route.Ancestor != ancestorHash {
		t.Fatalf("Ancestor = %s, want %s", route.Ancestor, ancestorHash)
	}
	if len(route.Retracted) != 2 || route.Retracted[0] != leftTip.Hash() || route.Retracted[1] != left.Hash() {
		t.Fatalf("Retracted = %v, want [leftTip, left]", route.Retracted)
	}
	if len(route.Enacted) != 1 || route.Enacted[0] != right.Hash() {
		t.Fatalf("Enacted = %v, want [right]", route.Enacted)
	}
}

func TestTreeRouteTrivialWhenFromEqualsTo(t *testing.T) {
	idx, err := New(rawdb.NewMemoryDatabase(), 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	headers := storeChain(t, idx, 2)
	hash := headers[1].Hash()

	route, err := idx.TreeRoute(hash, hash)
	if err != nil {
		t.Fatalf("TreeRoute: %v", err)
	}
	if len(route.Retracted) != 0 || len(route.Enacted) != 0 || route.Ancestor != hash {
		t.Fatalf("TreeRoute(h,h) = %+v, want empty decomposition anchored at h", route)
	}
}

func TestBlocksWithBloomFindsOnlyMatchingBlocks(t *testing.T) {
	idx, err := New(rawdb.NewMemoryDatabase(), 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var parent common.Hash
	var want gethtypes.Bloom
	want[0] = 0xff
	for n := uint64(0); n < 4; n++ {
		h := testHeader(n, parent)
		if n == 2 {
			h.Bloom = want
		}
		if err := idx.Store(h, &types.Body{}, nil, Details{ParentHash: parent, TotalDifficulty: uint256.NewInt(n + 1), Number: n}); err != nil {
			t.Fatalf("Store(%d): %v", n, err)
		}
		parent = h.Hash()
	}

	matches, err := idx.BlocksWithBloom(want, 0, 3)
	if err != nil {
		t.Fatalf("BlocksWithBloom: %v", err)
	}
	if len(matches) != 1 || matches[0] != 2 {
		t.Fatalf("matches = %v, want [2]", matches)
	}
}
