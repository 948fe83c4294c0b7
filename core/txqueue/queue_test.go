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

package txqueue

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type fixedNonce uint64

func (n fixedNonce) Nonce(common.Address) uint64 { return uint64(n) }

type perAccountNonce map[common.Address]uint64

func (m perAccountNonce) Nonce(addr common.Address) uint64 { return m[addr] }

func signedTx(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, gasPrice int64) *gethtypes.Transaction {
	t.Helper()
	to := common.HexToAddress("0xd00d")
	tx := gethtypes.NewTransaction(nonce, to, big.NewInt(0), 21000, big.NewInt(gasPrice), nil)
	signed, err := gethtypes.SignTx(tx, gethtypes.FrontierSigner{}, key)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	return signed
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

// Scenario 5: a queue gap fills once the missing nonce arrives.
func TestQueueGapFillsOnceMissingNonceArrives(t *testing.T) {
	key, _ := newKey(t)
	q := New(fixedNonce(123), gethtypes.FrontierSigner{})

	mustAdd(t, q, signedTx(t, key, 125, 1))
	mustAdd(t, q, signedTx(t, key, 124, 1))

	if st := q.Status(); st.Future != 2 || st.Pending != 0 {
		t.Fatalf("after 125,124: status = %+v, want pending=0 future=2 (both still gapped behind 123)", st)
	}

	mustAdd(t, q, signedTx(t, key, 123, 1))

	st := q.Status()
	if st.Future != 0 {
		t.Fatalf("future = %d, want 0 once the gap is filled", st.Future)
	}
	if st.Pending != 3 {
		t.Fatalf("pending = %d, want 3", st.Pending)
	}

	top := q.TopTransactions(3)
	if len(top) != 3 {
		t.Fatalf("TopTransactions returned %d, want 3", len(top))
	}
	for i, want := range []uint64{123, 124, 125} {
		if top[i].Nonce() != want {
			t.Fatalf("top[%d].Nonce() = %d, want %d", i, top[i].Nonce(), want)
		}
	}
}

// Scenario 6: a same-nonce replacement wins on gas price.
func TestQueueReplacementByGasPrice(t *testing.T) {
	key, _ := newKey(t)
	q := New(fixedNonce(123), gethtypes.FrontierSigner{})

	cheap := signedTx(t, key, 123, 1)
	mustAdd(t, q, cheap)

	rich := signedTx(t, key, 123, 200)
	mustAdd(t, q, rich)

	if st := q.Status(); st.Pending != 1 {
		t.Fatalf("pending = %d, want 1", st.Pending)
	}

	top := q.TopTransactions(1)
	if len(top) != 1 || top[0].Hash() != rich.Hash() {
		t.Fatalf("surviving transaction should be the higher-gas-price replacement")
	}
	if _, ok := q.byHash[cheap.Hash()]; ok {
		t.Fatalf("displaced transaction %s still present in byHash", cheap.Hash())
	}
}

// Scenario 6b: a same-nonce replacement that does not out-bid the
// incumbent is rejected and the incumbent survives untouched.
func TestQueueReplacementRejectedWhenNotHigherPriced(t *testing.T) {
	key, _ := newKey(t)
	q := New(fixedNonce(123), gethtypes.FrontierSigner{})

	rich := signedTx(t, key, 123, 200)
	mustAdd(t, q, rich)

	cheap := signedTx(t, key, 123, 1)
	if err := q.Add(cheap); err != ErrTooCheapToReplace {
		t.Fatalf("Add(cheap replacement) = %v, want ErrTooCheapToReplace", err)
	}

	top := q.TopTransactions(1)
	if len(top) != 1 || top[0].Hash() != rich.Hash() {
		t.Fatalf("incumbent should survive a rejected replacement attempt")
	}
}

// Scenario 7: the current tier evicts its lowest-priority member once its
// limit is exceeded.
func TestQueueEvictsUnderCurrentLimit(t *testing.T) {
	key, _ := newKey(t)
	q := WithLimits(fixedNonce(123), gethtypes.FrontierSigner{}, 1, DefaultFutureLimit)

	first := signedTx(t, key, 123, 1)
	mustAdd(t, q, first)

	second := signedTx(t, key, 124, 1)
	mustAdd(t, q, second)

	if st := q.Status(); st.Pending != 1 {
		t.Fatalf("pending = %d, want 1 under a current limit of 1", st.Pending)
	}

	top := q.TopTransactions(1)
	if len(top) != 1 || top[0].Hash() != first.Hash() {
		t.Fatalf("retained transaction should be the first-queued, lowest-height one")
	}
}

func TestQueueRejectsAlreadyUsedNonce(t *testing.T) {
	key, _ := newKey(t)
	q := New(fixedNonce(10), gethtypes.FrontierSigner{})
	if err := q.Add(signedTx(t, key, 9, 1)); err != ErrOldNonce {
		t.Fatalf("Add(old nonce) = %v, want ErrOldNonce", err)
	}
}

// Removing a transaction in the middle of a sender's contiguous chain
// demotes every later transaction from that sender back into future.
func TestQueueRemoveMiddleDemotesLaterToFuture(t *testing.T) {
	key, _ := newKey(t)
	q := New(fixedNonce(0), gethtypes.FrontierSigner{})

	tx0 := signedTx(t, key, 0, 1)
	tx1 := signedTx(t, key, 1, 1)
	tx2 := signedTx(t, key, 2, 1)
	mustAdd(t, q, tx0)
	mustAdd(t, q, tx1)
	mustAdd(t, q, tx2)

	if st := q.Status(); st.Pending != 3 {
		t.Fatalf("pending = %d, want 3 before removal", st.Pending)
	}

	if !q.Remove(tx1.Hash()) {
		t.Fatalf("Remove(tx1) = false, want true")
	}

	st := q.Status()
	if st.Pending != 1 {
		t.Fatalf("pending = %d, want 1 (only tx0) after removing tx1", st.Pending)
	}
	if st.Future != 1 {
		t.Fatalf("future = %d, want 1 (tx2 demoted)", st.Future)
	}
}

// Culling advances a sender's base nonce (as committed on-chain) and pulls
// any now-contiguous future transactions into current.
func TestQueueCullPullsFutureIntoCurrent(t *testing.T) {
	key, addr := newKey(t)
	nonces := perAccountNonce{addr: 5}
	q := New(nonces, gethtypes.FrontierSigner{})

	mustAdd(t, q, signedTx(t, key, 6, 1))
	if st := q.Status(); st.Future != 1 {
		t.Fatalf("future = %d, want 1", st.Future)
	}

	nonces[addr] = 6
	q.Cull(addr, 6)

	st := q.Status()
	if st.Future != 0 || st.Pending != 1 {
		t.Fatalf("after Cull: status = %+v, want pending=1 future=0", st)
	}
}

func TestQueueClearEmptiesBothTiers(t *testing.T) {
	key, _ := newKey(t)
	q := New(fixedNonce(0), gethtypes.FrontierSigner{})
	mustAdd(t, q, signedTx(t, key, 0, 1))
	mustAdd(t, q, signedTx(t, key, 5, 1))

	q.Clear()

	st := q.Status()
	if st.Pending != 0 || st.Future != 0 {
		t.Fatalf("status after Clear = %+v, want zero", st)
	}
	if len(q.byHash) != 0 {
		t.Fatalf("byHash not emptied by Clear")
	}
}

func mustAdd(t *testing.T, q *Queue, tx *gethtypes.Transaction) {
	t.Helper()
	if err := q.Add(tx); err != nil {
		t.Fatalf("Add(%s): %v", tx.Hash(), err)
	}
}
