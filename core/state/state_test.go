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

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/holiman/uint256"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	db := NewDatabase(rawdb.NewMemoryDatabase())
	s, err := New(common.Hash{}, db, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestBalanceNoncePersistAcrossCommit(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x01")

	s.AddBalance(addr, uint256.NewInt(100))
	s.IncNonce(addr)
	root, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reopened, err := New(root, s.db, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Balance(addr); got.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("balance after reopen = %s, want 100", got)
	}
	if got := reopened.Nonce(addr); got != 1 {
		t.Fatalf("nonce after reopen = %d, want 1", got)
	}
}

func TestAccountRemovalPersistsAcrossCommit(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x02")

	s.AddBalance(addr, uint256.NewInt(5))
	if _, err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !s.Exists(addr) {
		t.Fatalf("account should exist after first commit")
	}

	s.KillAccount(addr)
	root, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit after kill: %v", err)
	}

	reopened, err := New(root, s.db, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Exists(addr) {
		t.Fatalf("account should not exist after killing and committing")
	}
}

// TestRevertSnapshotUndoesNestedWrites checks the core snapshot law: a
// revert of an outer checkpoint undoes every mutation recorded since it was
// taken, including those made inside an inner checkpoint that was
// subsequently cleared (merged) rather than reverted.
func TestRevertSnapshotUndoesNestedWrites(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x03")

	s.AddBalance(addr, uint256.NewInt(10))

	s.Snapshot() // outer
	s.AddBalance(addr, uint256.NewInt(20))

	s.Snapshot() // inner
	s.AddBalance(addr, uint256.NewInt(30))
	s.ClearSnapshot() // merge inner into outer; balance now 60

	if got := s.Balance(addr); got.Cmp(uint256.NewInt(60)) != 0 {
		t.Fatalf("balance before revert = %s, want 60", got)
	}

	s.RevertSnapshot() // undo outer, and everything merged into it

	if got := s.Balance(addr); got.Cmp(uint256.NewInt(10)) != 0 {
		t.Fatalf("balance after revert = %s, want 10", got)
	}
}

// TestClearSnapshotKeepsOuterFramesRecording verifies the merge policy of a
// cleared checkpoint: when both the cleared frame and the frame beneath it
// recorded the same address, the outer (older) recording wins, since it is
// the value a later revert of the outer frame must restore.
func TestClearSnapshotKeepsOuterFramesRecording(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x04")

	s.AddBalance(addr, uint256.NewInt(1)) // balance 1, untracked by any frame

	s.Snapshot() // outer: first touch below will record balance=1
	s.AddBalance(addr, uint256.NewInt(1)) // balance 2

	s.Snapshot() // inner: first touch below will record balance=2
	s.AddBalance(addr, uint256.NewInt(1)) // balance 3
	s.ClearSnapshot()                     // merges inner's "balance=2" recording into outer, which already recorded "balance=1"

	s.RevertSnapshot() // must restore balance=1, not balance=2

	if got := s.Balance(addr); got.Cmp(uint256.NewInt(1)) != 0 {
		t.Fatalf("balance after revert = %s, want 1 (outer frame's recording must win the merge)", got)
	}
}

func TestRevertSnapshotRemovesNewlyCreatedAccount(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x05")

	s.Snapshot()
	s.AddBalance(addr, uint256.NewInt(1)) // creates the account under this checkpoint
	if !s.Exists(addr) {
		t.Fatalf("account should exist before revert")
	}
	s.RevertSnapshot()

	if s.Exists(addr) {
		t.Fatalf("account created under a reverted checkpoint must not exist")
	}
}

func TestCommitWithOpenSnapshotFails(t *testing.T) {
	s := newTestState(t)
	s.Snapshot()
	if _, err := s.Commit(); err != ErrSnapshotNotEmpty {
		t.Fatalf("Commit with open snapshot: got %v, want ErrSnapshotNotEmpty", err)
	}
}

func TestStorageRoundTripsAcrossCommit(t *testing.T) {
	s := newTestState(t)
	addr := common.HexToAddress("0x06")
	key := common.HexToHash("0x1")
	val := common.HexToHash("0x2a")

	s.AddBalance(addr, uint256.NewInt(1)) // materialize the account
	s.SetStorage(addr, key, val)
	root, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reopened, err := New(root, s.db, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.StorageAt(addr, key); got != val {
		t.Fatalf("storage after reopen = %s, want %s", got, val)
	}
}
