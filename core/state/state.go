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
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// ErrSnapshotNotEmpty is returned by Commit when snapshots are still open;
// committing through an uncleared checkpoint would silently discard the
// ability to revert it.
var ErrSnapshotNotEmpty = errors.New("state: commit called with open snapshots")

// snapshotEntry is the recorded prior value of one address's cache slot at
// the moment a checkpoint was taken. hadEntry distinguishes "the cache had
// no opinion about this address" (revert must delete the key) from "the
// cache recorded the address as known-absent" (revert must restore a nil
// entry, not remove the key).
type snapshotEntry struct {
	hadEntry bool
	prior    *Account // nil means known-absent
}

// State is a cached, snapshot/revertible view of all accounts rooted at a
// state trie root. A present-but-nil cache entry for an address means the
// address is known to not exist; a missing map key means the cache has no
// opinion and the trie must be consulted.
//
// The snapshot stack mirrors Parity's state.rs: snapshot() pushes a new,
// empty recording frame; every first touch of an address under the topmost
// frame records that address's pre-touch cache value into the frame;
// revert_snapshot pops the frame and replays its recordings back onto the
// cache; clear_snapshot pops the frame and merges its recordings into the
// frame beneath it, keeping the merged-into frame's own entry for any
// address both frames recorded (the outer frame already remembers the
// older, correct value to restore on a later revert).
//
// State is not safe for concurrent use; callers serialize access to a given
// State the way the block lifecycle and Client do.
type State struct {
	db   Database
	trie Trie
	root common.Hash

	accountStartNonce uint64

	cache     map[common.Address]*Account
	snapshots []map[common.Address]snapshotEntry
	dirty     map[common.Address]struct{}
}

// New opens the state trie rooted at root.
func New(root common.Hash, db Database, accountStartNonce uint64) (*State, error) {
	tr, err := db.OpenTrie(root)
	if err != nil {
		return nil, err
	}
	return &State{
		db:                db,
		trie:              tr,
		root:              root,
		accountStartNonce: accountStartNonce,
		cache:             make(map[common.Address]*Account),
		dirty:             make(map[common.Address]struct{}),
	}, nil
}

// Root returns the last-committed state root. It does not reflect
// uncommitted mutations.
func (s *State) Root() common.Hash { return s.root }

// markDirty records addr as touched since the last Commit, regardless of
// snapshot depth, so Commit knows to flush it even when its fields have no
// per-field dirty flag of their own (balance, nonce).
func (s *State) markDirty(addr common.Address) {
	s.dirty[addr] = struct{}{}
}

// noteCache records, once per checkpoint, the live value of addr's cache
// slot before it is mutated in place. Must be called before mutating an
// *Account already returned by a prior get/require call.
func (s *State) noteCache(addr common.Address) {
	if len(s.snapshots) == 0 {
		return
	}
	top := s.snapshots[len(s.snapshots)-1]
	if _, recorded := top[addr]; recorded {
		return
	}
	prior, hadEntry := s.cache[addr]
	var clone *Account
	if hadEntry && prior != nil {
		clone = prior.Copy()
	}
	top[addr] = snapshotEntry{hadEntry: hadEntry, prior: clone}
}

// insertCache replaces addr's cache slot outright (acc may be nil to record
// known-absence), recording the slot's pre-replacement value for revert.
// Unlike noteCache, no clone is needed: the old value is no longer reachable
// through the cache and is not mutated further.
func (s *State) insertCache(addr common.Address, acc *Account) {
	if len(s.snapshots) > 0 {
		top := s.snapshots[len(s.snapshots)-1]
		if _, recorded := top[addr]; !recorded {
			prior, hadEntry := s.cache[addr]
			top[addr] = snapshotEntry{hadEntry: hadEntry, prior: prior}
		}
	}
	s.cache[addr] = acc
}

// Snapshot pushes a new checkpoint onto the snapshot stack.
func (s *State) Snapshot() {
	s.snapshots = append(s.snapshots, make(map[common.Address]snapshotEntry))
}

// RevertSnapshot pops the topmost checkpoint and undoes every cache
// mutation recorded under it.
func (s *State) RevertSnapshot() {
	if len(s.snapshots) == 0 {
		return
	}
	top := s.snapshots[len(s.snapshots)-1]
	s.snapshots = s.snapshots[:len(s.snapshots)-1]
	for addr, entry := range top {
		if entry.hadEntry {
			s.cache[addr] = entry.prior
		} else {
			delete(s.cache, addr)
		}
	}
}

// ClearSnapshot pops the topmost checkpoint, discarding the ability to
// revert it, but preserves its recordings by merging them into the
// checkpoint beneath (or dropping them entirely if this was the bottom of
// the stack). An address already recorded by the outer checkpoint keeps the
// outer checkpoint's value: the outer frame's recording is older and is the
// correct value to restore on a later revert of the outer frame.
func (s *State) ClearSnapshot() {
	if len(s.snapshots) == 0 {
		return
	}
	top := s.snapshots[len(s.snapshots)-1]
	s.snapshots = s.snapshots[:len(s.snapshots)-1]
	if len(s.snapshots) == 0 {
		return
	}
	prev := s.snapshots[len(s.snapshots)-1]
	for addr, entry := range top {
		if _, exists := prev[addr]; !exists {
			prev[addr] = entry
		}
	}
}

// getAccount returns the cached account for addr, loading it from the trie
// on first access. The second return is false when the address is known to
// not exist.
func (s *State) getAccount(addr common.Address) (*Account, bool) {
	if acc, ok := s.cache[addr]; ok {
		return acc, acc != nil
	}
	sa, err := s.trie.GetAccount(addr)
	if err != nil {
		log.Error("state: failed to load account from trie", "addr", addr, "err", err)
		s.insertCache(addr, nil)
		return nil, false
	}
	if sa == nil {
		s.insertCache(addr, nil)
		return nil, false
	}
	acc := fromStateAccount(sa)
	s.insertCache(addr, acc)
	return acc, true
}

// requireAccount returns the live, mutable cache entry for addr, creating a
// default account if none exists. Every call that is about to mutate an
// account's cached value must go through here (or insertCache directly) so
// the checkpoint stack sees the touch.
func (s *State) requireAccount(addr common.Address) *Account {
	if acc, ok := s.cache[addr]; ok && acc != nil {
		s.noteCache(addr)
		s.markDirty(addr)
		return acc
	}
	if acc, exists := s.getAccount(addr); exists {
		s.noteCache(addr)
		s.markDirty(addr)
		return acc
	}
	acc := newAccount(s.accountStartNonce)
	s.insertCache(addr, acc)
	s.markDirty(addr)
	return acc
}

// Exists reports whether addr has a cached or trie-backed account.
func (s *State) Exists(addr common.Address) bool {
	_, ok := s.getAccount(addr)
	return ok
}

// IsEmpty reports whether addr is absent, or present but empty (zero
// balance, zero nonce, no code).
func (s *State) IsEmpty(addr common.Address) bool {
	acc, ok := s.getAccount(addr)
	return !ok || acc.Empty()
}

// Balance returns addr's balance, or zero if the account does not exist.
func (s *State) Balance(addr common.Address) *uint256.Int {
	if acc, ok := s.getAccount(addr); ok {
		return new(uint256.Int).Set(acc.Balance)
	}
	return new(uint256.Int)
}

// Nonce returns addr's nonce, or zero if the account does not exist.
func (s *State) Nonce(addr common.Address) uint64 {
	if acc, ok := s.getAccount(addr); ok {
		return acc.Nonce
	}
	return 0
}

// CodeHash returns addr's code hash, or the empty-code hash if the account
// does not exist or has no code.
func (s *State) CodeHash(addr common.Address) common.Hash {
	if acc, ok := s.getAccount(addr); ok {
		return acc.CodeHash
	}
	return emptyCodeHash
}

// Code returns addr's contract bytecode, loading it from the database on
// first access.
func (s *State) Code(addr common.Address) []byte {
	acc, ok := s.getAccount(addr)
	if !ok {
		return nil
	}
	return acc.getCode(s.db, addr)
}

// CodeSize returns the length of addr's contract bytecode without
// necessarily loading the full bytecode.
func (s *State) CodeSize(addr common.Address) int {
	acc, ok := s.getAccount(addr)
	if !ok {
		return 0
	}
	if acc.codeCached {
		return len(acc.code)
	}
	return s.db.ContractCodeSize(addr, acc.CodeHash)
}

// StorageAt returns the value stored at key under addr's storage, or the
// zero hash if unset.
func (s *State) StorageAt(addr common.Address, key common.Hash) common.Hash {
	acc, ok := s.getAccount(addr)
	if !ok {
		return common.Hash{}
	}
	return acc.storageAt(s.db, addr, key)
}

// AddBalance adds amount to addr's balance, creating the account if
// necessary, saturating at the maximum representable value.
func (s *State) AddBalance(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		s.requireAccount(addr) // still a touch: matches add_balance's unconditional entry creation
		return
	}
	acc := s.requireAccount(addr)
	if _, overflow := acc.Balance.AddOverflow(acc.Balance, amount); overflow {
		acc.Balance.SetAllOne()
	}
}

// SubBalance subtracts amount from addr's balance, saturating at zero.
func (s *State) SubBalance(addr common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	acc := s.requireAccount(addr)
	if _, underflow := acc.Balance.SubOverflow(acc.Balance, amount); underflow {
		acc.Balance.Clear()
	}
}

// SetBalance overwrites addr's balance.
func (s *State) SetBalance(addr common.Address, amount *uint256.Int) {
	acc := s.requireAccount(addr)
	acc.Balance = new(uint256.Int).Set(amount)
}

// TransferBalance moves amount from from to to, saturating rather than
// erroring on overflow. Callers are expected to have already checked from
// carries sufficient balance; this is the low-level primitive spec.md names,
// not a validity-checked transfer.
func (s *State) TransferBalance(from, to common.Address, amount *uint256.Int) {
	s.SubBalance(from, amount)
	s.AddBalance(to, amount)
}

// IncNonce increments addr's nonce by one.
func (s *State) IncNonce(addr common.Address) {
	acc := s.requireAccount(addr)
	acc.Nonce++
}

// SetNonce overwrites addr's nonce.
func (s *State) SetNonce(addr common.Address, nonce uint64) {
	acc := s.requireAccount(addr)
	acc.Nonce = nonce
}

// SetStorage writes value at key under addr's storage overlay.
func (s *State) SetStorage(addr common.Address, key, value common.Hash) {
	acc := s.requireAccount(addr)
	acc.setStorage(key, value)
}

// InitCode installs code as addr's contract bytecode.
func (s *State) InitCode(addr common.Address, code []byte) {
	acc := s.requireAccount(addr)
	acc.setCode(crypto.Keccak256Hash(code), code)
}

// NewContract resets addr to a fresh account with the given balance,
// discarding any prior code or storage — the "create account at this
// address from scratch" primitive used when CREATE lands on a
// previously-used but dead address.
func (s *State) NewContract(addr common.Address, balance *uint256.Int, nonce uint64) {
	acc := newAccount(nonce)
	acc.Balance = new(uint256.Int).Set(balance)
	s.insertCache(addr, acc)
	s.markDirty(addr)
}

// KillAccount marks addr as removed. The removal is reflected in the cache
// immediately; it is only persisted to the trie on Commit.
func (s *State) KillAccount(addr common.Address) {
	s.insertCache(addr, nil)
	s.markDirty(addr)
}

// Commit flushes every address touched since the last Commit into the trie
// and returns the new state root. Commit requires the snapshot stack to be
// empty: committing through an open checkpoint would make that checkpoint
// unrevertable without anyone noticing.
func (s *State) Commit() (common.Hash, error) {
	if len(s.snapshots) != 0 {
		return common.Hash{}, ErrSnapshotNotEmpty
	}
	for addr := range s.dirty {
		acc, ok := s.cache[addr]
		if !ok {
			continue
		}
		if acc == nil {
			if err := s.trie.DeleteAccount(addr); err != nil {
				return common.Hash{}, err
			}
			continue
		}
		if err := acc.commitCode(s.db); err != nil {
			return common.Hash{}, err
		}
		if err := acc.commitStorage(s.db, addr); err != nil {
			return common.Hash{}, err
		}
		if err := s.trie.UpdateAccount(addr, acc.toStateAccount()); err != nil {
			return common.Hash{}, err
		}
	}
	s.dirty = make(map[common.Address]struct{})
	root, err := s.trie.Commit()
	if err != nil {
		return common.Hash{}, err
	}
	s.root = root
	return root, nil
}

// Drop discards every uncommitted mutation, returning the State to the
// cache state it had as of its last Commit (or New, if Commit was never
// called). Used when block enactment fails partway through and the State
// handle must not leak partial effects to whoever reuses it.
func (s *State) Drop() {
	s.cache = make(map[common.Address]*Account)
	s.snapshots = nil
	s.dirty = make(map[common.Address]struct{})
}
