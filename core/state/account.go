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

// Package state implements a cached, Merkleized, snapshot/revert view of all
// accounts rooted at a state root. The cache-coherence and snapshot-stack
// design is ported from Parity's ethcore::state::State rather than
// go-ethereum's linear journal, because the required snapshot laws (nested
// snapshot/revert, clear_snapshot merge-by-entry) are exactly Parity's
// documented contract.
package state

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// emptyCodeHash is the keccak256 of an empty byte string — the code hash of
// an account with no code.
var emptyCodeHash = crypto.Keccak256Hash(nil)

// Account is a single account: balance, nonce, lazily-loaded code, and a
// write-through storage overlay rooted at Root. Mutating methods write
// through to the dirty overlay only; Commit flushes the overlay into the
// owning State's database and updates Root.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	Root     common.Hash
	CodeHash common.Hash

	code       []byte // cached contract bytecode, loaded lazily
	codeCached bool

	originStorage map[common.Hash]common.Hash // committed values, read-cache only
	dirtyStorage  map[common.Hash]common.Hash // overlay of uncommitted writes

	dirtyStorageFlag bool
	dirtyCodeFlag    bool
}

// newAccount returns a fresh, empty account (balance 0, nonce
// accountStartNonce, no code, empty storage root).
func newAccount(startNonce uint64) *Account {
	return &Account{
		Nonce:         startNonce,
		Balance:       new(uint256.Int),
		CodeHash:      emptyCodeHash,
		originStorage: make(map[common.Hash]common.Hash),
		dirtyStorage:  make(map[common.Hash]common.Hash),
	}
}

// fromStateAccount adapts the trie's big.Int-denominated StateAccount into
// our uint256-denominated Account, at the one boundary where the two
// representations meet.
func fromStateAccount(sa *gethtypes.StateAccount) *Account {
	bal, _ := uint256.FromBig(sa.Balance)
	var codeHash common.Hash
	codeHash.SetBytes(sa.CodeHash)
	return &Account{
		Nonce:         sa.Nonce,
		Balance:       bal,
		Root:          sa.Root,
		CodeHash:      codeHash,
		originStorage: make(map[common.Hash]common.Hash),
		dirtyStorage:  make(map[common.Hash]common.Hash),
	}
}

// toStateAccount converts a to the trie's persisted representation.
func (a *Account) toStateAccount() *gethtypes.StateAccount {
	return &gethtypes.StateAccount{
		Nonce:    a.Nonce,
		Balance:  a.Balance.ToBig(),
		Root:     a.Root,
		CodeHash: a.CodeHash.Bytes(),
	}
}

// Copy returns a deep copy of a, safe to mutate independently. Used to
// snapshot the cache's prior value of an address before mutating the live
// entry in place.
func (a *Account) Copy() *Account {
	cp := &Account{
		Nonce:            a.Nonce,
		Balance:          new(uint256.Int).Set(a.Balance),
		Root:             a.Root,
		CodeHash:         a.CodeHash,
		code:             a.code,
		codeCached:       a.codeCached,
		dirtyStorageFlag: a.dirtyStorageFlag,
		dirtyCodeFlag:    a.dirtyCodeFlag,
		originStorage:    make(map[common.Hash]common.Hash, len(a.originStorage)),
		dirtyStorage:     make(map[common.Hash]common.Hash, len(a.dirtyStorage)),
	}
	for k, v := range a.originStorage {
		cp.originStorage[k] = v
	}
	for k, v := range a.dirtyStorage {
		cp.dirtyStorage[k] = v
	}
	return cp
}

// Empty reports whether the account is empty: zero balance, zero nonce, no
// code.
func (a *Account) Empty() bool {
	return a.Balance.IsZero() && a.Nonce == 0 && a.CodeHash == emptyCodeHash
}

func (a *Account) setStorage(key, value common.Hash) {
	a.dirtyStorage[key] = value
	a.dirtyStorageFlag = true
}

func (a *Account) storageAt(db Database, addr common.Address, key common.Hash) common.Hash {
	if v, ok := a.dirtyStorage[key]; ok {
		return v
	}
	if v, ok := a.originStorage[key]; ok {
		return v
	}
	v := db.StorageAt(addr, a.Root, key)
	a.originStorage[key] = v
	return v
}

func (a *Account) setCode(hash common.Hash, code []byte) {
	a.code = code
	a.codeCached = true
	a.CodeHash = hash
	a.dirtyCodeFlag = true
}

func (a *Account) getCode(db Database, addr common.Address) []byte {
	if a.codeCached {
		return a.code
	}
	if a.CodeHash == emptyCodeHash {
		a.codeCached = true
		return nil
	}
	code := db.ContractCode(addr, a.CodeHash)
	a.code = code
	a.codeCached = true
	return code
}

// commitStorage flushes the dirty storage overlay into the account's
// storage subtrie and updates Root. Only dirty cells are written.
func (a *Account) commitStorage(db Database, addr common.Address) error {
	if !a.dirtyStorageFlag {
		return nil
	}
	root, err := db.CommitStorage(addr, a.Root, a.dirtyStorage)
	if err != nil {
		return err
	}
	for k, v := range a.dirtyStorage {
		a.originStorage[k] = v
	}
	a.dirtyStorage = make(map[common.Hash]common.Hash)
	a.dirtyStorageFlag = false
	a.Root = root
	return nil
}

// commitCode persists the account's code under its hash if it is new.
func (a *Account) commitCode(db Database) error {
	if !a.dirtyCodeFlag {
		return nil
	}
	if a.CodeHash != emptyCodeHash && len(a.code) > 0 {
		if err := db.InsertContractCode(a.CodeHash, a.code); err != nil {
			return err
		}
	}
	a.dirtyCodeFlag = false
	return nil
}
