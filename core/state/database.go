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
	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/triedb/hashdb"
)

// codeSizeCacheMiB sizes the in-process contract-code cache; large enough to
// avoid a disk round trip for the handful of hot contracts a single node
// touches repeatedly.
const codeSizeCacheMiB = 16

// Database is the narrow collaborator boundary State needs onto the trie and
// key/value layers: open an account trie at a root, read/write a single
// account's storage cells, and read/write contract bytecode by hash. Nothing
// above this interface knows about trie internals or the backing KV engine.
type Database interface {
	OpenTrie(root common.Hash) (Trie, error)
	CopyTrie(Trie) Trie

	StorageAt(addr common.Address, root common.Hash, key common.Hash) common.Hash
	CommitStorage(addr common.Address, root common.Hash, dirty map[common.Hash]common.Hash) (common.Hash, error)

	ContractCode(addr common.Address, codeHash common.Hash) []byte
	ContractCodeSize(addr common.Address, codeHash common.Hash) int
	InsertContractCode(codeHash common.Hash, code []byte) error

	TrieDB() *trie.Database
}

// Trie is the account-trie handle a Database opens for a given state root.
type Trie interface {
	GetAccount(addr common.Address) (*gethtypes.StateAccount, error)
	UpdateAccount(addr common.Address, account *gethtypes.StateAccount) error
	DeleteAccount(addr common.Address) error
	Commit() (common.Hash, error)
	Hash() common.Hash
}

// cachingDB is the concrete Database backing production use: a hash-scheme
// trie database layered over an ethdb.Database (leveldb in practice), plus an
// in-process code cache so repeated calls into the same contract don't each
// round-trip the KV store.
type cachingDB struct {
	disk      ethdb.Database
	triedb    *trie.Database
	codeCache *fastcache.Cache
}

// NewDatabase wraps disk in a Database suitable for State, using the
// hash-scheme trie backend, which matches this client's era-based journaldb
// pruning model rather than the newer path-scheme backend.
func NewDatabase(disk ethdb.Database) Database {
	triedb := trie.NewDatabase(disk, &trie.Config{HashDB: hashdb.Defaults})
	return &cachingDB{
		disk:      disk,
		triedb:    triedb,
		codeCache: fastcache.New(codeSizeCacheMiB * 1024 * 1024),
	}
}

func (db *cachingDB) TrieDB() *trie.Database { return db.triedb }

func (db *cachingDB) OpenTrie(root common.Hash) (Trie, error) {
	id := trie.StateTrieID(root)
	tr, err := trie.NewStateTrie(id, db.triedb)
	if err != nil {
		return nil, err
	}
	return &stateTrie{trie: tr, db: db.triedb}, nil
}

func (db *cachingDB) CopyTrie(t Trie) Trie {
	st := t.(*stateTrie)
	return &stateTrie{trie: st.trie.Copy(), db: db.triedb}
}

func (db *cachingDB) storageTrie(addr common.Address, root common.Hash) (*trie.StateTrie, error) {
	id := trie.StorageTrieID(root, crypto.Keccak256Hash(addr.Bytes()), root)
	return trie.NewStateTrie(id, db.triedb)
}

func (db *cachingDB) StorageAt(addr common.Address, root common.Hash, key common.Hash) common.Hash {
	tr, err := db.storageTrie(addr, root)
	if err != nil {
		log.Error("failed to open storage trie", "addr", addr, "root", root, "err", err)
		return common.Hash{}
	}
	enc, err := tr.GetStorage(addr, key.Bytes())
	if err != nil || len(enc) == 0 {
		return common.Hash{}
	}
	_, content, _, err := rlp.Split(enc)
	if err != nil {
		log.Error("failed to decode storage value", "addr", addr, "key", key, "err", err)
		return common.Hash{}
	}
	var v common.Hash
	v.SetBytes(content)
	return v
}

func (db *cachingDB) CommitStorage(addr common.Address, root common.Hash, dirty map[common.Hash]common.Hash) (common.Hash, error) {
	tr, err := db.storageTrie(addr, root)
	if err != nil {
		return common.Hash{}, err
	}
	for k, v := range dirty {
		if (v == common.Hash{}) {
			if err := tr.DeleteStorage(addr, k.Bytes()); err != nil {
				return common.Hash{}, err
			}
			continue
		}
		enc, _ := rlp.EncodeToBytes(common.TrimLeftZeroes(v.Bytes()))
		if err := tr.UpdateStorage(addr, k.Bytes(), enc); err != nil {
			return common.Hash{}, err
		}
	}
	newRoot, nodes, err := tr.Commit(false)
	if err != nil {
		return common.Hash{}, err
	}
	if nodes != nil {
		if err := db.triedb.Update(trie.NewWithNodeSet(nodes)); err != nil {
			return common.Hash{}, err
		}
	}
	return newRoot, nil
}

func (db *cachingDB) ContractCode(addr common.Address, codeHash common.Hash) []byte {
	if code, ok := db.codeCache.HasGet(nil, codeHash.Bytes()); ok {
		return code
	}
	code := rawdb.ReadCode(db.disk, codeHash)
	if len(code) > 0 {
		db.codeCache.Set(codeHash.Bytes(), code)
	}
	return code
}

func (db *cachingDB) ContractCodeSize(addr common.Address, codeHash common.Hash) int {
	return len(db.ContractCode(addr, codeHash))
}

func (db *cachingDB) InsertContractCode(codeHash common.Hash, code []byte) error {
	db.codeCache.Set(codeHash.Bytes(), code)
	rawdb.WriteCode(db.disk, codeHash, code)
	return nil
}

// stateTrie adapts *trie.StateTrie to the narrower Trie boundary State uses,
// folding the trie-database node-set update into Commit so callers never see
// a *trienode.NodeSet.
type stateTrie struct {
	trie *trie.StateTrie
	db   *trie.Database
}

func (t *stateTrie) GetAccount(addr common.Address) (*gethtypes.StateAccount, error) {
	return t.trie.GetAccount(addr)
}

func (t *stateTrie) UpdateAccount(addr common.Address, account *gethtypes.StateAccount) error {
	return t.trie.UpdateAccount(addr, account)
}

func (t *stateTrie) DeleteAccount(addr common.Address) error {
	return t.trie.DeleteAccount(addr)
}

func (t *stateTrie) Commit() (common.Hash, error) {
	root, nodes, err := t.trie.Commit(false)
	if err != nil {
		return common.Hash{}, err
	}
	if nodes != nil {
		if err := t.db.Update(trie.NewWithNodeSet(nodes)); err != nil {
			return common.Hash{}, err
		}
	}
	return root, nil
}

func (t *stateTrie) Hash() common.Hash { return t.trie.Hash() }
