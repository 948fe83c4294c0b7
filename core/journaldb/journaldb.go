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

// Package journaldb wraps an ethdb.Database with reference-counted node
// storage and an era-keyed journal: Insert counts a reference as a node is
// written, every committed block's released trie nodes are recorded under
// that block's number, and once an era falls behind the retention horizon
// its released nodes are dereferenced and any node left with no reference is
// physically deleted. In archive mode nothing is ever pruned.
package journaldb

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultHistory is the number of most-recent eras kept regardless of
// reference count — the pruned-mode retention horizon.
const DefaultHistory = 1000

type entry struct {
	hash     common.Hash // block hash this era's journal was recorded under
	released []common.Hash
}

// Database is a pruning KV wrapper keyed by block era.
type Database struct {
	kv      ethdb.Database
	history uint64
	archive bool

	mu      sync.Mutex
	refs    map[common.Hash]uint32
	eras    map[uint64][]entry // number -> journal entries recorded at that era
	latest  uint64
	hasAny  bool
}

// New builds a Database over kv, retaining history eras of prunable nodes
// (ignored when archive is true).
func New(kv ethdb.Database, history uint64, archive bool) *Database {
	if history == 0 {
		history = DefaultHistory
	}
	return &Database{
		kv:      kv,
		history: history,
		archive: archive,
		refs:    make(map[common.Hash]uint32),
		eras:    make(map[uint64][]entry),
	}
}

// Get reads a node by hash, passing through to the backing store.
func (d *Database) Get(hash common.Hash) ([]byte, error) {
	return d.kv.Get(hash.Bytes())
}

// Has reports whether hash is present in the backing store.
func (d *Database) Has(hash common.Hash) (bool, error) {
	return d.kv.Has(hash.Bytes())
}

// Insert writes value under hash and bumps its reference count. Safe to
// call more than once for the same hash across different commits; the
// value is only physically written on the first insert.
func (d *Database) Insert(hash common.Hash, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs[hash] == 0 {
		if err := d.kv.Put(hash.Bytes(), value); err != nil {
			return err
		}
	}
	d.refs[hash]++
	return nil
}

// Commit records the set of node hashes this block released (superseded by
// a new trie revision and no longer reachable from its own state root)
// under (number, hash), then, unless archive mode is set, prunes the era
// that has just fallen behind the retention horizon. Newly referenced
// nodes are already accounted for by Insert and need no further recording
// here; released nodes are not deleted immediately — a reorg within the
// retention window may still need them — they are dereferenced only once
// their era is pruned.
func (d *Database) Commit(number uint64, hash common.Hash, released []common.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.eras[number] = append(d.eras[number], entry{hash: hash, released: released})
	if !d.hasAny || number > d.latest {
		d.latest = number
		d.hasAny = true
	}

	if d.archive || d.latest < d.history {
		return nil
	}
	return d.pruneLocked(d.latest - d.history)
}

// pruneLocked finalizes the given era, now behind the retention horizon:
// every entry recorded at that number has its released nodes dereferenced,
// deleting any hash whose count reaches zero. Callers are expected to have
// already resolved which block at that number is canonical (the chain
// index's ancient-commit contract) before reaching Commit, so every
// recorded entry here is treated as having actually happened.
func (d *Database) pruneLocked(era uint64) error {
	entries, ok := d.eras[era]
	if !ok {
		return nil
	}
	delete(d.eras, era)

	for _, e := range entries {
		for _, h := range e.released {
			if err := d.dereferenceLocked(h); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Database) dereferenceLocked(hash common.Hash) error {
	n, ok := d.refs[hash]
	if !ok || n == 0 {
		log.Warn("journaldb: dereferenced a node with no outstanding reference", "hash", hash)
		return nil
	}
	n--
	if n == 0 {
		delete(d.refs, hash)
		return d.kv.Delete(hash.Bytes())
	}
	d.refs[hash] = n
	return nil
}

// RefCount returns hash's current reference count, for tests and
// diagnostics.
func (d *Database) RefCount(hash common.Hash) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs[hash]
}

// EarliestEra returns the oldest era still journaled, and whether any era
// is journaled at all.
func (d *Database) EarliestEra() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.eras) == 0 {
		return 0, false
	}
	earliest := d.latest
	for n := range d.eras {
		if n < earliest {
			earliest = n
		}
	}
	return earliest, true
}

