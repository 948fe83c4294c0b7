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
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// set holds transactions accessible both by (sender, nonce) and by
// priority. It does not enforce its limit on every insert/remove —
// enforceLimit must be called explicitly, mirroring the source's own
// split between mutation and limit maintenance.
type set struct {
	byPriority []order // kept sorted ascending by order.less
	byAddress  map[common.Address]map[uint64]order
	limit      int
}

func newSet(limit int) *set {
	return &set{byAddress: make(map[common.Address]map[uint64]order), limit: limit}
}

func (s *set) len() int { return len(s.byPriority) }

// insert adds order under (sender, nonce), returning the order it
// displaced, if (sender, nonce) already had an entry.
func (s *set) insert(sender common.Address, nonce uint64, o order) (order, bool) {
	s.insertPriority(o)
	row, ok := s.byAddress[sender]
	if !ok {
		row = make(map[uint64]order)
		s.byAddress[sender] = row
	}
	old, hadOld := row[nonce]
	row[nonce] = o
	if hadOld {
		s.removePriority(old)
	}
	return old, hadOld
}

func (s *set) insertPriority(o order) {
	i := sort.Search(len(s.byPriority), func(i int) bool { return !s.byPriority[i].less(o) })
	s.byPriority = append(s.byPriority, order{})
	copy(s.byPriority[i+1:], s.byPriority[i:])
	s.byPriority[i] = o
}

func (s *set) removePriority(o order) {
	for i, cur := range s.byPriority {
		if cur.hash == o.hash {
			s.byPriority = append(s.byPriority[:i], s.byPriority[i+1:]...)
			return
		}
	}
}

// drop removes the entry at (sender, nonce), if any.
func (s *set) drop(sender common.Address, nonce uint64) (order, bool) {
	row, ok := s.byAddress[sender]
	if !ok {
		return order{}, false
	}
	o, ok := row[nonce]
	if !ok {
		return order{}, false
	}
	delete(row, nonce)
	if len(row) == 0 {
		delete(s.byAddress, sender)
	}
	s.removePriority(o)
	return o, true
}

// noncesOf returns the nonces this set currently holds for sender.
func (s *set) noncesOf(sender common.Address) []uint64 {
	row, ok := s.byAddress[sender]
	if !ok {
		return nil
	}
	nonces := make([]uint64, 0, len(row))
	for n := range row {
		nonces = append(nonces, n)
	}
	return nonces
}

// enforceLimit drops the lowest-priority entries beyond s.limit, removing
// their backing transactions from byHash too.
func (s *set) enforceLimit(byHash map[common.Hash]pooledTx) {
	if len(s.byPriority) <= s.limit {
		return
	}
	type victim struct {
		sender common.Address
		nonce  uint64
	}
	var drop []victim
	for _, o := range s.byPriority[s.limit:] {
		tx, ok := byHash[o.hash]
		if !ok {
			continue
		}
		drop = append(drop, victim{tx.sender, tx.nonce})
	}
	for _, v := range drop {
		if o, ok := s.drop(v.sender, v.nonce); ok {
			delete(byHash, o.hash)
		}
	}
}

func (s *set) clear() {
	s.byPriority = nil
	s.byAddress = make(map[common.Address]map[uint64]order)
}
