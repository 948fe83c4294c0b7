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

package chainindex

import "github.com/ethereum/go-ethereum/common"

// Route is the ancestors-to-drop/ancestors-to-add decomposition of a chain
// reorganization between two block hashes: Retracted lists the blocks on
// the "from" branch to unwind (deepest first), Enacted lists the blocks on
// the "to" branch to apply (oldest first), and Ancestor is their common
// ancestor.
type Route struct {
	Retracted []common.Hash
	Enacted   []common.Hash
	Ancestor  common.Hash
}

// TreeRoute walks both chains back to their common ancestor using the
// details index, then reports which blocks must be retracted from "from"
// and which must be enacted to reach "to" — the information a reorg needs
// without ever touching full headers or bodies.
func (idx *Index) TreeRoute(from, to common.Hash) (Route, error) {
	fromDetails, err := idx.GetDetails(from)
	if err != nil {
		return Route{}, err
	}
	toDetails, err := idx.GetDetails(to)
	if err != nil {
		return Route{}, err
	}

	fromChain := []common.Hash{from}
	fromNumber := fromDetails.Number
	fromHash, fromParent := from, fromDetails.ParentHash

	toChain := []common.Hash{to}
	toNumber := toDetails.Number
	toHash, toParent := to, toDetails.ParentHash

	// Walk the deeper branch up until both are level.
	for fromNumber > toNumber {
		fromHash = fromParent
		fromChain = append(fromChain, fromHash)
		d, err := idx.GetDetails(fromHash)
		if err != nil {
			return Route{}, err
		}
		fromParent = d.ParentHash
		fromNumber--
	}
	for toNumber > fromNumber {
		toHash = toParent
		toChain = append(toChain, toHash)
		d, err := idx.GetDetails(toHash)
		if err != nil {
			return Route{}, err
		}
		toParent = d.ParentHash
		toNumber--
	}

	// Walk both branches together until they meet.
	for fromHash != toHash {
		fromHash = fromParent
		fromChain = append(fromChain, fromHash)
		fd, err := idx.GetDetails(fromHash)
		if err != nil {
			return Route{}, err
		}
		fromParent = fd.ParentHash

		toHash = toParent
		toChain = append(toChain, toHash)
		td, err := idx.GetDetails(toHash)
		if err != nil {
			return Route{}, err
		}
		toParent = td.ParentHash
	}

	retracted := fromChain[:len(fromChain)-1]
	enacted := make([]common.Hash, 0, len(toChain)-1)
	for i := len(toChain) - 2; i >= 0; i-- {
		enacted = append(enacted, toChain[i])
	}
	return Route{Retracted: retracted, Enacted: enacted, Ancestor: fromHash}, nil
}
