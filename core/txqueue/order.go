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

// Package txqueue implements a two-tier priority transaction pool: current
// holds transactions that form a contiguous nonce chain from each sender's
// next expected nonce, future holds everything with a nonce gap. Top
// priority within a tier goes to the lowest nonce_height, then the highest
// gas price, then the lowest hash, breaking all ties deterministically.
package txqueue

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// order is the light sort key identifying a pooled transaction and its
// priority, kept separate from the transaction itself so the priority set
// can be searched and reordered without touching the (larger) tx value.
type order struct {
	nonceHeight uint64       // tx.nonce - base_nonce at the time this order was computed
	gasPrice    *uint256.Int
	hash        common.Hash
}

func orderFor(tx pooledTx, baseNonce uint64) order {
	return order{
		nonceHeight: tx.nonce - baseNonce,
		gasPrice:    tx.gasPrice,
		hash:        tx.hash,
	}
}

// withHeight returns o updated to reflect nonce's height over baseNonce,
// following a base-nonce recalculation.
func (o order) withHeight(nonce, baseNonce uint64) order {
	o.nonceHeight = nonce - baseNonce
	return o
}

// less implements the strict weak order every priority set is kept under:
// lower nonce_height first, then higher gas price, then lower hash.
func (o order) less(other order) bool {
	if o.nonceHeight != other.nonceHeight {
		return o.nonceHeight < other.nonceHeight
	}
	if cmp := o.gasPrice.Cmp(other.gasPrice); cmp != 0 {
		return cmp > 0
	}
	return bytes.Compare(o.hash[:], other.hash[:]) < 0
}
