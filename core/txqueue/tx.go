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
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// pooledTx is a transaction that has already had its sender recovered,
// the pool's equivalent of the source's VerifiedTransaction: every
// transaction admitted to current or future has gone through this
// recovery exactly once, so no queue operation ever needs a signer again.
type pooledTx struct {
	tx       *gethtypes.Transaction
	sender   common.Address
	nonce    uint64
	gasPrice *uint256.Int
	hash     common.Hash
}

// newPooledTx recovers tx's sender and wraps it, failing the way the
// source's VerifiedTransaction::new does when sender recovery fails.
func newPooledTx(tx *gethtypes.Transaction, signer gethtypes.Signer) (pooledTx, error) {
	sender, err := signer.Sender(tx)
	if err != nil {
		return pooledTx{}, err
	}
	gasPrice, overflow := uint256.FromBig(tx.GasPrice())
	if overflow {
		gasPrice = uint256.NewInt(0)
	}
	return pooledTx{
		tx:       tx,
		sender:   sender,
		nonce:    tx.Nonce(),
		gasPrice: gasPrice,
		hash:     tx.Hash(),
	}, nil
}
