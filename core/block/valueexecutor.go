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

package block

import (
	"errors"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/consensus"
	"github.com/ethcorego/ethcore/core/state"
)

var (
	errNonceMismatch       = errors.New("block: transaction nonce does not match account state")
	errInsufficientBalance = errors.New("block: sender balance cannot cover value and gas")
	errContractCallUnsupported = errors.New("block: transaction carries call data, which needs an EVM this node does not embed")
)

// ValueTransferExecutor is the simplest Executor that satisfies the
// abstract "apply transaction" contract without an EVM: it moves value
// between two externally-owned accounts and charges the transaction's full
// gas limit at its gas price, rejecting anything that would need code
// execution. It exists so a node can be run end-to-end on plain value
// transfers; a real EVM implementation is a drop-in replacement for it.
type ValueTransferExecutor struct{}

// Execute implements Executor.
func (ValueTransferExecutor) Execute(env EnvInfo, engine consensus.Engine, st *state.State, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	if len(tx.Data()) > 0 {
		return nil, errContractCallUnsupported
	}
	signer := gethtypes.LatestSignerForChainID(tx.ChainId())
	from, err := signer.Sender(tx)
	if err != nil {
		return nil, err
	}

	if st.Nonce(from) != tx.Nonce() {
		return nil, errNonceMismatch
	}

	gasPrice, overflow := uint256.FromBig(tx.GasPrice())
	if overflow {
		return nil, errInsufficientBalance
	}
	fee := new(uint256.Int).Mul(gasPrice, uint256.NewInt(tx.Gas()))
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, errInsufficientBalance
	}
	cost := new(uint256.Int).Add(fee, value)
	if st.Balance(from).Cmp(cost) < 0 {
		return nil, errInsufficientBalance
	}

	st.SubBalance(from, cost)
	if to := tx.To(); to != nil {
		st.AddBalance(*to, value)
	}
	st.IncNonce(from)

	// PostState (the root-based receipt spec.md §3/§6 calls for) is filled
	// in by the caller once it has committed this execution's mutations —
	// Execute itself only has the pre-commit root to offer.
	receipt := &gethtypes.Receipt{
		Type:              tx.Type(),
		TxHash:            tx.Hash(),
		GasUsed:           tx.Gas(),
		CumulativeGasUsed: env.GasUsed + tx.Gas(),
	}
	return receipt, nil
}
