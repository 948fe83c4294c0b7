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

package verifier

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/consensus/poa"
	coreblock "github.com/ethcorego/ethcore/core/block"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
)

type noopChain struct{}

func (noopChain) GetHeader(common.Hash, uint64) *types.Header { return nil }

// oneUncleEngine wraps a poa.Engine but allows a single uncle per block, so
// tests can exercise the ancestor-rejection path independently of the
// count-cap path (poa itself always caps at zero).
type oneUncleEngine struct{ *poa.Engine }

func (oneUncleEngine) MaximumUncleCount(uint64) int { return 1 }

func testSetup(t *testing.T) (*poa.Engine, common.Address, state.Database, *types.Header) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	engine := poa.New(poa.Config{Signers: []common.Address{addr}, Period: 0})
	engine.Authorize(addr, func(hash common.Hash) ([]byte, error) { return crypto.Sign(hash.Bytes(), key) })

	db := state.NewDatabase(rawdb.NewMemoryDatabase())
	st, err := state.New(common.Hash{}, db, 0)
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	st.AddBalance(addr, uint256.NewInt(1))
	root, err := st.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	genesis := &types.Header{
		StateRoot: root,
		Number:    0,
		Time:      uint64(time.Now().Add(-time.Hour).Unix()),
		Extra:     []byte{},
	}
	return engine, addr, db, genesis
}

// sealChild builds, closes and seals a single child block of parent.
func sealChild(t *testing.T, engine *poa.Engine, db state.Database, parent *types.Header, author common.Address) *coreblock.Sealed {
	t.Helper()
	o, err := coreblock.NewOpen(engine, db, parent, types.LastHashes{parent.Hash()}, author, nil)
	if err != nil {
		t.Fatalf("NewOpen: %v", err)
	}
	closed, err := o.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	seal, err := engine.Seal(closed.Header(), nil)
	if err != nil {
		t.Fatalf("engine.Seal: %v", err)
	}
	sealed, err := closed.Seal(engine, seal)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return sealed
}

func blockErrorField(t *testing.T, err error) string {
	t.Helper()
	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("error is not a *BlockError: %v", err)
	}
	return be.Field
}

func TestValidateBasicAcceptsConsistentBlock(t *testing.T) {
	engine, signer, db, genesis := testSetup(t)
	sealed := sealChild(t, engine, db, genesis, signer)
	blk := sealed.Block()

	if err := ValidateBasic(blk, gethtypes.FrontierSigner{}); err != nil {
		t.Fatalf("ValidateBasic: %v", err)
	}
}

func TestValidateBasicDetectsTxRootMismatch(t *testing.T) {
	engine, signer, db, genesis := testSetup(t)
	sealed := sealChild(t, engine, db, genesis, signer)
	blk := sealed.Block()
	blk.Header.TxRoot = common.HexToHash("0xdeadbeef")

	err := ValidateBasic(blk, gethtypes.FrontierSigner{})
	if field := blockErrorField(t, err); field != "transactions_root" {
		t.Fatalf("field = %q, want transactions_root", field)
	}
}

func TestValidateBasicDetectsUnclesHashMismatch(t *testing.T) {
	engine, signer, db, genesis := testSetup(t)
	sealed := sealChild(t, engine, db, genesis, signer)
	blk := sealed.Block()
	blk.Header.UnclesHash = common.HexToHash("0xdeadbeef")

	err := ValidateBasic(blk, gethtypes.FrontierSigner{})
	if field := blockErrorField(t, err); field != "uncles_hash" {
		t.Fatalf("field = %q, want uncles_hash", field)
	}
}

func TestValidateFamilyRejectsWrongNumber(t *testing.T) {
	engine, signer, db, genesis := testSetup(t)
	sealed := sealChild(t, engine, db, genesis, signer)
	blk := sealed.Block()
	blk.Header.Number = 5

	err := ValidateFamily(noopChain{}, engine, blk, genesis, types.LastHashes{genesis.Hash()})
	if field := blockErrorField(t, err); field != "number" {
		t.Fatalf("field = %q, want number", field)
	}
}

func TestValidateFamilyRejectsGasLimitJump(t *testing.T) {
	engine, signer, db, genesis := testSetup(t)
	genesis.GasLimit = 1_000_000
	sealed := sealChild(t, engine, db, genesis, signer)
	blk := sealed.Block()
	blk.Header.GasLimit = 2_000_000 // far beyond the 1/1024 bound

	err := ValidateFamily(noopChain{}, engine, blk, genesis, types.LastHashes{genesis.Hash()})
	if field := blockErrorField(t, err); field != "gas_limit" {
		t.Fatalf("field = %q, want gas_limit", field)
	}
}

func TestValidateFamilyRejectsAncestorUncle(t *testing.T) {
	engine, signer, db, genesis := testSetup(t)
	sealed := sealChild(t, engine, db, genesis, signer)
	blk := sealed.Block()
	blk.Uncles = []*types.Header{genesis}

	lastHashes := types.LastHashes{blk.Header.ParentHash}
	err := ValidateFamily(noopChain{}, oneUncleEngine{engine}, blk, genesis, lastHashes)
	if err == nil {
		t.Fatalf("expected ancestor-uncle rejection, got nil")
	}
	if !errors.Is(err, ErrUncleIsAncestor) {
		t.Fatalf("got %v, want ErrUncleIsAncestor", err)
	}
}

func TestValidateFinalDetectsStateRootMismatch(t *testing.T) {
	_, _, _, genesis := testSetup(t)
	candidate := genesis.Copy()
	got := genesis.Copy()
	got.StateRoot = common.HexToHash("0xcafebabe")

	err := ValidateFinal(candidate, got)
	if field := blockErrorField(t, err); field != "state_root" {
		t.Fatalf("field = %q, want state_root", field)
	}
}

func TestValidateFinalAcceptsIdenticalHeaders(t *testing.T) {
	_, _, _, genesis := testSetup(t)
	candidate := genesis.Copy()
	got := genesis.Copy()

	if err := ValidateFinal(candidate, got); err != nil {
		t.Fatalf("ValidateFinal: %v", err)
	}
}
