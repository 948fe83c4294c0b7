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

package client

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/consensus"
	"github.com/ethcorego/ethcore/consensus/poa"
	coreblock "github.com/ethcorego/ethcore/core/block"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
)

// noTxExecutor is a block.Executor that is never invoked because none of
// these tests include transactions — sealing and import still exercise
// every other stage of the pipeline (family checks, replay, commit, index).
type noTxExecutor struct{}

func (noTxExecutor) Execute(coreblock.EnvInfo, consensus.Engine, *state.State, *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	panic("no transactions expected in client tests")
}

func newTestClient(t *testing.T) (*Client, *poa.Engine, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	engine := poa.New(poa.Config{Signers: []common.Address{addr}, Period: 0})
	engine.Authorize(addr, func(hash common.Hash) ([]byte, error) { return crypto.Sign(hash.Bytes(), key) })

	kv := rawdb.NewMemoryDatabase()
	db := state.NewDatabase(kv)
	st, err := state.New(common.Hash{}, db, engine.AccountStartNonce())
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	st.AddBalance(addr, uint256.NewInt(1))
	root, err := st.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	genesis := &types.Header{
		StateRoot:  root,
		Number:     0,
		Time:       uint64(time.Now().Add(-time.Hour).Unix()),
		Extra:      []byte{},
		Difficulty: uint256.NewInt(1),
	}

	c, err := New(Config{History: 1000, CacheSize: 64, QueueWorkers: 2}, kv, engine, gethtypes.FrontierSigner{}, noTxExecutor{}, genesis)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, engine, addr
}

// sealChild mirrors core/verifier's own helper: build, close and seal a
// single child of parent.
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

func waitQueueVerified(t *testing.T, c *Client, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.queue.Info().Verified >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue never reached %d verified blocks, last info = %+v", want, c.queue.Info())
}

func TestImportPipelineAdvancesBestBlockAndIndex(t *testing.T) {
	c, engine, author := newTestClient(t)
	defer c.Close()

	db := c.stateDB
	parent := c.BestHeader()

	var hashes []common.Hash
	for i := 0; i < 3; i++ {
		sealed := sealChild(t, engine, db, parent, author)
		blk := sealed.Block()
		raw, err := blk.EncodeBytes()
		if err != nil {
			t.Fatalf("EncodeBytes: %v", err)
		}
		if _, err := c.ImportBlock(raw); err != nil {
			t.Fatalf("ImportBlock(%d): %v", i, err)
		}
		hashes = append(hashes, blk.Header.Hash())
		parent = blk.Header
	}

	waitQueueVerified(t, c, 3)

	report, err := c.ImportVerifiedBlocks()
	if err != nil {
		t.Fatalf("ImportVerifiedBlocks: %v", err)
	}
	if report.ImportedBlocks != 3 {
		t.Fatalf("ImportedBlocks = %d, want 3", report.ImportedBlocks)
	}
	if report.BadBlocks != 0 {
		t.Fatalf("BadBlocks = %d, want 0", report.BadBlocks)
	}

	for _, h := range hashes {
		if !c.index.IsKnown(h) {
			t.Fatalf("index does not know imported hash %s", h)
		}
	}
	if c.BestHeader().Hash() != hashes[len(hashes)-1] {
		t.Fatalf("BestHeader = %s, want %s", c.BestHeader().Hash(), hashes[len(hashes)-1])
	}
}

func TestImportBlockRejectsAlreadyKnownHash(t *testing.T) {
	c, engine, author := newTestClient(t)
	defer c.Close()

	sealed := sealChild(t, engine, c.stateDB, c.BestHeader(), author)
	raw, err := sealed.Block().EncodeBytes()
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	if _, err := c.ImportBlock(raw); err != nil {
		t.Fatalf("first ImportBlock: %v", err)
	}
	waitQueueVerified(t, c, 1)
	if _, err := c.ImportVerifiedBlocks(); err != nil {
		t.Fatalf("ImportVerifiedBlocks: %v", err)
	}
	if _, err := c.ImportBlock(raw); err != ErrAlreadyInChain {
		t.Fatalf("re-import = %v, want ErrAlreadyInChain", err)
	}
}

func TestAncestorBadInBatchAbortsDescendants(t *testing.T) {
	c, engine, author := newTestClient(t)
	defer c.Close()

	good := sealChild(t, engine, c.stateDB, c.BestHeader(), author)
	rawGood, _ := good.Block().EncodeBytes()

	// Corrupt a second, independently-sealed block's declared state root so
	// stage 3 (post-replay) verification rejects it, then chain a third
	// block off the corrupted one — it must be marked bad too, without ever
	// reaching Enact.
	bad := sealChild(t, engine, c.stateDB, good.Header(), author)
	badBlock := bad.Block()
	badBlock.Header.StateRoot = common.HexToHash("0xdeadbeef")
	rawBad, err := badBlock.EncodeBytes()
	if err != nil {
		t.Fatalf("EncodeBytes(bad): %v", err)
	}

	child := sealChild(t, engine, c.stateDB, badBlock.Header, author)
	rawChild, _ := child.Block().EncodeBytes()

	if _, err := c.ImportBlock(rawGood); err != nil {
		t.Fatalf("ImportBlock(good): %v", err)
	}
	if _, err := c.ImportBlock(rawBad); err != nil {
		t.Fatalf("ImportBlock(bad): %v", err)
	}
	if _, err := c.ImportBlock(rawChild); err != nil {
		t.Fatalf("ImportBlock(child): %v", err)
	}
	waitQueueVerified(t, c, 3)

	report, err := c.ImportVerifiedBlocks()
	if err != nil {
		t.Fatalf("ImportVerifiedBlocks: %v", err)
	}
	if report.ImportedBlocks != 1 {
		t.Fatalf("ImportedBlocks = %d, want 1 (only the good block)", report.ImportedBlocks)
	}
	if report.BadBlocks != 2 {
		t.Fatalf("BadBlocks = %d, want 2 (bad + its child)", report.BadBlocks)
	}
	if c.index.IsKnown(badBlock.Header.Hash()) {
		t.Fatalf("bad block must not be indexed")
	}
	if c.index.IsKnown(child.Header().Hash()) {
		t.Fatalf("child of a bad block must not be indexed")
	}
}
