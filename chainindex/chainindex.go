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

// Package chainindex is the durable by-hash/by-number record of every block
// the client has imported: header and body bytes, receipts, and the small
// per-block "details" record (parent hash, total difficulty, number) that
// lets tree-route computation walk the chain without re-decoding full
// headers. It is deliberately the last thing an import touches — the state
// DB commit that backs a block must already be durable before the block
// becomes visible here, so a crash between the two never leaves the index
// pointing at state that doesn't exist.
package chainindex

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ethcorego/ethcore/core/types"
)

// ErrUnknownBlock is returned by any accessor asked about a hash this index
// has never stored.
var ErrUnknownBlock = errors.New("chainindex: unknown block")

const (
	headerPrefix  = 'h'
	bodyPrefix    = 'b'
	receiptPrefix = 'r'
	detailsPrefix = 'd'
	numberPrefix  = 'n'
)

// Details is the small per-block record needed for tree-route and
// total-difficulty bookkeeping without touching the (much larger) header.
type Details struct {
	ParentHash      common.Hash
	TotalDifficulty *uint256.Int
	Number          uint64
}

type detailsRLP struct {
	ParentHash      common.Hash
	TotalDifficulty *uint256.Int
	Number          uint64
}

func (d *Details) toRLP() detailsRLP {
	return detailsRLP{d.ParentHash, d.TotalDifficulty, d.Number}
}

// Index is the durable chain index backed by kv, with an in-process LRU
// cache of recently touched headers/bodies/receipts/details sized by
// cacheSize — the teacher's own header/body/td cache idiom, generalized to
// this chain's record shapes.
type Index struct {
	kv ethdb.Database

	mu sync.RWMutex

	headers  *lru.Cache
	bodies   *lru.Cache
	receipts *lru.Cache
	details  *lru.Cache
}

// New constructs an Index over kv with an LRU cache of cacheSize entries
// per record kind (headers, bodies, receipts, details).
func New(kv ethdb.Database, cacheSize int) (*Index, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	headers, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	bodies, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	receipts, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	details, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Index{kv: kv, headers: headers, bodies: bodies, receipts: receipts, details: details}, nil
}

func numberKey(number uint64) []byte {
	key := make([]byte, 9)
	key[0] = numberPrefix
	binary.BigEndian.PutUint64(key[1:], number)
	return key
}

func hashKey(prefix byte, hash common.Hash) []byte {
	key := make([]byte, 1+common.HashLength)
	key[0] = prefix
	copy(key[1:], hash[:])
	return key
}

// Store records a newly imported block: its header, body, receipts and
// details, plus the canonical number→hash mapping. Callers must only call
// this once the block's state has already been committed durably — the
// index is the visible half of "this block is known" and must never lead
// the state DB.
func (idx *Index) Store(header *types.Header, body *types.Body, receipts gethtypes.Receipts, details Details) error {
	hash := header.Hash()

	headerBytes, err := rlp.EncodeToBytes(header)
	if err != nil {
		return err
	}
	bodyBytes, err := rlp.EncodeToBytes(body)
	if err != nil {
		return err
	}
	receiptBytes, err := rlp.EncodeToBytes(receipts)
	if err != nil {
		return err
	}
	detailsBytes, err := rlp.EncodeToBytes(details.toRLP())
	if err != nil {
		return err
	}

	batch := idx.kv.NewBatch()
	if err := batch.Put(hashKey(headerPrefix, hash), headerBytes); err != nil {
		return err
	}
	if err := batch.Put(hashKey(bodyPrefix, hash), bodyBytes); err != nil {
		return err
	}
	if err := batch.Put(hashKey(receiptPrefix, hash), receiptBytes); err != nil {
		return err
	}
	if err := batch.Put(hashKey(detailsPrefix, hash), detailsBytes); err != nil {
		return err
	}
	if err := batch.Put(numberKey(details.Number), hash[:]); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.headers.Add(hash, header)
	idx.bodies.Add(hash, body)
	idx.receipts.Add(hash, receipts)
	idx.details.Add(hash, &details)
	idx.mu.Unlock()
	return nil
}

// IsKnown reports whether hash has been stored.
func (idx *Index) IsKnown(hash common.Hash) bool {
	idx.mu.RLock()
	if _, ok := idx.headers.Get(hash); ok {
		idx.mu.RUnlock()
		return true
	}
	idx.mu.RUnlock()
	has, err := idx.kv.Has(hashKey(headerPrefix, hash))
	return err == nil && has
}

// GetHeader returns the header stored under hash.
func (idx *Index) GetHeader(hash common.Hash) (*types.Header, error) {
	idx.mu.RLock()
	if v, ok := idx.headers.Get(hash); ok {
		idx.mu.RUnlock()
		return v.(*types.Header), nil
	}
	idx.mu.RUnlock()

	raw, err := idx.kv.Get(hashKey(headerPrefix, hash))
	if err != nil {
		return nil, ErrUnknownBlock
	}
	header := new(types.Header)
	if err := rlp.DecodeBytes(raw, header); err != nil {
		return nil, err
	}
	idx.mu.Lock()
	idx.headers.Add(hash, header)
	idx.mu.Unlock()
	return header, nil
}

// GetBody returns the body stored under hash.
func (idx *Index) GetBody(hash common.Hash) (*types.Body, error) {
	idx.mu.RLock()
	if v, ok := idx.bodies.Get(hash); ok {
		idx.mu.RUnlock()
		return v.(*types.Body), nil
	}
	idx.mu.RUnlock()

	raw, err := idx.kv.Get(hashKey(bodyPrefix, hash))
	if err != nil {
		return nil, ErrUnknownBlock
	}
	body := new(types.Body)
	if err := rlp.DecodeBytes(raw, body); err != nil {
		return nil, err
	}
	idx.mu.Lock()
	idx.bodies.Add(hash, body)
	idx.mu.Unlock()
	return body, nil
}

// GetReceipts returns the receipts stored under hash.
func (idx *Index) GetReceipts(hash common.Hash) (gethtypes.Receipts, error) {
	idx.mu.RLock()
	if v, ok := idx.receipts.Get(hash); ok {
		idx.mu.RUnlock()
		return v.(gethtypes.Receipts), nil
	}
	idx.mu.RUnlock()

	raw, err := idx.kv.Get(hashKey(receiptPrefix, hash))
	if err != nil {
		return nil, ErrUnknownBlock
	}
	var receipts gethtypes.Receipts
	if err := rlp.DecodeBytes(raw, &receipts); err != nil {
		return nil, err
	}
	idx.mu.Lock()
	idx.receipts.Add(hash, receipts)
	idx.mu.Unlock()
	return receipts, nil
}

// GetDetails returns the details record stored under hash.
func (idx *Index) GetDetails(hash common.Hash) (Details, error) {
	idx.mu.RLock()
	if v, ok := idx.details.Get(hash); ok {
		idx.mu.RUnlock()
		return *(v.(*Details)), nil
	}
	idx.mu.RUnlock()

	raw, err := idx.kv.Get(hashKey(detailsPrefix, hash))
	if err != nil {
		return Details{}, ErrUnknownBlock
	}
	var d detailsRLP
	if err := rlp.DecodeBytes(raw, &d); err != nil {
		return Details{}, err
	}
	details := Details{ParentHash: d.ParentHash, TotalDifficulty: d.TotalDifficulty, Number: d.Number}
	idx.mu.Lock()
	idx.details.Add(hash, &details)
	idx.mu.Unlock()
	return details, nil
}

// CanonicalHash returns the canonical block hash at number.
func (idx *Index) CanonicalHash(number uint64) (common.Hash, bool) {
	raw, err := idx.kv.Get(numberKey(number))
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(raw), true
}
