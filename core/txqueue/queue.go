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
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ErrOldNonce is returned when a transaction's nonce has already been
// consumed on-chain, mirroring the source's "nonce too low" rejection at
// the very front of import, before the transaction ever touches a tier.
var ErrOldNonce = errors.New("txqueue: nonce already used")

// ErrTooCheapToReplace is returned when a transaction collides with an
// already-queued transaction at the same (sender, nonce) but does not
// out-bid it on gas price.
var ErrTooCheapToReplace = errors.New("txqueue: replacement transaction underpriced")

const (
	// DefaultCurrentLimit and DefaultFutureLimit bound the two tiers
	// independently, so a flood of future transactions can never starve
	// the current tier that actually feeds block building.
	DefaultCurrentLimit = 1024
	DefaultFutureLimit  = 128
)

// NonceSource answers "what is the next nonce this account is expected to
// use", i.e. the account's nonce as last committed to state. The queue
// consults it only when it has no better information of its own (no
// transaction from that sender queued yet).
type NonceSource interface {
	Nonce(addr common.Address) uint64
}

// Status reports the two tiers' occupancy.
type Status struct {
	Pending int
	Future  int
}

// Queue is a two-tier priority pool of pending transactions: current holds
// a contiguous nonce chain per sender ready to be included in a block,
// future holds everything still waiting on an earlier nonce to arrive.
type Queue struct {
	mu sync.Mutex

	current *set
	future  *set
	byHash  map[common.Hash]pooledTx

	// lastNonces holds, per sender, the nonce one past the highest
	// transaction currently queued in the current tier. Absent entries
	// fall back to NonceSource.
	lastNonces map[common.Address]uint64

	nonces NonceSource
	signer gethtypes.Signer
}

// New constructs a Queue with the default tier limits.
func New(nonces NonceSource, signer gethtypes.Signer) *Queue {
	return WithLimits(nonces, signer, DefaultCurrentLimit, DefaultFutureLimit)
}

// WithLimits constructs a Queue with explicit per-tier limits.
func WithLimits(nonces NonceSource, signer gethtypes.Signer, currentLimit, futureLimit int) *Queue {
	return &Queue{
		current:    newSet(currentLimit),
		future:     newSet(futureLimit),
		byHash:     make(map[common.Hash]pooledTx),
		lastNonces: make(map[common.Address]uint64),
		nonces:     nonces,
		signer:     signer,
	}
}

// Status reports the current occupancy of both tiers.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Pending: q.current.len(), Future: q.future.len()}
}

// Add recovers tx's sender and imports it, following the source's
// "verify then import" split: a transaction that fails sender recovery
// never reaches either tier.
func (q *Queue) Add(tx *gethtypes.Transaction) error {
	ptx, err := newPooledTx(tx, q.signer)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.importTx(ptx)
}

// AddAll imports every transaction in txs, stopping at (and returning) the
// first error, exactly as the source's add_all short-circuits.
func (q *Queue) AddAll(txs []*gethtypes.Transaction) error {
	for _, tx := range txs {
		if err := q.Add(tx); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) importTx(ptx pooledTx) error {
	if _, tracked := q.byHash[ptx.hash]; tracked {
		return nil
	}

	base := q.nonces.Nonce(ptx.sender)
	if ptx.nonce < base {
		return ErrOldNonce
	}

	if old, existed := q.current.byAddress[ptx.sender][ptx.nonce]; existed {
		return q.replaceTransaction(q.current, old, ptx)
	}
	if old, existed := q.future.byAddress[ptx.sender][ptx.nonce]; existed {
		return q.replaceTransaction(q.future, old, ptx)
	}

	expected, known := q.lastNonces[ptx.sender]
	if !known {
		expected = base
	}

	q.byHash[ptx.hash] = ptx
	if ptx.nonce == expected {
		q.current.insert(ptx.sender, ptx.nonce, orderFor(ptx, base))
		q.lastNonces[ptx.sender] = ptx.nonce + 1
		q.moveMatchingFutureToCurrent(ptx.sender, base)
	} else {
		q.future.insert(ptx.sender, ptx.nonce, orderFor(ptx, base))
	}

	q.current.enforceLimit(q.byHash)
	q.future.enforceLimit(q.byHash)
	return nil
}

// replaceTransaction keeps whichever of old/new pays the higher gas price,
// mirroring the source's replace-by-gas-price rule for same-nonce
// collisions within a tier.
func (q *Queue) replaceTransaction(tier *set, old order, replacement pooledTx) error {
	if replacement.gasPrice.Cmp(old.gasPrice) <= 0 {
		return ErrTooCheapToReplace
	}
	base := q.nonces.Nonce(replacement.sender)
	tier.insert(replacement.sender, replacement.nonce, orderFor(replacement, base))
	delete(q.byHash, old.hash)
	q.byHash[replacement.hash] = replacement
	tier.enforceLimit(q.byHash)
	return nil
}

// moveMatchingFutureToCurrent pulls the contiguous run of future
// transactions for sender starting at q.lastNonces[sender] into current,
// stopping at the first gap — the source's move_matching_future_to_current.
func (q *Queue) moveMatchingFutureToCurrent(sender common.Address, base uint64) {
	for {
		next := q.lastNonces[sender]
		o, ok := q.future.byAddress[sender][next]
		if !ok {
			return
		}
		q.future.drop(sender, next)
		q.current.insert(sender, next, o.withHeight(next, base))
		q.lastNonces[sender] = next + 1
	}
}

// raiseLastNonceFloor raises lastNonces[sender] to currentNonce if it is
// unset or has fallen behind, so moveMatchingFutureToCurrent always starts
// its promotion scan from the right nonce even for a sender with nothing
// left in current.
func (q *Queue) raiseLastNonceFloor(sender common.Address, currentNonce uint64) {
	if next, ok := q.lastNonces[sender]; !ok || next < currentNonce {
		q.lastNonces[sender] = currentNonce
	}
}

// reheightFuture recomputes nonce heights for every future entry from
// sender against currentNonce, discarding any entry whose nonce has
// already fallen behind currentNonce (already included in a committed
// block) — the re-heighting step §4.8 mandates on every removal.
func (q *Queue) reheightFuture(sender common.Address, currentNonce uint64) {
	for _, n := range q.future.noncesOf(sender) {
		o, ok := q.future.drop(sender, n)
		if !ok {
			continue
		}
		if n < currentNonce {
			delete(q.byHash, o.hash)
			continue
		}
		q.future.insert(sender, n, o.withHeight(n, currentNonce))
	}
}

// moveAllToFuture demotes every remaining current transaction for sender
// into future, discarding any whose nonce has fallen behind currentNonce
// and re-heighting the survivors against it — used when a transaction is
// removed out of a sender's current chain and everything behind it must
// be re-queued as a gapped chain.
func (q *Queue) moveAllToFuture(sender common.Address, currentNonce uint64) {
	for _, n := range q.current.noncesOf(sender) {
		o, ok := q.current.drop(sender, n)
		if !ok {
			continue
		}
		if n < currentNonce {
			delete(q.byHash, o.hash)
			continue
		}
		q.future.insert(sender, n, o.withHeight(n, currentNonce))
	}
	q.future.enforceLimit(q.byHash)
}

// Remove drops the transaction identified by hash, following §4.8's
// removal algorithm: a future-tier removal just re-heights and promotes;
// a current-tier removal forgets the sender's last-nonce bookkeeping,
// demotes every remaining current entry for that sender back into
// future, enforces future's capacity, and then promotes whatever
// contiguous chain survives back into current.
func (q *Queue) Remove(hash common.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(hash)
}

func (q *Queue) remove(hash common.Hash) bool {
	ptx, ok := q.byHash[hash]
	if !ok {
		return false
	}
	delete(q.byHash, hash)
	sender := ptx.sender

	if _, ok := q.future.drop(sender, ptx.nonce); ok {
		currentNonce := q.nonces.Nonce(sender)
		q.reheightFuture(sender, currentNonce)
		q.raiseLastNonceFloor(sender, currentNonce)
		q.moveMatchingFutureToCurrent(sender, currentNonce)
		return true
	}

	if _, ok := q.current.drop(sender, ptx.nonce); ok {
		currentNonce := q.nonces.Nonce(sender)
		delete(q.lastNonces, sender)
		q.moveAllToFuture(sender, currentNonce)
		q.raiseLastNonceFloor(sender, currentNonce)
		q.moveMatchingFutureToCurrent(sender, currentNonce)
		return true
	}

	return false
}

// RemoveAll removes every transaction in hashes.
func (q *Queue) RemoveAll(hashes []common.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, h := range hashes {
		q.remove(h)
	}
}

// Cull drops every queued transaction for sender whose nonce has fallen
// behind currentNonce (it was already included in a committed block) and
// recomputes nonce heights against the new base, mirroring the source's
// update_future called after each import.
func (q *Queue) Cull(sender common.Address, currentNonce uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, n := range q.current.noncesOf(sender) {
		if n < currentNonce {
			if o, ok := q.current.drop(sender, n); ok {
				delete(q.byHash, o.hash)
			}
		}
	}
	for _, n := range q.future.noncesOf(sender) {
		if n < currentNonce {
			if o, ok := q.future.drop(sender, n); ok {
				delete(q.byHash, o.hash)
			}
			continue
		}
		row := q.future.byAddress[sender]
		if row == nil {
			continue
		}
		o := row[n]
		q.future.drop(sender, n)
		q.future.insert(sender, n, o.withHeight(n, currentNonce))
	}

	q.raiseLastNonceFloor(sender, currentNonce)
	q.moveMatchingFutureToCurrent(sender, currentNonce)
}

// TopTransactions returns up to n transactions from the current tier in
// priority order, the set a miner would pull to fill a block.
func (q *Queue) TopTransactions(n int) []*gethtypes.Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.current.byPriority) {
		n = len(q.current.byPriority)
	}
	out := make([]*gethtypes.Transaction, 0, n)
	for _, o := range q.current.byPriority[:n] {
		if ptx, ok := q.byHash[o.hash]; ok {
			out = append(out, ptx.tx)
		}
	}
	return out
}

// Clear empties both tiers.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current.clear()
	q.future.clear()
	q.byHash = make(map[common.Hash]pooledTx)
	q.lastNonces = make(map[common.Address]uint64)
}
