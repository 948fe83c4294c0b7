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

// Package blockqueue is the client's front door for raw block bytes: it
// decodes and structurally preverifies blocks off the caller's goroutine,
// across a small worker pool, and hands the client back a FIFO of blocks
// that passed — in the order they were submitted, regardless of which
// worker finished first.
package blockqueue

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethcorego/ethcore/core/types"
)

// ErrAlreadyQueued is returned when a hash is already awaiting or
// undergoing verification.
var ErrAlreadyQueued = errors.New("blockqueue: already queued")

// ErrKnownBad is returned for a hash already marked permanently bad, or
// whose parent is — bad blocks pre-reject their descendants so the client
// never wastes a re-execution on a chain it will refuse anyway.
var ErrKnownBad = errors.New("blockqueue: known bad")

// ErrClosed is returned by Submit once the queue has been shut down.
var ErrClosed = errors.New("blockqueue: closed")

// VerifyFunc performs the (potentially expensive) structural check on a
// decoded block — signature recovery and root/uncles-hash recomputation —
// off the submitting goroutine.
type VerifyFunc func(*types.Block) error

// Info reports the queue's current occupancy, the counters a caller polls
// to decide whether to keep feeding it more blocks.
type Info struct {
	Queued   int // submitted, verification still in flight
	Verified int // passed stage 1, waiting to be drained
	Bad      int // permanently bad
}

type job struct {
	generation uint64
	seq        uint64
	hash       common.Hash
	block      *types.Block
}

type result struct {
	seq   uint64
	hash  common.Hash
	block *types.Block
	err   error
}

// Queue is the asynchronous stage-1 verification front end described
// above. The zero value is not usable; construct with New.
type Queue struct {
	verify VerifyFunc

	jobs   chan job
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	nextSeq    uint64
	drainSeq   uint64
	pending    map[common.Hash]struct{}
	buffered   map[uint64]result
	ready      []*types.Block
	bad        map[common.Hash]struct{}
	closed     bool
}

// New starts a Queue backed by workers goroutines, each running verify on
// submitted blocks.
func New(workers int, verify VerifyFunc) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		verify:   verify,
		jobs:     make(chan job, workers*4),
		stopCh:   make(chan struct{}),
		pending:  make(map[common.Hash]struct{}),
		buffered: make(map[uint64]result),
		bad:      make(map[common.Hash]struct{}),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case j := <-q.jobs:
			err := q.verify(j.block)
			q.complete(j, err)
		case <-q.stopCh:
			return
		}
	}
}

// Submit decodes raw, rejecting malformed bytes and duplicates immediately,
// then hands the decoded block to a worker for the heavier structural
// check. The returned hash is valid even when err is non-nil, except when
// raw fails to decode, in which case it is the zero hash.
func (q *Queue) Submit(raw []byte) (common.Hash, error) {
	blk, err := types.DecodeBlockBytes(raw)
	if err != nil {
		return common.Hash{}, err
	}
	hash := blk.Hash()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return hash, ErrClosed
	}
	if _, known := q.bad[hash]; known {
		q.mu.Unlock()
		return hash, ErrKnownBad
	}
	if _, known := q.bad[blk.Header.ParentHash]; known {
		q.bad[hash] = struct{}{}
		q.mu.Unlock()
		return hash, ErrKnownBad
	}
	if _, queued := q.pending[hash]; queued {
		q.mu.Unlock()
		return hash, ErrAlreadyQueued
	}
	seq := q.nextSeq
	q.nextSeq++
	generation := q.generation
	q.pending[hash] = struct{}{}
	q.mu.Unlock()

	select {
	case q.jobs <- job{generation: generation, seq: seq, hash: hash, block: blk}:
	case <-q.stopCh:
		return hash, ErrClosed
	}
	return hash, nil
}

func (q *Queue) complete(j job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j.generation != q.generation {
		// A Clear() ran after this job was submitted; the result belongs
		// to a verification round the queue has already discarded.
		return
	}
	q.buffered[j.seq] = result{seq: j.seq, hash: j.hash, block: j.block, err: err}

	for {
		r, ok := q.buffered[q.drainSeq]
		if !ok {
			break
		}
		delete(q.buffered, q.drainSeq)
		q.drainSeq++
		delete(q.pending, r.hash)
		if r.err != nil {
			q.bad[r.hash] = struct{}{}
		} else {
			q.ready = append(q.ready, r.block)
		}
	}
}

// Info reports the queue's current occupancy.
func (q *Queue) Info() Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Info{Queued: len(q.pending), Verified: len(q.ready), Bad: len(q.bad)}
}

// Drain removes and returns up to max verified blocks, oldest first.
func (q *Queue) Drain(max int) []*types.Block {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max > len(q.ready) {
		max = len(q.ready)
	}
	out := q.ready[:max]
	q.ready = q.ready[max:]
	return out
}

// MarkBad permanently marks hashes as bad, so any later Submit of a
// descendant is pre-rejected without ever reaching a worker.
func (q *Queue) MarkBad(hashes []common.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, h := range hashes {
		q.bad[h] = struct{}{}
	}
}

// MarkGood is a bookkeeping no-op today: once a block is drained the queue
// no longer tracks it, so "good" only matters as the absence of "bad".
// Kept as an explicit call so the client's good/bad reporting step (see
// spec.md's import_verified_blocks) has a single symmetrical pair of
// queue notifications to make, matching the source's own queue API shape.
func (q *Queue) MarkGood(hashes []common.Hash) {}

// Clear discards every block currently queued or mid-verification,
// completing in bounded time: in-flight workers finish their current job,
// but its result is discarded rather than appended to ready.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.generation++
	q.pending = make(map[common.Hash]struct{})
	q.buffered = make(map[uint64]result)
	q.ready = nil
	q.drainSeq = q.nextSeq
}

// IsBad reports whether hash has been marked permanently bad.
func (q *Queue) IsBad(hash common.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, bad := q.bad[hash]
	return bad
}

// Close stops accepting new submissions and waits for in-flight workers to
// drain.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.stopCh)
	q.wg.Wait()
}
