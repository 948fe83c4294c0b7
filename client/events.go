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

import "github.com/ethereum/go-ethereum/common"

// NewChainBlocks is broadcast once a batch of ImportVerifiedBlocks finishes
// and leaves the queue empty: Good and Bad list every hash the batch
// settled one way or the other, and Retracted/Enacted describe the route
// taken if the batch changed which branch is canonical.
type NewChainBlocks struct {
	Good      []common.Hash
	Bad       []common.Hash
	Retracted []common.Hash
	Enacted   []common.Hash
}

// Subscribe registers fn to be called, synchronously and in the order
// registered, for every NewChainBlocks event. The returned function
// unregisters it.
func (c *Client) Subscribe(fn func(NewChainBlocks)) (unsubscribe func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
	idx := len(c.listeners) - 1
	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		if idx < len(c.listeners) {
			c.listeners[idx] = nil
		}
	}
}

func (c *Client) emit(ev NewChainBlocks) {
	c.listenersMu.Lock()
	listeners := make([]func(NewChainBlocks), len(c.listeners))
	copy(listeners, c.listeners)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(ev)
		}
	}
}
