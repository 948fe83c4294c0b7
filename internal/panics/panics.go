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

// Package panics is the process's one panic-notification registry. Any
// subsystem that spawns a background goroutine wraps it in Go so a panic
// there is caught, logged, and forwarded to every registered listener —
// typically the main command, which turns it into a clean process exit
// instead of a silently dead goroutine or a crash dump with no context.
package panics

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Handler is a registry of callbacks to run when a guarded goroutine
// panics. The zero value is ready to use.
type Handler struct {
	mu        sync.Mutex
	listeners []func(reason string)
}

// NewHandler constructs an empty Handler.
func NewHandler() *Handler { return &Handler{} }

// OnPanic registers fn to be called, with the recovered panic value
// formatted as a string, whenever Go's guarded function panics.
func (h *Handler) OnPanic(fn func(reason string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *Handler) notify(reason string) {
	h.mu.Lock()
	listeners := make([]func(string), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(reason)
	}
}

// Go runs fn in a new goroutine. If fn panics, the panic is recovered,
// logged, and forwarded to every listener registered on h — it does not
// propagate and does not terminate the process on its own.
func (h *Handler) Go(name string, fn func()) {
	go func() {
		defer h.recoverAndForward(name)
		fn()
	}()
}

func (h *Handler) recoverAndForward(name string) {
	r := recover()
	if r == nil {
		return
	}
	reason := fmt.Sprintf("%s: %v", name, r)
	log.Error("panics: recovered from background goroutine panic", "goroutine", name, "reason", r)
	h.notify(reason)
}
