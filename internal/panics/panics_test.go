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

package panics

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGoForwardsRecoveredPanicToListeners(t *testing.T) {
	h := NewHandler()

	var (
		mu   sync.Mutex
		seen string
		wg   sync.WaitGroup
	)
	wg.Add(1)
	h.OnPanic(func(reason string) {
		mu.Lock()
		seen = reason
		mu.Unlock()
		wg.Done()
	})

	h.Go("worker", func() { panic("boom") })

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener was never notified")
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(seen, "worker") || !strings.Contains(seen, "boom") {
		t.Fatalf("reason = %q, want it to mention worker and boom", seen)
	}
}

func TestGoDoesNotNotifyOnCleanReturn(t *testing.T) {
	h := NewHandler()
	notified := make(chan struct{}, 1)
	h.OnPanic(func(string) { notified <- struct{}{} })

	done := make(chan struct{})
	h.Go("worker", func() { close(done) })
	<-done

	select {
	case <-notified:
		t.Fatal("listener notified for a goroutine that did not panic")
	case <-time.After(50 * time.Millisecond):
	}
}
