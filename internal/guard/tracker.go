// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package guard

import (
	"context"
	"sync"
)

// Ticket identifies one resolution attempt.
type Ticket uint64

// Tracker sequences current-user resolutions. Only the most recently begun
// resolution may complete; an older one finishing late is dropped so a stale
// "no user" never overwrites a newer result. Subscribers are told about
// every state change and should re-run their decision on each.
type Tracker struct {
	mu     sync.Mutex
	seq    uint64
	state  State
	subs   map[int]chan State
	nextID int
}

// NewTracker returns a tracker in the signed-out state.
func NewTracker() *Tracker {
	return &Tracker{subs: make(map[int]chan State)}
}

// State returns the latest snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Begin starts a resolution. Any resolution still in flight is superseded.
func (t *Tracker) Begin() Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.set(State{Status: StatusPending, User: t.state.User, Seq: t.seq})
	return Ticket(t.seq)
}

// Complete finishes the resolution named by tk. A nil user with a nil error
// means "no session". It reports false when tk was superseded.
func (t *Tracker) Complete(tk Ticket, user Principal, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(tk) != t.seq || t.state.Status != StatusPending {
		return false
	}
	switch {
	case err != nil:
		t.set(State{Status: StatusFailed, Err: err, Seq: t.seq})
	case user == nil:
		t.set(State{Status: StatusIdle, Seq: t.seq})
	default:
		t.set(State{Status: StatusResolved, User: user, Seq: t.seq})
	}
	return true
}

// Reset signs out and supersedes any in-flight resolution.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.set(State{Status: StatusIdle, Seq: t.seq})
}

// Resolve runs fn as one tracked resolution and returns the resulting state.
func (t *Tracker) Resolve(ctx context.Context, fn func(context.Context) (Principal, error)) State {
	tk := t.Begin()
	user, err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	t.Complete(tk, user, err)
	return t.State()
}

// Subscribe returns a channel of state changes and a cancel func. The
// channel always ends on the newest state: when the buffer is full the
// oldest pending update is dropped.
func (t *Tracker) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	ch := make(chan State, buffer)
	t.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// set must be called with t.mu held.
func (t *Tracker) set(s State) {
	t.state = s
	for _, ch := range t.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
