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

// Package permission holds the static access-control data model: the closed
// registry of permission keys, the section map rendered by the role editor,
// and the per-role grant record (Object) with its cascade rules.
//
// Everything in this package is read-only after process start. Objects are
// plain maps and are never mutated in place by the helpers here; every
// builder returns a fresh copy.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrUnknownAction     = errors.New("unknown action")
	ErrUnknownKey        = errors.New("unknown permission key")
	ErrUnknownStem       = errors.New("unknown permission stem")
	ErrIncompleteObject  = errors.New("permission object is incomplete")
	ErrActionUnavailable = errors.New("action not applicable to row")
)

// Action is one of the four canonical actions a capability row can expose.
type Action uint8

const (
	ActionView Action = iota
	ActionCreate
	ActionEdit
	ActionDelete
)

// NumActions is the number of canonical actions.
const NumActions = 4

var actionNames = [NumActions]string{"VIEW", "CREATE", "EDIT", "DELETE"}

// AllActions returns the canonical actions in column order.
func AllActions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", a)
}

// Valid reports whether a is one of the canonical actions.
func (a Action) Valid() bool {
	return a < NumActions
}

// ParseAction parses an action name such as "view" or "DELETE".
func ParseAction(s string) (Action, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range actionNames {
		if name == upper {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Stem is the section prefix shared by a capability row's keys,
// e.g. HAZARD_RISK_REGISTER.
type Stem string

// Key is an atomic permission identifier of the form <STEM>_<ACTION>.
type Key string

// Split breaks a key into its stem and action. It only checks the shape of
// the key, not registry membership.
func (k Key) Split() (Stem, Action, bool) {
	s := string(k)
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return "", 0, false
	}
	action, err := ParseAction(s[i+1:])
	if err != nil {
		return "", 0, false
	}
	return Stem(s[:i]), action, true
}

func compose(stem Stem, action Action) Key {
	return Key(string(stem) + "_" + action.String())
}
