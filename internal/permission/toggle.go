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

package permission

import "fmt"

// ApplyToggle flips one cell of the grant matrix and applies the cascade
// rule for the row. The input is not modified.
//
// Turning VIEW off clears CREATE, EDIT and DELETE. Turning any of those on
// sets VIEW. Turning VIEW back on does not restore the dependents; they stay
// off until granted again.
func ApplyToggle(current Object, r Row, action Action) (Object, error) {
	k, err := rowKey(r, action)
	if err != nil {
		return nil, err
	}
	return Set(current, r, action, !current.Allows(k))
}

// Set assigns one cell of the grant matrix with the same cascade as
// ApplyToggle.
func Set(current Object, r Row, action Action, value bool) (Object, error) {
	k, err := rowKey(r, action)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if next == nil {
		next = make(Object)
	}
	next[k] = value

	switch {
	case action == ActionView && !value:
		for _, dep := range []Action{ActionCreate, ActionEdit, ActionDelete} {
			if dk, ok := r.Key(dep); ok {
				next[dk] = false
			}
		}
	case action != ActionView && value:
		if vk, ok := r.Key(ActionView); ok {
			next[vk] = true
		}
	}
	return next, nil
}

func rowKey(r Row, action Action) (Key, error) {
	if !action.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownAction, action)
	}
	if _, ok := RowByStem(r.Stem); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStem, r.Stem)
	}
	k, ok := r.Key(action)
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrActionUnavailable, action, r.Stem)
	}
	return k, nil
}
