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

import (
	"fmt"
	"sort"
	"strings"
)

// Object is one role's complete grant record: every registered key mapped to
// an explicit boolean. A well-formed Object is total over the registry.
type Object map[Key]bool

// BuildDefault folds the registry into an Object with every key set to value.
func BuildDefault(value bool) Object {
	obj := make(Object, len(registry))
	for _, k := range registry {
		obj[k] = value
	}
	return obj
}

// DefaultAdmin returns the all-granted preset. New roles are seeded from it.
func DefaultAdmin() Object {
	return BuildDefault(true)
}

// DefaultViewer returns the read-only preset: every VIEW key granted, every
// CREATE, EDIT and DELETE key denied.
func DefaultViewer() Object {
	obj := make(Object, len(registry))
	for _, k := range registry {
		_, action, _ := k.Split()
		obj[k] = action == ActionView
	}
	return obj
}

// Allows reports whether k is granted. Absent keys are denied.
func (o Object) Allows(k Key) bool {
	if o == nil {
		return false
	}
	return o[k]
}

// Can reports whether the (stem, action) grant is present and true. A pair
// that is not registered is never allowed.
func (o Object) Can(stem Stem, action Action) bool {
	k, ok := KeyFor(stem, action)
	if !ok {
		return false
	}
	return o.Allows(k)
}

// Clone returns an independent copy.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Granted returns the granted keys in registry order.
func (o Object) Granted() []Key {
	var out []Key
	for _, k := range registry {
		if o[k] {
			out = append(out, k)
		}
	}
	return out
}

// IncompleteError lists the keys that stop an Object from being total over
// the registry.
type IncompleteError struct {
	Missing []Key
	Unknown []Key
}

func (e *IncompleteError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %s", joinKeys(e.Missing)))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown %s", joinKeys(e.Unknown)))
	}
	return ErrIncompleteObject.Error() + ": " + strings.Join(parts, "; ")
}

func (e *IncompleteError) Unwrap() error {
	return ErrIncompleteObject
}

func joinKeys(keys []Key) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}

func (o Object) unknownKeys() []Key {
	var unknown []Key
	for k := range o {
		if !IsKey(k) {
			unknown = append(unknown, k)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return unknown
}

// Validate checks that o holds exactly the registered keys.
func (o Object) Validate() error {
	var missing []Key
	for _, k := range registry {
		if _, ok := o[k]; !ok {
			missing = append(missing, k)
		}
	}
	unknown := o.unknownKeys()
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	return &IncompleteError{Missing: missing, Unknown: unknown}
}

// Normalize returns a total copy of o with missing keys denied. Unknown keys
// are an error, not silently dropped.
func (o Object) Normalize() (Object, error) {
	if unknown := o.unknownKeys(); len(unknown) > 0 {
		return nil, &IncompleteError{Unknown: unknown}
	}
	out := BuildDefault(false)
	for k, v := range o {
		out[k] = v
	}
	return out, nil
}
