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

// NavEntry is one sidebar link.
type NavEntry struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Section string `json:"section,omitempty"`
	Hidden  bool   `json:"hidden"`
}

// Sidebar lists every route for user, marking the ones the user cannot view
// as hidden. A nil user sees only the always-visible routes.
func Sidebar(user Principal) []NavEntry {
	out := make([]NavEntry, 0, len(routes))
	for _, r := range routes {
		visible := r.AlwaysVisible() || (user != nil && user.Allows(r.Key))
		out = append(out, NavEntry{
			Path:    r.Path,
			Title:   r.Title,
			Section: r.Section,
			Hidden:  !visible,
		})
	}
	return out
}

// Visible filters Sidebar down to the entries the user can open.
func Visible(user Principal) []NavEntry {
	var out []NavEntry
	for _, e := range Sidebar(user) {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	return out
}
