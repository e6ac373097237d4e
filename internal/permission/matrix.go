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

// Cell is one rendered entry of the grant matrix.
type Cell uint8

const (
	NotApplicable Cell = iota
	Denied
	Granted
)

func (c Cell) String() string {
	switch c {
	case Granted:
		return "✓"
	case Denied:
		return "✗"
	default:
		return "-"
	}
}

// MarshalText renders the cell glyph.
func (c Cell) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// MatrixRow is a capability row with one cell per canonical action.
type MatrixRow struct {
	Section string           `json:"section"`
	Break   string           `json:"break,omitempty"`
	Name    string           `json:"name"`
	Stem    Stem             `json:"stem"`
	Cells   [NumActions]Cell `json:"cells"`
}

// BuildMatrix renders obj against the section map for the read-only role
// viewer. Non-applicable actions are NotApplicable regardless of what the
// object holds.
func BuildMatrix(obj Object) []MatrixRow {
	var out []MatrixRow
	for _, s := range sections {
		label := ""
		for _, item := range s.Items {
			if item.Row == nil {
				label = item.Break
				continue
			}
			r := *item.Row
			mr := MatrixRow{Section: s.Name, Break: label, Name: r.Name, Stem: r.Stem}
			for _, action := range AllActions() {
				k, ok := r.Key(action)
				switch {
				case !ok:
					mr.Cells[action] = NotApplicable
				case obj.Allows(k):
					mr.Cells[action] = Granted
				default:
					mr.Cells[action] = Denied
				}
			}
			out = append(out, mr)
		}
	}
	return out
}
