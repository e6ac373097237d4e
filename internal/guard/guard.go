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

// Package guard decides, per navigation, whether the current user may see a
// route. Decisions fail closed: a pending resolution never authorizes, a
// failed resolution is treated as signed out, and a missing key is a denial.
//
// The current user's grants always arrive as an explicit argument. Nothing
// here consults a process-wide default permission object.
package guard

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/permission"
)

// Outcome of one guard decision.
type Outcome uint8

const (
	Unauthenticated Outcome = iota
	Loading
	Authorized
	Denied
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Unauthenticated:
		return "unauthenticated"
	case Loading:
		return "loading"
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// MarshalText renders the outcome name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Principal is whatever holds the resolved grants of the current user.
type Principal interface {
	Allows(k permission.Key) bool
}

// Status of the current-user resolution.
type Status uint8

const (
	// StatusIdle means no resolution has produced a user.
	StatusIdle Status = iota
	StatusPending
	StatusResolved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	}
	return "idle"
}

// State is a snapshot of the current-user resolution. The zero value is
// signed out.
type State struct {
	Status Status
	User   Principal
	Err    error
	Seq    uint64
}

// Authenticated reports whether the state carries a resolved user.
func (s State) Authenticated() bool {
	return s.Status == StatusResolved && s.User != nil
}

// Decision is the guard's answer for one navigation.
type Decision struct {
	Outcome    Outcome `json:"outcome"`
	Route      Route   `json:"route"`
	RedirectTo string  `json:"redirectTo,omitempty"`
}

// Decide evaluates state against route.
func Decide(state State, route Route) Decision {
	switch {
	case state.Status == StatusPending:
		return Decision{Outcome: Loading, Route: route}
	case !state.Authenticated():
		return Decision{Outcome: Unauthenticated, Route: route, RedirectTo: LoginPath}
	case route.AlwaysVisible():
		return Decision{Outcome: Authorized, Route: route}
	case state.User.Allows(route.Key):
		return Decision{Outcome: Authorized, Route: route}
	}
	return Decision{Outcome: Denied, Route: route}
}

// Navigate resolves path against the policy table and decides. Unknown
// paths are NotFound once the user is known.
func Navigate(state State, path string) Decision {
	route, ok := Lookup(path)
	if ok {
		return Decide(state, route)
	}
	d := Decide(state, Route{Path: cleanPath(path)})
	if d.Outcome == Authorized {
		d.Outcome = NotFound
	}
	return d
}

// Guard is Navigate with decision metrics and logging.
type Guard struct {
	decisions metric.Int64Counter
}

// New creates a guard. A nil meter disables metrics.
func New(meter metric.Meter) *Guard {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("guard")
	}
	decisions, err := meter.Int64Counter(
		"ehs_guard_decisions_total",
		metric.WithDescription("Route guard decisions by outcome"),
	)
	if err != nil {
		slog.Warn("failed to create guard decision counter", logger.Error(err))
		decisions, _ = noop.NewMeterProvider().Meter("guard").Int64Counter("ehs_guard_decisions_total")
	}
	return &Guard{decisions: decisions}
}

// Navigate decides and records the outcome.
func (g *Guard) Navigate(ctx context.Context, state State, path string) Decision {
	d := Navigate(state, path)
	g.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", d.Outcome.String())))
	if d.Outcome != Authorized {
		slog.DebugContext(ctx, "route not rendered",
			logger.Path(path),
			logger.PermissionKey(string(d.Route.Key)),
			logger.Outcome(d.Outcome.String()),
		)
	}
	return d
}
