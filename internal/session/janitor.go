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

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/metric"

	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
)

// Janitor purges expired and idle sessions on a cron schedule.
type Janitor struct {
	svc         *Service
	auditLogger audit.Logger
	cron        *cron.Cron
	timeout     time.Duration

	purged   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewJanitor schedules svc.CleanupExpired. Schedule accepts standard cron
// specs and descriptors such as "@every 15m".
func NewJanitor(svc *Service, schedule string, auditLogger audit.Logger) (*Janitor, error) {
	if auditLogger == nil {
		auditLogger = audit.Discard{}
	}
	j := &Janitor{
		svc:         svc,
		auditLogger: auditLogger,
		cron:        cron.New(),
		timeout:     time.Minute,
	}
	if _, err := j.cron.AddFunc(schedule, func() { _, _ = j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Instrument records purged sessions and sweep durations. Either may be nil.
func (j *Janitor) Instrument(purged metric.Int64Counter, duration metric.Float64Histogram) {
	j.purged = purged
	j.duration = duration
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to end.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.svc.CleanupExpired(ctx)
	if j.duration != nil {
		j.duration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		slog.ErrorContext(ctx, "session cleanup failed", logger.Component("janitor"), logger.Error(err))
		return 0, err
	}
	if n > 0 {
		if j.purged != nil {
			j.purged.Add(ctx, n)
		}
		j.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeSessionsPurged,
			ActorID:  "system",
			Resource: audit.ResourceSession,
			Metadata: map[string]any{"count": n},
		})
	}
	slog.DebugContext(ctx, "session cleanup finished", logger.Component("janitor"), logger.RowsAffected(n))
	return n, nil
}
