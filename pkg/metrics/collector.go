// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"runtime"
	"time"
)

// Sampler refreshes gauges whose value lives in application state rather
// than in the runtime.
type Sampler func()

// HeightSampler reports the persisted last signed height of each chain, so
// the gauge is correct before the first signature after a restart.
func HeightSampler(heights func() map[string]int64) Sampler {
	return func() {
		for chainID, height := range heights() {
			LastSignedHeight.WithLabelValues(chainID).Set(float64(height))
		}
	}
}

// ResourceCollector periodically updates the goroutine, memory and uptime
// gauges and runs its samplers.
type ResourceCollector struct {
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	started  time.Time
	samplers []Sampler
}

// NewResourceCollector creates a collector that updates metrics every
// interval until ctx is done or Stop is called.
func NewResourceCollector(ctx context.Context, interval time.Duration, samplers ...Sampler) *ResourceCollector {
	collectorCtx, cancel := context.WithCancel(ctx)
	return &ResourceCollector{
		ctx:      collectorCtx,
		cancel:   cancel,
		interval: interval,
		started:  time.Now(),
		samplers: samplers,
	}
}

// Start collects immediately and then on every tick. It blocks.
func (rc *ResourceCollector) Start() {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.collect()
	for {
		select {
		case <-rc.ctx.Done():
			return
		case <-ticker.C:
			rc.collect()
		}
	}
}

// Stop halts the collector.
func (rc *ResourceCollector) Stop() {
	rc.cancel()
}

func (rc *ResourceCollector) collect() {
	if !IsEnabled() {
		return
	}

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryAllocBytes.Set(float64(memStats.Alloc))

	ServerUptime.Set(time.Since(rc.started).Seconds())

	for _, sample := range rc.samplers {
		sample()
	}
}

// StartResourceCollector creates a collector and runs it in a goroutine.
func StartResourceCollector(ctx context.Context, interval time.Duration, samplers ...Sampler) *ResourceCollector {
	collector := NewResourceCollector(ctx, interval, samplers...)
	go collector.Start()
	return collector
}
