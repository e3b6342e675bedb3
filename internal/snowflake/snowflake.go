/*
Copyright 2025 Surge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package snowflake generates sortable 64-bit order numbers. The layout
// packs a millisecond timestamp, a datacenter id, a worker id and a
// per-millisecond sequence, so ids issued by distinct instances never
// collide and ids issued by one instance strictly increase.
package snowflake

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Epoch is 2024-01-01T00:00:00Z in Unix milliseconds. Timestamps are
// stored relative to it to stretch the usable range of the 41 bits.
const Epoch int64 = 1704067200000

const (
	workerIDBits     = 5
	datacenterIDBits = 5
	sequenceBits     = 12

	// MaxWorkerID is the largest worker id the layout can carry.
	MaxWorkerID     = -1 ^ (-1 << workerIDBits)
	maxDatacenterID = -1 ^ (-1 << datacenterIDBits)
	sequenceMask    = -1 ^ (-1 << sequenceBits)

	workerIDShift     = sequenceBits
	datacenterIDShift = sequenceBits + workerIDBits
	timestampShift    = sequenceBits + workerIDBits + datacenterIDBits
)

// ErrClockMovedBackwards is returned when the wall clock regresses past
// the last issued timestamp. Issuing an id anyway could duplicate one
// already handed out, so the generator refuses instead.
var ErrClockMovedBackwards = errors.New("clock moved backwards, refusing to generate id")

// Generator issues snowflake ids. It is safe for concurrent use.
type Generator struct {
	mu           sync.Mutex
	datacenterID int64
	workerID     int64
	lastMillis   int64
	sequence     int64
	now          func() int64
}

// NewGenerator builds a generator for the given datacenter and worker.
func NewGenerator(datacenterID, workerID int64) (*Generator, error) {
	if datacenterID < 0 || datacenterID > maxDatacenterID {
		return nil, errors.Errorf("datacenter id %d out of range [0, %d]", datacenterID, maxDatacenterID)
	}
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, errors.Errorf("worker id %d out of range [0, %d]", workerID, MaxWorkerID)
	}
	return &Generator{
		datacenterID: datacenterID,
		workerID:     workerID,
		lastMillis:   -1,
		now:          func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID issues the next id.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.now()
	if millis < g.lastMillis {
		return 0, errors.Wrapf(ErrClockMovedBackwards, "last %d, now %d", g.lastMillis, millis)
	}

	if millis == g.lastMillis {
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			// Sequence exhausted within this millisecond, spin to the next.
			for millis <= g.lastMillis {
				millis = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMillis = millis

	id := (millis-Epoch)<<timestampShift |
		g.datacenterID<<datacenterIDShift |
		g.workerID<<workerIDShift |
		g.sequence
	return id, nil
}

// Timestamp extracts the Unix millisecond timestamp embedded in an id.
func Timestamp(id int64) int64 {
	return (id >> timestampShift) + Epoch
}

// WorkerID extracts the worker id embedded in an id.
func WorkerID(id int64) int64 {
	return (id >> workerIDShift) & MaxWorkerID
}
