// Package snowflake - layout.go fixes the bit allocation of a generated ID.
//
// The layout is the classic datacenter-aware Snowflake split:
//
//	┌───┬──────────────────────────────┬────────────┬────────────┬──────────────┐
//	│ 0 │ 41 bits: ms since Epoch      │ 5 bits: DC │ 5 bits: WK │ 12 bits: seq │
//	└───┴──────────────────────────────┴────────────┴────────────┴──────────────┘
//
// The sign bit is always zero, so every ID is a positive int64.

package snowflake

import (
	"fmt"
	"time"
)

const (
	// Epoch is the reference instant (2024-01-01T00:00:00Z) in Unix milliseconds.
	//
	// Changing it after IDs have been persisted breaks their ordering and
	// decoding, so treat it as part of the storage format.
	Epoch int64 = 1704067200000

	// TimestampBits is the width of the millisecond timestamp (~69 years).
	TimestampBits = 41

	// DatacenterIDBits is the width of the datacenter field (32 datacenters).
	DatacenterIDBits = 5

	// WorkerIDBits is the width of the worker field (32 workers per datacenter).
	WorkerIDBits = 5

	// SequenceBits is the width of the per-millisecond counter (4096 IDs/ms).
	SequenceBits = 12

	// MaxDatacenterID is the largest valid datacenter ID (31).
	MaxDatacenterID = -1 ^ (-1 << DatacenterIDBits)

	// MaxWorkerID is the largest valid worker ID (31).
	MaxWorkerID = -1 ^ (-1 << WorkerIDBits)

	// MaxSequence is the largest sequence value within one millisecond (4095).
	MaxSequence = -1 ^ (-1 << SequenceBits)

	// MaxTimestamp is the largest relative timestamp that fits in 41 bits.
	MaxTimestamp = -1 ^ (-1 << TimestampBits)

	// WorkerIDShift positions the worker ID above the sequence (12).
	WorkerIDShift = SequenceBits

	// DatacenterIDShift positions the datacenter ID above the worker ID (17).
	DatacenterIDShift = SequenceBits + WorkerIDBits

	// TimestampShift positions the timestamp in the upper bits (22).
	TimestampShift = SequenceBits + WorkerIDBits + DatacenterIDBits

	// MaxSafeInteger is the largest integer an IEEE-754 double holds exactly
	// (2^53 - 1, JavaScript's Number.MAX_SAFE_INTEGER).
	MaxSafeInteger int64 = 1<<53 - 1
)

// NodeCount is the number of distinct (datacenter, worker) pairs the layout can address.
const NodeCount = (MaxDatacenterID + 1) * (MaxWorkerID + 1)

// Capacity describes what the fixed layout can address.
type Capacity struct {
	Datacenters         int64
	WorkersPerDC        int64
	SequencePerMilli    int64
	Lifespan            time.Duration
	ThroughputPerWorker int64
}

// LayoutCapacity returns the theoretical limits of the layout.
func LayoutCapacity() Capacity {
	return Capacity{
		Datacenters:         MaxDatacenterID + 1,
		WorkersPerDC:        MaxWorkerID + 1,
		SequencePerMilli:    MaxSequence + 1,
		Lifespan:            time.Duration(MaxTimestamp+1) * time.Millisecond,
		ThroughputPerWorker: (MaxSequence + 1) * 1000,
	}
}

// Exhausted returns the instant after which the 41-bit timestamp overflows for the given epoch.
func (c Capacity) Exhausted(epoch int64) time.Time {
	return time.UnixMilli(epoch).Add(c.Lifespan).UTC()
}

// String returns a human-readable description of the capacity.
func (c Capacity) String() string {
	years := int(c.Lifespan.Hours() / 24 / 365)
	return fmt.Sprintf("Datacenters: %d, WorkersPerDC: %d, ThroughputPerWorker: %d/sec, Lifespan: %d years",
		c.Datacenters, c.WorkersPerDC, c.ThroughputPerWorker, years)
}

// SafeTimestampLimit is the last relative timestamp whose IDs still fit in MaxSafeInteger.
// IDs minted after Epoch+SafeTimestampLimit milliseconds take the fallback path of NextSafeID.
const SafeTimestampLimit = MaxSafeInteger >> TimestampShift

// splitSlot maps a flat node slot in [0, NodeCount) onto a (datacenter, worker) pair.
func splitSlot(slot int64) (datacenterID, workerID int64) {
	return slot >> WorkerIDBits, slot & MaxWorkerID
}

// SlotPair maps a flat node slot in [0, NodeCount) onto a (datacenter, worker) pair.
// It is used by node-assignment schemes that hand out a single integer per instance.
func SlotPair(slot int64) (datacenterID, workerID int64, err error) {
	if slot < 0 || slot >= NodeCount {
		return 0, 0, newConfigError(
			"Slot",
			fmt.Sprintf("%d", slot),
			"out of valid range",
			fmt.Sprintf("must be between 0 and %d", NodeCount-1),
		)
	}
	datacenterID, workerID = splitSlot(slot)
	return datacenterID, workerID, nil
}
