// Package snowflake provides a distributed unique ID generator based on
// Twitter's Snowflake algorithm, with a datacenter-aware bit layout and a
// degraded path for consumers limited to IEEE-754 safe integers.
//
// # Overview
//
// Snowflake generates 64-bit unique IDs that are:
//   - Sortable by time (IDs generated later are numerically larger)
//   - Globally unique across instances with disjoint (datacenter, worker) pairs
//   - Generated without coordination between nodes
//   - Decodable back into timestamp, datacenter, worker and sequence
//
// # ID Structure (64 bits)
//
//	┌───┬─────────────────────────────┬─────────────┬─────────────┬──────────────┐
//	│ 0 │ 41 bits: Timestamp (ms)     │ 5 bits: DC  │ 5 bits: WK  │ 12 bits: Seq │
//	│   │ ~69 years from epoch (2024) │ (0-31)      │ (0-31)      │ (0-4095)     │
//	└───┴─────────────────────────────┴─────────────┴─────────────┴──────────────┘
//
// # Failure Semantics
//
//   - Out-of-range worker or datacenter ID: construction fails with ConfigError
//   - Wall clock moves backwards: NextID fails with ClockError (policy configurable)
//   - 4096 IDs issued within one millisecond: NextID spins until the clock ticks,
//     bounded by Config.MaxSpinWait (TimeoutError past that)
//   - ID above 2^53-1: NextSafeID switches to the fallback shape instead of truncating
//
// # Usage
//
//	// Explicit construction, owned by the composition root
//	gen, err := snowflake.New(workerID, datacenterID)
//	id, err := gen.NextID()
//
//	// With configuration
//	cfg := snowflake.DefaultConfig(3, 7)
//	cfg.OnClockRollback = snowflake.RollbackWait
//	gen, err := snowflake.NewWithConfig(cfg)
package snowflake

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultWorkerID is the worker ID used when none is configured.
	DefaultWorkerID = 1

	// DefaultDatacenterID is the datacenter ID used when none is configured.
	DefaultDatacenterID = 1

	// DefaultMaxSpinWait caps how long NextID waits for the clock to leave an
	// exhausted millisecond. A healthy clock needs at most ~1ms.
	DefaultMaxSpinWait = time.Second

	// DefaultMaxClockBackward is the rollback RollbackWait is willing to sleep through.
	DefaultMaxClockBackward = 5 * time.Millisecond
)

// RollbackPolicy selects how the generator reacts when the clock reads
// earlier than the timestamp of the last issued ID.
type RollbackPolicy int

const (
	// RollbackFail returns a ClockError immediately. This is the default.
	RollbackFail RollbackPolicy = iota

	// RollbackWait sleeps through rollbacks no larger than MaxClockBackward,
	// then fails with ClockError if the clock is still behind.
	RollbackWait

	// RollbackFallback fails NextID like RollbackFail, but lets NextSafeID
	// answer with a fallback-shaped ID instead of an error.
	RollbackFallback
)

// String returns the policy name as accepted by ParseRollbackPolicy.
func (p RollbackPolicy) String() string {
	switch p {
	case RollbackFail:
		return "fail"
	case RollbackWait:
		return "wait"
	case RollbackFallback:
		return "fallback"
	default:
		return fmt.Sprintf("RollbackPolicy(%d)", int(p))
	}
}

// ParseRollbackPolicy parses "fail", "wait" or "fallback" (case-insensitive).
func ParseRollbackPolicy(s string) (RollbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return RollbackFail, nil
	case "wait":
		return RollbackWait, nil
	case "fallback":
		return RollbackFallback, nil
	default:
		return RollbackFail, newConfigError("OnClockRollback", s, "unknown policy", "must be one of fail, wait, fallback")
	}
}

// Config holds configuration options for the generator.
//
// All fields except WorkerID and DatacenterID have defaults; see DefaultConfig.
type Config struct {
	// WorkerID identifies this generator within its datacenter (0-31).
	WorkerID int64

	// DatacenterID identifies the datacenter (0-31).
	// The (DatacenterID, WorkerID) pair must be unique across live instances.
	DatacenterID int64

	// Epoch is the reference instant in Unix milliseconds. Default: Epoch (2024-01-01).
	Epoch int64

	// Clock supplies the current time. Default: SystemClock().
	Clock Clock

	// Rand returns a uniform integer in [0, n) for the fallback scheme.
	// Default: math/rand/v2 Int64N.
	Rand func(n int64) int64

	// MaxSpinWait caps the wait after sequence exhaustion. Zero means DefaultMaxSpinWait.
	MaxSpinWait time.Duration

	// OnClockRollback selects the rollback policy. Default: RollbackFail.
	OnClockRollback RollbackPolicy

	// MaxClockBackward is the largest rollback RollbackWait sleeps through.
	// Ignored by the other policies.
	MaxClockBackward time.Duration
}

// DefaultConfig returns a Config with production defaults for the given node.
//
//   - Epoch: 2024-01-01T00:00:00Z
//   - Clock: monotonic-protected system clock
//   - MaxSpinWait: 1s
//   - OnClockRollback: RollbackFail
//   - MaxClockBackward: 5ms (only used by RollbackWait)
func DefaultConfig(workerID, datacenterID int64) Config {
	return Config{
		WorkerID:         workerID,
		DatacenterID:     datacenterID,
		Epoch:            Epoch,
		MaxSpinWait:      DefaultMaxSpinWait,
		OnClockRollback:  RollbackFail,
		MaxClockBackward: DefaultMaxClockBackward,
	}
}

// Validate checks the configuration and fills zero-valued optional fields.
//
// Validation rules:
//   - WorkerID and DatacenterID must be in [0, 31]; values are never clamped
//   - Epoch must be positive
//   - MaxSpinWait and MaxClockBackward must be non-negative
//   - OnClockRollback must be a known policy
//
// Returns ConfigError with detailed context for easier debugging.
func (c *Config) Validate() error {
	if c.WorkerID < 0 || c.WorkerID > MaxWorkerID {
		return newConfigError(
			"WorkerID",
			fmt.Sprintf("%d", c.WorkerID),
			"out of valid range",
			fmt.Sprintf("must be between 0 and %d (%d bits)", MaxWorkerID, WorkerIDBits),
		)
	}
	if c.DatacenterID < 0 || c.DatacenterID > MaxDatacenterID {
		return newConfigError(
			"DatacenterID",
			fmt.Sprintf("%d", c.DatacenterID),
			"out of valid range",
			fmt.Sprintf("must be between 0 and %d (%d bits)", MaxDatacenterID, DatacenterIDBits),
		)
	}
	if c.Epoch <= 0 {
		return newConfigError(
			"Epoch",
			fmt.Sprintf("%d", c.Epoch),
			"must be positive",
			"epoch timestamp in milliseconds must be > 0",
		)
	}
	if c.MaxSpinWait < 0 {
		return newConfigError("MaxSpinWait", c.MaxSpinWait.String(), "must be non-negative", "duration must be >= 0")
	}
	if c.MaxClockBackward < 0 {
		return newConfigError("MaxClockBackward", c.MaxClockBackward.String(), "must be non-negative", "duration must be >= 0")
	}
	switch c.OnClockRollback {
	case RollbackFail, RollbackWait, RollbackFallback:
	default:
		return newConfigError("OnClockRollback", c.OnClockRollback.String(), "unknown policy", "must be one of fail, wait, fallback")
	}

	if c.MaxSpinWait == 0 {
		c.MaxSpinWait = DefaultMaxSpinWait
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	if c.Rand == nil {
		c.Rand = rand.Int64N
	}
	return nil
}

// Metrics holds runtime counters for monitoring.
//
// All counters are monotonically increasing and read atomically.
type Metrics struct {
	Generated        int64 // IDs issued on the primary path
	ClockBackward    int64 // Rollback events (including recovered ones)
	ClockBackwardErr int64 // Rollbacks that failed the call
	SequenceOverflow int64 // Times 4096 IDs were exhausted within one millisecond
	WaitTimeUs       int64 // Total time spent waiting (microseconds)
	FallbackIssued   int64 // IDs issued in the fallback shape by NextSafeID
	SpinTimeouts     int64 // Exhaustion waits that hit MaxSpinWait
}

// Generator generates Snowflake IDs.
//
// # Thread Safety
//
// Generator is safe for concurrent use. The read-modify-write of lastTimestamp
// and sequence happens under a mutex, so one Generator yields strictly
// increasing IDs process-wide no matter how many goroutines share it.
type Generator struct {
	mu            sync.Mutex
	sequence      int64
	lastTimestamp int64

	clock            Clock
	rand             func(int64) int64
	epoch            int64
	datacenterID     int64
	workerID         int64
	maxSpinWait      time.Duration
	maxClockBackward time.Duration
	rollback         RollbackPolicy

	// Counters are kept apart from the hot fields above.
	generated        atomic.Int64
	clockBackward    atomic.Int64
	clockBackwardErr atomic.Int64
	sequenceOverflow atomic.Int64
	waitTimeUs       atomic.Int64
	fallbackIssued   atomic.Int64
	spinTimeouts     atomic.Int64
}

// New creates a generator for the given node with DefaultConfig.
//
// Example:
//
//	gen, err := snowflake.New(1, 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err := gen.NextID()
//
// Returns ConfigError if either ID is outside [0, 31].
func New(workerID, datacenterID int64) (*Generator, error) {
	return NewWithConfig(DefaultConfig(workerID, datacenterID))
}

// NewWithConfig creates a generator with custom configuration.
//
// Example:
//
//	cfg := snowflake.DefaultConfig(4, 2)
//	cfg.OnClockRollback = snowflake.RollbackWait
//	cfg.MaxClockBackward = 10 * time.Millisecond
//	gen, err := snowflake.NewWithConfig(cfg)
func NewWithConfig(cfg Config) (*Generator, error) {
	if err := (&cfg).Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		clock:            cfg.Clock,
		rand:             cfg.Rand,
		epoch:            cfg.Epoch,
		datacenterID:     cfg.DatacenterID,
		workerID:         cfg.WorkerID,
		maxSpinWait:      cfg.MaxSpinWait,
		maxClockBackward: cfg.MaxClockBackward,
		rollback:         cfg.OnClockRollback,
	}, nil
}

// NextID creates a new ID.
//
// Example:
//
//	id, err := gen.NextID()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(id.Base62())
func (g *Generator) NextID() (ID, error) {
	return g.NextIDWithContext(context.Background())
}

// NextIDWithContext creates a new ID, giving up with ErrContextCanceled if ctx
// ends while waiting out sequence exhaustion or a tolerated rollback.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
//	defer cancel()
//	id, err := gen.NextIDWithContext(ctx)
func (g *Generator) NextIDWithContext(ctx context.Context) (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := g.nextLocked(ctx)
	if err != nil {
		return 0, err
	}
	g.generated.Add(1)
	return ID(id), nil
}

// MustNextID generates an ID and panics on error.
func (g *Generator) MustNextID() ID {
	id, err := g.NextID()
	if err != nil {
		panic(err)
	}
	return id
}

// nextLocked is the ID generation algorithm. Callers hold g.mu.
//
// # Algorithm
//
//  1. Read the clock
//  2. Clock behind lastTimestamp: apply the rollback policy
//  3. Same millisecond: bump the sequence; on wrap, wait for the next millisecond
//  4. Newer millisecond: reset the sequence
//  5. Compose (ts-epoch)<<22 | dc<<17 | worker<<12 | seq
func (g *Generator) nextLocked(ctx context.Context) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ErrContextCanceled
	default:
	}

	timestamp := g.clock.NowMillis()

	if timestamp < g.lastTimestamp {
		g.clockBackward.Add(1)
		var err error
		if timestamp, err = g.recoverRollback(ctx, timestamp); err != nil {
			return 0, err
		}
	}
	if err := g.checkRange(timestamp); err != nil {
		return 0, err
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & MaxSequence

		// All 4096 values of this millisecond are spent.
		if g.sequence == 0 {
			g.sequenceOverflow.Add(1)
			next, err := g.waitNextMillis(ctx)
			if err != nil {
				// Keep the millisecond marked exhausted for the next caller.
				g.sequence = MaxSequence
				return 0, err
			}
			if err := g.checkRange(next); err != nil {
				g.sequence = MaxSequence
				return 0, err
			}
			timestamp = next
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = timestamp

	return ((timestamp - g.epoch) << TimestampShift) |
		(g.datacenterID << DatacenterIDShift) |
		(g.workerID << WorkerIDShift) |
		g.sequence, nil
}

// recoverRollback applies the rollback policy to a clock reading behind
// lastTimestamp and returns the reading to continue with.
func (g *Generator) recoverRollback(ctx context.Context, timestamp int64) (int64, error) {
	var tolerance int64
	if g.rollback == RollbackWait {
		tolerance = g.maxClockBackward.Milliseconds()
	}

	if drift := g.lastTimestamp - timestamp; drift <= tolerance {
		waitStart := time.Now()
		timer := time.NewTimer(time.Duration(drift) * time.Millisecond)
		select {
		case <-timer.C:
			timestamp = g.clock.NowMillis()
			g.waitTimeUs.Add(time.Since(waitStart).Microseconds())
		case <-ctx.Done():
			timer.Stop()
			return 0, ErrContextCanceled
		}
	}

	if timestamp < g.lastTimestamp {
		g.clockBackwardErr.Add(1)
		return 0, newClockError(timestamp, g.lastTimestamp, tolerance, g.datacenterID, g.workerID)
	}
	return timestamp, nil
}

// checkRange rejects clock readings the 41-bit timestamp field cannot hold.
func (g *Generator) checkRange(timestamp int64) error {
	switch rel := timestamp - g.epoch; {
	case rel < 0:
		return newOverflowError(TimestampUnderflowType, timestamp, g.epoch)
	case rel > MaxTimestamp:
		return newOverflowError(TimestampOverflowType, timestamp, g.epoch)
	}
	return nil
}

// waitNextMillis spins until the clock passes lastTimestamp.
//
// Each iteration yields with runtime.Gosched so other goroutines keep running.
// The wait is measured on the real monotonic clock, not g.clock, so a stalled
// or mocked clock still ends in a TimeoutError after maxSpinWait.
func (g *Generator) waitNextMillis(ctx context.Context) (int64, error) {
	waitStart := time.Now()
	for {
		now := g.clock.NowMillis()
		if now > g.lastTimestamp {
			g.waitTimeUs.Add(time.Since(waitStart).Microseconds())
			return now, nil
		}

		waited := time.Since(waitStart)
		if waited > g.maxSpinWait {
			g.spinTimeouts.Add(1)
			g.waitTimeUs.Add(waited.Microseconds())
			return 0, newTimeoutError(g.lastTimestamp, waited, g.maxSpinWait)
		}

		select {
		case <-ctx.Done():
			g.waitTimeUs.Add(time.Since(waitStart).Microseconds())
			return 0, ErrContextCanceled
		default:
		}
		runtime.Gosched()
	}
}

// SafeID is an ID that a double-precision consumer (JSON numbers, JavaScript,
// float-backed columns) can hold without precision loss in its intended range.
type SafeID struct {
	// Value is the numeric ID.
	Value int64

	// Fallback reports that Value has the fallback shape
	// (ms*1_000_000 + random) rather than the structured Snowflake layout.
	// Such values do not Parse meaningfully and are not collision-free.
	Fallback bool
}

// NextSafeID returns a structured ID when it does not exceed MaxSafeInteger,
// and a fallback-shaped ID otherwise.
//
// With the 2024 epoch, structured IDs cross 2^53-1 about 24.8 days after the
// epoch (SafeTimestampLimit), so long-running deployments mostly receive
// fallback IDs from this path. Use NextID where 64-bit integers survive.
func (g *Generator) NextSafeID() (int64, error) {
	sid, err := g.NextSafeIDWithContext(context.Background())
	return sid.Value, err
}

// NextSafeIDWithContext is NextSafeID with cancellation and the fallback flag.
//
// Under RollbackFallback a clock rollback also degrades to the fallback shape
// instead of failing.
func (g *Generator) NextSafeIDWithContext(ctx context.Context) (SafeID, error) {
	id, err := g.NextIDWithContext(ctx)
	if err != nil {
		if g.rollback == RollbackFallback && errors.Is(err, ErrClockMovedBack) {
			return g.issueFallback(), nil
		}
		return SafeID{}, err
	}
	if !id.IsSafe() {
		return g.issueFallback(), nil
	}
	return SafeID{Value: int64(id)}, nil
}

// FallbackID returns an unstructured ID: nowMillis*1_000_000 + random[0, 999_999].
//
// Two calls in the same millisecond collide with probability 1/1,000,000;
// rely on a storage uniqueness constraint as the backstop.
func (g *Generator) FallbackID() int64 {
	return Fallback(g.clock, g.rand)
}

func (g *Generator) issueFallback() SafeID {
	g.fallbackIssued.Add(1)
	return SafeID{Value: g.FallbackID(), Fallback: true}
}

// GenerateBatch generates count IDs while holding the lock once.
//
// If an error occurs mid-batch (clock rollback, spin timeout, cancellation),
// the IDs generated so far are returned together with the error.
//
// Example:
//
//	ids, err := gen.GenerateBatch(ctx, 1000)
//	if err != nil {
//	    log.Error("batch generation failed", "generated", len(ids), "err", err)
//	}
func (g *Generator) GenerateBatch(ctx context.Context, count int) ([]ID, error) {
	if count <= 0 {
		return []ID{}, nil
	}

	ids := make([]ID, 0, count)

	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() { g.generated.Add(int64(len(ids))) }()

	for i := 0; i < count; i++ {
		id, err := g.nextLocked(ctx)
		if err != nil {
			return ids, err
		}
		ids = append(ids, ID(id))
	}
	return ids, nil
}

// GetMetrics returns a snapshot of the counters.
func (g *Generator) GetMetrics() Metrics {
	return Metrics{
		Generated:        g.generated.Load(),
		ClockBackward:    g.clockBackward.Load(),
		ClockBackwardErr: g.clockBackwardErr.Load(),
		SequenceOverflow: g.sequenceOverflow.Load(),
		WaitTimeUs:       g.waitTimeUs.Load(),
		FallbackIssued:   g.fallbackIssued.Load(),
		SpinTimeouts:     g.spinTimeouts.Load(),
	}
}

// ResetMetrics resets all counters to zero. Intended for tests.
func (g *Generator) ResetMetrics() {
	g.generated.Store(0)
	g.clockBackward.Store(0)
	g.clockBackwardErr.Store(0)
	g.sequenceOverflow.Store(0)
	g.waitTimeUs.Store(0)
	g.fallbackIssued.Store(0)
	g.spinTimeouts.Store(0)
}

// WorkerID returns the worker ID of this generator.
func (g *Generator) WorkerID() int64 { return g.workerID }

// DatacenterID returns the datacenter ID of this generator.
func (g *Generator) DatacenterID() int64 { return g.datacenterID }

// Epoch returns the epoch this generator encodes timestamps against.
func (g *Generator) Epoch() int64 { return g.epoch }

// RollbackPolicy returns the configured rollback policy.
func (g *Generator) RollbackPolicy() RollbackPolicy { return g.rollback }

// Parse decomposes an ID minted by this generator (or any generator sharing its epoch).
func (g *Generator) Parse(id ID) ParsedID {
	return parseWithEpoch(id, g.epoch)
}
