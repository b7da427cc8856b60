package snowflake

import (
	"fmt"
	"sync"
)

// Process-wide generator backing the package-level functions.
//
// IDs are only guaranteed strictly increasing per Generator, so call sites
// that must agree on ordering within one process need the same instance.
// Services should construct one Generator in main and pass it down; the shared
// instance exists for call sites that cannot be reached by injection.
var (
	sharedMu  sync.Mutex
	sharedGen *Generator
)

// Shared returns the process-wide generator, creating it with the given IDs
// on first use.
//
// Once created, the instance keeps its IDs for the life of the process. A later
// call with a different worker or datacenter ID fails with a ConfigError that
// wraps ErrSharedReconfigured rather than silently returning a generator
// configured differently from what the caller asked for.
func Shared(workerID, datacenterID int64) (*Generator, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedGen == nil {
		gen, err := New(workerID, datacenterID)
		if err != nil {
			return nil, err
		}
		sharedGen = gen
		return gen, nil
	}

	if sharedGen.workerID != workerID || sharedGen.datacenterID != datacenterID {
		return nil, &ConfigError{
			Field:  "Shared",
			Value:  fmt.Sprintf("worker=%d datacenter=%d", workerID, datacenterID),
			Reason: "process-wide generator already configured",
			Constraint: fmt.Sprintf("existing generator uses worker=%d datacenter=%d",
				sharedGen.workerID, sharedGen.datacenterID),
			cause: ErrSharedReconfigured,
		}
	}
	return sharedGen, nil
}

// Default returns the process-wide generator, creating it with
// DefaultWorkerID and DefaultDatacenterID if nothing has created it yet.
// Whatever configuration created the instance first wins.
func Default() (*Generator, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedGen == nil {
		gen, err := New(DefaultWorkerID, DefaultDatacenterID)
		if err != nil {
			return nil, err
		}
		sharedGen = gen
	}
	return sharedGen, nil
}

// NextID generates an ID using the process-wide generator.
//
// Example:
//
//	id, err := snowflake.NextID()
//	if err != nil {
//	    log.Fatal(err)
//	}
func NextID() (ID, error) {
	gen, err := Default()
	if err != nil {
		return 0, err
	}
	return gen.NextID()
}

// NextSafeID generates a safe-integer ID using the process-wide generator.
func NextSafeID() (int64, error) {
	gen, err := Default()
	if err != nil {
		return 0, err
	}
	return gen.NextSafeID()
}

// MustNextID generates an ID using the process-wide generator and panics on error.
func MustNextID() ID {
	id, err := NextID()
	if err != nil {
		panic(err)
	}
	return id
}

// GetDefaultMetrics returns metrics from the process-wide generator.
func GetDefaultMetrics() (Metrics, error) {
	gen, err := Default()
	if err != nil {
		return Metrics{}, err
	}
	return gen.GetMetrics(), nil
}

// resetShared drops the process-wide generator. Tests only.
func resetShared() {
	sharedMu.Lock()
	sharedGen = nil
	sharedMu.Unlock()
}
