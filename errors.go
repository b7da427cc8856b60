// Package snowflake - errors.go provides custom error types with rich context.
//
// These error types carry timestamps, node IDs, drift amounts and wait times so
// callers can log and alert on them without parsing messages.

package snowflake

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the generator. Every typed error below unwraps to one of
// these, so errors.Is works without knowing the concrete type.
var (
	// ErrInvalidConfig is returned when Config validation fails.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClockMovedBack is returned when the wall clock moved behind the last issued timestamp.
	// Check NTP configuration if this occurs frequently.
	ErrClockMovedBack = errors.New("clock moved backwards")

	// ErrSpinTimeout is returned when the clock did not advance past an
	// exhausted millisecond within Config.MaxSpinWait.
	ErrSpinTimeout = errors.New("timed out waiting for next millisecond")

	// ErrContextCanceled is returned when the context is canceled during ID generation.
	ErrContextCanceled = errors.New("context canceled")

	// ErrTimestampOverflow is returned when the clock is outside the range the
	// 41-bit timestamp can represent relative to the epoch.
	ErrTimestampOverflow = errors.New("timestamp out of range")

	// ErrSharedReconfigured is returned by Shared when the process-wide
	// generator already exists with a different worker or datacenter ID.
	ErrSharedReconfigured = errors.New("shared generator already configured")
)

// ============================================================================
// Custom Error Types
// ============================================================================

// ClockError reports a wall-clock rollback.
//
// Example usage:
//
//	id, err := gen.NextID()
//	var clockErr *snowflake.ClockError
//	if errors.As(err, &clockErr) {
//	    log.Error("clock drift detected",
//	        "drift_ms", clockErr.DriftMilliseconds,
//	        "worker", clockErr.WorkerID)
//	}
type ClockError struct {
	// CurrentTimestamp is the clock reading that triggered the error (Unix ms).
	CurrentTimestamp int64

	// LastTimestamp is the timestamp of the last issued ID (Unix ms).
	LastTimestamp int64

	// DriftMilliseconds is the magnitude of the rollback (always positive).
	DriftMilliseconds int64

	// ToleranceMilliseconds is the rollback the generator was willing to wait out.
	// Zero under RollbackFail.
	ToleranceMilliseconds int64

	// DatacenterID and WorkerID identify the generator that saw the rollback.
	DatacenterID int64
	WorkerID     int64
}

// Error implements the error interface.
func (e *ClockError) Error() string {
	return fmt.Sprintf("clock moved backwards: drift=%dms tolerance=%dms current=%d last=%d datacenter=%d worker=%d",
		e.DriftMilliseconds, e.ToleranceMilliseconds,
		e.CurrentTimestamp, e.LastTimestamp, e.DatacenterID, e.WorkerID)
}

// Unwrap returns the underlying error for errors.Is() compatibility.
func (e *ClockError) Unwrap() error {
	return ErrClockMovedBack
}

// DriftDuration returns the drift amount as a time.Duration.
func (e *ClockError) DriftDuration() time.Duration {
	return time.Duration(e.DriftMilliseconds) * time.Millisecond
}

// ExceedsTolerance returns true if the drift exceeds the tolerance.
func (e *ClockError) ExceedsTolerance() bool {
	return e.DriftMilliseconds > e.ToleranceMilliseconds
}

// ConfigError represents a configuration validation error.
//
// Example usage:
//
//	if _, err := snowflake.NewWithConfig(cfg); err != nil {
//	    var configErr *snowflake.ConfigError
//	    if errors.As(err, &configErr) {
//	        log.Error("invalid configuration",
//	            "field", configErr.Field,
//	            "value", configErr.Value)
//	    }
//	}
type ConfigError struct {
	// Field is the name of the configuration field that failed validation.
	Field string

	// Value is the invalid value (as string for logging).
	Value string

	// Reason is a human-readable explanation of why the value is invalid.
	Reason string

	// Constraint describes the valid range or constraint.
	// Example: "must be between 0 and 31"
	Constraint string

	// cause overrides the default ErrInvalidConfig for errors.Is.
	cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%s (%s) - %s",
		e.Field, e.Value, e.Reason, e.Constraint)
}

// Unwrap returns the underlying errors for errors.Is() compatibility.
func (e *ConfigError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrInvalidConfig, e.cause}
	}
	return []error{ErrInvalidConfig}
}

// TimeoutError reports that sequence exhaustion could not be resolved because
// the clock stayed on the exhausted millisecond for longer than the wait cap.
type TimeoutError struct {
	// Timestamp is the exhausted millisecond (Unix ms).
	Timestamp int64

	// Waited is how long the generator spun before giving up.
	Waited time.Duration

	// Limit is the configured Config.MaxSpinWait.
	Limit time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sequence exhausted at %d: clock did not advance within %v (waited %v)",
		e.Timestamp, e.Limit, e.Waited)
}

// Unwrap returns the underlying error for errors.Is() compatibility.
func (e *TimeoutError) Unwrap() error {
	return ErrSpinTimeout
}

// OverflowType indicates which end of the timestamp range was crossed.
type OverflowType int

const (
	// TimestampUnderflowType indicates the clock reads earlier than the epoch.
	TimestampUnderflowType OverflowType = iota

	// TimestampOverflowType indicates the 41-bit timestamp space is exhausted (~69 years).
	TimestampOverflowType
)

// String returns a human-readable name for the overflow type.
func (t OverflowType) String() string {
	switch t {
	case TimestampUnderflowType:
		return "timestamp_underflow"
	case TimestampOverflowType:
		return "timestamp_overflow"
	default:
		return "unknown_overflow"
	}
}

// OverflowError reports a clock reading the layout cannot encode.
type OverflowError struct {
	Type      OverflowType
	Timestamp int64 // Unix ms
	Epoch     int64 // Unix ms
}

// Error implements the error interface.
func (e *OverflowError) Error() string {
	switch e.Type {
	case TimestampUnderflowType:
		return fmt.Sprintf("timestamp underflow: clock %d is before epoch %d", e.Timestamp, e.Epoch)
	case TimestampOverflowType:
		return fmt.Sprintf("timestamp overflow: clock %d is past the 41-bit lifespan of epoch %d", e.Timestamp, e.Epoch)
	default:
		return fmt.Sprintf("unknown overflow type: %d", e.Type)
	}
}

// Unwrap returns the underlying error for errors.Is() compatibility.
func (e *OverflowError) Unwrap() error {
	return ErrTimestampOverflow
}

// ============================================================================
// Error Helper Functions
// ============================================================================

// IsClockError checks if an error is or wraps a ClockError.
func IsClockError(err error) bool {
	var clockErr *ClockError
	return errors.As(err, &clockErr)
}

// IsConfigError checks if an error is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsTimeoutError checks if an error is or wraps a TimeoutError.
func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// GetClockError extracts the ClockError from an error chain.
//
// Example:
//
//	if clockErr, ok := snowflake.GetClockError(err); ok {
//	    fmt.Printf("Drift: %dms\n", clockErr.DriftMilliseconds)
//	}
func GetClockError(err error) (*ClockError, bool) {
	var clockErr *ClockError
	if errors.As(err, &clockErr) {
		return clockErr, true
	}
	return nil, false
}

// GetConfigError extracts the ConfigError from an error chain.
func GetConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// ============================================================================
// Error Constructor Helpers
// ============================================================================

func newClockError(currentTs, lastTs, toleranceMs, datacenterID, workerID int64) *ClockError {
	return &ClockError{
		CurrentTimestamp:      currentTs,
		LastTimestamp:         lastTs,
		DriftMilliseconds:     lastTs - currentTs,
		ToleranceMilliseconds: toleranceMs,
		DatacenterID:          datacenterID,
		WorkerID:              workerID,
	}
}

func newConfigError(field, value, reason, constraint string) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Reason:     reason,
		Constraint: constraint,
	}
}

func newTimeoutError(timestamp int64, waited, limit time.Duration) *TimeoutError {
	return &TimeoutError{Timestamp: timestamp, Waited: waited, Limit: limit}
}

func newOverflowError(kind OverflowType, timestamp, epoch int64) *OverflowError {
	return &OverflowError{Type: kind, Timestamp: timestamp, Epoch: epoch}
}
