package snowflake

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// ClockError Tests
// ============================================================================

func TestClockError_Error(t *testing.T) {
	err := newClockError(1000, 1010, 5, 2, 3)

	msg := err.Error()
	for _, want := range []string{"clock moved backwards", "drift=10ms", "tolerance=5ms", "current=1000", "last=1010", "datacenter=2", "worker=3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestClockError_Unwrap(t *testing.T) {
	err := newClockError(1000, 1010, 0, 1, 1)
	if !errors.Is(err, ErrClockMovedBack) {
		t.Error("ClockError should unwrap to ErrClockMovedBack")
	}
	if errors.Is(err, ErrInvalidConfig) {
		t.Error("ClockError should not match ErrInvalidConfig")
	}
}

func TestClockError_DriftDuration(t *testing.T) {
	err := newClockError(1000, 1250, 0, 1, 1)
	if got := err.DriftDuration(); got != 250*time.Millisecond {
		t.Errorf("DriftDuration() = %v, want 250ms", got)
	}
}

func TestClockError_ExceedsTolerance(t *testing.T) {
	tests := []struct {
		name      string
		drift     int64
		tolerance int64
		want      bool
	}{
		{"Within tolerance", 3, 5, false},
		{"At tolerance", 5, 5, false},
		{"Beyond tolerance", 6, 5, true},
		{"No tolerance", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newClockError(1000, 1000+tt.drift, tt.tolerance, 0, 0)
			if got := err.ExceedsTolerance(); got != tt.want {
				t.Errorf("ExceedsTolerance() = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================================
// ConfigError Tests
// ============================================================================

func TestConfigError_Error(t *testing.T) {
	err := newConfigError("WorkerID", "32", "out of valid range", "must be between 0 and 31 (5 bits)")

	want := "invalid configuration: WorkerID=32 (out of valid range) - must be between 0 and 31 (5 bits)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	err := newConfigError("Epoch", "0", "must be positive", "> 0")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("ConfigError should unwrap to ErrInvalidConfig")
	}
	if errors.Is(err, ErrSharedReconfigured) {
		t.Error("plain ConfigError should not match ErrSharedReconfigured")
	}

	withCause := &ConfigError{Field: "Shared", cause: ErrSharedReconfigured}
	if !errors.Is(withCause, ErrInvalidConfig) || !errors.Is(withCause, ErrSharedReconfigured) {
		t.Error("ConfigError with cause should match both sentinels")
	}
}

// ============================================================================
// TimeoutError / OverflowError Tests
// ============================================================================

func TestTimeoutError(t *testing.T) {
	err := newTimeoutError(Epoch+5, 3*time.Millisecond, 2*time.Millisecond)

	if !errors.Is(err, ErrSpinTimeout) {
		t.Error("TimeoutError should unwrap to ErrSpinTimeout")
	}
	if !strings.Contains(err.Error(), "did not advance within 2ms") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestOverflowError(t *testing.T) {
	tests := []struct {
		kind OverflowType
		want string
	}{
		{TimestampUnderflowType, "before epoch"},
		{TimestampOverflowType, "41-bit lifespan"},
		{OverflowType(9), "unknown overflow type"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := newOverflowError(tt.kind, 10, 20)
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Error() = %q, want substring %q", err.Error(), tt.want)
			}
			if !errors.Is(err, ErrTimestampOverflow) {
				t.Error("OverflowError should unwrap to ErrTimestampOverflow")
			}
		})
	}
}

func TestOverflowType_String(t *testing.T) {
	tests := []struct {
		kind OverflowType
		want string
	}{
		{TimestampUnderflowType, "timestamp_underflow"},
		{TimestampOverflowType, "timestamp_overflow"},
		{OverflowType(99), "unknown_overflow"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OverflowType(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

// ============================================================================
// Helper Function Tests
// ============================================================================

func TestIsHelpers(t *testing.T) {
	clockErr := newClockError(1, 2, 0, 0, 0)
	configErr := newConfigError("f", "v", "r", "c")
	timeoutErr := newTimeoutError(1, time.Millisecond, time.Millisecond)
	wrapped := fmt.Errorf("minting order id: %w", clockErr)

	tests := []struct {
		name        string
		err         error
		wantClock   bool
		wantConfig  bool
		wantTimeout bool
	}{
		{"ClockError", clockErr, true, false, false},
		{"Wrapped ClockError", wrapped, true, false, false},
		{"ConfigError", configErr, false, true, false},
		{"TimeoutError", timeoutErr, false, false, true},
		{"Sentinel only", ErrClockMovedBack, false, false, false},
		{"Nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClockError(tt.err); got != tt.wantClock {
				t.Errorf("IsClockError() = %v, want %v", got, tt.wantClock)
			}
			if got := IsConfigError(tt.err); got != tt.wantConfig {
				t.Errorf("IsConfigError() = %v, want %v", got, tt.wantConfig)
			}
			if got := IsTimeoutError(tt.err); got != tt.wantTimeout {
				t.Errorf("IsTimeoutError() = %v, want %v", got, tt.wantTimeout)
			}
		})
	}
}

func TestGetClockError(t *testing.T) {
	original := newClockError(1000, 1100, 0, 4, 5)

	got, ok := GetClockError(fmt.Errorf("wrapped: %w", original))
	if !ok || got != original {
		t.Errorf("GetClockError() = (%v, %v), want original", got, ok)
	}

	if _, ok := GetClockError(errors.New("other")); ok {
		t.Error("GetClockError() should fail for unrelated errors")
	}
}

func TestGetConfigError(t *testing.T) {
	_, err := New(64, 0)

	got, ok := GetConfigError(err)
	if !ok {
		t.Fatalf("GetConfigError() failed for %v", err)
	}
	if got.Field != "WorkerID" || got.Value != "64" {
		t.Errorf("ConfigError = %+v", got)
	}
	if !strings.Contains(got.Constraint, "between 0 and 31") {
		t.Errorf("Constraint = %q", got.Constraint)
	}

	if _, ok := GetConfigError(nil); ok {
		t.Error("GetConfigError(nil) should fail")
	}
}
