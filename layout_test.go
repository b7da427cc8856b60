package snowflake

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLayoutConstants(t *testing.T) {
	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"TimestampShift", TimestampShift, 22},
		{"DatacenterIDShift", DatacenterIDShift, 17},
		{"WorkerIDShift", WorkerIDShift, 12},
		{"MaxWorkerID", MaxWorkerID, 31},
		{"MaxDatacenterID", MaxDatacenterID, 31},
		{"MaxSequence", MaxSequence, 4095},
		{"MaxSafeInteger", MaxSafeInteger, 9007199254740991},
		{"NodeCount", NodeCount, 1024},
		{"Bit total", 1 + TimestampBits + DatacenterIDBits + WorkerIDBits + SequenceBits, 64},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestLayoutCapacity(t *testing.T) {
	c := LayoutCapacity()

	if c.Datacenters != 32 || c.WorkersPerDC != 32 {
		t.Errorf("nodes = %d x %d, want 32 x 32", c.Datacenters, c.WorkersPerDC)
	}
	if c.SequencePerMilli != 4096 || c.ThroughputPerWorker != 4_096_000 {
		t.Errorf("throughput = %d/ms, %d/s", c.SequencePerMilli, c.ThroughputPerWorker)
	}

	years := c.Lifespan.Hours() / 24 / 365
	if years < 69 || years > 70 {
		t.Errorf("lifespan = %.1f years, want ~69", years)
	}

	exhausted := c.Exhausted(Epoch)
	if exhausted.Year() != 2093 {
		t.Errorf("Exhausted(Epoch) = %v, want year 2093", exhausted)
	}

	s := c.String()
	for _, want := range []string{"Datacenters: 32", "WorkersPerDC: 32", "4096000/sec", "69 years"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestSafeTimestampLimit(t *testing.T) {
	last := ID(SafeTimestampLimit<<TimestampShift | MaxDatacenterID<<DatacenterIDShift | MaxWorkerID<<WorkerIDShift | MaxSequence)
	if !last.IsSafe() {
		t.Errorf("largest ID at SafeTimestampLimit = %d should be safe", last)
	}

	first := ID((SafeTimestampLimit + 1) << TimestampShift)
	if first.IsSafe() {
		t.Errorf("first ID past SafeTimestampLimit = %d should not be safe", first)
	}

	// Roughly 24.8 days after the epoch.
	days := time.Duration(SafeTimestampLimit) * time.Millisecond / (24 * time.Hour)
	if days != 24 {
		t.Errorf("SafeTimestampLimit = %d days, want 24", days)
	}
}

func TestSlotPair(t *testing.T) {
	tests := []struct {
		slot           int64
		wantDC, wantWK int64
		wantErr        bool
	}{
		{0, 0, 0, false},
		{31, 0, 31, false},
		{32, 1, 0, false},
		{33, 1, 1, false},
		{1023, 31, 31, false},
		{1024, 0, 0, true},
		{-1, 0, 0, true},
	}

	for _, tt := range tests {
		dc, wk, err := SlotPair(tt.slot)
		if (err != nil) != tt.wantErr {
			t.Errorf("SlotPair(%d) error = %v, wantErr %v", tt.slot, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("SlotPair(%d) error should wrap ErrInvalidConfig", tt.slot)
			}
			continue
		}
		if dc != tt.wantDC || wk != tt.wantWK {
			t.Errorf("SlotPair(%d) = (%d, %d), want (%d, %d)", tt.slot, dc, wk, tt.wantDC, tt.wantWK)
		}
	}
}
