// Package snowflake - id.go provides the ID type with encoding, storage and
// decoding helpers.

package snowflake

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a generated Snowflake ID.
//
// # Interface Implementations
//
//   - json.Marshaler/Unmarshaler: quoted decimal string, so JavaScript clients
//     do not round IDs above 2^53
//   - encoding.TextMarshaler/Unmarshaler: decimal string
//   - encoding.BinaryMarshaler/Unmarshaler: 8 bytes big-endian
//   - sql.Scanner/driver.Valuer: BIGINT / INTEGER columns
//   - fmt.Stringer
//
// Example:
//
//	id, _ := gen.NextID()
//	fmt.Printf("ID: %d\n", id.Int64())
//	fmt.Printf("Base62: %s\n", id.Base62())
//	fmt.Printf("Worker: %d\n", id.Worker())
//	fmt.Printf("Time: %v\n", id.Time())
type ID int64

// ParsedID is the decomposition of an ID into its fields.
type ParsedID struct {
	// TimestampMillis is the absolute Unix timestamp in milliseconds.
	TimestampMillis int64 `json:"timestamp_ms"`
	DatacenterID    int64 `json:"datacenter_id"`
	WorkerID        int64 `json:"worker_id"`
	Sequence        int64 `json:"sequence"`
}

// Time returns the embedded timestamp as a UTC time.Time.
func (p ParsedID) Time() time.Time {
	return time.UnixMilli(p.TimestampMillis).UTC()
}

// Parse decomposes an ID generated against the default Epoch.
//
// It is a pure function and the exact inverse of the encoding in NextID.
// Results for fallback-shaped values are meaningless.
//
//	timestamp  = (id >> 22) + epoch
//	datacenter = (id >> 17) & 0x1F
//	worker     = (id >> 12) & 0x1F
//	sequence   = id & 0xFFF
func Parse(id ID) ParsedID {
	return parseWithEpoch(id, Epoch)
}

func parseWithEpoch(id ID, epoch int64) ParsedID {
	v := int64(id)
	return ParsedID{
		TimestampMillis: (v >> TimestampShift) + epoch,
		DatacenterID:    (v >> DatacenterIDShift) & MaxDatacenterID,
		WorkerID:        (v >> WorkerIDShift) & MaxWorkerID,
		Sequence:        v & MaxSequence,
	}
}

// ============================================================================
// Basic Conversions
// ============================================================================

// Int64 returns the ID as an int64.
func (id ID) Int64() int64 {
	return int64(id)
}

// String returns the decimal string representation of the ID.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Base2 returns the binary representation, mainly for debugging the layout.
func (id ID) Base2() string {
	return strconv.FormatInt(int64(id), 2)
}

// Base58 returns a Bitcoin-style Base58 encoding.
func (id ID) Base58() string {
	return base58.encode(int64(id))
}

// Base62 returns a URL-safe alphanumeric encoding.
func (id ID) Base62() string {
	return base62.encode(int64(id))
}

// Hex returns a lowercase hexadecimal encoding.
func (id ID) Hex() string {
	return hex.encode(int64(id))
}

// Bytes returns the ID as 8 big-endian bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// ============================================================================
// Field Accessors
// ============================================================================

// Timestamp returns the embedded Unix timestamp in milliseconds (default Epoch).
func (id ID) Timestamp() int64 {
	return (int64(id) >> TimestampShift) + Epoch
}

// Time returns the embedded timestamp as a UTC time.Time (default Epoch).
func (id ID) Time() time.Time {
	return time.UnixMilli(id.Timestamp()).UTC()
}

// Datacenter returns the datacenter ID field.
func (id ID) Datacenter() int64 {
	return (int64(id) >> DatacenterIDShift) & MaxDatacenterID
}

// Worker returns the worker ID field.
func (id ID) Worker() int64 {
	return (int64(id) >> WorkerIDShift) & MaxWorkerID
}

// Sequence returns the sequence field.
func (id ID) Sequence() int64 {
	return int64(id) & MaxSequence
}

// Components returns every field at once, with the timestamp in Unix
// milliseconds (default Epoch).
func (id ID) Components() (timestamp, datacenterID, workerID, sequence int64) {
	return id.Timestamp(), id.Datacenter(), id.Worker(), id.Sequence()
}

// IsSafe reports whether the ID fits in an IEEE-754 double without precision loss.
func (id ID) IsSafe() bool {
	return id >= 0 && int64(id) <= MaxSafeInteger
}

// IsValid reports whether the ID looks like one this package generates:
// positive, timestamped after the epoch and no more than a day in the future.
func (id ID) IsValid() bool {
	if id <= 0 {
		return false
	}
	ts := id.Timestamp()
	return ts > Epoch && ts <= time.Now().UnixMilli()+int64(24*time.Hour/time.Millisecond)
}

// Age returns the duration since the ID was generated.
func (id ID) Age() time.Duration {
	return time.Since(id.Time())
}

// Compare returns -1, 0 or +1. Since IDs are time-ordered this is creation order.
func (id ID) Compare(other ID) int {
	switch {
	case id < other:
		return -1
	case id > other:
		return 1
	default:
		return 0
	}
}

// ============================================================================
// JSON / Text / Binary Marshaling
// ============================================================================

// MarshalJSON encodes the ID as a quoted decimal string.
//
// JavaScript numbers are doubles, exact only up to 2^53; a bare number would be
// silently rounded by browsers.
//
//	{"id": "1234567890123456789"}
func (id ID) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 22)
	b = append(b, '"')
	b = strconv.AppendInt(b, int64(id), 10)
	b = append(b, '"')
	return b, nil
}

// UnmarshalJSON accepts either a quoted string or a bare number.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snowflake ID %q: %w", string(data), err)
	}
	*id = ID(i)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	i, err := strconv.ParseInt(string(text), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snowflake ID %q: %w", string(text), err)
	}
	*id = ID(i)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (id ID) MarshalBinary() ([]byte, error) {
	return id.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (id *ID) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("invalid binary data length: %d", len(data))
	}
	*id = ID(int64(binary.BigEndian.Uint64(data)))
	return nil
}

// ============================================================================
// SQL Database Integration
// ============================================================================

// Scan implements sql.Scanner. It reads BIGINT/INTEGER columns as well as
// decimal text; NULL scans as zero.
//
// Example:
//
//	var id snowflake.ID
//	err := db.QueryRow("SELECT id FROM posts WHERE slug = ?", slug).Scan(&id)
func (id *ID) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*id = 0
	case int64:
		*id = ID(v)
	case []byte:
		return id.UnmarshalText(v)
	case string:
		return id.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into ID", value)
	}
	return nil
}

// Value implements driver.Valuer; IDs are stored as int64.
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}

// ============================================================================
// Parsing Functions
// ============================================================================

// ParseString parses a decimal string into an ID.
func ParseString(s string) (ID, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(i), nil
}

// ParseBase58 parses a Base58 string into an ID.
func ParseBase58(s string) (ID, error) {
	v, err := base58.decodeString(s)
	return ID(v), err
}

// ParseBase62 parses a Base62 string into an ID.
func ParseBase62(s string) (ID, error) {
	v, err := base62.decodeString(s)
	return ID(v), err
}

// ParseHex parses a hexadecimal string (either case, optional 0x prefix) into an ID.
func ParseHex(s string) (ID, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := hex.decodeString(s)
	return ID(v), err
}

// ParseAny tries decimal, then Base62, Base58 and hex, and returns the first
// that succeeds. Strings valid in several alphabets resolve in that order,
// except that a 0x prefix always selects hex.
func ParseAny(s string) (ID, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return ParseHex(s)
	}
	if id, err := ParseString(s); err == nil {
		return id, nil
	}
	if id, err := ParseBase62(s); err == nil {
		return id, nil
	}
	if id, err := ParseBase58(s); err == nil {
		return id, nil
	}
	id, err := ParseHex(s)
	if err != nil {
		return 0, fmt.Errorf("unable to parse ID %q: %w", s, err)
	}
	return id, nil
}

// Format renders the ID in the named encoding: decimal (default), base58,
// base62, hex or binary. Short aliases b58, b62, x and bin are accepted.
func (id ID) Format(format string) string {
	switch strings.ToLower(format) {
	case "base58", "b58":
		return id.Base58()
	case "base62", "b62":
		return id.Base62()
	case "hex", "x":
		return id.Hex()
	case "binary", "bin", "base2":
		return id.Base2()
	default:
		return id.String()
	}
}
