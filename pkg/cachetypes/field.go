package cachetypes

import (
	"errors"
	"fmt"
	"time"
)

// FieldType tags the variant carried by a Field.
type FieldType uint8

const (
	Null FieldType = iota
	Boolean
	Int
	UInt
	I128
	U128
	Float
	Decimal
	String
	Text
	Binary
	Date
	Timestamp
	Duration
	Point
	JSON
)

func (t FieldType) String() string {
	switch t {
	case Null:
		return "Null"
	case Boolean:
		return "Boolean"
	case Int:
		return "Int"
	case UInt:
		return "UInt"
	case I128:
		return "I128"
	case U128:
		return "U128"
	case Float:
		return "Float"
	case Decimal:
		return "Decimal"
	case String:
		return "String"
	case Text:
		return "Text"
	case Binary:
		return "Binary"
	case Date:
		return "Date"
	case Timestamp:
		return "Timestamp"
	case Duration:
		return "Duration"
	case Point:
		return "Point"
	case JSON:
		return "JSON"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// DurationUnit labels the display unit of a Duration field. Ordering is
// always by the underlying nanosecond count, never by unit.
type DurationUnit uint8

const (
	Nanoseconds DurationUnit = iota
	Microseconds
	Milliseconds
	Seconds
)

// LatLng is a latitude/longitude pair, the value held by a Point field.
type LatLng struct {
	Lat float64
	Lng float64
}

// Decimal128 is a 128-bit fixed-point value: unscaled two's-complement
// integer plus a display scale. Encoding and ordering operate on
// Unscaled only; callers are responsible for normalizing to a single
// scale per field position before comparing or indexing, matching the
// fixed-point convention of one decimal scale per schema column.
type Decimal128 struct {
	Unscaled [16]byte // big-endian two's complement
	Scale    int32
}

// ErrNotOrderable is returned by Compare when a Field's type has no
// total order consistent with its semantics (JSON only).
var ErrNotOrderable = errors.New("cachetypes: field type has no total order")

// ErrTypeMismatch is returned by Compare/Equal when comparing Fields of
// different FieldType.
var ErrTypeMismatch = errors.New("cachetypes: field type mismatch")

// Field is a tagged value. The zero Field is Null.
type Field struct {
	Type FieldType

	boolV    bool
	intV     int64
	uintV    uint64
	i128V    [16]byte
	u128V    [16]byte
	floatV   float64
	decV     Decimal128
	bytesV   []byte // backs String, Text, Binary, JSON
	dateV    time.Time
	tsV      time.Time
	tsOffset int32
	durV     int64
	durUnit  DurationUnit
	pointV   LatLng
}

func NewNull() Field { return Field{Type: Null} }

func NewBool(v bool) Field { return Field{Type: Boolean, boolV: v} }

func NewInt(v int64) Field { return Field{Type: Int, intV: v} }

func NewUInt(v uint64) Field { return Field{Type: UInt, uintV: v} }

// NewI128 takes a big-endian two's-complement 16-byte representation.
func NewI128(v [16]byte) Field { return Field{Type: I128, i128V: v} }

// NewU128 takes a big-endian 16-byte representation.
func NewU128(v [16]byte) Field { return Field{Type: U128, u128V: v} }

func NewFloat(v float64) Field { return Field{Type: Float, floatV: v} }

func NewDecimal(v Decimal128) Field { return Field{Type: Decimal, decV: v} }

func NewString(v string) Field { return Field{Type: String, bytesV: []byte(v)} }

func NewText(v string) Field { return Field{Type: Text, bytesV: []byte(v)} }

func NewBinary(v []byte) Field {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Field{Type: Binary, bytesV: cp}
}

// NewDate truncates t to a calendar day in UTC.
func NewDate(t time.Time) Field {
	u := t.UTC()
	return Field{Type: Date, dateV: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// NewTimestamp stores the absolute instant plus a fixed offset (seconds
// east of UTC) retained only for display; ordering is by instant.
func NewTimestamp(t time.Time, offsetSeconds int32) Field {
	return Field{Type: Timestamp, tsV: t.UTC(), tsOffset: offsetSeconds}
}

func NewDuration(ns int64, unit DurationUnit) Field {
	return Field{Type: Duration, durV: ns, durUnit: unit}
}

func NewPoint(lat, lng float64) Field {
	return Field{Type: Point, pointV: LatLng{Lat: lat, Lng: lng}}
}

func NewJSON(raw []byte) Field {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Field{Type: JSON, bytesV: cp}
}

func (f Field) IsNull() bool { return f.Type == Null }

func (f Field) AsBool() (bool, bool)       { return f.boolV, f.Type == Boolean }
func (f Field) AsInt() (int64, bool)       { return f.intV, f.Type == Int }
func (f Field) AsUInt() (uint64, bool)     { return f.uintV, f.Type == UInt }
func (f Field) AsI128() ([16]byte, bool)   { return f.i128V, f.Type == I128 }
func (f Field) AsU128() ([16]byte, bool)   { return f.u128V, f.Type == U128 }
func (f Field) AsFloat() (float64, bool)   { return f.floatV, f.Type == Float }
func (f Field) AsDecimal() (Decimal128, bool) { return f.decV, f.Type == Decimal }
func (f Field) AsPoint() (LatLng, bool)    { return f.pointV, f.Type == Point }

func (f Field) AsString() (string, bool) {
	if f.Type != String && f.Type != Text {
		return "", false
	}
	return string(f.bytesV), true
}

func (f Field) AsBinary() ([]byte, bool) {
	if f.Type != Binary {
		return nil, false
	}
	return f.bytesV, true
}

func (f Field) AsJSON() ([]byte, bool) {
	if f.Type != JSON {
		return nil, false
	}
	return f.bytesV, true
}

func (f Field) AsDate() (time.Time, bool) { return f.dateV, f.Type == Date }

func (f Field) AsTimestamp() (time.Time, int32, bool) {
	return f.tsV, f.tsOffset, f.Type == Timestamp
}

func (f Field) AsDuration() (int64, DurationUnit, bool) {
	return f.durV, f.durUnit, f.Type == Duration
}

// Compare returns -1, 0, or 1 for a.Compare(b), consistent with each
// type's semantic order. Returns ErrTypeMismatch if a.Type != b.Type and
// ErrNotOrderable for JSON, which has no semantic order.
func (a Field) Compare(b Field) (int, error) {
	if a.Type != b.Type {
		return 0, ErrTypeMismatch
	}
	switch a.Type {
	case Null:
		return 0, nil
	case JSON:
		return 0, ErrNotOrderable
	case Boolean:
		return cmpBool(a.boolV, b.boolV), nil
	case Int:
		return cmpInt64(a.intV, b.intV), nil
	case UInt:
		return cmpUint64(a.uintV, b.uintV), nil
	case I128:
		return cmpI128(a.i128V, b.i128V), nil
	case U128:
		return cmpBytes(a.u128V[:], b.u128V[:]), nil
	case Float:
		return cmpFloat64(a.floatV, b.floatV), nil
	case Decimal:
		return cmpI128(a.decV.Unscaled, b.decV.Unscaled), nil
	case String, Text:
		return cmpBytes(a.bytesV, b.bytesV), nil
	case Binary:
		return cmpBytes(a.bytesV, b.bytesV), nil
	case Date:
		return cmpInt64(a.dateV.Unix(), b.dateV.Unix()), nil
	case Timestamp:
		return cmpInt64(a.tsV.UnixNano(), b.tsV.UnixNano()), nil
	case Duration:
		return cmpInt64(a.durV, b.durV), nil
	case Point:
		if c := cmpFloat64(a.pointV.Lat, b.pointV.Lat); c != 0 {
			return c, nil
		}
		return cmpFloat64(a.pointV.Lng, b.pointV.Lng), nil
	default:
		return 0, fmt.Errorf("cachetypes: unknown field type %v", a.Type)
	}
}

// Equal reports whether a and b have the same type and value. Unlike
// Compare it never errors: it is used for content-hash dedupe where JSON
// equality is still meaningful even though JSON has no order.
func (a Field) Equal(b Field) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == JSON {
		return cmpBytes(a.bytesV, b.bytesV) == 0
	}
	c, err := a.Compare(b)
	return err == nil && c == 0
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

// cmpI128 treats a 16-byte array as big-endian two's complement.
func cmpI128(a, b [16]byte) int {
	as, bs := a[0]&0x80 != 0, b[0]&0x80 != 0
	if as != bs {
		// Different signs: the negative one (top bit set) is smaller.
		if as {
			return -1
		}
		return 1
	}
	return cmpBytes(a[:], b[:])
}
