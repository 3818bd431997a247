package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// fixedWidth returns the body width (excluding the 1-byte tag) for
// fixed-width types, or -1 for variable-width types.
func fixedWidth(t cachetypes.FieldType) int {
	switch t {
	case cachetypes.Null:
		return 0
	case cachetypes.Boolean:
		return 1
	case cachetypes.Int, cachetypes.UInt, cachetypes.Float:
		return 8
	case cachetypes.I128, cachetypes.U128, cachetypes.Decimal, cachetypes.Point:
		return 16
	case cachetypes.Date:
		return 4
	case cachetypes.Timestamp:
		return 12
	case cachetypes.Duration:
		return 9
	default:
		return -1
	}
}

// EncodeField appends the encoding of f to dst and returns the result.
// The encoding is total: every Field value, including JSON, produces
// bytes. Byte order matches value order for every type except JSON,
// which this package never indexes.
func EncodeField(dst []byte, f cachetypes.Field) []byte {
	dst = append(dst, byte(f.Type))
	switch f.Type {
	case cachetypes.Null:
		return dst
	case cachetypes.Boolean:
		v, _ := f.AsBool()
		if v {
			return append(dst, 1)
		}
		return append(dst, 0)
	case cachetypes.Int:
		v, _ := f.AsInt()
		return appendUint64(dst, uint64(v)^signBit64)
	case cachetypes.UInt:
		v, _ := f.AsUInt()
		return appendUint64(dst, v)
	case cachetypes.I128:
		v, _ := f.AsI128()
		return append(dst, flipSignByte(v)[:]...)
	case cachetypes.U128:
		v, _ := f.AsU128()
		return append(dst, v[:]...)
	case cachetypes.Float:
		v, _ := f.AsFloat()
		return appendUint64(dst, encodeFloatBits(v))
	case cachetypes.Decimal:
		v, _ := f.AsDecimal()
		return append(dst, flipSignByte(v.Unscaled)[:]...)
	case cachetypes.String, cachetypes.Text:
		v, _ := f.AsString()
		return appendBytesLP(dst, []byte(v))
	case cachetypes.Binary:
		v, _ := f.AsBinary()
		return appendBytesLP(dst, v)
	case cachetypes.JSON:
		v, _ := f.AsJSON()
		return appendBytesLP(dst, v)
	case cachetypes.Date:
		v, _ := f.AsDate()
		days := int32(v.Unix() / 86400)
		return appendUint32(dst, uint32(days)^signBit32)
	case cachetypes.Timestamp:
		t, offset, _ := f.AsTimestamp()
		dst = appendUint64(dst, uint64(t.UnixNano())^signBit64)
		return appendUint32(dst, uint32(offset)^signBit32)
	case cachetypes.Duration:
		ns, unit, _ := f.AsDuration()
		dst = appendUint64(dst, uint64(ns)^signBit64)
		return append(dst, byte(unit))
	case cachetypes.Point:
		p, _ := f.AsPoint()
		dst = appendUint64(dst, encodeFloatBits(p.Lat))
		return appendUint64(dst, encodeFloatBits(p.Lng))
	default:
		panic(fmt.Sprintf("codec: unknown field type %v", f.Type))
	}
}

// DecodeField reads one Field from the front of src and returns the
// value plus the remaining bytes. It fails with cacheerr.Codec if the
// discriminator or body is malformed.
func DecodeField(src []byte) (cachetypes.Field, []byte, error) {
	if len(src) < 1 {
		return cachetypes.Field{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeField", "empty input")
	}
	t := cachetypes.FieldType(src[0])
	rest := src[1:]

	if t == cachetypes.String || t == cachetypes.Text || t == cachetypes.Binary || t == cachetypes.JSON {
		body, tail, err := takeBytesLP(rest)
		if err != nil {
			return cachetypes.Field{}, nil, err
		}
		switch t {
		case cachetypes.String:
			return cachetypes.NewString(string(body)), tail, nil
		case cachetypes.Text:
			return cachetypes.NewText(string(body)), tail, nil
		case cachetypes.Binary:
			return cachetypes.NewBinary(body), tail, nil
		default:
			return cachetypes.NewJSON(body), tail, nil
		}
	}

	w := fixedWidth(t)
	if w < 0 {
		return cachetypes.Field{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeField", "unknown type tag %d", t)
	}
	if len(rest) < w {
		return cachetypes.Field{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeField", "short body for %v: need %d, have %d", t, w, len(rest))
	}
	body, tail := rest[:w], rest[w:]

	switch t {
	case cachetypes.Null:
		return cachetypes.NewNull(), tail, nil
	case cachetypes.Boolean:
		return cachetypes.NewBool(body[0] != 0), tail, nil
	case cachetypes.Int:
		u := takeUint64(body)
		return cachetypes.NewInt(int64(u ^ signBit64)), tail, nil
	case cachetypes.UInt:
		return cachetypes.NewUInt(takeUint64(body)), tail, nil
	case cachetypes.I128:
		var v [16]byte
		copy(v[:], body)
		return cachetypes.NewI128(flipSignByte(v)), tail, nil
	case cachetypes.U128:
		var v [16]byte
		copy(v[:], body)
		return cachetypes.NewU128(v), tail, nil
	case cachetypes.Float:
		return cachetypes.NewFloat(decodeFloatBits(takeUint64(body))), tail, nil
	case cachetypes.Decimal:
		var v [16]byte
		copy(v[:], body)
		return cachetypes.NewDecimal(cachetypes.Decimal128{Unscaled: flipSignByte(v)}), tail, nil
	case cachetypes.Date:
		days := int32(takeUint32(body) ^ signBit32)
		return cachetypes.NewDate(time.Unix(int64(days)*86400, 0).UTC()), tail, nil
	case cachetypes.Timestamp:
		nanos := int64(takeUint64(body[:8]) ^ signBit64)
		offset := int32(takeUint32(body[8:12]) ^ signBit32)
		return cachetypes.NewTimestamp(time.Unix(0, nanos).UTC(), offset), tail, nil
	case cachetypes.Duration:
		nanos := int64(takeUint64(body[:8]) ^ signBit64)
		unit := cachetypes.DurationUnit(body[8])
		return cachetypes.NewDuration(nanos, unit), tail, nil
	case cachetypes.Point:
		lat := decodeFloatBits(takeUint64(body[:8]))
		lng := decodeFloatBits(takeUint64(body[8:16]))
		return cachetypes.NewPoint(lat, lng), tail, nil
	default:
		return cachetypes.Field{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeField", "unsupported fixed type %v", t)
	}
}

const signBit64 = uint64(1) << 63
const signBit32 = uint32(1) << 31

func appendUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func takeUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
func takeUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func appendBytesLP(dst, body []byte) []byte {
	dst = appendUint32(dst, uint32(len(body)))
	return append(dst, body...)
}

func takeBytesLP(src []byte) ([]byte, []byte, error) {
	if len(src) < 4 {
		return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.takeBytesLP", "short length prefix")
	}
	n := takeUint32(src[:4])
	src = src[4:]
	if uint64(len(src)) < uint64(n) {
		return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.takeBytesLP", "short body: need %d, have %d", n, len(src))
	}
	return src[:n], src[n:], nil
}

// flipSignByte flips the top bit of a big-endian two's-complement 128
// bit integer so that unsigned byte comparison matches signed order.
// It is its own inverse.
func flipSignByte(v [16]byte) [16]byte {
	v[0] ^= 0x80
	return v
}

func encodeFloatBits(v float64) uint64 {
	bits := math.Float64bits(v)
	if bits&signBit64 != 0 {
		return ^bits
	}
	return bits | signBit64
}

func decodeFloatBits(bits uint64) float64 {
	if bits&signBit64 != 0 {
		bits &^= signBit64
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}
