package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// TestFieldRoundTrip exercises property #1: encode then decode recovers
// the original value for every field type.
func TestFieldRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f    cachetypes.Field
	}{
		{"null", cachetypes.NewNull()},
		{"bool-true", cachetypes.NewBool(true)},
		{"bool-false", cachetypes.NewBool(false)},
		{"int-positive", cachetypes.NewInt(42)},
		{"int-negative", cachetypes.NewInt(-42)},
		{"int-min", cachetypes.NewInt(-1 << 63)},
		{"uint", cachetypes.NewUInt(1 << 63)},
		{"float-positive", cachetypes.NewFloat(3.14)},
		{"float-negative", cachetypes.NewFloat(-3.14)},
		{"float-zero", cachetypes.NewFloat(0)},
		{"string", cachetypes.NewString("hello")},
		{"text", cachetypes.NewText("a longer text body")},
		{"binary", cachetypes.NewBinary([]byte{0, 1, 2, 255})},
		{"json", cachetypes.NewJSON([]byte(`{"a":1}`))},
		{"date", cachetypes.NewDate(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))},
		{"timestamp", cachetypes.NewTimestamp(time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC), -18000)},
		{"duration", cachetypes.NewDuration(1_500_000_000, cachetypes.Seconds)},
		{"point", cachetypes.NewPoint(37.7749, -122.4194)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := EncodeField(nil, tc.f)
			dec, tail, err := DecodeField(enc)
			require.NoError(t, err)
			assert.Empty(t, tail)
			assert.True(t, tc.f.Equal(dec), "round trip mismatch for %v", tc.name)
		})
	}
}

// TestFieldOrderPreserved checks property #2: byte-order of encoded
// values matches the semantic order given by Field.Compare, for every
// orderable type.
func TestFieldOrderPreserved(t *testing.T) {
	groups := [][]cachetypes.Field{
		{cachetypes.NewInt(-100), cachetypes.NewInt(-1), cachetypes.NewInt(0), cachetypes.NewInt(1), cachetypes.NewInt(100)},
		{cachetypes.NewUInt(0), cachetypes.NewUInt(1), cachetypes.NewUInt(1 << 62), cachetypes.NewUInt(1<<63 + 1)},
		{cachetypes.NewFloat(-100.5), cachetypes.NewFloat(-0.001), cachetypes.NewFloat(0), cachetypes.NewFloat(0.001), cachetypes.NewFloat(100.5)},
		{cachetypes.NewBool(false), cachetypes.NewBool(true)},
		{
			cachetypes.NewDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
			cachetypes.NewDate(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)),
			cachetypes.NewDate(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
		},
		{
			cachetypes.NewTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 0),
			cachetypes.NewTimestamp(time.Date(2020, 1, 1, 0, 0, 1, 0, time.UTC), -28800),
		},
		{cachetypes.NewDuration(-5, cachetypes.Nanoseconds), cachetypes.NewDuration(0, cachetypes.Nanoseconds), cachetypes.NewDuration(5, cachetypes.Nanoseconds)},
	}

	for gi, group := range groups {
		for i := 0; i < len(group)-1; i++ {
			lo, hi := group[i], group[i+1]
			c, err := lo.Compare(hi)
			require.NoError(t, err)
			require.Equal(t, -1, c, "group %d: fixture not sorted ascending", gi)

			encLo := EncodeField(nil, lo)
			encHi := EncodeField(nil, hi)
			assert.True(t, bytes.Compare(encLo, encHi) < 0, "group %d index %d: encoded order mismatch", gi, i)
		}
	}
}

func TestStringOrderPreserved(t *testing.T) {
	lo := EncodeField(nil, cachetypes.NewString("apple"))
	hi := EncodeField(nil, cachetypes.NewString("banana"))
	assert.True(t, bytes.Compare(lo, hi) < 0)
}

func TestRecordRoundTrip(t *testing.T) {
	r := cachetypes.Record{
		Values: []cachetypes.Field{
			cachetypes.NewUInt(7),
			cachetypes.NewString("widget"),
			cachetypes.NewFloat(9.99),
			cachetypes.NewBool(true),
		},
		Version: 3,
	}

	enc := EncodeRecord(r)
	dec, tail, err := DecodeRecord(enc, len(r.Values))
	require.NoError(t, err)
	assert.Empty(t, tail)
	assert.Equal(t, r.Version, dec.Version)
	require.Len(t, dec.Values, len(r.Values))
	for i := range r.Values {
		assert.True(t, r.Values[i].Equal(dec.Values[i]), "field %d", i)
	}
}

func TestOperationRoundTrip(t *testing.T) {
	mk := func(v uint64, s string, ver uint32) cachetypes.Record {
		return cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewUInt(v), cachetypes.NewString(s)}, Version: ver}
	}
	n := 2

	cases := []cachetypes.Operation{
		cachetypes.InsertOp(mk(1, "a", 1)),
		cachetypes.DeleteOp(mk(1, "a", 1)),
		cachetypes.UpdateOp(mk(1, "a", 1), mk(1, "b", 2)),
		cachetypes.BatchInsertOp([]cachetypes.Record{mk(1, "a", 1), mk(2, "b", 1), mk(3, "c", 1)}),
	}

	for i, op := range cases {
		enc := EncodeOperation(op)
		dec, err := DecodeOperation(enc, n)
		require.NoError(t, err, "case %d", i)
		assert.Equal(t, op.Kind, dec.Kind, "case %d", i)
		switch op.Kind {
		case cachetypes.OpInsert, cachetypes.OpDelete:
			want := op.New
			if want == nil {
				want = op.Old
			}
			got := dec.New
			if got == nil {
				got = dec.Old
			}
			assert.True(t, want.Values[0].Equal(got.Values[0]))
		case cachetypes.OpUpdate:
			assert.True(t, op.Old.Values[1].Equal(dec.Old.Values[1]))
			assert.True(t, op.New.Values[1].Equal(dec.New.Values[1]))
		case cachetypes.OpBatchInsert:
			require.Len(t, dec.Batch, len(op.Batch))
			for j := range op.Batch {
				assert.True(t, op.Batch[j].Values[0].Equal(dec.Batch[j].Values[0]), "batch %d", j)
			}
		}
	}
}

func TestDecodeRecordShortInput(t *testing.T) {
	_, err := DecodeRecord([]byte{0, 0}, 1)
	assert.Error(t, err)
}

func TestEncodePrimaryKeyDeterministic(t *testing.T) {
	pk := []cachetypes.Field{cachetypes.NewUInt(1), cachetypes.NewString("a")}
	a := EncodePrimaryKey(pk)
	b := EncodePrimaryKey(pk)
	assert.Equal(t, a, b)
}

func TestEncodeRowID(t *testing.T) {
	a := EncodeRowID(1)
	b := EncodeRowID(2)
	assert.True(t, bytes.Compare(a, b) < 0)
}

func TestEncodeSortKeyDirection(t *testing.T) {
	def := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 0, Direction: cachetypes.Desc})
	lo := EncodeSortKey(def, []cachetypes.Field{cachetypes.NewInt(1)}, []byte{0x01})
	hi := EncodeSortKey(def, []cachetypes.Field{cachetypes.NewInt(2)}, []byte{0x01})
	// Desc direction: the larger semantic value sorts first (smaller bytes).
	assert.True(t, bytes.Compare(hi, lo) < 0)
}

func TestDecodeSortKeyRoundTrip(t *testing.T) {
	def := cachetypes.NewSortedInverted(
		cachetypes.SortField{FieldPosition: 0, Direction: cachetypes.Asc},
		cachetypes.SortField{FieldPosition: 1, Direction: cachetypes.Desc},
	)
	values := []cachetypes.Field{cachetypes.NewInt(7), cachetypes.NewString("widget")}
	pk := []byte{0xAA, 0xBB, 0xCC}

	key := EncodeSortKey(def, values, pk)
	decoded, rest, err := DecodeSortKey(def, key)
	require.NoError(t, err)
	require.Len(t, decoded, len(values))
	for i := range values {
		assert.True(t, values[i].Equal(decoded[i]), "field %d", i)
	}
	assert.Equal(t, pk, rest)
}

func TestDecodeSortKeyOrderMatchesDirection(t *testing.T) {
	def := cachetypes.NewSortedInverted(cachetypes.SortField{FieldPosition: 0, Direction: cachetypes.Desc})
	lo := EncodeSortKey(def, []cachetypes.Field{cachetypes.NewInt(1)}, []byte{0x01})
	hi := EncodeSortKey(def, []cachetypes.Field{cachetypes.NewInt(2)}, []byte{0x01})

	loVals, loPK, err := DecodeSortKey(def, lo)
	require.NoError(t, err)
	hiVals, hiPK, err := DecodeSortKey(def, hi)
	require.NoError(t, err)

	loInt, _ := loVals[0].AsInt()
	hiInt, _ := hiVals[0].AsInt()
	assert.Equal(t, int64(1), loInt)
	assert.Equal(t, int64(2), hiInt)
	assert.Equal(t, []byte{0x01}, loPK)
	assert.Equal(t, []byte{0x01}, hiPK)
}

func TestContentHashStableAndSensitive(t *testing.T) {
	r1 := cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewUInt(1), cachetypes.NewString("x")}, Version: 1}
	r2 := cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewUInt(1), cachetypes.NewString("x")}, Version: 99}
	r3 := cachetypes.Record{Values: []cachetypes.Field{cachetypes.NewUInt(1), cachetypes.NewString("y")}, Version: 1}

	assert.Equal(t, ContentHash(r1), ContentHash(r2), "version must not affect content hash")
	assert.NotEqual(t, ContentHash(r1), ContentHash(r3), "differing values must hash differently")
}
