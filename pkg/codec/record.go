package codec

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// EncodeRecord serializes r as a version prefix followed by the
// EncodeField encoding of every value in schema order. Encoded
// operations in the main environment's operation log embed their
// records in this form.
func EncodeRecord(r cachetypes.Record) []byte {
	dst := make([]byte, 0, 4+16*len(r.Values))
	dst = appendUint32(dst, r.Version)
	for _, v := range r.Values {
		dst = EncodeField(dst, v)
	}
	return dst
}

// DecodeRecord reverses EncodeRecord and returns the bytes following the
// record, so callers can decode several records packed back to back (as
// an Update operation's old/new pair, or a BatchInsert's record list).
// n is the expected field count (the schema's field width), needed
// because the encoding carries no trailing terminator.
func DecodeRecord(src []byte, n int) (cachetypes.Record, []byte, error) {
	if len(src) < 4 {
		return cachetypes.Record{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeRecord", "short record header")
	}
	version := takeUint32(src[:4])
	rest := src[4:]
	values := make([]cachetypes.Field, 0, n)
	for i := 0; i < n; i++ {
		var (
			f   cachetypes.Field
			err error
		)
		f, rest, err = DecodeField(rest)
		if err != nil {
			return cachetypes.Record{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeRecord", "field %d: %v", i, err)
		}
		values = append(values, f)
	}
	return cachetypes.Record{Values: values, Version: version}, rest, nil
}

// EncodePrimaryKey concatenates the EncodeField encoding of each value in
// pk, in the order supplied by Schema.PrimaryKeyValues. The result is the
// key of the main environment's primary-key metadata, the primary key
// the content-hash index records, and the suffix of every SortedInverted
// index key.
func EncodePrimaryKey(pk []cachetypes.Field) []byte {
	dst := make([]byte, 0, 16*len(pk))
	for _, v := range pk {
		dst = EncodeField(dst, v)
	}
	return dst
}

// EncodeRowID encodes a synthesized u64 rowid as a fixed 8-byte
// big-endian key, used as the primary key when Schema.SyntheticRowID is
// set.
func EncodeRowID(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

// EncodeSortKey builds a composite SortedInverted index key: the
// EncodeField encoding of each sort field value, complemented bit-by-bit
// when its direction is Desc so ascending byte order still yields the
// requested direction, followed by the record's primary key so that
// distinct records with equal sort values remain individually
// addressable and the key stays unique.
func EncodeSortKey(def cachetypes.IndexDefinition, values []cachetypes.Field, pk []byte) []byte {
	dst := make([]byte, 0, 16*len(values)+len(pk))
	for i, v := range values {
		start := len(dst)
		dst = EncodeField(dst, v)
		if def.SortFields[i].Direction == cachetypes.Desc {
			complement(dst[start:])
		}
	}
	return append(dst, pk...)
}

// EncodeSortPrefix encodes only the first len(values) sort fields of
// def (no primary key suffix), for constructing a seek bound that
// matches the leading bytes of every EncodeSortKey entry sharing those
// field values.
func EncodeSortPrefix(def cachetypes.IndexDefinition, values []cachetypes.Field) []byte {
	dst := make([]byte, 0, 16*len(values))
	for i, v := range values {
		start := len(dst)
		dst = EncodeField(dst, v)
		if def.SortFields[i].Direction == cachetypes.Desc {
			complement(dst[start:])
		}
	}
	return dst
}

func complement(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}

// DecodeSortKey reverses EncodeSortKey: it un-complements and decodes
// each sort field value in turn, then returns whatever bytes remain as
// the primary key. Used by the executor to recover primary keys and
// re-check range comparisons during a sorted scan, and by the
// SortedInverted index environment.
func DecodeSortKey(def cachetypes.IndexDefinition, key []byte) ([]cachetypes.Field, []byte, error) {
	values := make([]cachetypes.Field, len(def.SortFields))
	rest := key
	for i, sf := range def.SortFields {
		desc := sf.Direction == cachetypes.Desc
		segment, tail, err := splitEncodedField(rest, desc)
		if err != nil {
			return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeSortKey", "field %d: %v", i, err)
		}
		plain := segment
		if desc {
			plain = append([]byte(nil), segment...)
			complement(plain)
		}
		f, _, err := DecodeField(plain)
		if err != nil {
			return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.DecodeSortKey", "field %d: %v", i, err)
		}
		values[i] = f
		rest = tail
	}
	return values, rest, nil
}

// splitEncodedField returns the bytes of exactly one EncodeField
// encoding at the front of b (optionally bit-complemented, as produced
// by EncodeSortKey for a Desc field) and the remaining bytes, without
// fully decoding the value.
func splitEncodedField(b []byte, complemented bool) (segment, rest []byte, err error) {
	if len(b) < 1 {
		return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.splitEncodedField", "empty input")
	}
	tag := b[0]
	if complemented {
		tag = ^tag
	}
	t := cachetypes.FieldType(tag)

	if t == cachetypes.String || t == cachetypes.Text || t == cachetypes.Binary || t == cachetypes.JSON {
		if len(b) < 5 {
			return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.splitEncodedField", "short length prefix")
		}
		var lenBytes [4]byte
		copy(lenBytes[:], b[1:5])
		if complemented {
			for i := range lenBytes {
				lenBytes[i] = ^lenBytes[i]
			}
		}
		n := int(binary.BigEndian.Uint32(lenBytes[:]))
		total := 5 + n
		if len(b) < total {
			return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.splitEncodedField", "short body: need %d, have %d", total, len(b))
		}
		return b[:total], b[total:], nil
	}

	w := fixedWidth(t)
	if w < 0 {
		return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.splitEncodedField", "unknown type tag %d", tag)
	}
	total := 1 + w
	if len(b) < total {
		return nil, nil, cacheerr.Wrap(cacheerr.Codec, "codec.splitEncodedField", "short body: need %d, have %d", total, len(b))
	}
	return b[:total], b[total:], nil
}

// ContentHash returns a stable 64-bit digest of a record's values,
// excluding Version, used to detect idempotent re-applies of an Update
// whose new value is byte-identical to the stored one.
func ContentHash(r cachetypes.Record) uint64 {
	h := xxhash.New()
	for _, v := range r.Values {
		b := EncodeField(nil, v)
		_, _ = h.Write(b)
	}
	return h.Sum64()
}
