package codec

import (
	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// NamedIndexDef pairs a persisted index id with its definition, the
// unit schema.bin stores alongside the Schema itself.
type NamedIndexDef struct {
	ID  string
	Def cachetypes.IndexDefinition
}

// EncodeSchemaBundle serializes (Schema, []NamedIndexDef) for the
// cache directory's schema.bin file: one version-tagged, self
// describing blob using the same tag/length-prefix discipline as
// record and field encoding.
func EncodeSchemaBundle(schema cachetypes.Schema, indexes []NamedIndexDef) []byte {
	dst := appendUint32(nil, uint32(len(schema.Fields)))
	for _, fd := range schema.Fields {
		dst = appendBytesLP(dst, []byte(fd.Name))
		dst = append(dst, byte(fd.Type))
		if fd.Nullable {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
		dst = appendBytesLP(dst, []byte(fd.Source))
	}

	dst = appendUint32(dst, uint32(len(schema.PrimaryIndex)))
	for _, pos := range schema.PrimaryIndex {
		dst = appendUint32(dst, uint32(pos))
	}
	if schema.SyntheticRowID {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}

	dst = appendUint32(dst, uint32(len(indexes)))
	for _, ni := range indexes {
		dst = appendBytesLP(dst, []byte(ni.ID))
		dst = encodeIndexDefinition(dst, ni.Def)
	}
	return dst
}

// DecodeSchemaBundle reverses EncodeSchemaBundle.
func DecodeSchemaBundle(src []byte) (cachetypes.Schema, []NamedIndexDef, error) {
	const op = "codec.DecodeSchemaBundle"
	if len(src) < 4 {
		return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "short input")
	}
	fieldCount := takeUint32(src[:4])
	rest := src[4:]

	fields := make([]cachetypes.FieldDefinition, 0, fieldCount)
	for i := uint32(0); i < fieldCount; i++ {
		name, tail, err := takeBytesLP(rest)
		if err != nil {
			return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "field %d name: %v", i, err)
		}
		rest = tail
		if len(rest) < 2 {
			return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "field %d: short type/nullable", i)
		}
		typ := cachetypes.FieldType(rest[0])
		nullable := rest[1] != 0
		rest = rest[2:]
		source, tail2, err := takeBytesLP(rest)
		if err != nil {
			return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "field %d source: %v", i, err)
		}
		rest = tail2
		fields = append(fields, cachetypes.FieldDefinition{
			Name: string(name), Type: typ, Nullable: nullable, Source: string(source),
		})
	}

	if len(rest) < 4 {
		return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "short primary index count")
	}
	pkCount := takeUint32(rest[:4])
	rest = rest[4:]
	primaryIndex := make([]int, 0, pkCount)
	for i := uint32(0); i < pkCount; i++ {
		if len(rest) < 4 {
			return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "short primary index entry %d", i)
		}
		primaryIndex = append(primaryIndex, int(takeUint32(rest[:4])))
		rest = rest[4:]
	}

	if len(rest) < 1 {
		return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "short synthetic rowid flag")
	}
	syntheticRowID := rest[0] != 0
	rest = rest[1:]

	schema := cachetypes.Schema{Fields: fields, PrimaryIndex: primaryIndex, SyntheticRowID: syntheticRowID}

	if len(rest) < 4 {
		return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "short index count")
	}
	idxCount := takeUint32(rest[:4])
	rest = rest[4:]

	indexes := make([]NamedIndexDef, 0, idxCount)
	for i := uint32(0); i < idxCount; i++ {
		id, tail, err := takeBytesLP(rest)
		if err != nil {
			return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "index %d id: %v", i, err)
		}
		rest = tail
		def, tail2, err := decodeIndexDefinition(rest)
		if err != nil {
			return cachetypes.Schema{}, nil, cacheerr.Wrap(cacheerr.Codec, op, "index %d def: %v", i, err)
		}
		rest = tail2
		indexes = append(indexes, NamedIndexDef{ID: string(id), Def: def})
	}

	return schema, indexes, nil
}

func encodeIndexDefinition(dst []byte, def cachetypes.IndexDefinition) []byte {
	dst = append(dst, byte(def.Kind))
	switch def.Kind {
	case cachetypes.SortedInverted:
		dst = appendUint32(dst, uint32(len(def.SortFields)))
		for _, sf := range def.SortFields {
			dst = appendUint32(dst, uint32(sf.FieldPosition))
			dst = append(dst, byte(sf.Direction))
		}
	case cachetypes.FullText:
		dst = appendUint32(dst, uint32(def.TextField))
	}
	return dst
}

func decodeIndexDefinition(src []byte) (cachetypes.IndexDefinition, []byte, error) {
	if len(src) < 1 {
		return cachetypes.IndexDefinition{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.decodeIndexDefinition", "short input")
	}
	kind := cachetypes.IndexKind(src[0])
	rest := src[1:]

	switch kind {
	case cachetypes.SortedInverted:
		if len(rest) < 4 {
			return cachetypes.IndexDefinition{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.decodeIndexDefinition", "short sort field count")
		}
		n := takeUint32(rest[:4])
		rest = rest[4:]
		fields := make([]cachetypes.SortField, 0, n)
		for i := uint32(0); i < n; i++ {
			if len(rest) < 5 {
				return cachetypes.IndexDefinition{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.decodeIndexDefinition", "short sort field %d", i)
			}
			fields = append(fields, cachetypes.SortField{
				FieldPosition: int(takeUint32(rest[:4])),
				Direction:     cachetypes.Direction(rest[4]),
			})
			rest = rest[5:]
		}
		return cachetypes.NewSortedInverted(fields...), rest, nil
	case cachetypes.FullText:
		if len(rest) < 4 {
			return cachetypes.IndexDefinition{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.decodeIndexDefinition", "short text field position")
		}
		return cachetypes.NewFullText(int(takeUint32(rest[:4]))), rest[4:], nil
	default:
		return cachetypes.IndexDefinition{}, nil, cacheerr.Wrap(cacheerr.Codec, "codec.decodeIndexDefinition", "unknown index kind %d", kind)
	}
}
