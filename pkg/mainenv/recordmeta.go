package mainenv

import (
	"encoding/binary"

	"github.com/cuemby/cachedb/pkg/cacheerr"
)

// MetaKind tags the two RecordMetadata variants.
type MetaKind uint8

const (
	// Present means the primary key is live; the payload is the
	// operation log entry at Offset.
	Present MetaKind = iota
	// Deleted means the primary key is logically tombstoned; Offset is
	// the log position of the delete. A repeated delete of a Deleted key
	// is a no-op; a later insert makes the key Present again under a new
	// version.
	Deleted
)

// RecordMetadata is the value PrimaryKeyMetadata stores for one primary
// key: its current version, whether it is live, and the operation log
// offset that produced that state.
type RecordMetadata struct {
	Kind        MetaKind
	Version     uint32
	Offset      uint64
	ContentHash uint64 // valid only when Kind == Present
}

// Encode packs RecordMetadata into a fixed 21-byte record: 1-byte kind,
// 4-byte version, 8-byte offset, 8-byte content hash.
func (m RecordMetadata) Encode() []byte {
	buf := make([]byte, 21)
	buf[0] = byte(m.Kind)
	binary.BigEndian.PutUint32(buf[1:5], m.Version)
	binary.BigEndian.PutUint64(buf[5:13], m.Offset)
	binary.BigEndian.PutUint64(buf[13:21], m.ContentHash)
	return buf
}

func decodeRecordMetadata(b []byte) (RecordMetadata, error) {
	if len(b) != 21 {
		return RecordMetadata{}, cacheerr.Wrap(cacheerr.Codec, "mainenv.decodeRecordMetadata", "want 21 bytes, got %d", len(b))
	}
	return RecordMetadata{
		Kind:        MetaKind(b[0]),
		Version:     binary.BigEndian.Uint32(b[1:5]),
		Offset:      binary.BigEndian.Uint64(b[5:13]),
		ContentHash: binary.BigEndian.Uint64(b[13:21]),
	}, nil
}
