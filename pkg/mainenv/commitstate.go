package mainenv

import (
	"encoding/binary"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
)

// CommitState is the durable cursor over the operation log: the highest
// offset fully applied, plus the per-source (txid, seq_in_tx) epoch
// boundary used to detect and skip already-applied upstream operations
// on reconnect.
type CommitState struct {
	OffsetApplied uint64
	Sources       cachetypes.SourceStates
}

func encodeCommitState(s CommitState) []byte {
	dst := make([]byte, 8, 64)
	binary.BigEndian.PutUint64(dst[:8], s.OffsetApplied)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(s.Sources)))
	dst = append(dst, countBuf[:]...)
	for src, id := range s.Sources {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(src)))
		dst = append(dst, lenBuf[:]...)
		dst = append(dst, []byte(src)...)
		var idBuf [16]byte
		binary.BigEndian.PutUint64(idBuf[:8], id.TxID)
		binary.BigEndian.PutUint64(idBuf[8:], id.SeqInTx)
		dst = append(dst, idBuf[:]...)
	}
	return dst
}

func decodeCommitState(b []byte) (CommitState, error) {
	if len(b) < 12 {
		return CommitState{}, cacheerr.Wrap(cacheerr.Codec, "mainenv.decodeCommitState", "short header")
	}
	offset := binary.BigEndian.Uint64(b[:8])
	count := binary.BigEndian.Uint32(b[8:12])
	rest := b[12:]
	sources := make(cachetypes.SourceStates, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < 2 {
			return CommitState{}, cacheerr.Wrap(cacheerr.Codec, "mainenv.decodeCommitState", "short source length")
		}
		n := binary.BigEndian.Uint16(rest[:2])
		rest = rest[2:]
		if len(rest) < int(n)+16 {
			return CommitState{}, cacheerr.Wrap(cacheerr.Codec, "mainenv.decodeCommitState", "short source entry")
		}
		src := cachetypes.SourceID(rest[:n])
		rest = rest[n:]
		sources[src] = cachetypes.OpIdentifier{
			TxID:    binary.BigEndian.Uint64(rest[:8]),
			SeqInTx: binary.BigEndian.Uint64(rest[8:16]),
		}
		rest = rest[16:]
	}
	return CommitState{OffsetApplied: offset, Sources: sources}, nil
}
