package logreader

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/cuemby/cachedb/pkg/cacheerr"
	"github.com/cuemby/cachedb/pkg/cachetypes"
	"github.com/cuemby/cachedb/pkg/codec"
)

// DefaultSleepInterval is SLEEP_TIME_MS: how long Reader waits before
// retrying a short or unavailable read, on the assumption the producer
// is still appending.
const DefaultSleepInterval = 300 * time.Millisecond

// Reader tails a single operation-log file from a fixed starting
// offset. It never reopens or rewinds the file; Next only ever moves
// the read position forward.
type Reader struct {
	f      *os.File
	schema cachetypes.Schema
	offset int64
	sleep  time.Duration
}

// Open opens path read-only and seeks to startOffset, the position the
// caller last durably recorded (typically from CommitState).
func Open(path string, schema cachetypes.Schema, startOffset int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.Storage, "logreader.Open", "%v", err)
	}
	if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, cacheerr.Wrap(cacheerr.Storage, "logreader.Open", "seek to %d: %v", startOffset, err)
	}
	return &Reader{f: f, schema: schema, offset: startOffset, sleep: DefaultSleepInterval}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }

// Offset returns the byte position of the next frame Next will attempt
// to read.
func (r *Reader) Offset() int64 { return r.offset }

// SetSleepInterval overrides DefaultSleepInterval, mainly for tests that
// want to exercise the retry path without waiting 300ms per round.
func (r *Reader) SetSleepInterval(d time.Duration) { r.sleep = d }

// Next reads and decodes one frame: an 8-byte little-endian length
// prefix followed by that many codec-encoded bytes. If either read
// comes up short — the producer hasn't finished writing this frame yet
// — Next sleeps and retries from the same offset rather than returning
// an error. A malformed frame is a fatal Codec error: the log is
// treated as corrupt, never skipped over.
func (r *Reader) Next(ctx context.Context) (cachetypes.Operation, int64, error) {
	var lenBuf [8]byte
	if err := r.readFull(ctx, lenBuf[:]); err != nil {
		return cachetypes.Operation{}, r.offset, err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])

	payload := make([]byte, n)
	if err := r.readFull(ctx, payload); err != nil {
		return cachetypes.Operation{}, r.offset, err
	}

	op, err := codec.DecodeOperation(payload, len(r.schema.Fields))
	if err != nil {
		return cachetypes.Operation{}, r.offset, err
	}

	r.offset += int64(len(lenBuf)) + int64(n)
	return op, r.offset, nil
}

// readFull fills buf, retrying from the same file position whenever the
// file doesn't yet have enough bytes. Any other read error is fatal.
func (r *Reader) readFull(ctx context.Context, buf []byte) error {
	for {
		start, err := r.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return cacheerr.Wrap(cacheerr.Storage, "logreader.readFull", "%v", err)
		}

		_, err = io.ReadFull(r.f, buf)
		if err == nil {
			return nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if _, serr := r.f.Seek(start, io.SeekStart); serr != nil {
				return cacheerr.Wrap(cacheerr.Storage, "logreader.readFull", "seek back: %v", serr)
			}
			if werr := sleepOrCancel(ctx, r.sleep); werr != nil {
				return werr
			}
			continue
		}
		return cacheerr.Wrap(cacheerr.Storage, "logreader.readFull", "%v", err)
	}
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return cacheerr.Wrap(cacheerr.Cancelled, "logreader", "%v", ctx.Err())
	}
}
