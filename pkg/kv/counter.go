package kv

import "encoding/binary"

// Counter is a monotonically increasing u64 persisted as a single
// 8-byte big-endian value. It backs the synthesized primary key
// (__rowid__) a schema without an explicit primary index falls back to.
type Counter struct {
	opt Option
}

func NewCounter(bucket, key string) Counter {
	return Counter{opt: NewOption(bucket, key)}
}

// Next returns the current value and persists value+1 as the next one.
// Starts at 0 for a never-used counter.
func (c Counter) Next(txn Txn) (uint64, error) {
	cur, err := c.Peek(txn)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], cur+1)
	if err := c.opt.Set(txn, buf[:]); err != nil {
		return 0, err
	}
	return cur, nil
}

// Peek returns the current value without advancing it.
func (c Counter) Peek(txn Txn) (uint64, error) {
	v, ok, err := c.opt.Get(txn)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

// Advance sets the counter to at least value, never moving it backward.
// Used when restoring from an operation log so rowid allocation resumes
// past the highest value already committed.
func (c Counter) Advance(txn Txn, value uint64) error {
	cur, err := c.Peek(txn)
	if err != nil {
		return err
	}
	if value <= cur {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	return c.opt.Set(txn, buf[:])
}
