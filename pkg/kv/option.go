package kv

// Option is a single stored byte value at a fixed key within its own
// bucket: the commit-state table and the per-index advance marker are
// modeled this way.
type Option struct {
	m   Map
	key []byte
}

func NewOption(bucket string, key string) Option {
	return Option{m: NewMap(bucket), key: []byte(key)}
}

func (o Option) Get(txn Txn) ([]byte, bool, error) {
	return o.m.Get(txn, o.key)
}

func (o Option) Set(txn Txn, value []byte) error {
	return o.m.Put(txn, o.key, value)
}

func (o Option) Clear(txn Txn) error {
	return o.m.Delete(txn, o.key)
}
