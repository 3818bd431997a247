package executor

import (
	roaring "github.com/RoaringBitmap/roaring/v2"
)

// dictionary assigns a dense uint32 id to each distinct primary key
// encountered during one query, since roaring bitmaps operate over
// integers rather than arbitrary byte strings. Scoped to a single
// Execute call; ids carry no meaning across queries.
type dictionary struct {
	ids map[string]uint32
	pks [][]byte
}

func newDictionary() *dictionary {
	return &dictionary{ids: make(map[string]uint32)}
}

func (d *dictionary) id(pk []byte) uint32 {
	if id, ok := d.ids[string(pk)]; ok {
		return id
	}
	id := uint32(len(d.pks))
	cp := append([]byte(nil), pk...)
	d.pks = append(d.pks, cp)
	d.ids[string(pk)] = id
	return id
}

func (d *dictionary) pk(id uint32) []byte { return d.pks[id] }

// intersect runs a k-way chunked bitmap intersection: each
// round advances every still-open stream by up to chunkSize items,
// inserts them into that stream's own roaring bitmap, then yields
// whatever is common to every stream's bitmap so far and subtracts the
// yielded set from each, so a primary key is yielded at most once. A
// key one stream has produced but another has not yet reached stays in
// that stream's bitmap across rounds, and dict keeps every key it has
// assigned an id, so memory grows with the number of distinct keys read
// and is not bounded by chunkSize * len(streams).
func intersect(streams []pkStream, chunkSize int, dict *dictionary, yield func(pk []byte) error) error {
	if len(streams) == 0 {
		return nil
	}
	if len(streams) == 1 {
		// A lone stream needs no bitmap bookkeeping: every item it
		// yields is already the intersection.
		for {
			batch, more, err := streams[0].next(chunkSize)
			if err != nil {
				return err
			}
			for _, pk := range batch {
				if err := yield(pk); err != nil {
					return err
				}
			}
			if !more {
				return nil
			}
		}
	}

	bitmaps := make([]*roaring.Bitmap, len(streams))
	for i := range bitmaps {
		bitmaps[i] = roaring.New()
	}
	exhausted := make([]bool, len(streams))

	for {
		for i, s := range streams {
			if exhausted[i] {
				continue
			}
			batch, more, err := s.next(chunkSize)
			if err != nil {
				return err
			}
			for _, pk := range batch {
				bitmaps[i].Add(dict.id(pk))
			}
			if !more {
				exhausted[i] = true
			}
		}

		inter := bitmaps[0].Clone()
		for _, bm := range bitmaps[1:] {
			inter.And(bm)
		}
		if !inter.IsEmpty() {
			it := inter.Iterator()
			for it.HasNext() {
				if err := yield(dict.pk(it.Next())); err != nil {
					return err
				}
			}
			for _, bm := range bitmaps {
				bm.AndNot(inter)
			}
		}

		allDone := true
		for _, d := range exhausted {
			if !d {
				allDone = false
				break
			}
		}
		if allDone {
			return nil
		}
	}
}
