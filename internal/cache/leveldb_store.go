package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// levelDBDriver 把所有站点放进同一个 LevelDB，键布局：
//
//	b\x00<site>\x00<bucket>              -> 创建序号（uint64 大端）
//	e\x00<site>\x00<bucket>\x00<key>     -> gob 编码的条目
type levelDBDriver struct {
	db  *leveldb.DB
	seq atomic.Uint64
}

func newLevelDBDriver(path string) (*levelDBDriver, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	d := &levelDBDriver{db: db}
	if err := d.loadSequence(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// loadSequence 恢复最大的 Bucket 创建序号，保证重启后新 Bucket 仍排在末尾。
func (d *levelDBDriver) loadSequence() error {
	it := d.db.NewIterator(util.BytesPrefix([]byte("b\x00")), nil)
	defer it.Release()

	var maxSeq uint64
	for it.Next() {
		if seq := decodeSeq(it.Value()); seq > maxSeq {
			maxSeq = seq
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	d.seq.Store(maxSeq)
	return nil
}

func (d *levelDBDriver) buckets(part string) ([]string, error) {
	prefix := bucketIndexPrefix(part)
	it := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	type indexed struct {
		name string
		seq  uint64
	}
	var items []indexed
	for it.Next() {
		name := string(it.Key()[len(prefix):])
		items = append(items, indexed{name: name, seq: decodeSeq(it.Value())})
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].seq < items[j].seq
	})
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.name
	}
	return names, nil
}

func (d *levelDBDriver) hasBucket(part, name string) (bool, error) {
	return d.db.Has(bucketIndexKey(part, name), nil)
}

func (d *levelDBDriver) createBucket(part, name string) error {
	exists, err := d.hasBucket(part, name)
	if err != nil || exists {
		return err
	}
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, d.seq.Add(1))
	return d.db.Put(bucketIndexKey(part, name), value, nil)
}

func (d *levelDBDriver) dropBucket(part, name string) (bool, error) {
	exists, err := d.hasBucket(part, name)
	if err != nil || !exists {
		return false, err
	}

	batch := new(leveldb.Batch)
	batch.Delete(bucketIndexKey(part, name))

	it := d.db.NewIterator(util.BytesPrefix(entryPrefix(part, name)), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return false, err
	}

	if err := d.db.Write(batch, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (d *levelDBDriver) get(part, bucket, key string) ([]byte, error) {
	value, err := d.db.Get(entryKeyBytes(part, bucket, key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (d *levelDBDriver) put(part, bucket, key string, value []byte) error {
	return d.db.Put(entryKeyBytes(part, bucket, key), value, nil)
}

func (d *levelDBDriver) del(part, bucket, key string) (bool, error) {
	k := entryKeyBytes(part, bucket, key)
	exists, err := d.db.Has(k, nil)
	if err != nil || !exists {
		return false, err
	}
	if err := d.db.Delete(k, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (d *levelDBDriver) values(part, bucket string) ([][]byte, error) {
	it := d.db.NewIterator(util.BytesPrefix(entryPrefix(part, bucket)), nil)
	defer it.Release()

	var out [][]byte
	for it.Next() {
		out = append(out, append([]byte(nil), it.Value()...))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *levelDBDriver) close() error {
	return d.db.Close()
}

func bucketIndexPrefix(part string) []byte {
	return []byte("b\x00" + part + "\x00")
}

func bucketIndexKey(part, name string) []byte {
	return []byte("b\x00" + part + "\x00" + name)
}

func entryPrefix(part, bucket string) []byte {
	return []byte("e\x00" + part + "\x00" + bucket + "\x00")
}

func entryKeyBytes(part, bucket, key string) []byte {
	return []byte("e\x00" + part + "\x00" + bucket + "\x00" + key)
}

func decodeSeq(value []byte) uint64 {
	if len(value) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(value)
}
