package graphstore

import (
	"bytes"
	"encoding/gob"
	"os"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

func init() {
	// field values are stored as interfaces
	gob.Register([]any{})
	gob.Register(map[string]any{})
	gob.Register(time.Time{})
}

// NewDiskStorage opens a disk-based storage at the given path.
// If wipe is true and the path already exists, it is deleted first.
func NewDiskStorage[Value any](path string, wipe bool) (*DiskStorage[Value], error) {
	if wipe {
		if _, err := os.Stat(path); err == nil {
			if err := os.RemoveAll(path); err != nil {
				return nil, err
			}
		}
	}

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &DiskStorage[Value]{DB: db}, nil
}

// DiskStorage implements KeyValueStore using a leveldb database.
// Keys are stored as is, values are gob-encoded.
type DiskStorage[Value any] struct {
	DB *leveldb.DB
}

func (ds *DiskStorage[Value]) Set(key string, value Value) error {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(value); err != nil {
		return err
	}
	return ds.DB.Put([]byte(key), buffer.Bytes(), nil)
}

func (ds *DiskStorage[Value]) Get(key string) (v Value, b bool, err error) {
	valueB, err := ds.DB.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}

	if err := ds.decode(&v, valueB); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (ds *DiskStorage[Value]) decode(dest *Value, src []byte) error {
	return gob.NewDecoder(bytes.NewReader(src)).Decode(dest)
}

func (ds *DiskStorage[Value]) Has(key string) (bool, error) {
	return ds.DB.Has([]byte(key), nil)
}

func (ds *DiskStorage[Value]) Delete(key string) error {
	return ds.DB.Delete([]byte(key), nil)
}

// Iterate calls f for all entries in Storage, in key order.
func (ds *DiskStorage[Value]) Iterate(f func(string, Value) error) error {
	it := ds.DB.NewIterator(nil, nil)
	defer it.Release()

	for it.Next() {
		var value Value
		if err := ds.decode(&value, it.Value()); err != nil {
			return err
		}
		if err := f(string(it.Key()), value); err != nil {
			return err
		}
	}
	return it.Error()
}

func (ds *DiskStorage[Value]) Close() error {
	var err error

	if ds.DB != nil {
		err = ds.DB.Close()
	}
	ds.DB = nil
	return err
}

// Count returns the number of objects in this DiskStorage.
func (ds *DiskStorage[Value]) Count() (count uint64, err error) {
	it := ds.DB.NewIterator(nil, nil)
	defer it.Release()

	for it.Next() {
		count++
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	return count, nil
}
