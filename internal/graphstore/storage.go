package graphstore

// KeyValueStore is something that holds a set of key-value pairs.
type KeyValueStore[Key comparable, Value any] interface {
	// Close closes this store
	Close() error

	// Set sets the given key to the given value
	Set(key Key, value Value) error

	// Get retrieves the value for Key from the given storage.
	// The second value indicates if the value was found.
	Get(key Key) (Value, bool, error)

	// Has is like Get, but returns only the second value.
	Has(key Key) (bool, error)

	// Delete deletes the given key from this storage
	Delete(key Key) error

	// Iterate calls f for all entries in Storage.
	//
	// When any f returns a non-nil error, that error is returned immediately to the caller
	// and iteration stops.
	//
	// There is no guarantee on order.
	Iterate(f func(Key, Value) error) error

	// Count counts the number of elements in this store
	Count() (uint64, error)
}

// MemoryStorage implements KeyValueStore as an in-memory map
type MemoryStorage[Key comparable, Value any] map[Key]Value

func (ims MemoryStorage[Key, Value]) Set(key Key, value Value) error {
	ims[key] = value
	return nil
}

func (ims MemoryStorage[Key, Value]) Get(key Key) (Value, bool, error) {
	value, ok := ims[key]
	return value, ok, nil
}

func (ims MemoryStorage[Key, Value]) Has(key Key) (bool, error) {
	_, ok := ims[key]
	return ok, nil
}

func (ims MemoryStorage[Key, Value]) Delete(key Key) error {
	delete(ims, key)
	return nil
}

func (ims MemoryStorage[Key, Value]) Iterate(f func(Key, Value) error) error {
	for key, value := range ims {
		if err := f(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Close closes this MemoryStorage, deleting all values
func (ims *MemoryStorage[Key, Value]) Close() error {
	*ims = nil
	return nil
}

func (ims *MemoryStorage[Key, Value]) Count() (uint64, error) {
	return uint64(len(*ims)), nil
}
