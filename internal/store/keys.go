package store

import "sync"

// keyPool provides reusable byte slices for read-path lookup keys.
var keyPool = sync.Pool{
	New: func() any {
		// Covers prefix, "idx:", index name and a NanoID or title sized value.
		return make([]byte, 0, 256)
	},
}

// lookupKey concatenates parts into a pooled buffer.
// The key may only be passed to txn.Get: Set and Delete keep a reference to it.
// Callers MUST call releaseKey when done with the key.
//
// Usage:
//
//	key := lookupKey(e.prefix, id)
//	defer releaseKey(key)
//	item, err := txn.Get(key)
func lookupKey(parts ...string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
// Oversized buffers are dropped so one long title does not pin memory.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
