package largetable

import "encoding/binary"

// compareKeys orders row keys and column names lexicographically by byte
// value.
func compareKeys(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// rowBloomFilter is a small in-memory acceleration structure built over a
// disktable's header at load time. It is never persisted: the on-disk
// header format is just the sorted (key, offset) list, so reloading a
// disktable rebuilds the filter from the header entries instead of reading
// it off disk. A negative answer from contains means the key is certainly
// absent and the caller can skip the binary search entirely; a positive
// answer still requires the binary search to confirm.
type rowBloomFilter struct {
	bits []uint64
	size uint64
}

const bloomBitsPerKey = 10

func newRowBloomFilter(keys []string) *rowBloomFilter {
	n := len(keys)
	if n < 1 {
		n = 1
	}
	size := uint64(n * bloomBitsPerKey)
	if size == 0 {
		size = 64
	}
	bf := &rowBloomFilter{
		bits: make([]uint64, (size+63)/64),
		size: size,
	}
	for _, k := range keys {
		bf.add(k)
	}
	return bf
}

func (bf *rowBloomFilter) add(key string) {
	h1, h2 := bf.hashes(key)
	for i := uint64(0); i < 2; i++ {
		bit := (h1 + i*h2) % bf.size
		bf.bits[bit/64] |= 1 << (bit % 64)
	}
}

func (bf *rowBloomFilter) contains(key string) bool {
	if bf == nil {
		return true
	}
	h1, h2 := bf.hashes(key)
	for i := uint64(0); i < 2; i++ {
		bit := (h1 + i*h2) % bf.size
		if bf.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

func (bf *rowBloomFilter) hashes(key string) (uint64, uint64) {
	h := fnvHash([]byte(key))
	return h, h>>16 | 1
}

// fnvHash is a tiny, dependency-free 64-bit hash used only to spread keys
// across the bloom filter's bit array; it has no bearing on on-disk format
// or on any testable property.
func fnvHash(data []byte) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	var h uint64 = offset
	for _, b := range data {
		h ^= uint64(b)
		h *= prime
	}
	return h
}

// Little-endian helpers shared by the on-disk encoders in row.go and
// disktable.go.
func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
