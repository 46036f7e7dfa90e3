package pools

import (
	"sync"
)

// Size classes, sized for what the store actually allocates: length
// prefixes and short keys, typical keys, request frame bodies, record
// lines, and batch buffers.
const (
	TinySize   = 16
	SmallSize  = 64
	MediumSize = 256
	LargeSize  = 1024
	HugeSize   = 4096
	MaxPool    = 65536 // buffers above this are never pooled
)

var classSizes = [...]int{TinySize, SmallSize, MediumSize, LargeSize, HugeSize}

// BytePool reuses byte slices bucketed by capacity class, so the wire path
// can borrow a frame-body buffer per request instead of allocating one.
type BytePool struct {
	classes [len(classSizes)]sync.Pool
}

// NewBytePool creates a byte pool with one sync.Pool per size class.
func NewBytePool() *BytePool {
	p := &BytePool{}
	for i, size := range classSizes {
		p.classes[i].New = func() any {
			b := make([]byte, 0, size)
			return &b
		}
	}
	return p
}

// classFor returns the index of the smallest class that holds size bytes,
// or -1 when size is too large to pool.
func classFor(size int) int {
	for i, c := range classSizes {
		if size <= c {
			return i
		}
	}
	return -1
}

// Get returns a zero-length slice with at least the requested capacity.
func (p *BytePool) Get(size int) []byte {
	i := classFor(size)
	if i < 0 {
		return make([]byte, 0, size)
	}
	bp, ok := p.classes[i].Get().(*[]byte)
	if !ok || cap(*bp) < size {
		return make([]byte, 0, size)
	}
	return (*bp)[:0]
}

// GetSized returns a slice with exactly the requested length.
func (p *BytePool) GetSized(size int) []byte {
	return p.Get(size)[:size]
}

// Put returns b to its size class for reuse. Slices with capacity above
// MaxPool are dropped rather than retained.
func (p *BytePool) Put(b []byte) {
	c := cap(b)
	if c > MaxPool {
		return
	}
	i := classFor(c)
	if i < 0 {
		return
	}
	b = b[:0]
	p.classes[i].Put(&b)
}

// defaultBytePool backs the package-level helpers below.
var defaultBytePool = NewBytePool()

// GetBytes returns a byte slice from the default pool.
func GetBytes(size int) []byte {
	return defaultBytePool.Get(size)
}

// GetBytesSized returns a byte slice with exact length from the default pool.
func GetBytesSized(size int) []byte {
	return defaultBytePool.GetSized(size)
}

// PutBytes returns a byte slice to the default pool.
func PutBytes(b []byte) {
	defaultBytePool.Put(b)
}
