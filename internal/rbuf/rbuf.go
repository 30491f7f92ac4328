// Package rbuf implements a fixed-capacity ring buffer of fixed-size
// elements with linear read/write windows.
//
// The buffer is meant for single-producer/single-consumer use. Callers
// query the linear capacity, copy data directly into (or out of) the
// returned window, and then commit the number of elements transferred.
// A window never crosses the wrap point, so the reported capacity may
// under-report the true available space when it wraps past the end of
// the storage; callers simply re-query after committing.
//
// The buffer itself does no locking. The cursor bookkeeping (capacity
// queries and commits) must be serialized by the caller; the data copy
// into a window does not need to hold that lock.
package rbuf

// Buffer is a circular store of nmemb fixed-size elements.
type Buffer struct {
	data []byte
	// head and tail are byte offsets into data
	head int
	tail int
	// number of used elements
	used  int
	nmemb int
	size  int
}

// New creates a ring buffer holding nmemb elements of size bytes each.
func New(nmemb, size int) *Buffer {
	return &Buffer{
		data:  make([]byte, nmemb*size),
		nmemb: nmemb,
		size:  size,
	}
}

// Len returns the total capacity of the buffer in elements.
func (b *Buffer) Len() int {
	return b.nmemb
}

// Used returns the number of elements committed but not yet read.
func (b *Buffer) Used() int {
	return b.used
}

// ReadCapacity returns the number of elements available for a linear
// (non-wrapping) read.
func (b *Buffer) ReadCapacity() int {
	if b.used == 0 {
		return 0
	}
	if b.head < b.tail {
		return (b.tail - b.head) / b.size
	}
	// Used data wraps; readable up to the end of the storage.
	return (len(b.data) - b.head) / b.size
}

// ReadWindow returns the linear window of readable data. The window
// covers exactly ReadCapacity() elements.
func (b *Buffer) ReadWindow() []byte {
	return b.data[b.head : b.head+b.ReadCapacity()*b.size]
}

// CommitRead marks n elements as consumed. The count must not exceed
// the last reported read capacity.
func (b *Buffer) CommitRead(n int) {
	b.head += n * b.size
	if b.head == len(b.data) {
		b.head = 0
	}
	b.used -= n
}

// WriteCapacity returns the number of elements available for a linear
// (non-wrapping) write.
func (b *Buffer) WriteCapacity() int {
	if b.used == b.nmemb {
		return 0
	}
	if b.tail < b.head {
		return (b.head - b.tail) / b.size
	}
	// Free space wraps; writable up to the end of the storage.
	return (len(b.data) - b.tail) / b.size
}

// WriteWindow returns the linear window of writable space. The window
// covers exactly WriteCapacity() elements.
func (b *Buffer) WriteWindow() []byte {
	return b.data[b.tail : b.tail+b.WriteCapacity()*b.size]
}

// CommitWrite marks n elements as ready for reading. The count must not
// exceed the last reported write capacity.
func (b *Buffer) CommitWrite(n int) {
	b.tail += n * b.size
	if b.tail == len(b.data) {
		b.tail = 0
	}
	b.used += n
}
