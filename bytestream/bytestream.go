// Package bytestream implements a bounded, in-memory, single-writer
// single-reader FIFO of bytes, split into a Writer capability and a Reader
// capability over one shared buffer.
package bytestream

// ByteStream is a bounded FIFO of bytes with capacity C. It exposes two
// capability views (Writer, Reader) over the same underlying buffer so a
// producer and consumer can be handed distinct, narrower interfaces.
type ByteStream struct {
	capacity uint64

	buf [][]byte // queued chunks; front chunk may be partially consumed
	off int       // bytes already popped from buf[0]

	pushed uint64
	popped uint64
	buffered uint64

	closed bool
	errored bool
}

// New constructs a ByteStream with the given capacity in bytes.
func New(capacity uint64) *ByteStream {
	return &ByteStream{capacity: capacity}
}

// Writer returns the producer-side capability.
func (s *ByteStream) Writer() *Writer { return &Writer{s: s} }

// Reader returns the consumer-side capability.
func (s *ByteStream) Reader() *Reader { return &Reader{s: s} }

// SetError marks the stream as errored, independent of the writer/reader
// split; both sides observe it via HasError.
func (s *ByteStream) SetError() { s.errored = true }

// HasError reports whether the out-of-band error flag has been set.
func (s *ByteStream) HasError() bool { return s.errored }

// Writer is the producer-side capability of a ByteStream.
type Writer struct{ s *ByteStream }

// Push appends data to the stream, truncating to available capacity and
// silently dropping the remainder if the stream is full or closed. An
// empty push is a no-op.
func (w *Writer) Push(data []byte) {
	if len(data) == 0 || w.s.closed || w.AvailableCapacity() == 0 {
		return
	}
	if avail := w.AvailableCapacity(); uint64(len(data)) > avail {
		data = data[:avail]
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	w.s.buf = append(w.s.buf, buf)
	w.s.pushed += uint64(len(data))
	w.s.buffered += uint64(len(data))
}

// Close marks the stream closed; no further pushes are accepted.
func (w *Writer) Close() { w.s.closed = true }

// IsClosed reports whether Close has been called.
func (w *Writer) IsClosed() bool { return w.s.closed }

// AvailableCapacity is how many more bytes may currently be pushed.
func (w *Writer) AvailableCapacity() uint64 { return w.s.capacity - w.s.buffered }

// BytesPushed is the monotonically increasing count of bytes ever pushed.
func (w *Writer) BytesPushed() uint64 { return w.s.pushed }

// HasError reports the stream's out-of-band error flag.
func (w *Writer) HasError() bool { return w.s.HasError() }

// SetError sets the stream's out-of-band error flag.
func (w *Writer) SetError() { w.s.SetError() }

// Reader is the consumer-side capability of a ByteStream.
type Reader struct{ s *ByteStream }

// Peek returns a contiguous view of some prefix of the buffered bytes —
// not necessarily all of it. Callers that need more must Pop and Peek
// again.
func (r *Reader) Peek() []byte {
	if len(r.s.buf) == 0 {
		return nil
	}
	return r.s.buf[0][r.s.off:]
}

// Pop consumes exactly n bytes, which must satisfy n <= BytesBuffered().
func (r *Reader) Pop(n uint64) {
	r.s.buffered -= n
	r.s.popped += n
	for n > 0 {
		chunk := r.s.buf[0][r.s.off:]
		if n < uint64(len(chunk)) {
			r.s.off += int(n)
			return
		}
		n -= uint64(len(chunk))
		r.s.buf = r.s.buf[1:]
		r.s.off = 0
	}
}

// BytesPopped is the monotonically increasing count of bytes ever popped.
func (r *Reader) BytesPopped() uint64 { return r.s.popped }

// BytesBuffered is the number of bytes currently sitting in the stream.
func (r *Reader) BytesBuffered() uint64 { return r.s.buffered }

// IsFinished reports whether the stream is closed and fully drained.
func (r *Reader) IsFinished() bool { return r.s.closed && r.s.buffered == 0 }

// HasError reports the stream's out-of-band error flag.
func (r *Reader) HasError() bool { return r.s.HasError() }

// SetError sets the stream's out-of-band error flag.
func (r *Reader) SetError() { r.s.SetError() }
