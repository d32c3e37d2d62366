// Package reassembler orders and coalesces out-of-order substrings of a
// byte stream, flushing contiguous prefixes into a bytestream.ByteStream
// as they become available.
package reassembler

import (
	"sort"

	"github.com/netstacklab/minnow/bytestream"
)

// segment is one buffered substring, keyed by its absolute stream position.
type segment struct {
	start uint64
	data  []byte
}

func (s segment) end() uint64 { return s.start + uint64(len(s.data)) }

// Reassembler holds a set of non-overlapping buffered substrings indexed
// by absolute stream position and drains contiguous prefixes into an
// output ByteStream.
type Reassembler struct {
	output *bytestream.ByteStream

	// segs is kept sorted by start and pairwise non-overlapping at all
	// times; this is the idiomatic stand-in for the reference
	// implementation's position-keyed ordered map.
	segs []segment

	endPos    *uint64
	pendingNum uint64
}

// New constructs a Reassembler that flushes into output.
func New(output *bytestream.ByteStream) *Reassembler {
	return &Reassembler{output: output}
}

// BytesPending returns the total buffered bytes not yet delivered.
func (r *Reassembler) BytesPending() uint64 { return r.pendingNum }

// lowerBound returns the index of the first segment whose start is >= pos.
func (r *Reassembler) lowerBound(pos uint64) int {
	return sort.Search(len(r.segs), func(i int) bool { return r.segs[i].start >= pos })
}

// split ensures a segment boundary exists exactly at position, splitting
// the segment that straddles it (if any), and returns the index of the
// first segment at or after position.
func (r *Reassembler) split(position uint64) int {
	idx := r.lowerBound(position)
	if idx < len(r.segs) && r.segs[idx].start == position {
		return idx
	}
	if idx == 0 {
		return idx
	}
	prev := idx - 1
	if r.segs[prev].end() > position {
		cut := position - r.segs[prev].start
		right := segment{start: position, data: append([]byte(nil), r.segs[prev].data[cut:]...)}
		r.segs[prev].data = r.segs[prev].data[:cut]
		// insert `right` at idx
		r.segs = append(r.segs, segment{})
		copy(r.segs[idx+1:], r.segs[idx:])
		r.segs[idx] = right
		return idx
	}
	return idx
}

// Insert handles one inbound substring. first_index is the substring's
// absolute position in the stream; is_last marks end-of-stream.
func (r *Reassembler) Insert(firstIndex uint64, data []byte, isLast bool) {
	writer := r.output.Writer()

	if len(data) == 0 {
		if r.endPos == nil && isLast {
			v := firstIndex
			r.endPos = &v
		}
		if r.endPos != nil && *r.endPos == writer.BytesPushed() {
			writer.Close()
		}
		return
	}

	if writer.IsClosed() || writer.AvailableCapacity() == 0 {
		return
	}

	pushBase := writer.BytesPushed()
	capLimit := pushBase + writer.AvailableCapacity()

	if firstIndex+uint64(len(data)) <= pushBase || firstIndex >= capLimit {
		return
	}

	if firstIndex+uint64(len(data)) > capLimit {
		data = data[:capLimit-firstIndex]
		isLast = false
	}

	if firstIndex < pushBase {
		data = data[pushBase-firstIndex:]
		firstIndex = pushBase
	}

	if r.endPos == nil && isLast {
		v := firstIndex + uint64(len(data))
		r.endPos = &v
	}

	lower := r.split(firstIndex)
	upper := r.split(firstIndex + uint64(len(data)))

	for _, s := range r.segs[lower:upper] {
		r.pendingNum -= uint64(len(s.data))
	}
	r.pendingNum += uint64(len(data))

	newSeg := segment{start: firstIndex, data: append([]byte(nil), data...)}
	tail := append([]segment(nil), r.segs[upper:]...)
	r.segs = append(r.segs[:lower], newSeg)
	r.segs = append(r.segs, tail...)

	for len(r.segs) > 0 && r.segs[0].start == writer.BytesPushed() {
		front := r.segs[0]
		r.pendingNum -= uint64(len(front.data))
		writer.Push(front.data)
		r.segs = r.segs[1:]
	}

	if r.endPos != nil && *r.endPos == writer.BytesPushed() {
		writer.Close()
	}
}
