package reassembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netstacklab/minnow/bytestream"
)

func TestCoalesceOutOfOrder(t *testing.T) {
	stream := bytestream.New(8)
	r := New(stream)
	reader := stream.Reader()

	r.Insert(2, []byte("cd"), false)
	r.Insert(0, []byte("ab"), false)

	got := readAll(reader)
	assert.Equal(t, []byte("abcd"), got)
	assert.Equal(t, uint64(0), r.BytesPending())

	r.Insert(6, []byte("gh"), true)
	r.Insert(4, []byte("ef"), false)

	got = append(got, readAll(reader)...)
	assert.Equal(t, []byte("abcdefgh"), got)
	assert.True(t, reader.IsFinished())
}

// readAll pops every buffered byte out of reader. Peek returns one pushed
// chunk at a time, so it loops until nothing is left buffered.
func readAll(reader *bytestream.Reader) []byte {
	var out []byte
	for reader.BytesBuffered() > 0 {
		chunk := reader.Peek()
		out = append(out, chunk...)
		reader.Pop(uint64(len(chunk)))
	}
	return out
}

func TestOverlapIsReplacedNotDuplicated(t *testing.T) {
	stream := bytestream.New(10)
	r := New(stream)
	reader := stream.Reader()

	r.Insert(0, []byte("abcdef"), false)
	// Fully contained overlap; content is equivalent (as TCP guarantees).
	r.Insert(2, []byte("cd"), false)

	assert.Equal(t, []byte("abcdef"), reader.Peek())
	assert.Equal(t, uint64(0), r.BytesPending())
}

// TestStoredOverlapIsSplitNotDuplicated covers the case where the
// overlapping segment is still buffered (not yet flushed), so the
// overlap must be resolved by splitting the stored segment rather than
// dropping against push_base. A segment starting strictly inside an
// already-buffered segment must not produce two stored substrings
// covering the same range.
func TestStoredOverlapIsSplitNotDuplicated(t *testing.T) {
	stream := bytestream.New(20)
	r := New(stream)
	reader := stream.Reader()

	// Out-of-order segment [2,12), stays buffered since start != 0.
	r.Insert(2, []byte("cdefghijkl"), false)
	require.Equal(t, uint64(10), r.BytesPending())

	// Strictly-contained overlap [4,8): must replace, not duplicate, the
	// portion of the stored segment it covers.
	r.Insert(4, []byte("efgh"), false)
	assert.Equal(t, uint64(10), r.BytesPending(), "overlapping bytes must not be counted twice")

	// Fill in the missing prefix to flush everything and check the
	// flushed bytes are exactly the expected, non-duplicated content.
	r.Insert(0, []byte("ab"), false)

	assert.Equal(t, uint64(0), r.BytesPending())
	require.Equal(t, uint64(12), reader.BytesBuffered())

	var got []byte
	for reader.BytesBuffered() > 0 {
		chunk := reader.Peek()
		got = append(got, chunk...)
		reader.Pop(uint64(len(chunk)))
	}
	assert.Equal(t, []byte("abcdefghijkl"), got)
}

func TestCapacityDropsOutOfWindow(t *testing.T) {
	stream := bytestream.New(4)
	r := New(stream)
	reader := stream.Reader()

	// Entirely beyond the available window; dropped.
	r.Insert(10, []byte("zz"), false)
	assert.Equal(t, uint64(0), r.BytesPending())

	r.Insert(0, []byte("abcdef"), false)
	assert.Equal(t, []byte("abcd"), reader.Peek())
}

func TestEmptyLastMarksEndWithoutData(t *testing.T) {
	stream := bytestream.New(10)
	r := New(stream)
	reader := stream.Reader()

	r.Insert(0, []byte("ab"), false)
	reader.Pop(0) // no-op, just reading state

	r.Insert(2, nil, true) // end_pos = 2
	require.Equal(t, uint64(2), reader.BytesBuffered())
	assert.False(t, reader.IsFinished())

	stream.Writer() // no-op just to show writer accessible
	r.Insert(0, nil, false)
}

func TestBytesPendingTracksStoredBytes(t *testing.T) {
	stream := bytestream.New(10)
	r := New(stream)

	r.Insert(4, []byte("ef"), false)
	assert.Equal(t, uint64(2), r.BytesPending())

	r.Insert(2, []byte("cdef"), false) // overlaps and extends left
	assert.Equal(t, uint64(4), r.BytesPending())
}

func TestCloseOnFinalByteDelivered(t *testing.T) {
	stream := bytestream.New(10)
	r := New(stream)
	reader := stream.Reader()

	r.Insert(0, []byte("ab"), true)
	assert.True(t, reader.IsFinished() == false) // closed, but not finished until the buffered bytes are popped

	reader.Pop(2)
	assert.True(t, reader.IsFinished())
}
