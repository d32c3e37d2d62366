// Package seqnum implements the wrapping/unwrapping arithmetic between a
// 32-bit TCP sequence number space and the 64-bit absolute sequence space
// used internally by the sender and receiver.
package seqnum

// Wrap32 is a 32-bit value living in a sequence number space that wraps
// around modulo 2^32, such as a TCP sequence or acknowledgment number.
type Wrap32 struct {
	raw uint32
}

// Wrap32FromRaw builds a Wrap32 from an already-wrapped 32-bit value, e.g.
// one just decoded off the wire.
func Wrap32FromRaw(raw uint32) Wrap32 {
	return Wrap32{raw: raw}
}

// Raw returns the underlying 32-bit value.
func (w Wrap32) Raw() uint32 {
	return w.raw
}

// Wrap converts an absolute 64-bit sequence number n into the Wrap32 space
// whose zero point is zeroPoint: wrap(n, zero_point) = zero_point + (n mod 2^32).
func Wrap(n uint64, zeroPoint Wrap32) Wrap32 {
	return Wrap32{raw: zeroPoint.raw + uint32(n)}
}

// Unwrap returns the unique absolute sequence number whose low 32 bits
// equal (w.raw - zeroPoint.raw) and whose distance to checkpoint is
// minimal among all absolute values with those low bits.
func (w Wrap32) Unwrap(zeroPoint Wrap32, checkpoint uint64) uint64 {
	const span = uint64(1) << 32

	offset := uint64(w.raw - zeroPoint.raw) // low 32 bits of the result, zero-extended
	candidate := (checkpoint &^ (span - 1)) | offset

	// candidate, candidate-span, and candidate+span are the only values
	// within 2^31 of each other sharing these low 32 bits; pick whichever
	// is closest to checkpoint, preferring not to underflow below zero.
	best := candidate
	bestDist := absDiff(candidate, checkpoint)

	if candidate >= span {
		if lower := candidate - span; absDiff(lower, checkpoint) < bestDist {
			best = lower
			bestDist = absDiff(lower, checkpoint)
		}
	}

	if higher := candidate + span; higher >= candidate { // guard 64-bit overflow
		if absDiff(higher, checkpoint) < bestDist {
			best = higher
			bestDist = absDiff(higher, checkpoint)
		}
	}

	return best
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Equals reports whether two Wrap32 values are the same raw 32-bit number.
func (w Wrap32) Equals(other Wrap32) bool {
	return w.raw == other.raw
}
