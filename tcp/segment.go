// Package tcp implements the TCP receiver and sender state machines:
// decoding inbound segments into a Reassembler-backed byte stream, and
// carving outbound bytes into segments with window tracking and
// exponential-backoff retransmission.
package tcp

import "github.com/netstacklab/minnow/seqnum"

// MaxPayload is the largest payload, in bytes, the sender will pack into
// a single outbound segment.
const MaxPayload = 1000

// SenderMessage is an outbound TCP segment, the concrete form of spec.md
// §6's "TCP segment (external codec)" outbound record.
type SenderMessage struct {
	SYN     bool
	Payload []byte
	FIN     bool
	RST     bool
	Seqno   seqnum.Wrap32
}

// SequenceLength is SYN + len(Payload) + FIN, the number of sequence
// numbers this segment occupies.
func (m SenderMessage) SequenceLength() uint64 {
	n := uint64(len(m.Payload))
	if m.SYN {
		n++
	}
	if m.FIN {
		n++
	}
	return n
}

// ReceiverMessage is an inbound acknowledgment, the concrete form of
// spec.md §6's "TCP segment (external codec)" inbound record.
type ReceiverMessage struct {
	Ackno      *seqnum.Wrap32
	WindowSize uint16
	RST        bool
}
