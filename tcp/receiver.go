package tcp

import (
	"github.com/netstacklab/minnow/bytestream"
	"github.com/netstacklab/minnow/reassembler"
	"github.com/netstacklab/minnow/seqnum"
)

// Receiver decodes inbound segments and feeds a Reassembler that drains
// into an output ByteStream.
type Receiver struct {
	output      *bytestream.ByteStream
	reassembler *reassembler.Reassembler

	baseSeqno *seqnum.Wrap32

	Stats Stats
}

// NewReceiver constructs a Receiver with capacity bytes of reassembly
// buffer/output space.
func NewReceiver(capacity uint64) *Receiver {
	out := bytestream.New(capacity)
	return &Receiver{
		output:      out,
		reassembler: reassembler.New(out),
	}
}

// Output exposes the reader side of the receiver's output stream.
func (r *Receiver) Output() *bytestream.Reader { return r.output.Reader() }

// Receive processes one inbound segment from the sender.
func (r *Receiver) Receive(msg SenderMessage) {
	writer := r.output.Writer()

	r.Stats.SegmentsReceived++
	r.Stats.BytesReceived += uint64(len(msg.Payload))

	if writer.HasError() {
		return
	}
	if msg.RST {
		r.output.Reader().SetError()
		return
	}
	if r.baseSeqno == nil {
		if !msg.SYN {
			return
		}
		seqno := msg.Seqno
		r.baseSeqno = &seqno
	}

	expectedSeq := writer.BytesPushed() + 1
	absoluteSeq := msg.Seqno.Unwrap(*r.baseSeqno, expectedSeq)

	streamIndex := absoluteSeq - 1
	if msg.SYN {
		streamIndex = absoluteSeq
	}

	r.reassembler.Insert(streamIndex, msg.Payload, msg.FIN)
}

// Send produces the next outbound acknowledgment/window advertisement.
func (r *Receiver) Send() ReceiverMessage {
	writer := r.output.Writer()

	window := writer.AvailableCapacity()
	if window > 65535 {
		window = 65535
	}

	if r.baseSeqno == nil {
		return ReceiverMessage{WindowSize: uint16(window), RST: writer.HasError()}
	}

	ackSeq := writer.BytesPushed() + 1
	if writer.IsClosed() {
		ackSeq++
	}
	ackno := seqnum.Wrap(ackSeq, *r.baseSeqno)
	return ReceiverMessage{Ackno: &ackno, WindowSize: uint16(window), RST: writer.HasError()}
}
