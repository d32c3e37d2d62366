package tcp

import (
	"github.com/netstacklab/minnow/bytestream"
	"github.com/netstacklab/minnow/seqnum"
)

// TransmitFunc is the type of function push and tick use to hand a
// segment to its caller for actual wire transmission.
type TransmitFunc func(SenderMessage)

// Sender owns an input ByteStream and a FIFO of unacknowledged outbound
// segments, carving outbound bytes into segments with window tracking and
// exponential-backoff retransmission.
type Sender struct {
	input *bytestream.ByteStream

	isn          seqnum.Wrap32
	initialRTOMs uint64

	nextSeqNumber     uint64
	ackSequenceNumber uint64
	windowCapacity    uint16
	pending           []SenderMessage
	totalOutgoingSeq  uint64
	retransCount      uint64
	synSent           bool
	finSent           bool

	timer *RetryTimer

	Stats Stats
}

// NewSender constructs a Sender with the given input stream capacity, own
// ISN, and initial retransmission timeout.
func NewSender(inputCapacity uint64, isn seqnum.Wrap32, initialRTOMs uint64) *Sender {
	return &Sender{
		input:        bytestream.New(inputCapacity),
		isn:          isn,
		initialRTOMs: initialRTOMs,
		timer:        NewRetryTimer(initialRTOMs),
	}
}

// Input exposes the writer side of the sender's input stream.
func (s *Sender) Input() *bytestream.Writer { return s.input.Writer() }

// SequenceNumbersInFlight is how many sequence numbers are outstanding.
func (s *Sender) SequenceNumbersInFlight() uint64 { return s.totalOutgoingSeq }

// ConsecutiveRetransmissions is how many consecutive *re*transmissions
// have happened since the last fresh ack.
func (s *Sender) ConsecutiveRetransmissions() uint64 { return s.retransCount }

func (s *Sender) effectiveWindow() uint64 {
	if s.windowCapacity == 0 {
		return 1
	}
	return uint64(s.windowCapacity)
}

func (s *Sender) makeEmptyMessage() SenderMessage {
	return SenderMessage{
		Seqno: seqnum.Wrap(s.nextSeqNumber, s.isn),
		RST:   s.input.HasError(),
	}
}

// Push carves as many segments as the window allows out of the input
// stream and hands each to transmit.
func (s *Sender) Push(transmit TransmitFunc) {
	reader := s.input.Reader()

	for s.effectiveWindow() > s.totalOutgoingSeq {
		if s.finSent {
			break
		}

		msg := s.makeEmptyMessage()
		if !s.synSent {
			msg.SYN = true
			s.synSent = true
		}

		remaining := s.effectiveWindow() - s.totalOutgoingSeq
		payloadLen := remaining - msg.SequenceLength()
		if payloadLen > MaxPayload {
			payloadLen = MaxPayload
		}

		for reader.BytesBuffered() != 0 && uint64(len(msg.Payload)) < payloadLen {
			view := reader.Peek()
			take := payloadLen - uint64(len(msg.Payload))
			if uint64(len(view)) > take {
				view = view[:take]
			}
			msg.Payload = append(msg.Payload, view...)
			reader.Pop(uint64(len(view)))
		}

		if !s.finSent && remaining > msg.SequenceLength() && reader.IsFinished() {
			msg.FIN = true
			s.finSent = true
		}

		if msg.SequenceLength() == 0 {
			break
		}

		transmit(msg)
		s.Stats.SegmentsSent++
		s.Stats.BytesSent += uint64(len(msg.Payload))

		if !s.timer.IsActive() {
			s.timer.Activate()
		}

		s.nextSeqNumber += msg.SequenceLength()
		s.totalOutgoingSeq += msg.SequenceLength()
		s.pending = append(s.pending, msg)
	}
}

// Receive processes an inbound ReceiverMessage (ack + window).
func (s *Sender) Receive(msg ReceiverMessage) {
	if s.input.HasError() || msg.RST {
		if msg.RST {
			s.input.SetError()
		}
		return
	}

	s.windowCapacity = msg.WindowSize
	if msg.Ackno == nil {
		return
	}

	receivedAck := msg.Ackno.Unwrap(s.isn, s.nextSeqNumber)
	if receivedAck > s.nextSeqNumber {
		// Acks a sequence number we never sent; conservatively dropped
		// rather than treated as an RFC 793-style illegal ack.
		return
	}

	acknowledged := false
	for len(s.pending) > 0 {
		front := s.pending[0]
		if s.ackSequenceNumber+front.SequenceLength() > receivedAck {
			break
		}
		s.ackSequenceNumber += front.SequenceLength()
		s.totalOutgoingSeq -= front.SequenceLength()
		s.pending = s.pending[1:]
		acknowledged = true
	}

	if acknowledged {
		s.retransCount = 0
		s.timer.Reload(s.initialRTOMs)
		if len(s.pending) == 0 {
			s.timer.Deactivate()
		} else {
			s.timer.Activate()
		}
	}
}

// Tick advances the retransmission timer by ms milliseconds, retransmitting
// the oldest outstanding segment on expiry.
func (s *Sender) Tick(ms uint64, transmit TransmitFunc) {
	s.timer.Advance(ms)
	if !s.timer.HasExpired() {
		return
	}
	if len(s.pending) == 0 {
		return
	}

	transmit(s.pending[0])
	s.Stats.Retransmissions++
	s.Stats.SegmentsSent++

	if s.windowCapacity != 0 {
		s.retransCount++
		s.timer.ApplyExponentialBackoff()
	}
	s.timer.Reset()
}
