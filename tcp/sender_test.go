package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netstacklab/minnow/seqnum"
)

func wrap(n uint32) seqnum.Wrap32 { return seqnum.Wrap32FromRaw(n) }

func TestZeroWindowProbe(t *testing.T) {
	s := NewSender(100, wrap(0), 1000)
	s.Input().Push([]byte("x"))

	var sent []SenderMessage
	transmit := func(m SenderMessage) { sent = append(sent, m) }

	s.Push(transmit)
	require.Len(t, sent, 1, "SYN consumes the whole initial window of 1")
	assert.True(t, sent[0].SYN)

	ack := wrap(1)
	s.Receive(ReceiverMessage{Ackno: &ack, WindowSize: 0})

	sent = nil
	s.Push(transmit)
	require.Len(t, sent, 1, "zero window still allows exactly one probe byte")
	assert.Equal(t, []byte("x"), sent[0].Payload)
	assert.Equal(t, uint64(1), s.SequenceNumbersInFlight())

	sent = nil
	s.Tick(1000, transmit)
	require.Len(t, sent, 1, "RTO expiry retransmits the probe")
	assert.Equal(t, uint64(0), s.ConsecutiveRetransmissions(), "zero-window probes never count as retransmissions")
}

func TestExponentialBackoff(t *testing.T) {
	s := NewSender(100, wrap(0), 1000)
	s.Input().Push([]byte("x"))

	var sent []SenderMessage
	transmit := func(m SenderMessage) { sent = append(sent, m) }

	s.Push(transmit) // SYN
	ack := wrap(1)
	s.Receive(ReceiverMessage{Ackno: &ack, WindowSize: 1000})

	sent = nil
	s.Push(transmit) // the one data segment
	require.Len(t, sent, 1)

	s.Tick(1000, transmit)
	assert.Equal(t, uint64(1), s.ConsecutiveRetransmissions())

	s.Tick(2000, transmit)
	assert.Equal(t, uint64(2), s.ConsecutiveRetransmissions())

	finalAck := wrap(2) // SYN (seq 0) + one data byte (seq 1); next expected is 2
	s.Receive(ReceiverMessage{Ackno: &finalAck, WindowSize: 1000})
	assert.Equal(t, uint64(0), s.ConsecutiveRetransmissions())
}

func TestInFlightInvariantAfterPush(t *testing.T) {
	s := NewSender(100, wrap(0), 1000)
	s.Receive(ReceiverMessage{WindowSize: 1000}) // advertise a real window before sending
	s.Input().Push([]byte("hello"))
	s.Input().Close()

	var total uint64
	transmit := func(m SenderMessage) { total += m.SequenceLength() }
	s.Push(transmit)

	assert.Equal(t, total, s.SequenceNumbersInFlight())
	assert.GreaterOrEqual(t, uint64(1000), s.SequenceNumbersInFlight())
	assert.Equal(t, uint64(1+5+1), s.SequenceNumbersInFlight(), "SYN + 5 payload bytes + FIN")
}

func TestAckBeyondNextSeqNumberIsDropped(t *testing.T) {
	s := NewSender(100, wrap(0), 1000)
	s.Input().Push([]byte("x"))

	var sent []SenderMessage
	s.Push(func(m SenderMessage) { sent = append(sent, m) })

	bogus := wrap(1000)
	s.Receive(ReceiverMessage{Ackno: &bogus, WindowSize: 1000})
	assert.Equal(t, uint64(0), s.ackSequenceNumber, "ack ahead of anything sent must be silently dropped")
}
