package tcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiverIgnoresSegmentsBeforeSYN(t *testing.T) {
	r := NewReceiver(100)
	r.Receive(SenderMessage{Payload: []byte("hi"), Seqno: wrap(5)})

	got := r.Send()
	assert.Nil(t, got.Ackno, "no SYN observed yet, so no ackno")
}

func TestReceiverHandshakeAndPayload(t *testing.T) {
	r := NewReceiver(100)
	r.Receive(SenderMessage{SYN: true, Seqno: wrap(0)})

	ack := r.Send()
	require.NotNil(t, ack.Ackno)
	assert.Equal(t, wrap(1), *ack.Ackno)

	r.Receive(SenderMessage{Seqno: wrap(1), Payload: []byte("hi")})
	ack2 := r.Send()
	require.NotNil(t, ack2.Ackno)
	assert.Equal(t, wrap(3), *ack2.Ackno)
	assert.Equal(t, []byte("hi"), r.Output().Peek())
}

func TestReceiverFINAdvancesAckPastClose(t *testing.T) {
	r := NewReceiver(100)
	r.Receive(SenderMessage{SYN: true, Seqno: wrap(0)})
	r.Receive(SenderMessage{Seqno: wrap(1), Payload: []byte("hi"), FIN: true})

	ack := r.Send()
	require.NotNil(t, ack.Ackno)
	assert.Equal(t, wrap(4), *ack.Ackno) // SYN + 2 bytes + FIN
}

func TestReceiverRSTSetsErrorFlag(t *testing.T) {
	r := NewReceiver(100)
	r.Receive(SenderMessage{RST: true})
	assert.True(t, r.Output().HasError())

	ack := r.Send()
	assert.True(t, ack.RST)
}

func TestReceiverWindowReflectsAvailableCapacity(t *testing.T) {
	r := NewReceiver(10)
	r.Receive(SenderMessage{SYN: true, Seqno: wrap(0)})
	r.Receive(SenderMessage{Seqno: wrap(1), Payload: []byte("abcde")})

	ack := r.Send()
	assert.Equal(t, uint16(5), ack.WindowSize)
}
