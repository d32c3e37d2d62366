// Package demo assembles the whole stack end to end: a client
// NetworkInterface and a server NetworkInterface, each on its own LAN,
// connected through a Router's two interfaces, carrying a TCP handshake
// and transfer driven by a Sender/Receiver pair.
package demo

import (
	"github.com/spf13/cobra"

	"github.com/netstacklab/minnow/netif"
	"github.com/netstacklab/minnow/packet"
	"github.com/netstacklab/minnow/printer"
	"github.com/netstacklab/minnow/router"
	"github.com/netstacklab/minnow/seqnum"
	"github.com/netstacklab/minnow/tcp"
	"github.com/netstacklab/minnow/util"
	"github.com/netstacklab/minnow/wire"
)

var (
	messageFlag string
	rtoFlag     uint64
)

const (
	clientPort = 50000
	serverPort = 7
)

// Cmd runs a full client-router-server loopback demonstration.
var Cmd = &cobra.Command{
	Use:   "demo",
	Short: "Drive a TCP handshake and transfer across two interfaces and a router.",
	RunE: func(cmd *cobra.Command, args []string) error {
		runDemo(messageFlag, rtoFlag)
		return nil
	},
}

func init() {
	Cmd.Flags().StringVar(&messageFlag, "message", "hello, router", "payload to transfer end to end")
	Cmd.Flags().Uint64Var(&rtoFlag, "initial-rto-ms", 1000, "initial retransmission timeout, in milliseconds")
}

// lan is a two-port network segment: whatever one side transmits, the
// other receives, synchronously. It stands in for the physical transmit
// port spec.md §1 excludes from the core.
type lan struct {
	a, b *netif.NetworkInterface
}

func (l *lan) Transmit(sender *netif.NetworkInterface, frame packet.EthernetFrame) {
	if sender == l.a {
		l.b.RecvFrame(frame)
		return
	}
	l.a.RecvFrame(frame)
}

func addr(a, b, c, d byte) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

func runDemo(message string, initialRTOMs uint64) {
	codec := wire.New()

	clientEth := packet.EthernetAddress{0, 0, 0, 0, 0, 1}
	routerAEth := packet.EthernetAddress{0, 0, 0, 0, 0, 2}
	routerBEth := packet.EthernetAddress{0, 0, 0, 0, 0, 3}
	serverEth := packet.EthernetAddress{0, 0, 0, 0, 0, 4}

	clientIP := addr(10, 0, 0, 1)
	routerAIP := addr(10, 0, 0, 2)
	routerBIP := addr(10, 0, 1, 1)
	serverIP := addr(10, 0, 1, 2)

	lan1 := &lan{}
	lan2 := &lan{}

	client := netif.New("client", lan1, codec, clientEth, clientIP)
	routerIfaceA := netif.New("router0", lan1, codec, routerAEth, routerAIP)
	routerIfaceB := netif.New("router1", lan2, codec, routerBEth, routerBIP)
	server := netif.New("server", lan2, codec, serverEth, serverIP)
	lan1.a, lan1.b = client, routerIfaceA
	lan2.a, lan2.b = routerIfaceB, server

	for _, iface := range []*netif.NetworkInterface{client, routerIfaceA, routerIfaceB, server} {
		iface.ID = util.RandomInterfaceName()
		printer.Debugf("demo: %s has id %s\n", iface.Name(), iface.ID)
	}

	r := router.New()
	numA := r.AddInterface(routerIfaceA)
	numB := r.AddInterface(routerIfaceB)
	r.AddRoute(addr(10, 0, 0, 0), 24, nil, numA)
	r.AddRoute(addr(10, 0, 1, 0), 24, nil, numB)

	sender := tcp.NewSender(64000, seqnum.Wrap32FromRaw(0), initialRTOMs)
	receiver := tcp.NewReceiver(64000)

	sender.Input().Push([]byte(message))
	sender.Input().Close()

	transmitFromClient := func(msg tcp.SenderMessage) {
		segment := wire.SerializeSenderMessage(msg, clientPort, serverPort)
		dgram := packet.IPv4Datagram{Header: packet.IPv4Header{TTL: 64, Dst: serverIP}, Payload: segment}
		printer.Debugf("demo: client sends syn=%v fin=%v len=%d seq=%d\n", msg.SYN, msg.FIN, len(msg.Payload), msg.Seqno.Raw())
		client.SendDatagram(dgram, routerAIP)
	}

	transmitFromServer := func(ack tcp.ReceiverMessage) {
		segment := wire.SerializeReceiverMessage(ack, serverPort, clientPort)
		dgram := packet.IPv4Datagram{Header: packet.IPv4Header{TTL: 64, Dst: clientIP}, Payload: segment}
		printer.Debugf("demo: server acks window=%d\n", ack.WindowSize)
		server.SendDatagram(dgram, routerBIP)
	}

	const maxRounds = 10
	for round := 0; round < maxRounds; round++ {
		sender.Push(transmitFromClient)
		r.Route()

		for _, dgram := range server.PopDatagramsReceived() {
			msg, _, _, ok := wire.ParseSenderMessage(dgram.Payload)
			if !ok {
				continue
			}
			receiver.Receive(msg)
		}

		transmitFromServer(receiver.Send())
		r.Route()

		for _, dgram := range client.PopDatagramsReceived() {
			ack, ok := wire.ParseReceiverMessage(dgram.Payload)
			if !ok {
				continue
			}
			sender.Receive(ack)
		}

		if receiver.Output().IsFinished() {
			break
		}
	}

	got := receiver.Output()
	buf := make([]byte, 0, got.BytesBuffered())
	for got.BytesBuffered() > 0 {
		chunk := got.Peek()
		buf = append(buf, chunk...)
		got.Pop(uint64(len(chunk)))
	}

	printer.Infof("delivered %d bytes: %q\n", len(buf), string(buf))
	printer.Infof("sender stats: %+v\n", sender.Stats)
	printer.Infof("receiver stats: %+v\n", receiver.Stats)
}
