// Package wire implements netif.Codec using gopacket/layers, so the core
// netif package never has to know how an ARP message or an IPv4 datagram
// is actually laid out on the wire.
package wire

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"github.com/netstacklab/minnow/packet"
	"github.com/netstacklab/minnow/seqnum"
	"github.com/netstacklab/minnow/tcp"
)

// Codec implements netif.Codec via gopacket/layers.
type Codec struct{}

// New constructs a Codec.
func New() *Codec { return &Codec{} }

func ipToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}

func uint32ToIP(addr uint32) net.IP {
	return net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

func ethToHardwareAddr(a packet.EthernetAddress) net.HardwareAddr {
	return net.HardwareAddr(a[:])
}

func hardwareAddrToEth(h net.HardwareAddr) packet.EthernetAddress {
	var out packet.EthernetAddress
	copy(out[:], h)
	return out
}

// SerializeIPv4 serializes an IPv4 header and payload into wire bytes. If
// dgram.Header.Raw already holds a fully-formed header (as produced by
// ParseIPv4 or by Router after TTL decrement), it's reused verbatim
// rather than re-derived from the sparse Header fields.
func (Codec) SerializeIPv4(dgram packet.IPv4Datagram) []byte {
	if len(dgram.Header.Raw) >= 20 {
		out := make([]byte, 0, len(dgram.Header.Raw)+len(dgram.Payload))
		out = append(out, dgram.Header.Raw...)
		out = append(out, dgram.Payload...)
		return out
	}

	ipLayer := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      dgram.Header.TTL,
		Protocol: layers.IPProtocolTCP,
		DstIP:    uint32ToIP(dgram.Header.Dst),
	}
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buffer, opts, ipLayer, gopacket.Payload(dgram.Payload)); err != nil {
		return nil
	}
	return buffer.Bytes()
}

// ParseIPv4 decodes wire bytes into an IPv4Datagram. Header.Raw retains
// the original header bytes so the Header.ComputeChecksum call Router makes
// after decrementing TTL can recompute the checksum in place.
func (Codec) ParseIPv4(payload []byte) (packet.IPv4Datagram, bool) {
	parsed := gopacket.NewPacket(payload, layers.LayerTypeIPv4, gopacket.NoCopy)
	ipLayer := parsed.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return packet.IPv4Datagram{}, false
	}
	ip, ok := ipLayer.(*layers.IPv4)
	if !ok {
		return packet.IPv4Datagram{}, false
	}

	headerLen := int(ip.IHL) * 4
	if headerLen < 20 || headerLen > len(payload) {
		return packet.IPv4Datagram{}, false
	}
	raw := make([]byte, headerLen)
	copy(raw, payload[:headerLen])

	return packet.IPv4Datagram{
		Header: packet.IPv4Header{
			TTL: ip.TTL,
			Dst: ipToUint32(ip.DstIP),
			Raw: raw,
		},
		Payload: ip.Payload,
	}, true
}

// SerializeARP serializes an ARP request or reply.
func (Codec) SerializeARP(msg packet.ARPMessage) []byte {
	arpLayer := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         uint16(msg.Opcode),
		SourceHwAddress:   ethToHardwareAddr(msg.SenderEthernet),
		SourceProtAddress: uint32ToIP(msg.SenderIP).To4(),
		DstHwAddress:      ethToHardwareAddr(msg.TargetEthernet),
		DstProtAddress:    uint32ToIP(msg.TargetIP).To4(),
	}
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buffer, opts, arpLayer); err != nil {
		return nil
	}
	return buffer.Bytes()
}

// ParseARP decodes wire bytes into an ARPMessage.
func (Codec) ParseARP(payload []byte) (packet.ARPMessage, bool) {
	parsed := gopacket.NewPacket(payload, layers.LayerTypeARP, gopacket.NoCopy)
	arpLayer := parsed.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return packet.ARPMessage{}, false
	}
	arp, ok := arpLayer.(*layers.ARP)
	if !ok {
		return packet.ARPMessage{}, false
	}

	return packet.ARPMessage{
		Opcode:         packet.ARPOpcode(arp.Operation),
		SenderEthernet: hardwareAddrToEth(net.HardwareAddr(arp.SourceHwAddress)),
		SenderIP:       ipToUint32(net.IP(arp.SourceProtAddress)),
		TargetEthernet: hardwareAddrToEth(net.HardwareAddr(arp.DstHwAddress)),
		TargetIP:       ipToUint32(net.IP(arp.DstProtAddress)),
	}, true
}

// SerializeEthernet serializes a full Ethernet frame header plus payload.
func SerializeEthernet(frame packet.EthernetFrame) ([]byte, error) {
	ethLayer := &layers.Ethernet{
		SrcMAC:       ethToHardwareAddr(frame.Header.Src),
		DstMAC:       ethToHardwareAddr(frame.Header.Dst),
		EthernetType: layers.EthernetType(frame.Header.Type),
	}
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buffer, opts, ethLayer, gopacket.Payload(frame.Payload)); err != nil {
		return nil, errors.Wrap(err, "failed to serialize ethernet frame")
	}
	return buffer.Bytes(), nil
}

// ParseEthernet decodes wire bytes into an EthernetFrame.
func ParseEthernet(data []byte) (packet.EthernetFrame, error) {
	parsed := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	ethLayer := parsed.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return packet.EthernetFrame{}, errors.New("no ethernet layer in frame")
	}
	eth, ok := ethLayer.(*layers.Ethernet)
	if !ok {
		return packet.EthernetFrame{}, errors.New("unexpected ethernet layer type")
	}

	return packet.EthernetFrame{
		Header: packet.EthernetHeader{
			Dst:  hardwareAddrToEth(eth.DstMAC),
			Src:  hardwareAddrToEth(eth.SrcMAC),
			Type: packet.EtherType(eth.EthernetType),
		},
		Payload: eth.Payload,
	}, nil
}

// SerializeSenderMessage encodes an outbound tcp.SenderMessage as a TCP
// segment addressed from srcPort to dstPort, the concrete form of
// spec.md §6's "TCP segment (external codec)" record.
func SerializeSenderMessage(msg tcp.SenderMessage, srcPort, dstPort uint16) []byte {
	tcpLayer := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     msg.Seqno.Raw(),
		SYN:     msg.SYN,
		FIN:     msg.FIN,
		RST:     msg.RST,
	}
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buffer, opts, tcpLayer, gopacket.Payload(msg.Payload)); err != nil {
		return nil
	}
	return buffer.Bytes()
}

// ParseSenderMessage decodes a TCP segment into a tcp.SenderMessage plus
// the ports it was addressed between.
func ParseSenderMessage(data []byte) (msg tcp.SenderMessage, srcPort, dstPort uint16, ok bool) {
	parsed := gopacket.NewPacket(data, layers.LayerTypeTCP, gopacket.NoCopy)
	tcpLayer := parsed.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return tcp.SenderMessage{}, 0, 0, false
	}
	t, ok := tcpLayer.(*layers.TCP)
	if !ok {
		return tcp.SenderMessage{}, 0, 0, false
	}

	return tcp.SenderMessage{
		SYN:     t.SYN,
		FIN:     t.FIN,
		RST:     t.RST,
		Payload: t.Payload,
		Seqno:   seqnum.Wrap32FromRaw(t.Seq),
	}, uint16(t.SrcPort), uint16(t.DstPort), true
}

// SerializeReceiverMessage encodes an inbound tcp.ReceiverMessage (an
// ack/window advertisement) as a TCP segment.
func SerializeReceiverMessage(msg tcp.ReceiverMessage, srcPort, dstPort uint16) []byte {
	tcpLayer := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		ACK:     msg.Ackno != nil,
		RST:     msg.RST,
		Window:  msg.WindowSize,
	}
	if msg.Ackno != nil {
		tcpLayer.Ack = msg.Ackno.Raw()
	}
	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buffer, opts, tcpLayer); err != nil {
		return nil
	}
	return buffer.Bytes()
}

// ParseReceiverMessage decodes a TCP segment into a tcp.ReceiverMessage.
func ParseReceiverMessage(data []byte) (tcp.ReceiverMessage, bool) {
	parsed := gopacket.NewPacket(data, layers.LayerTypeTCP, gopacket.NoCopy)
	tcpLayer := parsed.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return tcp.ReceiverMessage{}, false
	}
	t, ok := tcpLayer.(*layers.TCP)
	if !ok {
		return tcp.ReceiverMessage{}, false
	}

	msg := tcp.ReceiverMessage{WindowSize: t.Window, RST: t.RST}
	if t.ACK {
		ackno := seqnum.Wrap32FromRaw(t.Ack)
		msg.Ackno = &ackno
	}
	return msg, true
}
