package netif

import "github.com/netstacklab/minnow/packet"

// OutputPort is the injected collaborator a NetworkInterface transmits
// Ethernet frames through. A single OutputPort may be shared by several
// interfaces, e.g. a Router's.
type OutputPort interface {
	Transmit(sender *NetworkInterface, frame packet.EthernetFrame)
}

// Codec is the external-codec boundary spec.md §1/§6 excludes from the
// core: parsing and serializing ARP messages and IPv4 datagrams to/from
// Ethernet payload bytes. The netif package never depends on how this is
// implemented — see package wire for the gopacket-backed implementation.
type Codec interface {
	ParseIPv4(payload []byte) (packet.IPv4Datagram, bool)
	SerializeIPv4(dgram packet.IPv4Datagram) []byte
	ParseARP(payload []byte) (packet.ARPMessage, bool)
	SerializeARP(msg packet.ARPMessage) []byte
}
