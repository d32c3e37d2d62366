package netif

import (
	"github.com/netstacklab/minnow/packet"
)

// Timing constants from spec.md §3/§6.
const (
	arpCacheEntryLifetimeMs = 30000
	arpRequestSuppressMs    = 5000
)

type arpCacheEntry struct {
	ethernet packet.EthernetAddress
	ageMs    uint64
}

// NetworkInterface bridges IP (the internet/network layer) with Ethernet
// (the network-access/link layer), resolving next-hop Ethernet addresses
// via ARP.
type NetworkInterface struct {
	// ID correlates this interface across debug logs; purely cosmetic.
	ID string

	name            string
	port            OutputPort
	codec           Codec
	ethernetAddress packet.EthernetAddress
	ipAddress       uint32

	datagramsReceived []packet.IPv4Datagram

	arpCache       map[uint32]arpCacheEntry
	pendingDgrams  map[uint32][]packet.IPv4Datagram
	pendingTimers  map[uint32]uint64 // ip -> age ms since request was sent
}

// New constructs a NetworkInterface with the given human-readable name,
// output port, codec, own Ethernet address, and own IPv4 address.
func New(name string, port OutputPort, codec Codec, ethernetAddress packet.EthernetAddress, ipAddress uint32) *NetworkInterface {
	return &NetworkInterface{
		name:            name,
		port:            port,
		codec:           codec,
		ethernetAddress: ethernetAddress,
		ipAddress:       ipAddress,
		arpCache:        make(map[uint32]arpCacheEntry),
		pendingDgrams:   make(map[uint32][]packet.IPv4Datagram),
		pendingTimers:   make(map[uint32]uint64),
	}
}

// Name returns the interface's human-readable name.
func (n *NetworkInterface) Name() string { return n.name }

// EthernetAddress returns the interface's own link-layer address.
func (n *NetworkInterface) EthernetAddress() packet.EthernetAddress { return n.ethernetAddress }

// IPAddress returns the interface's own IPv4 address.
func (n *NetworkInterface) IPAddress() uint32 { return n.ipAddress }

// DatagramsReceived returns the queue of IPv4 datagrams waiting for the
// consumer (e.g. a Router) to drain.
func (n *NetworkInterface) DatagramsReceived() []packet.IPv4Datagram { return n.datagramsReceived }

// PopDatagramsReceived drains and returns all queued received datagrams.
func (n *NetworkInterface) PopDatagramsReceived() []packet.IPv4Datagram {
	got := n.datagramsReceived
	n.datagramsReceived = nil
	return got
}

func (n *NetworkInterface) transmit(frame packet.EthernetFrame) {
	n.port.Transmit(n, frame)
}

// SendDatagram sends dgram encapsulated in an Ethernet frame if the next
// hop's Ethernet address is known; otherwise it queues the datagram and,
// unless a request is already in flight, broadcasts an ARP request.
func (n *NetworkInterface) SendDatagram(dgram packet.IPv4Datagram, nextHop uint32) {
	if entry, ok := n.arpCache[nextHop]; ok {
		n.transmit(packet.EthernetFrame{
			Header: packet.EthernetHeader{
				Dst:  entry.ethernet,
				Src:  n.ethernetAddress,
				Type: packet.EtherTypeIPv4,
			},
			Payload: n.codec.SerializeIPv4(dgram),
		})
		return
	}

	n.pendingDgrams[nextHop] = append(n.pendingDgrams[nextHop], dgram)

	if _, inFlight := n.pendingTimers[nextHop]; inFlight {
		return
	}
	n.pendingTimers[nextHop] = 0

	request := packet.ARPMessage{
		Opcode:         packet.ARPRequest,
		SenderEthernet: n.ethernetAddress,
		SenderIP:       n.ipAddress,
		TargetEthernet: packet.EthernetAddress{},
		TargetIP:       nextHop,
	}
	n.transmit(packet.EthernetFrame{
		Header: packet.EthernetHeader{
			Dst:  packet.Broadcast,
			Src:  n.ethernetAddress,
			Type: packet.EtherTypeARP,
		},
		Payload: n.codec.SerializeARP(request),
	})
}

// RecvFrame processes one inbound Ethernet frame.
func (n *NetworkInterface) RecvFrame(frame packet.EthernetFrame) {
	if frame.Header.Dst != n.ethernetAddress && frame.Header.Dst != packet.Broadcast {
		return
	}

	switch frame.Header.Type {
	case packet.EtherTypeIPv4:
		dgram, ok := n.codec.ParseIPv4(frame.Payload)
		if !ok {
			return
		}
		n.datagramsReceived = append(n.datagramsReceived, dgram)

	case packet.EtherTypeARP:
		msg, ok := n.codec.ParseARP(frame.Payload)
		if !ok {
			return
		}
		n.learn(msg.SenderIP, msg.SenderEthernet)

		if msg.Opcode == packet.ARPRequest && msg.TargetIP == n.ipAddress {
			reply := packet.ARPMessage{
				Opcode:         packet.ARPReply,
				SenderEthernet: n.ethernetAddress,
				SenderIP:       n.ipAddress,
				TargetEthernet: msg.SenderEthernet,
				TargetIP:       msg.SenderIP,
			}
			n.transmit(packet.EthernetFrame{
				Header: packet.EthernetHeader{
					Dst:  msg.SenderEthernet,
					Src:  n.ethernetAddress,
					Type: packet.EtherTypeARP,
				},
				Payload: n.codec.SerializeARP(reply),
			})
		}

		n.drainPending(msg.SenderIP, msg.SenderEthernet)
	}
}

func (n *NetworkInterface) learn(ip uint32, ethernet packet.EthernetAddress) {
	n.arpCache[ip] = arpCacheEntry{ethernet: ethernet, ageMs: 0}
}

func (n *NetworkInterface) drainPending(ip uint32, ethernet packet.EthernetAddress) {
	pending, ok := n.pendingDgrams[ip]
	if !ok {
		return
	}
	for _, dgram := range pending {
		n.transmit(packet.EthernetFrame{
			Header: packet.EthernetHeader{
				Dst:  ethernet,
				Src:  n.ethernetAddress,
				Type: packet.EtherTypeIPv4,
			},
			Payload: n.codec.SerializeIPv4(dgram),
		})
	}
	delete(n.pendingDgrams, ip)
	delete(n.pendingTimers, ip)
}

// Tick ages the ARP cache and pending-request timers, evicting entries
// that have exceeded their lifetimes.
func (n *NetworkInterface) Tick(ms uint64) {
	for ip, entry := range n.arpCache {
		entry.ageMs += ms
		if entry.ageMs >= arpCacheEntryLifetimeMs {
			delete(n.arpCache, ip)
			continue
		}
		n.arpCache[ip] = entry
	}

	for ip, age := range n.pendingTimers {
		age += ms
		if age >= arpRequestSuppressMs {
			delete(n.pendingTimers, ip)
			continue
		}
		n.pendingTimers[ip] = age
	}
}
