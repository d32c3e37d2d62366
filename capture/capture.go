// Package capture adapts the teacher's pcap live-capture plumbing to this
// project's narrower need: read raw Ethernet frames off a real NIC and
// hand them to a netif.NetworkInterface, one at a time, with no protocol
// parsing of its own (that's wire's job).
package capture

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"

	"github.com/netstacklab/minnow/packet"
	"github.com/netstacklab/minnow/printer"
	"github.com/netstacklab/minnow/wire"
)

const defaultSnapLen = 262144

// pcapWrapper is the seam between Source and the real libpcap bindings,
// the same indirection the teacher's pcapImpl/pcapWrapper split uses, so
// tests can substitute a fake without opening a real device.
type pcapWrapper interface {
	capturePackets(done <-chan struct{}, interfaceName, bpfFilter string) (<-chan gopacket.Packet, error)
}

type pcapImpl struct{}

func (p *pcapImpl) capturePackets(done <-chan struct{}, interfaceName, bpfFilter string) (<-chan gopacket.Packet, error) {
	handle, err := pcap.OpenLive(interfaceName, defaultSnapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pcap handle on %s", interfaceName)
	}
	if bpfFilter != "" {
		if err := handle.SetBPFFilter(bpfFilter); err != nil {
			handle.Close()
			return nil, errors.Wrap(err, "failed to set BPF filter")
		}
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	pktChan := packetSource.Packets()

	out := make(chan gopacket.Packet, 10)
	go func() {
		defer func() {
			close(out)
			handle.Close()
		}()
		for {
			select {
			case <-done:
				return
			case pkt, ok := <-pktChan:
				if !ok {
					return
				}
				out <- pkt
			}
		}
	}()
	return out, nil
}

// Source reads raw frames from a live interface and delivers each one to
// a netif.NetworkInterface via RecvFrame.
type Source struct {
	pcap pcapWrapper
}

// New constructs a Source backed by the real libpcap bindings.
func New() *Source {
	return &Source{pcap: &pcapImpl{}}
}

// Run captures frames matching bpfFilter on interfaceName until done is
// closed, delivering each to iface.RecvFrame.
func (s *Source) Run(done <-chan struct{}, interfaceName, bpfFilter string, iface netifRecvFramer) error {
	packets, err := s.pcap.capturePackets(done, interfaceName, bpfFilter)
	if err != nil {
		return errors.Wrapf(err, "failed to begin capture on %s", interfaceName)
	}

	start := time.Now()
	count := 0
	for pkt := range packets {
		frame, err := wire.ParseEthernet(pkt.Data())
		if err != nil {
			printer.V(3).Debugf("capture: dropping unparseable frame: %v\n", err)
			continue
		}
		iface.RecvFrame(frame)

		if count == 0 {
			printer.Debugf("capture: time to first frame on %s: %s\n", interfaceName, time.Since(start))
		}
		count++
	}
	return nil
}

// netifRecvFramer is the minimal slice of netif.NetworkInterface that Run
// needs, so capture doesn't need to import netif's full surface just to
// accept one.
type netifRecvFramer interface {
	RecvFrame(frame packet.EthernetFrame)
}
