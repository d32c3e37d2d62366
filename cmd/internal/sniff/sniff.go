// Package sniff drives capture.Source against a real network interface,
// feeding every captured frame into a netif.NetworkInterface and printing
// the datagrams addressed to it once the capture window closes.
package sniff

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/netstacklab/minnow/capture"
	"github.com/netstacklab/minnow/netif"
	"github.com/netstacklab/minnow/packet"
	"github.com/netstacklab/minnow/printer"
	"github.com/netstacklab/minnow/wire"
)

var (
	interfaceFlag string
	bpfFlag       string
	ipFlag        string
	durationFlag  time.Duration
)

// Cmd captures live traffic on a NIC and reports what a netif.NetworkInterface
// bound to --ip made of it.
var Cmd = &cobra.Command{
	Use:   "sniff",
	Short: "Capture live traffic on a NIC and feed it through a NetworkInterface.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(interfaceFlag, bpfFlag, ipFlag, durationFlag)
	},
}

func init() {
	Cmd.Flags().StringVar(&interfaceFlag, "interface", "", "NIC to capture on, e.g. eth0 (required)")
	Cmd.Flags().StringVar(&bpfFlag, "bpf", "arp or ip", "BPF filter applied to the capture")
	Cmd.Flags().StringVar(&ipFlag, "ip", "0.0.0.0", "IPv4 address the listening interface answers to")
	Cmd.Flags().DurationVar(&durationFlag, "duration", 10*time.Second, "how long to capture before reporting and exiting")
	Cmd.MarkFlagRequired("interface")
}

// reportingPort logs every frame the interface would have transmitted
// (ARP replies, mostly) instead of actually putting them on the wire,
// since this command only listens.
type reportingPort struct{}

func (reportingPort) Transmit(sender *netif.NetworkInterface, frame packet.EthernetFrame) {
	printer.Debugf("sniff: would transmit etherType=0x%04x frame to %v\n", uint16(frame.Header.Type), frame.Header.Dst)
}

func parseIPv4(s string) (uint32, error) {
	parsed := net.ParseIP(s).To4()
	if parsed == nil {
		return 0, errors.Errorf("invalid IPv4 address %q", s)
	}
	return binary.BigEndian.Uint32(parsed), nil
}

func run(interfaceName, bpfFilter, ip string, duration time.Duration) error {
	addr, err := parseIPv4(ip)
	if err != nil {
		return err
	}

	iface := netif.New(interfaceName, reportingPort{}, wire.New(), packet.EthernetAddress{}, addr)

	done := make(chan struct{})
	time.AfterFunc(duration, func() { close(done) })

	printer.Infof("sniff: listening on %s (filter %q) for %s\n", interfaceName, bpfFilter, duration)
	if err := capture.New().Run(done, interfaceName, bpfFilter, iface); err != nil {
		return errors.Wrapf(err, "capture on %s failed", interfaceName)
	}

	var received []packet.IPv4Datagram
	for _, dgram := range iface.PopDatagramsReceived() {
		if dgram.Header.Dst == addr {
			received = append(received, dgram)
		}
	}
	printer.Infof("sniff: %s captured %d datagram(s) addressed to %s\n", interfaceName, len(received), ip)
	for _, dgram := range received {
		printer.Infof("sniff: datagram ttl=%d dst=%s payload=%dB\n", dgram.Header.TTL, net.IP(uint32ToBytes(dgram.Header.Dst)), len(dgram.Payload))
	}

	return nil
}

func uint32ToBytes(addr uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, addr)
	return b
}
