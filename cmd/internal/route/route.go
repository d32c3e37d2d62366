// Package route builds an in-memory Router from --route flags and prints
// which interface each of a handful of sample destinations would be sent
// out of, to make longest-prefix-match decisions visible from the CLI.
package route

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/netstacklab/minnow/netif"
	"github.com/netstacklab/minnow/packet"
	"github.com/netstacklab/minnow/printer"
	"github.com/netstacklab/minnow/router"
	"github.com/netstacklab/minnow/wire"
)

var (
	routeFlags []string
	destFlags  []string
)

// Cmd prints the longest-prefix-match outcome for each --dest against the
// routing table built from --route.
var Cmd = &cobra.Command{
	Use:   "route",
	Short: "Show longest-prefix-match routing decisions for a set of destinations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(routeFlags, destFlags)
	},
}

func init() {
	Cmd.Flags().StringArrayVar(&routeFlags, "route", nil,
		"a route as prefix/length:interface_num[:next_hop], repeatable (e.g. 10.0.0.0/8:1)")
	Cmd.Flags().StringArrayVar(&destFlags, "dest", nil, "a destination IPv4 address to test, repeatable")
}

type parsedRoute struct {
	prefix  uint32
	length  uint8
	nextHop *uint32
	ifnum   int
}

func run(routeSpecs, dests []string) error {
	r := router.New()
	codec := wire.New()

	parsed := make([]parsedRoute, 0, len(routeSpecs))
	maxIfnum := -1
	for _, spec := range routeSpecs {
		prefix, length, nextHop, ifnum, err := parseRouteSpec(spec)
		if err != nil {
			return errors.Wrapf(err, "invalid --route %q", spec)
		}
		parsed = append(parsed, parsedRoute{prefix, length, nextHop, ifnum})
		if ifnum > maxIfnum {
			maxIfnum = ifnum
		}
	}

	for i := 0; i <= maxIfnum; i++ {
		r.AddInterface(netif.New(fmt.Sprintf("if%d", i), noopPort{}, codec, packet.EthernetAddress{}, 0))
	}

	for _, rt := range parsed {
		r.AddRoute(rt.prefix, rt.length, rt.nextHop, rt.ifnum)
		printer.Infof("added route %s/%d -> interface %d\n", net.IP(uint32ToBytes(rt.prefix)), rt.length, rt.ifnum)
	}

	for _, dest := range dests {
		ip := net.ParseIP(dest).To4()
		if ip == nil {
			return errors.Errorf("invalid --dest %q", dest)
		}
		dst := binary.BigEndian.Uint32(ip)

		ifnum, nextHop, ok := r.InterfaceForDestination(dst)
		if !ok {
			printer.Warningf("destination %s: no matching route\n", dest)
			continue
		}
		printer.Infof("destination %s -> interface %d via %s\n", dest, ifnum, net.IP(uint32ToBytes(nextHop)))
	}

	return nil
}

type noopPort struct{}

func (noopPort) Transmit(sender *netif.NetworkInterface, frame packet.EthernetFrame) {}

func uint32ToBytes(addr uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, addr)
	return b
}

// parseRouteSpec parses "prefix/length:ifnum[:next-hop]".
func parseRouteSpec(spec string) (prefix uint32, length uint8, nextHop *uint32, ifnum int, err error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return 0, 0, nil, 0, errors.New("expected prefix/length:ifnum[:next-hop]")
	}

	_, ipNet, err := net.ParseCIDR(parts[0])
	if err != nil {
		return 0, 0, nil, 0, errors.Wrap(err, "invalid CIDR")
	}
	ones, _ := ipNet.Mask.Size()
	prefix = binary.BigEndian.Uint32(ipNet.IP.To4())
	length = uint8(ones)

	ifnum, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, nil, 0, errors.Wrap(err, "invalid interface number")
	}

	if len(parts) >= 3 {
		hopIP := net.ParseIP(parts[2]).To4()
		if hopIP == nil {
			return 0, 0, nil, 0, errors.Errorf("invalid next hop %q", parts[2])
		}
		hop := binary.BigEndian.Uint32(hopIP)
		nextHop = &hop
	}

	return prefix, length, nextHop, ifnum, nil
}
