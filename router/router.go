// Package router implements longest-prefix-match IPv4 forwarding across a
// set of network interfaces, per spec.md §4.7.
package router

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/netstacklab/minnow/netif"
	"github.com/netstacklab/minnow/packet"
)

// route is one routing-table entry: which interface to send out of, and
// an optional next hop (nil means a direct route — use the datagram's own
// destination as next hop).
type route struct {
	interfaceNum int
	nextHop      *uint32
}

// Router owns an ordered list of NetworkInterfaces and a routing table
// keyed by prefix length (0..32), mapping prefix → route. Unlike the
// rotated-prefix bit trick some implementations use, table[length] is
// keyed directly by dst >> (32 - length) — spec.md §4.7 describes the
// match as a plain scan over lengths, and a direct key lookup expresses
// that without relying on a same-looking-but-different shift-rotation
// identity.
type Router struct {
	interfaces []*netif.NetworkInterface
	table      [33]map[uint32]route

	// routeCache memoizes the LPM result for a destination address. It is
	// a wall-clock-based cache (patrickmn/go-cache), which is fine here:
	// unlike RetryTimer or the ARP cache's tick-driven aging, this cache
	// never participates in protocol timing — it's purely an
	// optimization over an idempotent, inputs-only-from-the-table
	// computation, and a stale hit is invalidated by AddRoute.
	routeCache *cache.Cache
}

// New constructs an empty Router.
func New() *Router {
	r := &Router{
		routeCache: cache.New(5*time.Second, 10*time.Second),
	}
	for i := range r.table {
		r.table[i] = make(map[uint32]route)
	}
	return r
}

// AddInterface appends a NetworkInterface to the router's interface list
// and returns its index, used as the interfaceNum argument to AddRoute.
func (r *Router) AddInterface(iface *netif.NetworkInterface) int {
	r.interfaces = append(r.interfaces, iface)
	return len(r.interfaces) - 1
}

// AddRoute installs a routing-table entry: datagrams whose destination
// shares the top prefixLength bits with routePrefix are sent out
// interfaceNum, via nextHop if given or directly to the destination
// otherwise.
func (r *Router) AddRoute(routePrefix uint32, prefixLength uint8, nextHop *uint32, interfaceNum int) {
	key := keyFor(routePrefix, prefixLength)
	r.table[prefixLength][key] = route{interfaceNum: interfaceNum, nextHop: nextHop}
	r.routeCache.Flush()
}

func keyFor(addr uint32, prefixLength uint8) uint32 {
	if prefixLength == 0 {
		return 0
	}
	return addr >> (32 - prefixLength)
}

// lookup performs the longest-prefix match for dst, scanning lengths from
// 32 down to 0 per spec.md §4.7, memoizing the result.
func (r *Router) lookup(dst uint32) (route, bool) {
	cacheKey := fmt.Sprintf("%d", dst)
	if cached, ok := r.routeCache.Get(cacheKey); ok {
		rt, ok := cached.(route)
		return rt, ok
	}

	for length := 32; length >= 0; length-- {
		key := keyFor(dst, uint8(length))
		if rt, ok := r.table[length][key]; ok {
			r.routeCache.Set(cacheKey, rt, cache.DefaultExpiration)
			return rt, true
		}
	}
	return route{}, false
}

// InterfaceForDestination reports the longest-prefix-match outcome for
// dst without forwarding anything, for introspection (e.g. a CLI that
// wants to show routing decisions without injecting real traffic).
func (r *Router) InterfaceForDestination(dst uint32) (interfaceNum int, nextHop uint32, ok bool) {
	rt, found := r.lookup(dst)
	if !found {
		return 0, 0, false
	}
	nextHop = dst
	if rt.nextHop != nil {
		nextHop = *rt.nextHop
	}
	return rt.interfaceNum, nextHop, true
}

// Route drains every interface's received-datagram queue, decrementing
// TTL and recomputing the header checksum, then forwards each datagram
// per the longest-prefix match. TTL-exceeded or unroutable datagrams are
// dropped silently.
func (r *Router) Route() {
	for _, iface := range r.interfaces {
		for _, dgram := range iface.PopDatagramsReceived() {
			r.routeOne(dgram)
		}
	}
}

func (r *Router) routeOne(dgram packet.IPv4Datagram) {
	if dgram.Header.TTL <= 1 {
		return
	}
	dgram.Header.DecrementTTL()
	dgram.Header.ComputeChecksum()

	rt, ok := r.lookup(dgram.Header.Dst)
	if !ok {
		return
	}
	if rt.interfaceNum < 0 || rt.interfaceNum >= len(r.interfaces) {
		return
	}

	nextHop := dgram.Header.Dst
	if rt.nextHop != nil {
		nextHop = *rt.nextHop
	}
	r.interfaces[rt.interfaceNum].SendDatagram(dgram, nextHop)
}
