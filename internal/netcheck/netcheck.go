// Package netcheck verifies the device holds a usable local address before
// the web server binds. Joining the network is somebody else's job.
package netcheck

import (
	"errors"
	"fmt"
	"net"
	"sort"
)

// ErrNoAddress is returned when no interface carries a routable IPv4 address.
var ErrNoAddress = errors.New("no local IPv4 address")

// Addr is one usable address and the interface it lives on.
type Addr struct {
	Interface string
	IP        net.IP
}

func (a Addr) String() string { return a.Interface + ": " + a.IP.String() }

type iface struct {
	name  string
	flags net.Flags
	addrs []net.Addr
}

// LocalIPv4 returns the first usable IPv4 address, ordered by interface
// name. Loopback, link-local and down interfaces are skipped.
func LocalIPv4() (Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return Addr{}, fmt.Errorf("list interfaces: %w", err)
	}
	list := make([]iface, 0, len(ifaces))
	for _, ifc := range ifaces {
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		list = append(list, iface{name: ifc.Name, flags: ifc.Flags, addrs: addrs})
	}
	return pick(list)
}

func pick(ifaces []iface) (Addr, error) {
	var out []Addr
	for _, ifc := range ifaces {
		if ifc.flags&net.FlagUp == 0 || ifc.flags&net.FlagLoopback != 0 {
			continue
		}
		for _, a := range ifc.addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			ip4 := ip.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() || ip4.IsUnspecified() {
				continue
			}
			out = append(out, Addr{Interface: ifc.name, IP: ip4})
		}
	}
	if len(out) == 0 {
		return Addr{}, ErrNoAddress
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Interface < out[j].Interface })
	return out[0], nil
}
