package ice

import "net"

// DiscoverLocalAddresses enumerates up interfaces (excluding loopback) and
// returns their unicast addresses, for embedders that want add_local_address
// auto-populated rather than supplied explicitly (?4.4.2 "for each local
// address (supplied or auto-discovered)"). includeIPv6 mirrors the teacher's
// flagEnableIPv6 gate.
func DiscoverLocalAddresses(includeIPv6 bool) ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var addrs []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			return nil, err
		}
		for _, a := range ifaceAddrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP
			if !includeIPv6 && ip.To4() == nil {
				continue
			}
			addrs = append(addrs, ip)
		}
	}
	return addrs, nil
}
