package source

import (
	"fmt"
	"net"

	"github.com/google/gopacket/pcap"
)

// DefaultInterface picks the interface that carries the default route.
// The route is discovered by dialing a public address over UDP, which sends
// nothing on the wire. When that fails the first non-loopback pcap device
// with an address is used.
func DefaultInterface() (string, error) {
	if name, err := routeInterface(); err == nil {
		return name, nil
	}

	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("listing devices: %w", err)
	}
	for _, dev := range devs {
		if dev.Flags&pcapIfLoopback != 0 || len(dev.Addresses) == 0 {
			continue
		}
		return dev.Name, nil
	}
	return "", fmt.Errorf("no suitable interface found")
}

// PCAP_IF_LOOPBACK from pcap.h.
const pcapIfLoopback = 0x00000001

func routeInterface() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("could not determine default route: %w", err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("could not determine local address")
	}
	return interfaceWithIP(localAddr.IP)
}

func interfaceWithIP(ip net.IP) (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
				return iface.Name, nil
			}
		}
	}
	return "", fmt.Errorf("no interface owns %s", ip)
}
