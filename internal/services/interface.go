package services

import (
	"fmt"
	"net"
	"strings"
)

// NetworkInterface describes a host interface a discovery sweep can use.
type NetworkInterface struct {
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
	// Subnet is the three-octet prefix scanned for printers, e.g.
	// "192.168.1".
	Subnet string `json:"subnet"`
	Status string `json:"status"`
}

// InterfaceService enumerates the host's network interfaces.
type InterfaceService struct{}

// NewInterfaceService creates an InterfaceService.
func NewInterfaceService() *InterfaceService {
	return &InterfaceService{}
}

// ListNetworkInterfaces returns every interface with an IPv4 address,
// loopbacks excluded.
func (s *InterfaceService) ListNetworkInterfaces() ([]NetworkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var result []NetworkInterface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			subnet := SubnetPrefix(ipnet.IP.String())
			if subnet == "" {
				continue
			}
			status := "down"
			if iface.Flags&net.FlagUp != 0 {
				status = "up"
			}
			result = append(result, NetworkInterface{
				Name:      iface.Name,
				IPAddress: ipnet.IP.String(),
				Subnet:    subnet,
				Status:    status,
			})
		}
	}
	return result, nil
}

// SubnetPrefix returns the first three octets of an IPv4 address, or ""
// if the input is not a dotted quad.
func SubnetPrefix(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ""
	}
	return strings.Join(parts[:3], ".")
}

// ValidSubnetPrefix reports whether s looks like a three-octet IPv4
// prefix such as "192.168.1".
func ValidSubnetPrefix(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}
