package utils

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
)

// Home returns the undaunted directory of the current user without a trailing
// slash, creating it when missing.
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	home = filepath.Join(home, ".undaunted")

	if customHome := os.Getenv("UNDAUNTED_HOME"); customHome != "" {
		home = customHome
	}

	if _, err := os.Stat(home); err != nil {
		if os.IsNotExist(err) {
			perm := os.FileMode(0o700)
			err := os.Mkdir(home, perm)
			if err != nil {
				return "", err
			}
		} else {
			return "", err
		}
	}

	return home, nil
}

// ResolveAddrPort turns host:port into an address, resolving host names and
// preferring IPv4. IPv4 addresses are always returned in their 4-byte form.
func ResolveAddrPort(hostPort string) (netip.AddrPort, error) {
	if addr, err := netip.ParseAddrPort(hostPort); err == nil {
		return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()), nil
	}

	host, portName, err := net.SplitHostPort(hostPort)
	if err != nil {
		return netip.AddrPort{}, err
	}
	port, err := net.LookupPort("udp", portName)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolving %s: %w", hostPort, err)
	}
	addrs, err := net.DefaultResolver.LookupNetIP(context.Background(), "ip", host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolving %s: %w", hostPort, err)
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, fmt.Errorf("resolving %s: no addresses", hostPort)
	}

	addr := addrs[0].Unmap()
	for _, candidate := range addrs {
		if candidate.Unmap().Is4() {
			addr = candidate.Unmap()
			break
		}
	}
	return netip.AddrPortFrom(addr, uint16(port)), nil
}
