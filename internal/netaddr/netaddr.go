// Package netaddr accepts listen and dial addresses either as host:port or as
// multiaddrs such as /ip4/127.0.0.1/tcp/7878.
package netaddr

import (
	"fmt"
	"net"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// Resolve returns the network and address for s.
func Resolve(s string) (network, addr string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("netaddr: empty address")
	}
	if !strings.HasPrefix(s, "/") {
		if _, _, err := net.SplitHostPort(s); err != nil {
			return "", "", fmt.Errorf("netaddr: %w", err)
		}
		return "tcp", s, nil
	}
	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return "", "", fmt.Errorf("netaddr: %w", err)
	}
	network, addr, err = manet.DialArgs(m)
	if err != nil {
		return "", "", fmt.Errorf("netaddr: %w", err)
	}
	if !strings.HasPrefix(network, "tcp") && network != "unix" {
		return "", "", fmt.Errorf("netaddr: %s is not a stream transport", s)
	}
	return network, addr, nil
}

// Listen opens a listener on s.
func Listen(s string) (net.Listener, error) {
	network, addr, err := Resolve(s)
	if err != nil {
		return nil, err
	}
	return net.Listen(network, addr)
}

// Target returns a gRPC dial target for s. Unix sockets use the unix:// scheme.
func Target(s string) (string, error) {
	network, addr, err := Resolve(s)
	if err != nil {
		return "", err
	}
	if network == "unix" {
		return "unix://" + addr, nil
	}
	return addr, nil
}
