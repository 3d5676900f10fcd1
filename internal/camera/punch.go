package camera

import (
	"fmt"
	"net"
	"strconv"
)

// punchPayload is sent once per port to open the return path through NAT.
var punchPayload = make([]byte, 8)

// ListenUDP is the default Binder.
func ListenUDP(network string, port int) (net.PacketConn, error) {
	return net.ListenPacket(network, ":"+strconv.Itoa(port))
}

// Punch sends one punch packet from each local port to the same port on
// host. Ports are handled strictly in order, each socket closed before the
// next is bound; the first error stops the sequence.
func Punch(bind Binder, host string, ports []int) error {
	network := "udp4"
	if AddressType(host) == "v6" {
		network = "udp6"
	}

	for _, port := range ports {
		if err := punchOne(bind, network, host, port); err != nil {
			return fmt.Errorf("punch %s: %w", net.JoinHostPort(host, strconv.Itoa(port)), err)
		}
	}
	return nil
}

func punchOne(bind Binder, network, host string, port int) error {
	addr, err := net.ResolveUDPAddr(network, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}

	conn, err := bind(network, port)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if _, err := conn.WriteTo(punchPayload, addr); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
