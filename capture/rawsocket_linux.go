//go:build linux

package capture

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// LinuxRawSocketSource reads raw Ethernet frames off a single interface via
// an AF_PACKET SOCK_RAW socket, grounded in the teacher's
// internal/netio/rawsock_linux.go (SO_* option wiring through syscall/unix)
// but generalized from a bound UDP listener to promiscuous link-layer
// capture of whole frames.
type LinuxRawSocketSource struct {
	fd      int
	ifIndex int
	closed  bool
	bufSize int
}

// ErrSourceClosed is returned by Next once Close has been called.
var ErrSourceClosed = errors.New("capture: source closed")

// NewLinuxRawSocketSource opens an AF_PACKET raw socket bound to ifName,
// capturing every EtherType (ETH_P_ALL) in promiscuous mode.
func NewLinuxRawSocketSource(ifName string) (*LinuxRawSocketSource, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("capture: lookup interface %q: %w", ifName, err)
	}

	// htons(ETH_P_ALL): the protocol field of sockaddr_ll / the socket()
	// call is in network byte order.
	proto := int(htons(unix.ETH_P_ALL))

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, proto)
	if err != nil {
		return nil, fmt.Errorf("capture: open AF_PACKET socket: %w", err)
	}

	sll := &unix.SockaddrLinklayer{
		Protocol: uint16(proto),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("capture: bind to %q: %w", ifName, err)
	}

	if err := setPromiscuous(fd, iface.Index); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("capture: set promiscuous on %q: %w", ifName, err)
	}

	return &LinuxRawSocketSource{fd: fd, ifIndex: iface.Index, bufSize: 65536}, nil
}

// Next blocks on a single recvfrom, returning the captured frame bytes and
// the time the read completed (AF_PACKET does not expose kernel capture
// timestamps without SO_TIMESTAMP, which this minimal adapter omits).
func (s *LinuxRawSocketSource) Next() ([]byte, time.Time, error) {
	if s.closed {
		return nil, time.Time{}, ErrSourceClosed
	}
	buf := make([]byte, s.bufSize)
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("capture: recvfrom: %w", err)
	}
	return buf[:n], time.Now(), nil
}

// Close releases the underlying socket.
func (s *LinuxRawSocketSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("capture: close socket: %w", err)
	}
	return nil
}

// setPromiscuous enables PACKET_MR_PROMISC via PACKET_ADD_MEMBERSHIP, the
// AF_PACKET analogue of the teacher's SetsockoptInt-based option wiring.
func setPromiscuous(fd, ifIndex int) error {
	mreq := unix.PacketMreq{
		Ifindex: int32(ifIndex),
		Type:    unix.PACKET_MR_PROMISC,
	}
	return unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq)
}

// htons converts a 16-bit value from host to network byte order.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
