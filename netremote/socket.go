package netremote

import (
	"net"
	"time"
)

// UDPSocket is the part of *net.UDPConn the network remote uses.
type UDPSocket interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// Listener opens the socket the remote receives on.
type Listener func(laddr *net.UDPAddr) (UDPSocket, error)

// ListenUDP binds a real UDP socket.
func ListenUDP(laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
