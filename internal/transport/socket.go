package transport

import (
	"fmt"
	"net"
)

const bufferLength = 1024

// Socket is the real, loopback-UDP Transport implementation. One Socket
// per subsystem owns both its ingress port and its egress traffic; per
// §5, sockets are never shared across subsystems.
type Socket struct {
	conn *net.UDPConn
	port int
}

// NewSocket binds a UDP socket on loopback at port. port == 0 asks the
// kernel for an ephemeral port, as cmd/console does for its send-only
// socket; the subsystems bind their fixed ports.
func NewSocket(port int) (*Socket, error) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind port %d: %w", port, err)
	}
	bound := conn.LocalAddr().(*net.UDPAddr)
	return &Socket{conn: conn, port: bound.Port}, nil
}

func (s *Socket) SendTo(port int, payload []byte) error {
	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	_, err := s.conn.WriteToUDP(payload, dst)
	if err != nil {
		return fmt.Errorf("transport: send to port %d: %w", port, err)
	}
	return nil
}

func (s *Socket) ReadFrom() ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, bufferLength)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: receive: %w", err)
	}
	// The datagram must be copied out of the reusable read buffer before
	// it is handed to anything that outlives this call — the open
	// question in §9 that the source's buffer-reuse bug left unresolved.
	payload := make([]byte, n)
	copy(payload, buf[:n])
	return payload, addr, nil
}

func (s *Socket) LocalPort() int {
	return s.port
}

func (s *Socket) Close() error {
	return s.conn.Close()
}
