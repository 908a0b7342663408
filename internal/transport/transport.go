// Package transport is the datagram send/receive seam every subsystem
// sits on top of. It exists mainly so the scheduler and elevator subsystem
// state machines can be unit tested against transportmock instead of real
// loopback sockets.
package transport

import "net"

// Transport is the capability a subsystem needs from its network socket:
// send a payload to a fixed loopback port, and read whatever arrives on
// its own bound port.
type Transport interface {
	// SendTo writes payload to 127.0.0.1:port. Errors are transport errors
	// per §7 — callers log and continue, never treat them as fatal.
	SendTo(port int, payload []byte) error

	// ReadFrom blocks until a datagram arrives, returning a copy of its
	// payload and the sender's address (needed for the ACK-back).
	ReadFrom() ([]byte, *net.UDPAddr, error)

	// LocalPort is the port this transport is bound to.
	LocalPort() int

	Close() error
}
