// Package netudp implements the datagram socket (C3): a bound UDP/IPv4
// endpoint with poll/sendto/recvfrom semantics.
package netudp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Endpoint is an IPv4 address plus a UDP port.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP.String(), e.Port)
}

// Equal reports whether two endpoints name the same (ip, port) pair.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.Port == other.Port && e.IP.Equal(other.IP)
}

// Errors returned by Socket operations.
var (
	ErrBind          = errors.New("netudp: bind failed")
	ErrInvalidSocket = errors.New("netudp: could not create socket")
)

// PollStatus is the result of Poll.
type PollStatus int

const (
	PollReady PollStatus = iota
	PollTimeout
	PollError
)

// Socket is a bound, unconnected UDP/IPv4 endpoint.
type Socket struct {
	conn  *net.UDPConn
	local Endpoint
}

// Bind creates and binds a UDP/IPv4 socket to local. If local.Port is 0
// the kernel assigns a port, reflected in the returned Endpoint.
// reuseAddr requests SO_REUSEADDR on the underlying socket.
func Bind(local Endpoint, reuseAddr bool) (*Socket, error) {
	lc := net.ListenConfig{}
	if reuseAddr {
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		}
	}

	ip := local.IP
	if ip == nil {
		ip = net.IPv4zero
	}

	addr := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", local.Port))
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBind, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("%w: unexpected packet conn type", ErrInvalidSocket)
	}

	boundAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("%w: unexpected local addr type", ErrInvalidSocket)
	}

	return &Socket{
		conn:  conn,
		local: Endpoint{IP: boundAddr.IP, Port: uint16(boundAddr.Port)},
	}, nil
}

// LocalEndpoint returns the endpoint this socket is bound to.
func (s *Socket) LocalEndpoint() Endpoint {
	return s.local
}

// SendTo sends buf to dst, returning the number of bytes sent.
func (s *Socket) SendTo(buf []byte, dst Endpoint) (int, error) {
	addr := &net.UDPAddr{IP: dst.IP, Port: int(dst.Port)}
	return s.conn.WriteToUDP(buf, addr)
}

// RecvFrom reads up to len(buf) bytes into buf, returning the number of
// bytes read and the sender's endpoint.
func (s *Socket) RecvFrom(buf []byte) (int, Endpoint, error) {
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return n, Endpoint{}, err
	}
	return n, Endpoint{IP: addr.IP, Port: uint16(addr.Port)}, nil
}

// Poll waits up to timeout for the socket to become readable, without
// consuming any datagram — the Go equivalent of the source's
// select()-on-one-fd loop. A subsequent RecvFrom sees the same datagram
// Poll observed as ready.
func (s *Socket) Poll(timeout time.Duration) (PollStatus, error) {
	rawConn, err := s.conn.SyscallConn()
	if err != nil {
		return PollError, err
	}

	var pollErr error
	var ready bool

	ctrlErr := rawConn.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, e := unix.Poll(fds, int(timeout.Milliseconds()))
		if e != nil {
			if errors.Is(e, unix.EINTR) {
				// Treat a single interrupted wait as a timeout; the
				// caller's loop re-polls on the next iteration, which
				// bounds cancellation latency the same way the
				// source's retry-until-readable select loop does.
				return
			}
			pollErr = e
			return
		}
		ready = n > 0 && fds[0].Revents&unix.POLLIN != 0
	})
	if ctrlErr != nil {
		return PollError, ctrlErr
	}
	if pollErr != nil {
		return PollError, pollErr
	}
	if ready {
		return PollReady, nil
	}
	return PollTimeout, nil
}

// Close closes the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}
