// [EXPANSION] This file exposes the cdev control protocol over a Unix
// domain socket so cmd/vnddctl can add/remove interfaces on a *running*
// daemon instead of only at startup. The original tool talks to a kernel
// char device (/dev/vnddmgr); a Unix domain socket is the nearest
// Go-idiomatic equivalent of "a small control-plane socket", grounded on
// the net.Listen("unix", ...) control-listener pattern used by the
// teacher's pkg/api/server.go for its HTTP API listener.
package cdev

import (
	"fmt"
	"net"
	"os"

	"github.com/eantcal/vnddvpn/internal/vnddlog"
)

// Handler processes one decoded control request. Server turns a nil
// error into response byte 0 and a non-nil error into 1.
type Handler interface {
	HandleAddIf(name string, mac [6]byte, mtu uint32, enableARP bool) error
	HandleRemoveIf(name string) error
	HandleAnnounce(name string, payload []byte) error
}

// Server listens on a Unix domain socket and dispatches decoded cdev
// requests to a Handler. Each accepted connection is served in its own
// goroutine, so requests on different connections can run concurrently.
type Server struct {
	listener net.Listener
	handler  Handler
	log      *vnddlog.Logger
}

// Listen creates the control socket at path, removing any stale socket
// file left behind by a previous unclean shutdown.
func Listen(path string, h Handler, log *vnddlog.Logger) (*Server, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cdev: remove stale socket %q: %w", path, err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("cdev: listen %q: %w", path, err)
	}
	return &Server{listener: l, handler: h, log: log}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	// Sized for the largest possible request, an Announce.
	buf := make([]byte, headerSize+8+NameSize+MaxPayload)

	n, err := conn.Read(buf)
	if err != nil {
		s.log.Warn("cdev: read request failed", vnddlog.Fields{"error": err.Error()})
		return
	}

	cmd, body, err := DecodeHeader(buf[:n])
	if err != nil {
		s.log.Warn("cdev: invalid request", vnddlog.Fields{"error": err.Error()})
		writeStatus(conn, 1)
		return
	}

	var handleErr error
	switch cmd {
	case CmdAddIf:
		name, mac, mtu, arp, derr := DecodeAddIf(body)
		if derr != nil {
			handleErr = derr
			break
		}
		handleErr = s.handler.HandleAddIf(name, mac, mtu, arp)
	case CmdRemoveIf:
		name, derr := DecodeRemoveIf(body)
		if derr != nil {
			handleErr = derr
			break
		}
		handleErr = s.handler.HandleRemoveIf(name)
	case CmdAnnounce:
		name, payload, derr := DecodeAnnounce(body)
		if derr != nil {
			handleErr = derr
			break
		}
		handleErr = s.handler.HandleAnnounce(name, payload)
	default:
		handleErr = ErrInvalidRequest
	}

	if handleErr != nil {
		s.log.Warn("cdev: request failed", vnddlog.Fields{"cmd": cmd, "error": handleErr.Error()})
		writeStatus(conn, 1)
		return
	}
	writeStatus(conn, 0)
}

func writeStatus(conn net.Conn, status byte) {
	conn.Write([]byte{status})
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Client is a thin synchronous client for cmd/vnddctl.
type Client struct {
	path string
}

// NewClient constructs a Client that dials path fresh for every request,
// matching the original CLI's open-ioctl-close-per-invocation usage of
// /dev/vnddmgr.
func NewClient(path string) *Client {
	return &Client{path: path}
}

func (c *Client) roundTrip(req []byte) error {
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return fmt.Errorf("cdev: dial %q: %w", c.path, err)
	}
	defer conn.Close()

	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("cdev: write request: %w", err)
	}

	status := make([]byte, 1)
	if _, err := conn.Read(status); err != nil {
		return fmt.Errorf("cdev: read response: %w", err)
	}
	if status[0] != 0 {
		return fmt.Errorf("cdev: daemon rejected request")
	}
	return nil
}

// AddIf sends an AddIf request to the running daemon.
func (c *Client) AddIf(name string, mac [6]byte, mtu uint32, enableARP bool) error {
	req, err := EncodeAddIf(name, mac, mtu, enableARP)
	if err != nil {
		return err
	}
	return c.roundTrip(req)
}

// RemoveIf sends a RemoveIf request to the running daemon.
func (c *Client) RemoveIf(name string) error {
	req, err := EncodeRemoveIf(name)
	if err != nil {
		return err
	}
	return c.roundTrip(req)
}

// Announce sends a raw Ethernet frame to the daemon for injection into
// the named interface, truncating it to maxAnnounceFrame bytes first
// (see TruncatedLen to detect that before calling).
func (c *Client) Announce(name string, payload []byte) error {
	req, err := EncodeAnnounce(name, payload)
	if err != nil {
		return err
	}
	return c.roundTrip(req)
}
