// Package cdev implements the virtual interface control protocol:
// fixed-layout request messages that add/remove a vif interface or
// announce a payload to one. Grounded on original_source/vnddmgr.h's
// cdev_request_t: an 8-byte header (cmd code + "CDEV" magic cookie)
// followed by a command-specific fixed-size body, originally memcpy'd
// straight into a kernel ioctl buffer. This port uses encoding/binary
// instead of memcpy/unsafe, keeping the same fixed-size-layout
// discipline without reflection.
package cdev

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/eantcal/vnddvpn/internal/frame"
)

// Magic is the 4-byte cookie every request must carry, ported verbatim
// from CDEV_REQUEST_MAGIC_COOKIE.
var Magic = [4]byte{'C', 'D', 'E', 'V'}

// Command codes, ported verbatim from vnddmgr.h.
const (
	CmdAddIf    uint32 = 1
	CmdAnnounce uint32 = 2
	CmdRemoveIf uint32 = 3
)

// MaxPayload matches CDEV_REQUEST_MAX_LENGTH, the wire size of the
// Announce.Payload buffer.
const MaxPayload = 2048

// maxAnnounceFrame is the actual truncation boundary EncodeAnnounce and
// TruncatedLen enforce: an announced payload is an Ethernet frame, so
// anything beyond frame.MaxFrameSize is truncated (cmd/vnddctl's
// announce command prints the warning), well short of the larger
// MaxPayload wire buffer it is copied into.
const maxAnnounceFrame = frame.MaxFrameSize

// NameSize matches IFNAMSIZ.
const NameSize = 16

// DefaultSocketPath is the Unix socket where vnddvpnd listens and vnddctl
// dials absent an explicit -cdev/--cdev override. It is a socket under
// /tmp, not the /dev/vnddmgr device node path.
const DefaultSocketPath = "/tmp/vnddvpnd.sock"

var (
	ErrInvalidRequest = errors.New("cdev: invalid request")
	ErrNameTooLong    = errors.New("cdev: interface name exceeds 15 characters")
	ErrShortBuffer    = errors.New("cdev: buffer too short to decode")
)

// Header is the 8-byte prefix of every request.
type Header struct {
	CmdCode uint32
	Magic   [4]byte
}

// AddIf mirrors cdev_request_add_interface_t.
type AddIf struct {
	Name      [NameSize]byte
	MAC       [6]byte
	MTU       uint32
	EnableARP int32
}

// RemoveIf mirrors cdev_request_remove_interface_t.
type RemoveIf struct {
	Name [NameSize]byte
}

// Announce mirrors cdev_request_announce_pkt_t.
type Announce struct {
	PktLen  uint64
	Name    [NameSize]byte
	Payload [MaxPayload]byte
}

func encodeName(name string) ([NameSize]byte, error) {
	var buf [NameSize]byte
	if len(name) > NameSize-1 {
		return buf, fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	copy(buf[:], name)
	return buf, nil
}

func decodeName(buf [NameSize]byte) string {
	n := bytes.IndexByte(buf[:], 0)
	if n < 0 {
		n = NameSize
	}
	return string(buf[:n])
}

// EncodeAddIf builds the wire form of an AddIf request.
func EncodeAddIf(name string, mac [6]byte, mtu uint32, enableARP bool) ([]byte, error) {
	nameBuf, err := encodeName(name)
	if err != nil {
		return nil, err
	}
	arp := int32(0)
	if enableARP {
		arp = 1
	}

	buf := new(bytes.Buffer)
	writeHeader(buf, CmdAddIf)
	binary.Write(buf, binary.BigEndian, AddIf{Name: nameBuf, MAC: mac, MTU: mtu, EnableARP: arp})
	return buf.Bytes(), nil
}

// EncodeRemoveIf builds the wire form of a RemoveIf request.
func EncodeRemoveIf(name string) ([]byte, error) {
	nameBuf, err := encodeName(name)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	writeHeader(buf, CmdRemoveIf)
	binary.Write(buf, binary.BigEndian, RemoveIf{Name: nameBuf})
	return buf.Bytes(), nil
}

// EncodeAnnounce builds the wire form of an Announce request. A payload
// longer than the Ethernet frame size (maxAnnounceFrame) is truncated;
// callers should log a warning when that happens (see TruncatedLen to
// detect it before encoding).
func EncodeAnnounce(name string, payload []byte) ([]byte, error) {
	nameBuf, err := encodeName(name)
	if err != nil {
		return nil, err
	}

	if len(payload) > maxAnnounceFrame {
		payload = payload[:maxAnnounceFrame]
	}

	var body Announce
	body.Name = nameBuf
	n := copy(body.Payload[:], payload)
	body.PktLen = uint64(n)

	buf := new(bytes.Buffer)
	writeHeader(buf, CmdAnnounce)
	binary.Write(buf, binary.BigEndian, body)
	return buf.Bytes(), nil
}

// TruncatedLen reports how many bytes of payload would be dropped by
// EncodeAnnounce.
func TruncatedLen(payload []byte) int {
	if len(payload) <= maxAnnounceFrame {
		return 0
	}
	return len(payload) - maxAnnounceFrame
}

func writeHeader(buf *bytes.Buffer, cmd uint32) {
	binary.Write(buf, binary.BigEndian, Header{CmdCode: cmd, Magic: Magic})
}

const headerSize = 4 + 4 // uint32 + [4]byte

// DecodeHeader reads and validates the 8-byte header, returning the
// command code and the remaining body bytes.
func DecodeHeader(data []byte) (cmd uint32, body []byte, err error) {
	if len(data) < headerSize {
		return 0, nil, ErrShortBuffer
	}
	var h Header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.BigEndian, &h); err != nil {
		return 0, nil, fmt.Errorf("cdev: decode header: %w", err)
	}
	if h.Magic != Magic {
		return 0, nil, ErrInvalidRequest
	}
	return h.CmdCode, data[headerSize:], nil
}

// DecodeAddIf parses the body of an AddIf request (post-header).
func DecodeAddIf(body []byte) (name string, mac [6]byte, mtu uint32, enableARP bool, err error) {
	var r AddIf
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, &r); err != nil {
		return "", mac, 0, false, fmt.Errorf("cdev: decode add_if: %w", err)
	}
	return decodeName(r.Name), r.MAC, r.MTU, r.EnableARP != 0, nil
}

// DecodeRemoveIf parses the body of a RemoveIf request (post-header).
func DecodeRemoveIf(body []byte) (name string, err error) {
	var r RemoveIf
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, &r); err != nil {
		return "", fmt.Errorf("cdev: decode remove_if: %w", err)
	}
	return decodeName(r.Name), nil
}

// DecodeAnnounce parses the body of an Announce request (post-header).
func DecodeAnnounce(body []byte) (name string, payload []byte, err error) {
	var r Announce
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, &r); err != nil {
		return "", nil, fmt.Errorf("cdev: decode announce: %w", err)
	}
	if r.PktLen > uint64(len(r.Payload)) {
		return "", nil, ErrInvalidRequest
	}
	out := make([]byte, r.PktLen)
	copy(out, r.Payload[:r.PktLen])
	return decodeName(r.Name), out, nil
}
