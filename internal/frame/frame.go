// Package frame parses and serializes Layer 2 Ethernet frames.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Common EtherType values.
const (
	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806
	EtherTypeIPv6 = 0x86DD
)

// Frame size constraints.
const (
	HeaderSize   = 14   // destination MAC + source MAC + EtherType
	MinFrameSize = 14   // header only, no payload
	MaxFrameSize = 1514 // 1500 byte MTU + 14 byte header
)

// InterfaceNameSize is the padded length of an interface name on the wire.
const InterfaceNameSize = 16

// Ethernet is a parsed Layer 2 Ethernet frame.
type Ethernet struct {
	DestinationMAC [6]byte
	SourceMAC      [6]byte
	EtherType      uint16
	Payload        []byte
}

// Parse validates and decodes a raw Ethernet frame.
//
// data must be between MinFrameSize and MaxFrameSize bytes.
func Parse(data []byte) (*Ethernet, error) {
	if len(data) < MinFrameSize {
		return nil, fmt.Errorf("frame too small: got %d bytes, minimum %d", len(data), MinFrameSize)
	}
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("frame too large: got %d bytes, maximum %d", len(data), MaxFrameSize)
	}

	f := &Ethernet{}
	copy(f.DestinationMAC[:], data[0:6])
	copy(f.SourceMAC[:], data[6:12])
	f.EtherType = binary.BigEndian.Uint16(data[12:14])

	if len(data) > HeaderSize {
		f.Payload = make([]byte, len(data)-HeaderSize)
		copy(f.Payload, data[HeaderSize:])
	}

	return f, nil
}

// Serialize encodes the frame back to its raw wire form.
func (f *Ethernet) Serialize() []byte {
	data := make([]byte, HeaderSize+len(f.Payload))
	copy(data[0:6], f.DestinationMAC[:])
	copy(data[6:12], f.SourceMAC[:])
	binary.BigEndian.PutUint16(data[12:14], f.EtherType)
	if len(f.Payload) > 0 {
		copy(data[HeaderSize:], f.Payload)
	}
	return data
}

// String renders a short human-readable summary of the frame.
func (f *Ethernet) String() string {
	etherTypeStr := fmt.Sprintf("0x%04X", f.EtherType)
	switch f.EtherType {
	case EtherTypeIPv4:
		etherTypeStr = "IPv4"
	case EtherTypeARP:
		etherTypeStr = "ARP"
	case EtherTypeIPv6:
		etherTypeStr = "IPv6"
	}

	return fmt.Sprintf("frame[dst=%02x:%02x:%02x:%02x:%02x:%02x src=%02x:%02x:%02x:%02x:%02x:%02x type=%s payload=%dB]",
		f.DestinationMAC[0], f.DestinationMAC[1], f.DestinationMAC[2],
		f.DestinationMAC[3], f.DestinationMAC[4], f.DestinationMAC[5],
		f.SourceMAC[0], f.SourceMAC[1], f.SourceMAC[2],
		f.SourceMAC[3], f.SourceMAC[4], f.SourceMAC[5],
		etherTypeStr, len(f.Payload))
}

// PadName returns name as a null-padded InterfaceNameSize-byte array,
// truncating names that are too long.
func PadName(name string) [InterfaceNameSize]byte {
	var out [InterfaceNameSize]byte
	n := copy(out[:], name)
	_ = n
	return out
}

// NameFromBytes decodes a null-padded interface name back to a string.
func NameFromBytes(b [InterfaceNameSize]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
