// Package helpers holds small conversions shared by the commands and the
// harness: config ints to wire ports, and IPv4 addresses between their
// 32-bit big-endian form and net/netip.
package helpers

import (
	"encoding/binary"
	"math"
	"net/netip"
)

// ClampIntToUint16 converts v to uint16, saturating at 0 and math.MaxUint16.
func ClampIntToUint16(v int) uint16 {
	return uint16(min(max(v, 0), math.MaxUint16)) //nolint:gosec // clamped to valid range
}

// AddrFromUint32 turns a host-order IPv4 value such as 0x0A000202 into
// 10.0.2.2.
func AddrFromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

// Uint32FromAddr is the inverse of AddrFromUint32. IPv4-mapped IPv6
// addresses are unmapped first; anything else that is not IPv4 reports false.
func Uint32FromAddr(addr netip.Addr) (uint32, bool) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), true
}
