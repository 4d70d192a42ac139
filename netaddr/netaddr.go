// Package netaddr implements the SOCKS-style destination address
// triple shared byte-for-byte by the Shadowsocks codec and the SOCKS5
// listener (spec §4.1): a one-byte type tag, a variable-length body,
// and a big-endian port trailer.
package netaddr

import (
	"encoding/binary"
	"fmt"
	"net"
	"unicode/utf8"

	"proxygateway/common"
)

// Address type tags, as they appear on the wire.
const (
	TypeIPv4 byte = 0x01
	TypeDNS  byte = 0x03
	TypeIPv6 byte = 0x04
)

// Errors returned by Decode. Callers (the Shadowsocks codec and the
// SOCKS5 listener) map these to their own close/reject behavior.
var (
	ErrShortAddress   = fmt.Errorf("netaddr: short address")
	ErrBadAddressType = fmt.Errorf("netaddr: bad address type")
	ErrBadDomain      = fmt.Errorf("netaddr: bad domain")
)

// Decode parses an Address off the front of b, returning the address
// and the number of bytes consumed. It never reads past a declared
// length: a domain-length byte claiming more bytes than are present in
// b returns ErrBadDomain, exactly as for non-UTF-8 domain bytes.
func Decode(b []byte) (common.Endpoint, int, error) {
	if len(b) < 1 {
		return common.Endpoint{}, 0, ErrShortAddress
	}

	var host string
	var bodyLen int

	switch b[0] {
	case TypeIPv4:
		if len(b) < 1+4+2 {
			return common.Endpoint{}, 0, ErrShortAddress
		}
		host = net.IP(b[1:5]).String()
		bodyLen = 4
	case TypeDNS:
		if len(b) < 2 {
			return common.Endpoint{}, 0, ErrShortAddress
		}
		l := int(b[1])
		if len(b) < 2+l {
			return common.Endpoint{}, 0, ErrBadDomain
		}
		domain := b[2 : 2+l]
		if !utf8.Valid(domain) || l == 0 {
			return common.Endpoint{}, 0, ErrBadDomain
		}
		if len(b) < 2+l+2 {
			return common.Endpoint{}, 0, ErrShortAddress
		}
		host = string(domain)
		bodyLen = 1 + l
	case TypeIPv6:
		if len(b) < 1+16+2 {
			return common.Endpoint{}, 0, ErrShortAddress
		}
		host = net.IP(b[1:17]).String()
		bodyLen = 16
	default:
		return common.Endpoint{}, 0, ErrBadAddressType
	}

	portOff := 1 + bodyLen
	port := binary.BigEndian.Uint16(b[portOff : portOff+2])
	return common.Endpoint{Host: host, Port: port}, portOff + 2, nil
}

// Encode emits the wire form of addr. IPv4 addresses, including the
// 0.0.0.0:0 used by the SOCKS5 BND field, are always encoded as
// 4-octet IPv4 regardless of the string's formatting.
func Encode(addr common.Endpoint) []byte {
	ip := net.ParseIP(addr.Host)
	var out []byte

	switch {
	case ip == nil:
		domain := []byte(addr.Host)
		out = make([]byte, 0, 1+1+len(domain)+2)
		out = append(out, TypeDNS, byte(len(domain)))
		out = append(out, domain...)
	case ip.To4() != nil:
		out = make([]byte, 0, 1+4+2)
		out = append(out, TypeIPv4)
		out = append(out, ip.To4()...)
	default:
		out = make([]byte, 0, 1+16+2)
		out = append(out, TypeIPv6)
		out = append(out, ip.To16()...)
	}

	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], addr.Port)
	return append(out, portBuf[:]...)
}

// ZeroIPv4 is the 0.0.0.0:0 endpoint SOCKS5 replies use for BND.ADDR /
// BND.PORT (spec §4.4) — clients never validate it.
var ZeroIPv4 = common.Endpoint{Host: "0.0.0.0", Port: 0}
