package netaddr

import (
	"testing"

	"proxygateway/common"
)

func TestRoundTrip(t *testing.T) {
	cases := []common.Endpoint{
		{Host: "127.0.0.1", Port: 443},
		{Host: "10.0.0.1", Port: 0},
		{Host: "::1", Port: 8080},
		{Host: "2001:db8::1", Port: 1},
		{Host: "example.test", Port: 65535},
		{Host: "a", Port: 1},
	}

	for _, c := range cases {
		encoded := Encode(c)
		decoded, n, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode(%v) failed: %v", c, err)
		}
		if n != len(encoded) {
			t.Fatalf("decode(%v) consumed %d, want %d", c, n, len(encoded))
		}
		if decoded.Port != c.Port {
			t.Fatalf("decode(%v) port = %d", c, decoded.Port)
		}
	}
}

func TestDecodeRejectsShortPrefixes(t *testing.T) {
	full := Encode(common.Endpoint{Host: "example.test", Port: 443})
	for i := 0; i < len(full); i++ {
		if _, _, err := Decode(full[:i]); err == nil {
			t.Fatalf("decode(prefix length %d) unexpectedly succeeded", i)
		}
	}
}

func TestDecodeBadAddressType(t *testing.T) {
	if _, _, err := Decode([]byte{0x02, 0, 0, 0, 0}); err != ErrBadAddressType {
		t.Fatalf("got %v, want ErrBadAddressType", err)
	}
}

func TestDecodeBadDomain(t *testing.T) {
	// length byte claims 5 bytes, but only 2 are present before the (missing) port
	if _, _, err := Decode([]byte{TypeDNS, 5, 'a', 'b'}); err != ErrBadDomain {
		t.Fatalf("got %v, want ErrBadDomain for truncated domain", err)
	}
	// zero-length domain is rejected as bad, not accepted as empty
	if _, _, err := Decode([]byte{TypeDNS, 0, 0, 0}); err != ErrBadDomain {
		t.Fatalf("got %v, want ErrBadDomain for empty domain", err)
	}
	// non-UTF-8 domain bytes
	bad := []byte{TypeDNS, 2, 0xff, 0xfe, 0, 0}
	if _, _, err := Decode(bad); err != ErrBadDomain {
		t.Fatalf("got %v, want ErrBadDomain for non-utf8 domain", err)
	}
}

func TestZeroIPv4Wire(t *testing.T) {
	got := Encode(ZeroIPv4)
	want := []byte{TypeIPv4, 0, 0, 0, 0, 0, 0}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
