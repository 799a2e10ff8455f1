package blesim

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rigado/blesim/sliceops"
)

// AddrType is the address type carried by HCI LE commands.
type AddrType uint8

const (
	AddrTypePublic AddrType = 0x00
	AddrTypeRandom AddrType = 0x01
)

func (t AddrType) String() string {
	switch t {
	case AddrTypePublic:
		return "public"
	case AddrTypeRandom:
		return "random"
	default:
		return fmt.Sprintf("addrtype(0x%02x)", uint8(t))
	}
}

// Valid reports whether t is one of the accept list address types.
func (t AddrType) Valid() bool {
	return t == AddrTypePublic || t == AddrTypeRandom
}

// ParseAddrType accepts "public" / "random" or the numeric form.
func ParseAddrType(s string) (AddrType, error) {
	switch strings.ToLower(s) {
	case "public", "0":
		return AddrTypePublic, nil
	case "random", "1":
		return AddrTypeRandom, nil
	}
	return 0, fmt.Errorf("invalid address type %q", s)
}

// Addr is a 48-bit device address stored in HCI (little-endian) byte order.
type Addr [6]byte

// AddrFromUint64 builds an address from its numeric value; the upper 16 bits are dropped.
func AddrFromUint64(v uint64) Addr {
	var a Addr
	for i := range a {
		a[i] = byte(v >> (8 * uint(i)))
	}
	return a
}

// NewAddr parses "aa:bb:cc:dd:ee:ff" (most significant byte first) or 12 hex digits.
func NewAddr(s string) (Addr, error) {
	hexStr := strings.Replace(strings.ToLower(s), ":", "", -1)

	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Addr{}, fmt.Errorf("error decoding address %q: %v", s, err)
	}
	if len(b) != 6 {
		return Addr{}, fmt.Errorf("invalid address length %v for %q", len(b), s)
	}

	var a Addr
	copy(a[:], sliceops.SwapBuf(b))
	return a, nil
}

// MustAddr is NewAddr that panics on error.
func MustAddr(s string) Addr {
	a, err := NewAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Addr) Uint64() uint64 {
	var v uint64
	for i := range a {
		v |= uint64(a[i]) << (8 * uint(i))
	}
	return v
}

func (a Addr) String() string {
	b := sliceops.SwapBuf(a[:])
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Addr) UnmarshalText(b []byte) error {
	v, err := NewAddr(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
