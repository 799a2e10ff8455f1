// Package cmd holds the parameter layouts of the HCI commands understood by
// the simulated controller, with little-endian codecs for both directions.
package cmd

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

type command interface {
	Len() int
}

func marshal(c command, b []byte) error {
	buf := bytes.NewBuffer(b)
	buf.Reset()
	if buf.Cap() < c.Len() {
		return io.ErrShortBuffer
	}
	return binary.Write(buf, binary.LittleEndian, c)
}

// unmarshal requires b to be exactly the fixed length of c.
func unmarshal(c command, b []byte) error {
	if len(b) != c.Len() {
		return errors.Errorf("invalid parameter length %v, expected %v", len(b), c.Len())
	}
	return errors.Wrap(binary.Read(bytes.NewReader(b), binary.LittleEndian, c), "can't decode parameters")
}

func noParams(b []byte) error {
	if len(b) != 0 {
		return errors.Errorf("invalid parameter length %v, expected 0", len(b))
	}
	return nil
}

// Reset (0x03|0x0003) [Vol 4, Part E, 7.3.2]
type Reset struct{}

func (c *Reset) OpCode() int              { return 0x03<<10 | 0x0003 }
func (c *Reset) Len() int                 { return 0 }
func (c *Reset) Marshal(b []byte) error   { return nil }
func (c *Reset) Unmarshal(b []byte) error { return noParams(b) }

// LESetAdvertisingParameters (0x08|0x0006) [Vol 4, Part E, 7.8.5]
type LESetAdvertisingParameters struct {
	AdvertisingIntervalMin  uint16
	AdvertisingIntervalMax  uint16
	AdvertisingType         uint8
	OwnAddressType          uint8
	DirectAddressType       uint8
	DirectAddress           [6]byte
	AdvertisingChannelMap   uint8
	AdvertisingFilterPolicy uint8
}

func (c *LESetAdvertisingParameters) OpCode() int              { return 0x08<<10 | 0x0006 }
func (c *LESetAdvertisingParameters) Len() int                 { return 15 }
func (c *LESetAdvertisingParameters) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LESetAdvertisingParameters) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetAdvertiseEnable (0x08|0x000A) [Vol 4, Part E, 7.8.9]
type LESetAdvertiseEnable struct {
	AdvertisingEnable uint8
}

func (c *LESetAdvertiseEnable) OpCode() int              { return 0x08<<10 | 0x000A }
func (c *LESetAdvertiseEnable) Len() int                 { return 1 }
func (c *LESetAdvertiseEnable) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LESetAdvertiseEnable) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetScanParameters (0x08|0x000B) [Vol 4, Part E, 7.8.10]
type LESetScanParameters struct {
	LEScanType           uint8
	LEScanInterval       uint16
	LEScanWindow         uint16
	OwnAddressType       uint8
	ScanningFilterPolicy uint8
}

func (c *LESetScanParameters) OpCode() int              { return 0x08<<10 | 0x000B }
func (c *LESetScanParameters) Len() int                 { return 7 }
func (c *LESetScanParameters) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LESetScanParameters) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetScanEnable (0x08|0x000C) [Vol 4, Part E, 7.8.11]
type LESetScanEnable struct {
	LEScanEnable     uint8
	FilterDuplicates uint8
}

func (c *LESetScanEnable) OpCode() int              { return 0x08<<10 | 0x000C }
func (c *LESetScanEnable) Len() int                 { return 2 }
func (c *LESetScanEnable) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LESetScanEnable) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LECreateConnection (0x08|0x000D) [Vol 4, Part E, 7.8.12]
type LECreateConnection struct {
	LEScanInterval        uint16
	LEScanWindow          uint16
	InitiatorFilterPolicy uint8
	PeerAddressType       uint8
	PeerAddress           [6]byte
	OwnAddressType        uint8
	ConnIntervalMin       uint16
	ConnIntervalMax       uint16
	ConnLatency           uint16
	SupervisionTimeout    uint16
	MinimumCELength       uint16
	MaximumCELength       uint16
}

func (c *LECreateConnection) OpCode() int              { return 0x08<<10 | 0x000D }
func (c *LECreateConnection) Len() int                 { return 25 }
func (c *LECreateConnection) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LECreateConnection) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LECreateConnectionCancel (0x08|0x000E) [Vol 4, Part E, 7.8.13]
type LECreateConnectionCancel struct{}

func (c *LECreateConnectionCancel) OpCode() int              { return 0x08<<10 | 0x000E }
func (c *LECreateConnectionCancel) Len() int                 { return 0 }
func (c *LECreateConnectionCancel) Marshal(b []byte) error   { return nil }
func (c *LECreateConnectionCancel) Unmarshal(b []byte) error { return noParams(b) }

// LEReadFilterAcceptListSize (0x08|0x000F) [Vol 4, Part E, 7.8.14]
type LEReadFilterAcceptListSize struct{}

func (c *LEReadFilterAcceptListSize) OpCode() int              { return 0x08<<10 | 0x000F }
func (c *LEReadFilterAcceptListSize) Len() int                 { return 0 }
func (c *LEReadFilterAcceptListSize) Marshal(b []byte) error   { return nil }
func (c *LEReadFilterAcceptListSize) Unmarshal(b []byte) error { return noParams(b) }

// LEReadFilterAcceptListSizeRP is the return parameter of LEReadFilterAcceptListSize.
type LEReadFilterAcceptListSizeRP struct {
	Status               uint8
	FilterAcceptListSize uint8
}

func (c *LEReadFilterAcceptListSizeRP) Len() int                 { return 2 }
func (c *LEReadFilterAcceptListSizeRP) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LEReadFilterAcceptListSizeRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LEClearFilterAcceptList (0x08|0x0010) [Vol 4, Part E, 7.8.15]
type LEClearFilterAcceptList struct{}

func (c *LEClearFilterAcceptList) OpCode() int              { return 0x08<<10 | 0x0010 }
func (c *LEClearFilterAcceptList) Len() int                 { return 0 }
func (c *LEClearFilterAcceptList) Marshal(b []byte) error   { return nil }
func (c *LEClearFilterAcceptList) Unmarshal(b []byte) error { return noParams(b) }

// LEAddDeviceToFilterAcceptList (0x08|0x0011) [Vol 4, Part E, 7.8.16]
type LEAddDeviceToFilterAcceptList struct {
	AddressType uint8
	Address     [6]byte
}

func (c *LEAddDeviceToFilterAcceptList) OpCode() int              { return 0x08<<10 | 0x0011 }
func (c *LEAddDeviceToFilterAcceptList) Len() int                 { return 7 }
func (c *LEAddDeviceToFilterAcceptList) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LEAddDeviceToFilterAcceptList) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LERemoveDeviceFromFilterAcceptList (0x08|0x0012) [Vol 4, Part E, 7.8.17]
type LERemoveDeviceFromFilterAcceptList struct {
	AddressType uint8
	Address     [6]byte
}

func (c *LERemoveDeviceFromFilterAcceptList) OpCode() int              { return 0x08<<10 | 0x0012 }
func (c *LERemoveDeviceFromFilterAcceptList) Len() int                 { return 7 }
func (c *LERemoveDeviceFromFilterAcceptList) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LERemoveDeviceFromFilterAcceptList) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetExtendedAdvertisingParameters (0x08|0x0036) [Vol 4, Part E, 7.8.53]
type LESetExtendedAdvertisingParameters struct {
	AdvertisingHandle             uint8
	AdvertisingEventProperties    uint16
	PrimaryAdvertisingIntervalMin [3]byte
	PrimaryAdvertisingIntervalMax [3]byte
	PrimaryAdvertisingChannelMap  uint8
	OwnAddressType                uint8
	PeerAddressType               uint8
	PeerAddress                   [6]byte
	AdvertisingFilterPolicy       uint8
	AdvertisingTxPower            int8
	PrimaryAdvertisingPHY         uint8
	SecondaryAdvertisingMaxSkip   uint8
	SecondaryAdvertisingPHY       uint8
	AdvertisingSID                uint8
	ScanRequestNotificationEnable uint8
}

func (c *LESetExtendedAdvertisingParameters) OpCode() int              { return 0x08<<10 | 0x0036 }
func (c *LESetExtendedAdvertisingParameters) Len() int                 { return 25 }
func (c *LESetExtendedAdvertisingParameters) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LESetExtendedAdvertisingParameters) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetExtendedAdvertisingParametersRP is the return parameter of LESetExtendedAdvertisingParameters.
type LESetExtendedAdvertisingParametersRP struct {
	Status          uint8
	SelectedTxPower int8
}

func (c *LESetExtendedAdvertisingParametersRP) Len() int                 { return 2 }
func (c *LESetExtendedAdvertisingParametersRP) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LESetExtendedAdvertisingParametersRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// Interval24 decodes a 3-byte little-endian interval field.
func Interval24(b [3]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// PutInterval24 encodes v into a 3-byte little-endian interval field.
func PutInterval24(v uint32) [3]byte {
	return [3]byte{byte(v), byte(v >> 8), byte(v >> 16)}
}

// AdvertisingSet is one entry of LESetExtendedAdvertisingEnable.
type AdvertisingSet struct {
	AdvertisingHandle            uint8
	Duration                     uint16
	MaxExtendedAdvertisingEvents uint8
}

// LESetExtendedAdvertisingEnable (0x08|0x0039) [Vol 4, Part E, 7.8.56]
// The parameters are arrays indexed by set, so the codec is hand written.
type LESetExtendedAdvertisingEnable struct {
	Enable uint8
	Sets   []AdvertisingSet
}

func (c *LESetExtendedAdvertisingEnable) OpCode() int { return 0x08<<10 | 0x0039 }
func (c *LESetExtendedAdvertisingEnable) Len() int    { return 2 + 4*len(c.Sets) }

func (c *LESetExtendedAdvertisingEnable) Marshal(b []byte) error {
	if len(c.Sets) > 0x3f {
		return errors.Errorf("too many advertising sets %v", len(c.Sets))
	}
	if len(b) < c.Len() {
		return io.ErrShortBuffer
	}
	n := len(c.Sets)
	b[0] = c.Enable
	b[1] = byte(n)
	for i, s := range c.Sets {
		b[2+i] = s.AdvertisingHandle
		binary.LittleEndian.PutUint16(b[2+n+2*i:], s.Duration)
		b[2+3*n+i] = s.MaxExtendedAdvertisingEvents
	}
	return nil
}

func (c *LESetExtendedAdvertisingEnable) Unmarshal(b []byte) error {
	if len(b) < 2 {
		return errors.Errorf("invalid parameter length %v", len(b))
	}
	n := int(b[1])
	if len(b) != 2+4*n {
		return errors.Errorf("invalid parameter length %v for %v sets", len(b), n)
	}
	c.Enable = b[0]
	c.Sets = make([]AdvertisingSet, n)
	for i := range c.Sets {
		c.Sets[i] = AdvertisingSet{
			AdvertisingHandle:            b[2+i],
			Duration:                     binary.LittleEndian.Uint16(b[2+n+2*i:]),
			MaxExtendedAdvertisingEvents: b[2+3*n+i],
		}
	}
	return nil
}

// LERemoveAdvertisingSet (0x08|0x003C) [Vol 4, Part E, 7.8.59]
type LERemoveAdvertisingSet struct {
	AdvertisingHandle uint8
}

func (c *LERemoveAdvertisingSet) OpCode() int              { return 0x08<<10 | 0x003C }
func (c *LERemoveAdvertisingSet) Len() int                 { return 1 }
func (c *LERemoveAdvertisingSet) Marshal(b []byte) error   { return marshal(c, b) }
func (c *LERemoveAdvertisingSet) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LEClearAdvertisingSets (0x08|0x003D) [Vol 4, Part E, 7.8.60]
type LEClearAdvertisingSets struct{}

func (c *LEClearAdvertisingSets) OpCode() int              { return 0x08<<10 | 0x003D }
func (c *LEClearAdvertisingSets) Len() int                 { return 0 }
func (c *LEClearAdvertisingSets) Marshal(b []byte) error   { return nil }
func (c *LEClearAdvertisingSets) Unmarshal(b []byte) error { return noParams(b) }
