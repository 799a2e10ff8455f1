package controller

import (
	"path/filepath"
	"testing"

	"github.com/rigado/blesim"
	"github.com/rigado/blesim/cache"
	"github.com/rigado/blesim/hci"
	"github.com/rigado/blesim/hci/cmd"
	"github.com/rigado/blesim/hci/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type marshaler interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

func packet(t *testing.T, c marshaler) []byte {
	t.Helper()
	b := make([]byte, hci.CommandHeaderLength+c.Len())
	b[0] = hci.PktTypeCommand
	b[1] = byte(c.OpCode())
	b[2] = byte(c.OpCode() >> 8)
	b[3] = byte(c.Len())
	require.NoError(t, c.Marshal(b[hci.CommandHeaderLength:]))
	return b
}

func send(t *testing.T, c *LinkLayerController, m marshaler) []byte {
	t.Helper()
	evt, err := c.HandleCommand(packet(t, m))
	require.NoError(t, err)
	return evt
}

func complete(op int, status byte, rp ...byte) []byte {
	b := []byte{hci.PktTypeEvent, hci.EvtCommandCompleteCode, byte(4 + len(rp)), 0x01, byte(op), byte(op >> 8), status}
	return append(b, rp...)
}

func TestHandleRemoveDeviceFromFilterAcceptList(t *testing.T) {
	c := newTestController(t)
	a := [6]byte(addr1)

	evt := send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	assert.Equal(t, complete(hci.OpLEAddDeviceToFilterAcceptList, 0x00), evt)

	evt = send(t, c, &cmd.LERemoveDeviceFromFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	assert.Equal(t, complete(hci.OpLERemoveDeviceFromFilterAcceptList, 0x00), evt)
	assert.Equal(t, 0, c.FilterAcceptListLen())
}

func TestHandleRemoveNotFound(t *testing.T) {
	c := newTestController(t)
	a := [6]byte(addr1)

	send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	evt := send(t, c, &cmd.LERemoveDeviceFromFilterAcceptList{AddressType: hci.AddressTypeRandom, Address: a})
	assert.Equal(t, complete(hci.OpLERemoveDeviceFromFilterAcceptList, 0x00), evt)
	assert.Equal(t, 1, c.FilterAcceptListLen())
}

func TestHandleRemoveWhileScanning(t *testing.T) {
	c := newTestController(t)
	a := [6]byte(addr1)

	send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	sp := scanParams(policy.ScanAcceptListOnly)
	assert.Equal(t, complete(hci.OpLESetScanParameters, 0x00), send(t, c, &sp))
	assert.Equal(t, complete(hci.OpLESetScanEnable, 0x00), send(t, c, &cmd.LESetScanEnable{LEScanEnable: 1}))

	evt := send(t, c, &cmd.LERemoveDeviceFromFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	assert.Equal(t, complete(hci.OpLERemoveDeviceFromFilterAcceptList, byte(hci.ErrDisallowed)), evt)
}

func TestHandleRemoveWhileLegacyAdvertising(t *testing.T) {
	c := newTestController(t)
	a := [6]byte(addr1)

	send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	ap := advParams(policy.AdvAcceptListForScan)
	assert.Equal(t, complete(hci.OpLESetAdvertisingParameters, 0x00), send(t, c, &ap))
	assert.Equal(t, complete(hci.OpLESetAdvertiseEnable, 0x00), send(t, c, &cmd.LESetAdvertiseEnable{AdvertisingEnable: 1}))

	evt := send(t, c, &cmd.LERemoveDeviceFromFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	assert.Equal(t, complete(hci.OpLERemoveDeviceFromFilterAcceptList, byte(hci.ErrDisallowed)), evt)
}

func TestHandleRemoveWhileExtendedAdvertising(t *testing.T) {
	c := newTestController(t)
	a := [6]byte(addr1)

	send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	ep := extAdvParams(1, policy.AdvAcceptListForScan)
	assert.Equal(t, complete(hci.OpLESetExtendedAdvertisingParameters, 0x00, 0x00), send(t, c, &ep))

	enable := &cmd.LESetExtendedAdvertisingEnable{Enable: 1, Sets: []cmd.AdvertisingSet{{AdvertisingHandle: 1}}}
	assert.Equal(t, complete(hci.OpLESetExtendedAdvertisingEnable, 0x00), send(t, c, enable))

	evt := send(t, c, &cmd.LERemoveDeviceFromFilterAcceptList{AddressType: hci.AddressTypePublic, Address: a})
	assert.Equal(t, complete(hci.OpLERemoveDeviceFromFilterAcceptList, byte(hci.ErrDisallowed)), evt)

	evt = send(t, c, &cmd.LERemoveAdvertisingSet{AdvertisingHandle: 1})
	assert.Equal(t, complete(hci.OpLERemoveAdvertisingSet, byte(hci.ErrDisallowed)), evt)
}

func TestHandleReadFilterAcceptListSize(t *testing.T) {
	c := newTestController(t, blesim.OptAcceptListSize(12))

	evt := send(t, c, &cmd.LEReadFilterAcceptListSize{})
	assert.Equal(t, complete(hci.OpLEReadFilterAcceptListSize, 0x00, 12), evt)
}

func TestHandleAddCapacityExceeded(t *testing.T) {
	c := newTestController(t, blesim.OptAcceptListSize(1))

	send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: [6]byte(addr1)})
	evt := send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: [6]byte(addr2)})
	assert.Equal(t, complete(hci.OpLEAddDeviceToFilterAcceptList, byte(hci.ErrMemoryCapacity)), evt)
}

func TestHandleInvalidAddressType(t *testing.T) {
	c := newTestController(t)

	evt := send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: 0x02, Address: [6]byte(addr1)})
	assert.Equal(t, complete(hci.OpLEAddDeviceToFilterAcceptList, byte(hci.ErrInvalidParameters)), evt)
	assert.Equal(t, 0, c.FilterAcceptListLen())
}

func TestHandleCreateConnection(t *testing.T) {
	c := newTestController(t)

	cp := connParams(policy.InitiatorAcceptListOnly)
	op := hci.OpLECreateConnection
	status := []byte{hci.PktTypeEvent, hci.EvtCommandStatusCode, 0x04, 0x00, 0x01, byte(op), byte(op >> 8)}
	assert.Equal(t, status, send(t, c, &cp))

	evt := send(t, c, &cmd.LEClearFilterAcceptList{})
	assert.Equal(t, complete(hci.OpLEClearFilterAcceptList, byte(hci.ErrDisallowed)), evt)

	evt = send(t, c, &cmd.LECreateConnectionCancel{})
	assert.Equal(t, complete(hci.OpLECreateConnectionCancel, 0x00), evt)
}

func TestHandleUnknownCommand(t *testing.T) {
	c := newTestController(t)

	evt, err := c.HandleCommand([]byte{hci.PktTypeCommand, 0x01, 0x20, 0x00})
	require.NoError(t, err)
	assert.Equal(t, complete(0x2001, byte(hci.ErrUnknownCommand)), evt)
}

func TestHandleMalformedCommand(t *testing.T) {
	c := newTestController(t)

	// parameter length does not match the command
	op := hci.OpLEAddDeviceToFilterAcceptList
	evt, err := c.HandleCommand([]byte{hci.PktTypeCommand, byte(op), byte(op >> 8), 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, complete(op, byte(hci.ErrInvalidParameters)), evt)

	for _, b := range [][]byte{
		{hci.PktTypeCommand, 0x01},
		{hci.PktTypeEvent, 0x0e, 0x00, 0x00},
		{hci.PktTypeCommand, byte(op), byte(op >> 8), 0x07, 0x00},
	} {
		_, err := c.HandleCommand(b)
		assert.Error(t, err, "% X", b)
	}
}

func TestHandleReset(t *testing.T) {
	c := newTestController(t)
	send(t, c, &cmd.LEAddDeviceToFilterAcceptList{AddressType: hci.AddressTypePublic, Address: [6]byte(addr1)})

	assert.Equal(t, complete(hci.OpReset, 0x00), send(t, c, &cmd.Reset{}))
	assert.Equal(t, 0, c.FilterAcceptListLen())
}

func TestSnapshot(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "snapshot.json")
	c := newTestController(t, blesim.OptSnapshotFile(fn), blesim.OptAddress(blesim.MustAddr("c0:ff:ee:00:00:01")))

	require.Equal(t, Success, c.AddDeviceToFilterAcceptList(blesim.AddrTypeRandom, addr2))
	_, err := c.SetExtendedAdvertisingParameters(extAdvParams(4, policy.AdvAcceptListForConnect))
	require.NoError(t, err)
	require.NoError(t, c.SetExtendedAdvertisingEnable(true, []cmd.AdvertisingSet{{AdvertisingHandle: 4}}))

	require.NoError(t, c.SaveSnapshot())

	s, err := cache.New(fn).Load()
	require.NoError(t, err)
	assert.Equal(t, c.ID(), s.Controller)
	assert.Equal(t, c.Addr(), s.Address)
	assert.Equal(t, defaultAcceptListSize, s.AcceptListCapacity)
	require.Len(t, s.AcceptList, 1)
	assert.Equal(t, blesim.AddrTypeRandom, s.AcceptList[0].Type)
	assert.True(t, s.ExtendedAdvertising[4].Enabled)
	assert.Equal(t, []string{"extended_advertising[4]"}, s.Blocking)
}

func TestSaveSnapshotWithoutFile(t *testing.T) {
	c := newTestController(t)
	assert.Error(t, c.SaveSnapshot())
}

func TestInvalidOptions(t *testing.T) {
	_, err := NewLinkLayerController(blesim.OptAcceptListSize(256))
	assert.Error(t, err)
	_, err = NewLinkLayerController(blesim.OptResolvingListSize(-1))
	assert.Error(t, err)
	_, err = NewLinkLayerController(blesim.OptLogger(nil))
	assert.Error(t, err)
}

func TestOptionsAfterConstruction(t *testing.T) {
	c := newTestController(t, blesim.OptAcceptListSize(2))

	assert.Error(t, c.Option(blesim.OptAcceptListSize(8)))
	assert.Error(t, c.SetAcceptListSize(8))
	assert.Error(t, c.SetAddress(addr1))
	assert.Equal(t, 2, c.GetFilterAcceptListSize())
	assert.Equal(t, blesim.Addr{}, c.Addr())
}
