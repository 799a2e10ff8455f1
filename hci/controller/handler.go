package controller

import (
	"fmt"

	"github.com/rigado/blesim"
	"github.com/rigado/blesim/hci"
	"github.com/rigado/blesim/hci/cmd"
)

// number of command packets the host may send after each Command Complete
const numHCICommandPackets = 0x01

func (c *LinkLayerController) init() {
	c.cmdh[hci.OpReset] = c.handleReset

	c.cmdh[hci.OpLEReadFilterAcceptListSize] = c.handleLEReadFilterAcceptListSize
	c.cmdh[hci.OpLEClearFilterAcceptList] = c.handleLEClearFilterAcceptList
	c.cmdh[hci.OpLEAddDeviceToFilterAcceptList] = c.handleLEAddDeviceToFilterAcceptList
	c.cmdh[hci.OpLERemoveDeviceFromFilterAcceptList] = c.handleLERemoveDeviceFromFilterAcceptList

	c.cmdh[hci.OpLESetScanParameters] = c.handleLESetScanParameters
	c.cmdh[hci.OpLESetScanEnable] = c.handleLESetScanEnable
	c.cmdh[hci.OpLESetAdvertisingParameters] = c.handleLESetAdvertisingParameters
	c.cmdh[hci.OpLESetAdvertiseEnable] = c.handleLESetAdvertiseEnable
	c.cmdh[hci.OpLESetExtendedAdvertisingParameters] = c.handleLESetExtendedAdvertisingParameters
	c.cmdh[hci.OpLESetExtendedAdvertisingEnable] = c.handleLESetExtendedAdvertisingEnable
	c.cmdh[hci.OpLERemoveAdvertisingSet] = c.handleLERemoveAdvertisingSet
	c.cmdh[hci.OpLEClearAdvertisingSets] = c.handleLEClearAdvertisingSets
	c.cmdh[hci.OpLECreateConnection] = c.handleLECreateConnection
	c.cmdh[hci.OpLECreateConnectionCancel] = c.handleLECreateConnectionCancel
}

// HandleCommand processes one H4 command packet (type, opcode, length,
// parameters) and returns the H4 event answering it.
// An error is returned only for packets that are not well-formed commands;
// every command failure is reported through the event status.
func (c *LinkLayerController) HandleCommand(b []byte) ([]byte, error) {
	if len(b) < hci.CommandHeaderLength {
		return nil, fmt.Errorf("short command packet: % X", b)
	}
	if b[0] != hci.PktTypeCommand {
		return nil, fmt.Errorf("invalid packet: 0x%02X % X", b[0], b[1:])
	}

	op := int(b[1]) | int(b[2])<<8
	if int(b[3]) != len(b[hci.CommandHeaderLength:]) {
		return nil, fmt.Errorf("invalid command packet: % X", b)
	}

	f := c.cmdh[op]
	if f == nil {
		c.logger.Warnf("unsupported command 0x%04X", op)
		return commandComplete(op, byte(hci.ErrUnknownCommand), nil), nil
	}

	rp, err := f(b[hci.CommandHeaderLength:])
	if op == hci.OpLECreateConnection {
		// answered with Command Status; the connection itself never completes
		return commandStatus(op, hci.Status(err)), nil
	}
	if err != nil {
		return commandComplete(op, hci.Status(err), nil), nil
	}
	return commandComplete(op, hci.StatusSuccess, rp), nil
}

// commandComplete builds an H4 Command Complete event [Vol 4, Part E, 7.7.14].
func commandComplete(op int, status byte, rp []byte) []byte {
	b := make([]byte, 0, 7+len(rp))
	b = append(b, hci.PktTypeEvent, hci.EvtCommandCompleteCode, byte(4+len(rp)))
	b = append(b, numHCICommandPackets, byte(op), byte(op>>8), status)
	return append(b, rp...)
}

// commandStatus builds an H4 Command Status event [Vol 4, Part E, 7.7.15].
func commandStatus(op int, status byte) []byte {
	return []byte{hci.PktTypeEvent, hci.EvtCommandStatusCode, 4, status, numHCICommandPackets, byte(op), byte(op >> 8)}
}

// decode unmarshals parameters, mapping any decode failure to ErrInvalidParameters.
func (c *LinkLayerController) decode(op string, r interface{ Unmarshal([]byte) error }, b []byte) error {
	if err := r.Unmarshal(b); err != nil {
		c.logger.Debugf("%v: %v", op, err)
		return hci.ErrInvalidParameters
	}
	return nil
}

func (c *LinkLayerController) handleReset(b []byte) ([]byte, error) {
	if err := c.decode("reset", &cmd.Reset{}, b); err != nil {
		return nil, err
	}
	c.Reset()
	return nil, nil
}

func (c *LinkLayerController) handleLEReadFilterAcceptListSize(b []byte) ([]byte, error) {
	if err := c.decode("read accept list size", &cmd.LEReadFilterAcceptListSize{}, b); err != nil {
		return nil, err
	}
	return []byte{byte(c.GetFilterAcceptListSize())}, nil
}

func (c *LinkLayerController) handleLEClearFilterAcceptList(b []byte) ([]byte, error) {
	if err := c.decode("clear accept list", &cmd.LEClearFilterAcceptList{}, b); err != nil {
		return nil, err
	}
	return nil, c.ClearFilterAcceptList().Err()
}

func (c *LinkLayerController) handleLEAddDeviceToFilterAcceptList(b []byte) ([]byte, error) {
	p := cmd.LEAddDeviceToFilterAcceptList{}
	if err := c.decode("add to accept list", &p, b); err != nil {
		return nil, err
	}
	t := blesim.AddrType(p.AddressType)
	if !t.Valid() {
		return nil, hci.ErrInvalidParameters
	}
	return nil, c.AddDeviceToFilterAcceptList(t, blesim.Addr(p.Address)).Err()
}

func (c *LinkLayerController) handleLERemoveDeviceFromFilterAcceptList(b []byte) ([]byte, error) {
	p := cmd.LERemoveDeviceFromFilterAcceptList{}
	if err := c.decode("remove from accept list", &p, b); err != nil {
		return nil, err
	}
	t := blesim.AddrType(p.AddressType)
	if !t.Valid() {
		return nil, hci.ErrInvalidParameters
	}
	return nil, c.RemoveDeviceFromFilterAcceptList(t, blesim.Addr(p.Address)).Err()
}

func (c *LinkLayerController) handleLESetScanParameters(b []byte) ([]byte, error) {
	p := cmd.LESetScanParameters{}
	if err := c.decode("set scan parameters", &p, b); err != nil {
		return nil, err
	}
	return nil, c.SetScanParameters(p)
}

func (c *LinkLayerController) handleLESetScanEnable(b []byte) ([]byte, error) {
	p := cmd.LESetScanEnable{}
	if err := c.decode("set scan enable", &p, b); err != nil {
		return nil, err
	}
	if p.LEScanEnable > 1 || p.FilterDuplicates > 1 {
		return nil, hci.ErrInvalidParameters
	}
	return nil, c.SetScanEnable(p.LEScanEnable == 1)
}

func (c *LinkLayerController) handleLESetAdvertisingParameters(b []byte) ([]byte, error) {
	p := cmd.LESetAdvertisingParameters{}
	if err := c.decode("set advertising parameters", &p, b); err != nil {
		return nil, err
	}
	return nil, c.SetAdvertisingParameters(p)
}

func (c *LinkLayerController) handleLESetAdvertiseEnable(b []byte) ([]byte, error) {
	p := cmd.LESetAdvertiseEnable{}
	if err := c.decode("set advertise enable", &p, b); err != nil {
		return nil, err
	}
	if p.AdvertisingEnable > 1 {
		return nil, hci.ErrInvalidParameters
	}
	return nil, c.SetAdvertisingEnable(p.AdvertisingEnable == 1)
}

func (c *LinkLayerController) handleLESetExtendedAdvertisingParameters(b []byte) ([]byte, error) {
	p := cmd.LESetExtendedAdvertisingParameters{}
	if err := c.decode("set extended advertising parameters", &p, b); err != nil {
		return nil, err
	}
	txp, err := c.SetExtendedAdvertisingParameters(p)
	if err != nil {
		return nil, err
	}
	return []byte{byte(txp)}, nil
}

func (c *LinkLayerController) handleLESetExtendedAdvertisingEnable(b []byte) ([]byte, error) {
	p := cmd.LESetExtendedAdvertisingEnable{}
	if err := c.decode("set extended advertising enable", &p, b); err != nil {
		return nil, err
	}
	if p.Enable > 1 {
		return nil, hci.ErrInvalidParameters
	}
	return nil, c.SetExtendedAdvertisingEnable(p.Enable == 1, p.Sets)
}

func (c *LinkLayerController) handleLERemoveAdvertisingSet(b []byte) ([]byte, error) {
	p := cmd.LERemoveAdvertisingSet{}
	if err := c.decode("remove advertising set", &p, b); err != nil {
		return nil, err
	}
	return nil, c.RemoveAdvertisingSet(p.AdvertisingHandle)
}

func (c *LinkLayerController) handleLEClearAdvertisingSets(b []byte) ([]byte, error) {
	if err := c.decode("clear advertising sets", &cmd.LEClearAdvertisingSets{}, b); err != nil {
		return nil, err
	}
	return nil, c.ClearAdvertisingSets()
}

func (c *LinkLayerController) handleLECreateConnection(b []byte) ([]byte, error) {
	p := cmd.LECreateConnection{}
	if err := c.decode("create connection", &p, b); err != nil {
		return nil, err
	}
	return nil, c.CreateConnection(p)
}

func (c *LinkLayerController) handleLECreateConnectionCancel(b []byte) ([]byte, error) {
	if err := c.decode("create connection cancel", &cmd.LECreateConnectionCancel{}, b); err != nil {
		return nil, err
	}
	return nil, c.CreateConnectionCancel()
}
